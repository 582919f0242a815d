package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/dig-ticket-service/internal/domain"
	apperrors "github.com/spec-kit/dig-ticket-service/pkg/util/errorutil"
)

// MemoryTicketRepository keeps deep copies of tickets in a map. Callers
// never share memory with the stored aggregate.
type MemoryTicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]*domain.Ticket
}

// NewMemoryTicketRepository creates an empty store.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{tickets: make(map[string]*domain.Ticket)}
}

func (r *MemoryTicketRepository) Get(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
	}
	return t.Clone(), nil
}

func (r *MemoryTicketRepository) Save(ctx context.Context, ticket *domain.Ticket) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickets[ticket.ID] = ticket.Clone()
	return nil
}

func (r *MemoryTicketRepository) ListExpirable(_ context.Context, before time.Time) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for id, t := range r.tickets {
		if t.ExpiresDate == nil || !t.ExpiresDate.Before(before) {
			continue
		}
		if t.Status.IsTerminal() || t.Status == domain.TicketStatusReadyToDig {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Len reports the number of stored tickets.
func (r *MemoryTicketRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tickets)
}
