package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/dig-ticket-service/internal/domain"
	apperrors "github.com/spec-kit/dig-ticket-service/pkg/util/errorutil"
)

// TicketRepository encapsulates ticket persistence. Save writes the whole
// aggregate or nothing.
type TicketRepository interface {
	Get(ctx context.Context, id string) (*domain.Ticket, error)
	Save(ctx context.Context, ticket *domain.Ticket) error
	// ListExpirable returns ids of tickets still able to expire whose
	// expires date is before the given instant.
	ListExpirable(ctx context.Context, before time.Time) ([]string, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository stores tickets as JSONB documents in Postgres.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `SELECT document FROM tickets WHERE id=$1`
	var raw []byte
	if err := r.pool.QueryRow(ctx, query, id).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
		}
		return nil, err
	}
	var ticket domain.Ticket
	if err := json.Unmarshal(raw, &ticket); err != nil {
		return nil, fmt.Errorf("decode ticket %s: %w", id, err)
	}
	return &ticket, nil
}

func (r *ticketRepository) Save(ctx context.Context, ticket *domain.Ticket) error {
	doc, err := json.Marshal(ticket)
	if err != nil {
		return fmt.Errorf("encode ticket %s: %w", ticket.ID, err)
	}
	const query = `
        INSERT INTO tickets (id, status, expires_date, document, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (id) DO UPDATE SET
            status=EXCLUDED.status,
            expires_date=EXCLUDED.expires_date,
            document=EXCLUDED.document,
            updated_at=EXCLUDED.updated_at`
	_, err = r.pool.Exec(ctx, query,
		ticket.ID,
		string(ticket.Status),
		ticket.ExpiresDate,
		doc,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	return err
}

func (r *ticketRepository) ListExpirable(ctx context.Context, before time.Time) ([]string, error) {
	const query = `
        SELECT id FROM tickets
        WHERE expires_date IS NOT NULL AND expires_date < $1
          AND status NOT IN ('READY_TO_DIG','EXPIRED','CANCELLED')
        ORDER BY expires_date`
	rows, err := r.pool.Query(ctx, query, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
