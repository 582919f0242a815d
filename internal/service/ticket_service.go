package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/dig-ticket-service/internal/clock"
	"github.com/spec-kit/dig-ticket-service/internal/compliance"
	"github.com/spec-kit/dig-ticket-service/internal/domain"
	"github.com/spec-kit/dig-ticket-service/internal/events"
	"github.com/spec-kit/dig-ticket-service/internal/geo"
	"github.com/spec-kit/dig-ticket-service/internal/lifecycle"
	"github.com/spec-kit/dig-ticket-service/internal/observability"
	"github.com/spec-kit/dig-ticket-service/internal/repository"
	"github.com/spec-kit/dig-ticket-service/internal/responses"
	"github.com/spec-kit/dig-ticket-service/internal/validation"
	apperrors "github.com/spec-kit/dig-ticket-service/pkg/util/errorutil"
)

// Evaluator computes the gap list for a field set.
type Evaluator interface {
	Evaluate(ctx context.Context, in validation.Input) []domain.Gap
}

// TicketService coordinates the validation session of each ticket: merge,
// re-validate, recompute dates and drive the lifecycle. Every operation on a
// ticket runs inside that ticket's critical section.
type TicketService struct {
	repo       repository.TicketRepository
	validator  Evaluator
	calendar   *compliance.Calendar
	clock      clock.Clock
	ids        clock.IDSource
	resolver   geo.Resolver
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger

	machine *lifecycle.Machine
	tracker *responses.Tracker
	locks   *keyedMutex
}

// TicketDependencies bundles collaborators for the ticket service.
// Resolver, Dispatcher and Metrics are optional.
type TicketDependencies struct {
	Repo       repository.TicketRepository
	Validator  Evaluator
	Calendar   *compliance.Calendar
	Clock      clock.Clock
	IDs        clock.IDSource
	Resolver   geo.Resolver
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	if deps.Calendar == nil {
		deps.Calendar = compliance.DefaultCalendar()
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.IDs == nil {
		deps.IDs = clock.UUIDs()
	}
	if deps.Validator == nil {
		deps.Validator = validation.NewValidator(deps.Calendar)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &TicketService{
		repo:       deps.Repo,
		validator:  deps.Validator,
		calendar:   deps.Calendar,
		clock:      deps.Clock,
		ids:        deps.IDs,
		resolver:   deps.Resolver,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		machine:    lifecycle.NewMachine(deps.Calendar, deps.Clock),
		tracker:    responses.NewTracker(deps.Clock),
		locks:      newKeyedMutex(),
	}
}

// ResponderInput names an expected utility member.
type ResponderInput struct {
	Code string
	Name string
}

// DraftInput is the first submission of a ticket.
type DraftInput struct {
	SessionID          string
	Fields             domain.Fields
	ExpectedResponders []ResponderInput
	Notes              []string
	Actor              string
}

// UpdateInput is a partial update. Fields omitted from Patch are left alone.
type UpdateInput struct {
	Patch              domain.FieldPatch
	Notes              []string
	ExpectedResponders []ResponderInput
	Actor              string
}

// TransitionInput is an operator-requested status change.
type TransitionInput struct {
	Target domain.TicketStatus
	Reason string
	Actor  string
}

// Snapshot is the caller-facing view of a ticket after an operation.
type Snapshot struct {
	Ticket         *domain.Ticket
	Gaps           []domain.Gap
	ReadyToConfirm bool
	Responses      domain.ResponseSummary
	// Transitions lists the status changes made by this call, automatic ones included.
	Transitions []lifecycle.Transition
	Warnings    []string
}

// change collects the side effects of one operation until commit.
type change struct {
	actor       string
	dirty       bool
	transitions []lifecycle.Transition
	pending     []pendingEvent
	warnings    []string
}

type pendingEvent struct {
	typ     events.EventType
	payload any
}

func (ch *change) record(tr *lifecycle.Transition) {
	if tr != nil {
		ch.transitions = append(ch.transitions, *tr)
	}
}

type operation func(ctx context.Context, t *domain.Ticket, ch *change) error

// CreateDraft allocates a Draft ticket from the initial fields and runs the
// first validation pass. A gap-free initial field set validates immediately.
func (s *TicketService) CreateDraft(ctx context.Context, in DraftInput) (*Snapshot, error) {
	now := s.clock.Now()
	t := &domain.Ticket{
		ID:        s.ids.NewID(),
		SessionID: strings.TrimSpace(in.SessionID),
		Status:    domain.TicketStatusDraft,
		Audit:     []domain.AuditEntry{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if t.SessionID == "" {
		t.SessionID = s.ids.NewID()
	}
	t.Fields.Merge(domain.FieldPatch{Set: in.Fields})
	for _, r := range in.ExpectedResponders {
		s.tracker.AddExpected(t, r.Code, r.Name)
	}
	s.appendNotes(t, in.Notes, in.Actor)

	unlock := s.locks.Lock(t.ID)
	defer unlock()

	ch := &change{actor: actorOrSystem(in.Actor), dirty: true}
	if err := s.revalidate(ctx, t, ch, true); err != nil {
		return nil, err
	}
	ch.pending = append(ch.pending, pendingEvent{typ: events.EventTicketCreated, payload: events.TicketCreatedPayload{
		SessionID:    t.SessionID,
		Status:       t.Status,
		RequiredGaps: len(domain.RequiredGaps(s.evaluate(ctx, t))),
	}})
	snap, err := s.commit(ctx, t, ch)
	if err != nil {
		return nil, err
	}
	s.logger.Info("ticket created",
		zap.String("ticket_id", t.ID),
		zap.String("session_id", t.SessionID),
		zap.String("status", string(t.Status)),
		zap.Int("gaps", len(snap.Gaps)))
	return snap, nil
}

// ApplyUpdate merges a partial update, re-runs validation and date
// calculation and re-attempts Draft -> Validated. Re-sending identical
// values changes nothing.
func (s *TicketService) ApplyUpdate(ctx context.Context, ticketID string, in UpdateInput) (*Snapshot, error) {
	return s.withTicket(ctx, ticketID, actorOrSystem(in.Actor), func(ctx context.Context, t *domain.Ticket, ch *change) error {
		if err := lifecycle.CheckNotTerminal(t, "fields"); err != nil {
			return err
		}
		changed := t.Fields.Merge(in.Patch)
		if err := lifecycle.CheckFieldsMutable(t, changed); err != nil {
			return err
		}
		added, err := s.addResponders(t, in.ExpectedResponders)
		if err != nil {
			return err
		}
		notes := s.appendNotes(t, in.Notes, in.Actor)
		if len(changed) > 0 || added > 0 || notes > 0 {
			ch.dirty = true
		}
		if !t.Status.FieldsLocked() {
			if err := s.revalidate(ctx, t, ch, touchesLocation(changed)); err != nil {
				return err
			}
		}
		if ch.dirty {
			ch.pending = append(ch.pending, pendingEvent{typ: events.EventTicketUpdated, payload: events.TicketUpdatedPayload{
				ChangedFields: changed,
				Status:        t.Status,
				RequiredGaps:  len(domain.RequiredGaps(s.evaluate(ctx, t))),
				NotesAdded:    notes,
			}})
		}
		return nil
	})
}

// Confirm moves a Validated ticket to Confirmed, locking its fields and
// freezing the submission packet.
func (s *TicketService) Confirm(ctx context.Context, ticketID, actor string) (*Snapshot, error) {
	return s.withTicket(ctx, ticketID, actorOrSystem(actor), func(ctx context.Context, t *domain.Ticket, ch *change) error {
		return s.confirm(ctx, t, ch, actor, "")
	})
}

func (s *TicketService) confirm(ctx context.Context, t *domain.Ticket, ch *change, actor, reason string) error {
	gaps := s.evaluate(ctx, t)
	if t.Status == domain.TicketStatusDraft {
		if n := len(domain.RequiredGaps(gaps)); n > 0 {
			return apperrors.NewInvalidTransition(string(t.Status), string(domain.TicketStatusConfirmed), fmt.Sprintf("%d required gaps remain", n))
		}
	}
	tr, err := s.machine.Transition(t, lifecycle.Request{To: domain.TicketStatusConfirmed, Actor: actor, Reason: reason, Gaps: gaps})
	if err != nil {
		return err
	}
	ch.record(&tr)
	return nil
}

// RecordResponse stores a utility member's response and applies any
// clearance-driven transition.
func (s *TicketService) RecordResponse(ctx context.Context, ticketID string, in responses.Input, actor string) (*Snapshot, error) {
	return s.withTicket(ctx, ticketID, actorOrSystem(actor), func(ctx context.Context, t *domain.Ticket, ch *change) error {
		if err := lifecycle.CheckNotTerminal(t, "responses"); err != nil {
			return err
		}
		if t.Status.AtMost(domain.TicketStatusConfirmed) {
			return apperrors.NewOperationNotAllowed(string(t.Status), "record a response", "responses are accepted once the ticket is submitted")
		}
		if strings.TrimSpace(in.Respondent) == "" {
			in.Respondent = actor
		}
		res, err := s.tracker.Record(t, in)
		if err != nil {
			return err
		}
		ch.dirty = true

		tr, err := s.machine.ApplyClearance(t, res.State)
		if err != nil {
			return err
		}
		ch.record(tr)

		summary := responses.Summarize(t)
		ch.pending = append(ch.pending, pendingEvent{typ: events.EventTicketResponseRecorded, payload: events.TicketResponseRecordedPayload{
			UtilityCode: responses.NormalizeCode(in.UtilityCode),
			Status:      domain.ResponseStatus(strings.ToUpper(strings.TrimSpace(string(in.Status)))),
			Clearance:   summary.State,
			Unexpected:  res.Unexpected,
			Pending:     summary.Pending,
		}})
		return nil
	})
}

// ManualTransition applies an operator-requested status change. Statuses
// reached only automatically are refused; Confirmed goes through the same
// checks as Confirm.
func (s *TicketService) ManualTransition(ctx context.Context, ticketID string, in TransitionInput) (*Snapshot, error) {
	if _, ok := domain.ParseTicketStatus(string(in.Target)); !ok {
		return nil, apperrors.NewValidationError("unknown target status", map[string]any{"target": in.Target})
	}
	return s.withTicket(ctx, ticketID, actorOrSystem(in.Actor), func(ctx context.Context, t *domain.Ticket, ch *change) error {
		if lifecycle.IsSystemOnly(in.Target) {
			return apperrors.NewInvalidTransition(string(t.Status), string(in.Target), "status is only reached automatically")
		}
		if in.Target == domain.TicketStatusConfirmed {
			return s.confirm(ctx, t, ch, in.Actor, in.Reason)
		}
		tr, err := s.machine.Transition(t, lifecycle.Request{
			To:     in.Target,
			Actor:  in.Actor,
			Reason: in.Reason,
			Gaps:   s.evaluate(ctx, t),
		})
		if err != nil {
			return err
		}
		ch.record(&tr)

		if in.Target == domain.TicketStatusInProgress {
			next, err := s.machine.ApplyClearance(t, responses.Summarize(t).State)
			if err != nil {
				return err
			}
			ch.record(next)
		}
		return nil
	})
}

// GetSnapshot returns the current view of a ticket, applying a due expiry first.
func (s *TicketService) GetSnapshot(ctx context.Context, ticketID string) (*Snapshot, error) {
	return s.withTicket(ctx, ticketID, domain.ActorSystem, nil)
}

// SweepExpired expires every ticket whose response window has closed and
// returns how many changed.
func (s *TicketService) SweepExpired(ctx context.Context) (int, error) {
	ids, err := s.repo.ListExpirable(ctx, s.calendar.Date(s.clock.Now()))
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, id := range ids {
		snap, err := s.GetSnapshot(ctx, id)
		if err != nil {
			s.logger.Warn("expiry sweep failed", zap.String("ticket_id", id), zap.Error(err))
			continue
		}
		if len(snap.Transitions) > 0 && snap.Ticket.Status == domain.TicketStatusExpired {
			expired++
		}
	}
	return expired, nil
}

// withTicket runs op against a private copy of the stored ticket inside the
// ticket's critical section. The copy replaces the stored ticket only if op
// succeeds and the save succeeds.
func (s *TicketService) withTicket(ctx context.Context, ticketID, actor string, op operation) (*Snapshot, error) {
	unlock := s.locks.Lock(ticketID)
	defer unlock()

	stored, err := s.repo.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	work := stored.Clone()
	ch := &change{actor: actor}

	tr, err := s.machine.ExpireIfDue(work)
	if err != nil {
		return nil, err
	}
	ch.record(tr)

	if op == nil {
		return s.commit(ctx, work, ch)
	}

	var expiredOnly *domain.Ticket
	if tr != nil {
		expiredOnly = work.Clone()
	}
	if err := op(ctx, work, ch); err != nil {
		if expiredOnly != nil {
			// The expiry is a complete transition of its own and is kept
			// even though the requested operation failed.
			if _, cerr := s.commit(ctx, expiredOnly, &change{actor: domain.ActorSystem, transitions: []lifecycle.Transition{*tr}}); cerr != nil {
				s.logger.Error("persist expiry failed", zap.String("ticket_id", ticketID), zap.Error(cerr))
			}
		}
		return nil, err
	}
	return s.commit(ctx, work, ch)
}

// commit saves t if the operation changed anything, then publishes events.
// Saving ignores caller cancellation: once reached, a transition commits or
// fails as a whole.
func (s *TicketService) commit(ctx context.Context, t *domain.Ticket, ch *change) (*Snapshot, error) {
	if ch.dirty || len(ch.transitions) > 0 {
		if ch.dirty {
			t.UpdatedAt = s.clock.Now()
		}
		if err := s.repo.Save(context.WithoutCancel(ctx), t); err != nil {
			s.logger.Error("ticket save failed", zap.String("ticket_id", t.ID), zap.Error(err))
			return nil, apperrors.NewInternalError(fmt.Errorf("save ticket %s: %w", t.ID, err))
		}
		s.afterCommit(ctx, t, ch)
	}
	return s.snapshot(ctx, t, ch), nil
}

func (s *TicketService) afterCommit(ctx context.Context, t *domain.Ticket, ch *change) {
	for _, p := range ch.pending {
		s.emit(ctx, p.typ, t.ID, ch.actor, p.payload)
	}
	for _, tr := range ch.transitions {
		s.metrics.RecordTransition(string(tr.From), string(tr.To))
		s.logger.Info("ticket status changed",
			zap.String("ticket_id", t.ID),
			zap.String("from", string(tr.From)),
			zap.String("to", string(tr.To)),
			zap.String("actor", tr.Actor),
			zap.String("reason", tr.Reason))
		s.emit(ctx, events.EventTicketStatusChanged, t.ID, tr.Actor, events.TicketStatusChangedPayload{
			OldStatus: tr.From,
			NewStatus: tr.To,
			Reason:    tr.Reason,
		})
	}
}

func (s *TicketService) emit(ctx context.Context, typ events.EventType, ticketID, actor string, payload any) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        s.ids.NewID(),
		Type:      typ,
		TicketID:  ticketID,
		Actor:     actor,
		Timestamp: s.clock.Now(),
		Payload:   payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(typ)), zap.String("ticket_id", ticketID), zap.Error(err))
	}
}

func (s *TicketService) snapshot(ctx context.Context, t *domain.Ticket, ch *change) *Snapshot {
	gaps := s.evaluate(ctx, t)
	ready := t.Status == domain.TicketStatusValidated &&
		len(domain.RequiredGaps(gaps)) == 0 &&
		t.LawfulStartDate != nil &&
		s.calendar.GivesFullNotice(*t.LawfulStartDate, s.clock.Now())
	warnings := ch.warnings
	if warnings == nil {
		warnings = []string{}
	}
	transitions := ch.transitions
	if transitions == nil {
		transitions = []lifecycle.Transition{}
	}
	return &Snapshot{
		Ticket:         t,
		Gaps:           gaps,
		ReadyToConfirm: ready,
		Responses:      responses.Summarize(t),
		Transitions:    transitions,
		Warnings:       warnings,
	}
}

func (s *TicketService) evaluate(ctx context.Context, t *domain.Ticket) []domain.Gap {
	return s.validator.Evaluate(ctx, validation.Input{Fields: t.Fields, LawfulStart: t.LawfulStartDate})
}

// revalidate recomputes the lawful start date from now, optionally
// refreshes enrichment, and syncs Draft/Validated with the gap list.
func (s *TicketService) revalidate(ctx context.Context, t *domain.Ticket, ch *change, enrich bool) error {
	lawful := s.calendar.LawfulStartDate(s.clock.Now())
	if t.LawfulStartDate == nil || !t.LawfulStartDate.Equal(lawful) {
		t.LawfulStartDate = &lawful
		ch.dirty = true
	}
	if enrich {
		s.enrich(ctx, t, ch)
	}
	tr, err := s.machine.SyncValidation(t, s.evaluate(ctx, t))
	if err != nil {
		return err
	}
	ch.record(tr)
	return nil
}

// enrich resolves the site location. Failure only adds a warning; the
// ticket's fields and gaps never depend on it.
func (s *TicketService) enrich(ctx context.Context, t *domain.Ticket, ch *change) {
	if s.resolver == nil {
		return
	}
	q, ok := geo.QueryFromFields(t.Fields)
	if !ok {
		return
	}
	loc, err := s.resolver.ResolveLocation(ctx, q)
	if err != nil {
		s.metrics.RecordEnrichmentFailure()
		s.logger.Warn("EnrichmentUnavailable", zap.String("ticket_id", t.ID), zap.Error(err))
		ch.warnings = append(ch.warnings, "enrichment unavailable: site location could not be resolved")
		if t.Enrichment != nil {
			t.Enrichment = nil
			ch.dirty = true
		}
		return
	}
	t.Enrichment = &domain.Enrichment{
		Latitude:   loc.Latitude,
		Longitude:  loc.Longitude,
		Confidence: loc.Confidence,
		Parcel:     loc.Parcel,
		ResolvedAt: s.clock.Now(),
	}
	ch.dirty = true
}

// addResponders grows the expected-responder list. New codes are refused
// once responses are in.
func (s *TicketService) addResponders(t *domain.Ticket, in []ResponderInput) (int, error) {
	added := 0
	for _, r := range in {
		if s.tracker.AddExpected(t, r.Code, r.Name) {
			added++
		}
	}
	if added > 0 && !t.Status.AtMost(domain.TicketStatusInProgress) {
		return 0, apperrors.NewFieldLocked(string(t.Status), []string{"expected_responders"})
	}
	return added, nil
}

func (s *TicketService) appendNotes(t *domain.Ticket, notes []string, actor string) int {
	added := 0
	for _, body := range notes {
		body = strings.TrimSpace(body)
		if body == "" {
			continue
		}
		t.Notes = append(t.Notes, domain.Note{At: s.clock.Now(), Author: actorOrSystem(actor), Body: body})
		added++
	}
	return added
}

func touchesLocation(changed []domain.FieldName) bool {
	for _, f := range changed {
		switch f {
		case domain.FieldStreetAddress, domain.FieldCity, domain.FieldCounty,
			domain.FieldLatitude, domain.FieldLongitude, domain.FieldGPS:
			return true
		}
	}
	return false
}

func actorOrSystem(actor string) string {
	if strings.TrimSpace(actor) == "" {
		return domain.ActorSystem
	}
	return actor
}
