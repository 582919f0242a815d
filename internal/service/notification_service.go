package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/spec-kit/dig-ticket-service/internal/events"
)

// Broadcaster pushes serialized events to connected dashboards.
type Broadcaster interface {
	Broadcast(ticketID string, data []byte)
}

// NotificationService logs ticket events and forwards them to dashboards.
type NotificationService struct {
	dispatcher  events.Dispatcher
	broadcaster Broadcaster
	logger      *zap.Logger
}

// NewNotificationService creates the service. broadcaster may be nil.
func NewNotificationService(dispatcher events.Dispatcher, broadcaster Broadcaster, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher:  dispatcher,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketUpdated, n.handleTicketUpdated)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketResponseRecorded, n.handleResponseRecorded)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return n.forward(event)
}

func (n *NotificationService) handleTicketUpdated(ctx context.Context, event events.Event) error {
	n.logger.Debug("TicketUpdated", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return n.forward(event)
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketStatusChanged", zap.String("ticket_id", event.TicketID), zap.String("actor", event.Actor), zap.Any("payload", event.Payload))
	return n.forward(event)
}

func (n *NotificationService) handleResponseRecorded(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketResponseRecorded", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return n.forward(event)
}

func (n *NotificationService) forward(event events.Event) error {
	if n.broadcaster == nil {
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	n.broadcaster.Broadcast(event.TicketID, data)
	return nil
}
