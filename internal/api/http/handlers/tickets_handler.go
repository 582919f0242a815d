package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dig-ticket-service/internal/api/dto"
	"github.com/spec-kit/dig-ticket-service/internal/auth"
	"github.com/spec-kit/dig-ticket-service/internal/compliance"
	"github.com/spec-kit/dig-ticket-service/internal/responses"
	"github.com/spec-kit/dig-ticket-service/internal/service"
	apperrors "github.com/spec-kit/dig-ticket-service/pkg/util/errorutil"
)

// TicketsHandler exposes the validation session operations.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	patch, err := dto.ParseFieldPatch(req.Fields)
	if err != nil {
		return err
	}
	snap, err := h.service.CreateDraft(c.UserContext(), service.DraftInput{
		SessionID:          req.SessionID,
		Fields:             patch.Set,
		ExpectedResponders: responderInputs(req.ExpectedResponders),
		Notes:              req.Notes,
		Actor:              principal.Actor(),
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": snapshotResponse(snap)})
}

// UpdateTicket PATCH /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	patch, err := dto.ParseFieldPatch(req.Fields)
	if err != nil {
		return err
	}
	snap, err := h.service.ApplyUpdate(c.UserContext(), c.Params("id"), service.UpdateInput{
		Patch:              patch,
		Notes:              req.Notes,
		ExpectedResponders: responderInputs(req.ExpectedResponders),
		Actor:              principal.Actor(),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": snapshotResponse(snap)})
}

// ConfirmTicket POST /tickets/:id/confirm.
func (h *TicketsHandler) ConfirmTicket(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	snap, err := h.service.Confirm(c.UserContext(), c.Params("id"), principal.Actor())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": snapshotResponse(snap)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	snap, err := h.service.GetSnapshot(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": snapshotResponse(snap)})
}

// RecordResponse POST /tickets/:id/responses.
func (h *TicketsHandler) RecordResponse(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.RecordResponseRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	snap, err := h.service.RecordResponse(c.UserContext(), c.Params("id"), responses.Input{
		UtilityCode: req.UtilityCode,
		UtilityName: req.UtilityName,
		Status:      req.Status,
		Comment:     req.Comment,
		Facilities:  req.Facilities,
	}, principal.Actor())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": snapshotResponse(snap)})
}

// TransitionTicket POST /tickets/:id/transitions.
func (h *TicketsHandler) TransitionTicket(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(string(req.Status)) == "" {
		return apperrors.NewValidationError("status required", nil)
	}
	snap, err := h.service.ManualTransition(c.UserContext(), c.Params("id"), service.TransitionInput{
		Target: req.Status,
		Reason: req.Reason,
		Actor:  principal.Actor(),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": snapshotResponse(snap)})
}

func requirePrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}

func responderInputs(in []dto.ResponderRequest) []service.ResponderInput {
	out := make([]service.ResponderInput, 0, len(in))
	for _, r := range in {
		out = append(out, service.ResponderInput{Code: r.Code, Name: r.Name})
	}
	return out
}

func snapshotResponse(s *service.Snapshot) dto.SnapshotResponse {
	resp := dto.SnapshotResponse{
		Ticket:         s.Ticket,
		Gaps:           s.Gaps,
		ReadyToConfirm: s.ReadyToConfirm,
		Responses:      s.Responses,
		Transitions:    make([]dto.TransitionResponse, 0, len(s.Transitions)),
		Warnings:       s.Warnings,
	}
	if s.Ticket.LawfulStartDate != nil {
		resp.LawfulStartDate = compliance.FormatDate(*s.Ticket.LawfulStartDate)
	}
	if s.Ticket.ExpiresDate != nil {
		resp.ExpiresDate = compliance.FormatDate(*s.Ticket.ExpiresDate)
	}
	for _, tr := range s.Transitions {
		resp.Transitions = append(resp.Transitions, dto.TransitionResponse{
			From:   tr.From,
			To:     tr.To,
			Actor:  tr.Actor,
			Reason: tr.Reason,
		})
	}
	return resp
}
