package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/appeal-service/internal/api/dto"
	"github.com/spec-kit/appeal-service/internal/auth"
	"github.com/spec-kit/appeal-service/internal/domain"
	"github.com/spec-kit/appeal-service/internal/repository"
	"github.com/spec-kit/appeal-service/internal/service"
	apperrors "github.com/spec-kit/appeal-service/pkg/util/errorutil"
)

// OperatorsHandler manages operator-facing assignment endpoints.
type OperatorsHandler struct {
	tickets *service.TicketService
	engine  *service.AssignmentService
	tracker *service.WorkloadService
}

// NewOperatorsHandler constructs handler.
func NewOperatorsHandler(tickets *service.TicketService, engine *service.AssignmentService, tracker *service.WorkloadService) *OperatorsHandler {
	return &OperatorsHandler{tickets: tickets, engine: engine, tracker: tracker}
}

// ListTickets GET /operators/tickets.
func (h *OperatorsHandler) ListTickets(c *fiber.Ctx) error {
	filter := repository.TicketFilter{
		Limit:  c.QueryInt("limit", 20),
		Offset: c.QueryInt("offset", 0),
	}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	if mine := c.QueryBool("assigned_to_me", false); mine {
		principal, _ := auth.PrincipalFromContext(c)
		if principal != nil && principal.Operator != nil {
			filter.AssignedOperatorID = &principal.Operator.ID
		}
	}

	tickets, err := h.tickets.ListTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.FromTicket(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /operators/tickets/:id.
func (h *OperatorsHandler) GetTicket(c *fiber.Ctx) error {
	ticketID, err := parseID(c)
	if err != nil {
		return err
	}
	ticket, msgs, err := h.tickets.GetTicketWithThread(c.UserContext(), ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicketDetail(ticket, msgs)})
}

// AssignTicket POST /operators/tickets/:id/assign.
func (h *OperatorsHandler) AssignTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Operator == nil {
		return apperrors.NewUnauthorized("operator required")
	}
	ticketID, err := parseID(c)
	if err != nil {
		return err
	}

	var req dto.AssignTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	operatorID := req.OperatorID
	if operatorID == 0 {
		operatorID = principal.Operator.ID
	}

	if err := h.tickets.AssignTicket(c.UserContext(), ticketID, operatorID, principal.Operator.ID, req.Note); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UnassignTicket POST /operators/tickets/:id/unassign.
func (h *OperatorsHandler) UnassignTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Operator == nil {
		return apperrors.NewUnauthorized("operator required")
	}
	ticketID, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.tickets.UnassignTicket(c.UserContext(), ticketID, principal.Operator.ID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ReassignTicket POST /operators/tickets/:id/reassign.
func (h *OperatorsHandler) ReassignTicket(c *fiber.Ctx) error {
	ticketID, err := parseID(c)
	if err != nil {
		return err
	}
	var req dto.ReassignTicketRequest
	if err := c.BodyParser(&req); err != nil {
		req.Reason = ""
	}
	if req.Reason == "" {
		req.Reason = "manual"
	}

	operatorID, err := h.tickets.ReassignTicket(c.UserContext(), ticketID, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"operator_id": operatorID}})
}

// ReplyTicket POST /operators/tickets/:id/messages.
func (h *OperatorsHandler) ReplyTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Operator == nil {
		return apperrors.NewUnauthorized("operator required")
	}
	ticketID, err := parseID(c)
	if err != nil {
		return err
	}
	var req dto.CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	msg, err := h.tickets.AppendMessage(c.UserContext(), ticketID, principal.Operator.ID, true, req.Body)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.FromMessage(msg)})
}

// CloseTicket POST /operators/tickets/:id/close.
func (h *OperatorsHandler) CloseTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Operator == nil {
		return apperrors.NewUnauthorized("operator required")
	}
	ticketID, err := parseID(c)
	if err != nil {
		return err
	}
	var req dto.CloseTicketRequest
	if err := c.BodyParser(&req); err != nil {
		req.Reason = ""
	}
	if err := h.tickets.CloseTicket(c.UserContext(), ticketID, principal.Operator.ID, true, req.Reason); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SetAvailability POST /operators/availability.
func (h *OperatorsHandler) SetAvailability(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Operator == nil {
		return apperrors.NewUnauthorized("operator required")
	}
	var req dto.AvailabilityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.tracker.SetAvailability(c.UserContext(), principal.Operator.ID, req.Available); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetWorkload GET /operators/workload.
func (h *OperatorsHandler) GetWorkload(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Operator == nil {
		return apperrors.NewUnauthorized("operator required")
	}
	workload, err := h.tracker.GetByOperator(c.UserContext(), principal.Operator.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromWorkload(workload)})
}

// AssignmentPreview GET /operators/assignment-preview.
// Diagnostic: ranks candidates for a hypothetical ticket without assigning.
func (h *OperatorsHandler) AssignmentPreview(c *fiber.Ctx) error {
	category := domain.TicketCategory(strings.ToUpper(c.Query("category", string(domain.CategoryGeneral))))
	priority := domain.TicketPriority(strings.ToUpper(c.Query("priority", string(domain.TicketPriorityNormal))))
	if !domain.ValidCategory(category) {
		return apperrors.NewValidationError("unknown category", map[string]any{"category": category})
	}

	ranked, err := h.engine.RankOperators(c.UserContext(), category, priority)
	if err != nil {
		return err
	}
	items := make([]dto.AssignmentPreviewEntry, 0, len(ranked))
	for _, entry := range ranked {
		items = append(items, dto.AssignmentPreviewEntry{
			OperatorID:    entry.Workload.OperatorID,
			Score:         entry.Score,
			ActiveTickets: entry.Workload.ActiveTickets,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}
