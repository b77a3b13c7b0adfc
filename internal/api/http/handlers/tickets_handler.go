package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/appeal-service/internal/api/dto"
	"github.com/spec-kit/appeal-service/internal/auth"
	"github.com/spec-kit/appeal-service/internal/config"
	"github.com/spec-kit/appeal-service/internal/observability"
	"github.com/spec-kit/appeal-service/internal/ratelimit"
	"github.com/spec-kit/appeal-service/internal/service"
	apperrors "github.com/spec-kit/appeal-service/pkg/util/errorutil"
)

// TicketsHandler manages requester-facing ticket endpoints.
type TicketsHandler struct {
	tickets *service.TicketService
	limiter *ratelimit.Limiter
	metrics *observability.Metrics
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, limiter *ratelimit.Limiter, metrics *observability.Metrics) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, limiter: limiter, metrics: metrics}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("requester required")
	}
	if err := h.checkLimit(c, principal.UserID, config.ActionCreateTicket); err != nil {
		return err
	}

	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.tickets.CreateTicket(c.UserContext(), principal.UserID, req.Category, req.Priority, req.Subject, req.Body)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("requester required")
	}
	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)

	tickets, err := h.tickets.ListRequesterTickets(c.UserContext(), principal.UserID, limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.FromTicket(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("requester required")
	}
	ticketID, err := parseID(c)
	if err != nil {
		return err
	}
	ticket, msgs, err := h.tickets.GetTicketForRequester(c.UserContext(), principal.UserID, ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicketDetail(ticket, msgs)})
}

// AddMessage POST /tickets/:id/messages.
func (h *TicketsHandler) AddMessage(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("requester required")
	}
	if err := h.checkLimit(c, principal.UserID, config.ActionSendMessage); err != nil {
		return err
	}
	ticketID, err := parseID(c)
	if err != nil {
		return err
	}

	var req dto.CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	// ownership check before writing
	if _, _, err := h.tickets.GetTicketForRequester(c.UserContext(), principal.UserID, ticketID); err != nil {
		return err
	}
	msg, err := h.tickets.AppendMessage(c.UserContext(), ticketID, principal.UserID, false, req.Body)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.FromMessage(msg)})
}

// CloseTicket POST /tickets/:id/close.
func (h *TicketsHandler) CloseTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("requester required")
	}
	ticketID, err := parseID(c)
	if err != nil {
		return err
	}

	var req dto.CloseTicketRequest
	if err := c.BodyParser(&req); err != nil {
		req.Reason = ""
	}

	if _, _, err := h.tickets.GetTicketForRequester(c.UserContext(), principal.UserID, ticketID); err != nil {
		return err
	}
	if err := h.tickets.CloseTicket(c.UserContext(), ticketID, principal.UserID, false, req.Reason); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// checkLimit applies the sliding-window gate for the subject+action pair
// and attaches limit headers on denial.
func (h *TicketsHandler) checkLimit(c *fiber.Ctx, subjectID int64, action string) error {
	if h.limiter == nil {
		return nil
	}
	if h.limiter.Allow(subjectID, action) {
		return nil
	}
	h.metrics.RecordRateLimitDrop(action)

	reset := h.limiter.TimeUntilReset(subjectID, action)
	c.Set("Retry-After", strconv.Itoa(int(reset.Seconds())+1))
	if remaining, limited := h.limiter.RemainingAttempts(subjectID, action); limited {
		c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	}
	return apperrors.NewRateLimited(map[string]any{
		"action":              action,
		"retry_after_seconds": int(reset.Seconds()) + 1,
	})
}

func parseID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid ticket id", nil)
	}
	return id, nil
}
