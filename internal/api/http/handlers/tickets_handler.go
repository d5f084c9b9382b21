package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-workflow/internal/api/dto"
	"github.com/spec-kit/ticket-workflow/internal/domain"
	"github.com/spec-kit/ticket-workflow/internal/service"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	user, err := actor(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), user, service.TicketCreateInput{
		Title:                     req.Title,
		Description:               req.Description,
		Priority:                  req.Priority,
		DepartmentID:              req.DepartmentID,
		Category:                  req.Category,
		AssigneeID:                req.AssigneeID,
		DueDate:                   req.DueDate,
		RequiresFinanceApproval:   req.RequiresFinanceApproval,
		WaiveDocumentRequirements: req.WaiveDocumentRequirements,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	user, err := actor(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListTickets(c.UserContext(), user, parseTicketQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	user, err := actor(c)
	if err != nil {
		return err
	}
	snapshot, err := h.service.GetTicket(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(snapshot)})
}

// Transition POST /tickets/:id/transitions. A completion certificate may be
// attached as the multipart file "completion_certificate".
func (h *TicketsHandler) Transition(c *fiber.Ctx) error {
	user, err := actor(c)
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	certificate, closer, err := formUpload(c, "completion_certificate")
	if err != nil {
		return err
	}
	defer closeQuietly(closer)

	ticket, err := h.service.TransitionStatus(c.UserContext(), user, service.TransitionRequest{
		TicketID:              c.Params("id"),
		CurrentStatus:         req.CurrentStatus,
		NewStatus:             req.NewStatus,
		Remarks:               req.Remarks,
		CompletionCertificate: certificate,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// AvailableTransitions GET /tickets/:id/transitions.
func (h *TicketsHandler) AvailableTransitions(c *fiber.Ctx) error {
	user, err := actor(c)
	if err != nil {
		return err
	}
	statuses, err := h.service.AvailableTransitions(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": statuses})
}

// ListAudit GET /tickets/:id/audit.
func (h *TicketsHandler) ListAudit(c *fiber.Ctx) error {
	user, err := actor(c)
	if err != nil {
		return err
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 50)
	entries, err := h.service.ListAudit(c.UserContext(), user, c.Params("id"), pageSize, (page-1)*pageSize)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": auditResponses(entries)})
}

func parseTicketQuery(c *fiber.Ctx) service.TicketListFilter {
	filter := service.TicketListFilter{
		DepartmentID: optionalString(c.Query("department_id")),
		AssigneeID:   optionalString(c.Query("assignee_id")),
		Category:     optionalString(c.Query("category")),
		SearchTerm:   optionalString(c.Query("q")),
		CreatedFrom:  parseTime(c.Query("created_from")),
		CreatedTo:    parseTime(c.Query("created_to")),
	}
	for _, part := range parseList(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, domain.TicketStatus(part))
	}
	for _, part := range parseList(c.Query("priority")) {
		filter.Priorities = append(filter.Priorities, domain.TicketPriority(part))
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}
