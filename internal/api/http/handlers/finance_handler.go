package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-workflow/internal/api/dto"
	"github.com/spec-kit/ticket-workflow/internal/domain"
	"github.com/spec-kit/ticket-workflow/internal/service"
)

// FinanceHandler exposes the finance sub-process.
type FinanceHandler struct {
	finance *service.FinanceService
}

// NewFinanceHandler constructs handler.
func NewFinanceHandler(financeService *service.FinanceService) *FinanceHandler {
	return &FinanceHandler{finance: financeService}
}

// Submit POST /tickets/:id/finance.
func (h *FinanceHandler) Submit(c *fiber.Ctx) error {
	user, err := actor(c)
	if err != nil {
		return err
	}
	var req dto.FinanceSubmitRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	approval, err := h.finance.Submit(c.UserContext(), user, service.FinanceSubmission{
		TicketID:         c.Params("id"),
		TentativeCost:    req.TentativeCost,
		CostDeductedFrom: req.CostDeductedFrom,
		FinanceOfficerID: req.FinanceOfficerID,
		Remarks:          req.Remarks,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": approvalResponse(approval)})
}

// History GET /tickets/:id/finance.
func (h *FinanceHandler) History(c *fiber.Ctx) error {
	user, err := actor(c)
	if err != nil {
		return err
	}
	approvals, err := h.finance.History(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": approvalResponses(approvals)})
}

// Approve POST /tickets/:id/finance/:approvalId/approve.
func (h *FinanceHandler) Approve(c *fiber.Ctx) error {
	return h.decide(c, domain.ApprovalStatusApproved)
}

// Reject POST /tickets/:id/finance/:approvalId/reject.
func (h *FinanceHandler) Reject(c *fiber.Ctx) error {
	return h.decide(c, domain.ApprovalStatusRejected)
}

func (h *FinanceHandler) decide(c *fiber.Ctx, decision domain.ApprovalStatus) error {
	user, err := actor(c)
	if err != nil {
		return err
	}
	var req dto.FinanceDecisionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	document, closer, err := formUpload(c, "document")
	if err != nil {
		return err
	}
	defer closeQuietly(closer)

	input := service.FinanceDecision{
		ApprovalID:      c.Params("approvalId"),
		TicketID:        c.Params("id"),
		Remarks:         req.Remarks,
		RejectionReason: req.RejectionReason,
		Document:        document,
	}
	var approval *domain.FinanceApproval
	if decision == domain.ApprovalStatusApproved {
		approval, err = h.finance.Approve(c.UserContext(), user, input)
	} else {
		approval, err = h.finance.Reject(c.UserContext(), user, input)
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": approvalResponse(approval)})
}
