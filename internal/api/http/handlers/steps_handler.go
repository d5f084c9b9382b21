package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-workflow/internal/api/dto"
	"github.com/spec-kit/ticket-workflow/internal/service"
	apperrors "github.com/spec-kit/ticket-workflow/pkg/util/errorutil"
)

// StepsHandler manages the workflow tree of a ticket.
type StepsHandler struct {
	steps *service.StepService
}

// NewStepsHandler constructs handler.
func NewStepsHandler(stepService *service.StepService) *StepsHandler {
	return &StepsHandler{steps: stepService}
}

// AddStep POST /tickets/:id/steps.
func (h *StepsHandler) AddStep(c *fiber.Ctx) error {
	user, err := actor(c)
	if err != nil {
		return err
	}
	var req dto.CreateStepRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	step, err := h.steps.AddStep(c.UserContext(), user, service.StepCreateInput{
		TicketID:                      c.Params("id"),
		Title:                         req.Title,
		Level1:                        req.Level1,
		Level2:                        req.Level2,
		Level3:                        req.Level3,
		IsParallel:                    req.IsParallel,
		DependencyMode:                req.DependencyMode,
		DependsOn:                     req.DependsOn,
		MandatoryDocuments:            req.MandatoryDocuments,
		CompletionCertificateRequired: req.CompletionCertificateRequired,
		AssigneeID:                    req.AssigneeID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": stepResponse(step)})
}

// UpdateStatus PATCH /steps/:id/status.
func (h *StepsHandler) UpdateStatus(c *fiber.Ctx) error {
	user, err := actor(c)
	if err != nil {
		return err
	}
	var req dto.StepStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	step, err := h.steps.UpdateStepStatus(c.UserContext(), user, service.StepStatusInput{
		StepID:    c.Params("id"),
		NewStatus: req.Status,
		Remarks:   req.Remarks,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stepResponse(step)})
}

// DeleteStep DELETE /steps/:id.
func (h *StepsHandler) DeleteStep(c *fiber.Ctx) error {
	user, err := actor(c)
	if err != nil {
		return err
	}
	if err := h.steps.DeleteStep(c.UserContext(), user, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Gates GET /steps/:id/gates.
func (h *StepsHandler) Gates(c *fiber.Ctx) error {
	user, err := actor(c)
	if err != nil {
		return err
	}
	gates, err := h.steps.StepGateStatus(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stepGatesResponse(gates)})
}

// AddDependency POST /steps/:id/dependencies.
func (h *StepsHandler) AddDependency(c *fiber.Ctx) error {
	user, err := actor(c)
	if err != nil {
		return err
	}
	var req dto.DependencyRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.DependsOn == "" {
		return apperrors.NewValidationError("depends_on required", map[string]any{"field": "depends_on"})
	}
	step, err := h.steps.AddDependency(c.UserContext(), user, c.Params("id"), req.DependsOn)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": stepResponse(step)})
}

// RemoveDependency DELETE /steps/:id/dependencies/:dependsOn.
func (h *StepsHandler) RemoveDependency(c *fiber.Ctx) error {
	user, err := actor(c)
	if err != nil {
		return err
	}
	if err := h.steps.RemoveDependency(c.UserContext(), user, c.Params("id"), c.Params("dependsOn")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
