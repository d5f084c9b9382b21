package dto

import (
	"time"

	"github.com/spec-kit/ticket-workflow/internal/domain"
)

// CreateStepRequest adds a step to a ticket's workflow tree.
type CreateStepRequest struct {
	Title                         string                `json:"title"`
	Level1                        int                   `json:"level1"`
	Level2                        int                   `json:"level2"`
	Level3                        int                   `json:"level3"`
	IsParallel                    bool                  `json:"is_parallel"`
	DependencyMode                domain.DependencyMode `json:"dependency_mode"`
	DependsOn                     []string              `json:"depends_on"`
	MandatoryDocuments            []string              `json:"mandatory_documents"`
	CompletionCertificateRequired bool                  `json:"completion_certificate_required"`
	AssigneeID                    *string               `json:"assignee_id"`
}

// StepStatusRequest moves a step.
type StepStatusRequest struct {
	Status  domain.StepStatus `json:"status"`
	Remarks string            `json:"remarks"`
}

// DependencyRequest adds an edge from the step to DependsOn.
type DependencyRequest struct {
	DependsOn string `json:"depends_on"`
}

// StepResponse describes a workflow step.
type StepResponse struct {
	ID                            string                `json:"id"`
	TicketID                      string                `json:"ticket_id"`
	Title                         string                `json:"title"`
	Status                        domain.StepStatus     `json:"status"`
	Level1                        int                   `json:"level1"`
	Level2                        int                   `json:"level2"`
	Level3                        int                   `json:"level3"`
	IsParallel                    bool                  `json:"is_parallel"`
	DependencyMode                domain.DependencyMode `json:"dependency_mode"`
	DependsOn                     []string              `json:"depends_on"`
	MandatoryDocuments            []string              `json:"mandatory_documents"`
	CompletionCertificateRequired bool                  `json:"completion_certificate_required"`
	IsDependencyLocked            bool                  `json:"is_dependency_locked"`
	AssigneeID                    *string               `json:"assignee_id"`
	CreatedAt                     time.Time             `json:"created_at"`
	UpdatedAt                     time.Time             `json:"updated_at"`
}

// DependencyStatusResponse reports how many prerequisites are finished.
type DependencyStatusResponse struct {
	CanProceed bool     `json:"can_proceed"`
	Satisfied  int      `json:"satisfied"`
	Total      int      `json:"total"`
	Unmet      []string `json:"unmet"`
}

// DocumentStatusResponse reports the document gate of a step.
type DocumentStatusResponse struct {
	MandatoryRequired   int      `json:"mandatory_required"`
	MandatoryUploaded   int      `json:"mandatory_uploaded"`
	CertificateRequired bool     `json:"certificate_required"`
	CertificateUploaded bool     `json:"certificate_uploaded"`
	Satisfied           bool     `json:"satisfied"`
	Missing             []string `json:"missing"`
}

// StepGatesResponse is the gate view of one step.
type StepGatesResponse struct {
	Step         StepResponse             `json:"step"`
	Dependencies DependencyStatusResponse `json:"dependencies"`
	Documents    DocumentStatusResponse   `json:"documents"`
}
