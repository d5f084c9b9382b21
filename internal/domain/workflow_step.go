package domain

import "time"

// StepStatus enumerates lifecycle states for workflow steps.
type StepStatus string

const (
	StepStatusCreated   StepStatus = "CREATED"
	StepStatusActive    StepStatus = "ACTIVE"
	StepStatusCompleted StepStatus = "COMPLETED"
	StepStatusClosed    StepStatus = "CLOSED"
)

// IsValid reports whether s is a known step status.
func (s StepStatus) IsValid() bool {
	switch s {
	case StepStatusCreated, StepStatusActive, StepStatusCompleted, StepStatusClosed:
		return true
	}
	return false
}

// IsDone reports whether the step counts as finished for dependents.
func (s StepStatus) IsDone() bool {
	return s == StepStatusCompleted || s == StepStatusClosed
}

// DependencyMode controls how many prerequisites must be finished.
type DependencyMode string

const (
	DependencyModeAll DependencyMode = "all"
	DependencyModeAny DependencyMode = "any"
)

// IsValid reports whether m is a known mode.
func (m DependencyMode) IsValid() bool {
	return m == DependencyModeAll || m == DependencyModeAny
}

// WorkflowStep is a unit of work inside a ticket's workflow tree.
// Level1..Level3 only order steps for display.
type WorkflowStep struct {
	ID                            string
	TicketID                      string
	Title                         string
	Status                        StepStatus
	Level1                        int
	Level2                        int
	Level3                        int
	IsParallel                    bool
	DependencyMode                DependencyMode
	DependsOn                     []string
	MandatoryDocuments            []string
	CompletionCertificateRequired bool
	IsDependencyLocked            bool
	AssigneeID                    *string
	CreatedAt                     time.Time
	UpdatedAt                     time.Time
}
