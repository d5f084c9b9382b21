// Package workflow holds the pure decision logic of the ticket lifecycle:
// dependency resolution, document gates, the status transition table and the
// permission table. Nothing in this package performs I/O.
package workflow

import (
	"github.com/spec-kit/ticket-workflow/internal/domain"
)

// Resolution is the outcome of evaluating one step's prerequisites.
type Resolution struct {
	CanProceed bool
	Satisfied  int
	Total      int
	// Unmet lists referenced steps that are not yet COMPLETED or CLOSED.
	Unmet []string
}

// Resolve decides whether step may proceed given the full step set of its ticket.
// Parallel steps are exempt. Dependencies naming a step absent from steps are ignored.
func Resolve(step domain.WorkflowStep, steps []domain.WorkflowStep) Resolution {
	if step.IsParallel {
		return Resolution{CanProceed: true}
	}

	byID := indexSteps(steps)
	res := Resolution{}
	for _, depID := range step.DependsOn {
		dep, ok := byID[depID]
		if !ok || depID == step.ID {
			continue
		}
		res.Total++
		if dep.Status.IsDone() {
			res.Satisfied++
		} else {
			res.Unmet = append(res.Unmet, depID)
		}
	}

	switch step.DependencyMode {
	case domain.DependencyModeAny:
		res.CanProceed = res.Total == 0 || res.Satisfied > 0
	default:
		res.CanProceed = res.Satisfied == res.Total
	}
	return res
}

// AllStepsDone reports whether every step is COMPLETED, regardless of dependency mode.
func AllStepsDone(steps []domain.WorkflowStep) bool {
	for _, step := range steps {
		if step.Status != domain.StepStatusCompleted {
			return false
		}
	}
	return true
}

// Dependents returns the ids of steps that reference stepID.
func Dependents(stepID string, steps []domain.WorkflowStep) []string {
	var result []string
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if dep == stepID {
				result = append(result, step.ID)
				break
			}
		}
	}
	return result
}

// MarkDependencyLocks sets IsDependencyLocked on every step whose prerequisites are unmet.
func MarkDependencyLocks(steps []domain.WorkflowStep) {
	snapshot := append([]domain.WorkflowStep(nil), steps...)
	for i := range steps {
		steps[i].IsDependencyLocked = !Resolve(snapshot[i], snapshot).CanProceed
	}
}

func indexSteps(steps []domain.WorkflowStep) map[string]domain.WorkflowStep {
	byID := make(map[string]domain.WorkflowStep, len(steps))
	for _, step := range steps {
		byID[step.ID] = step
	}
	return byID
}
