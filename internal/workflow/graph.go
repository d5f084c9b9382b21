package workflow

import (
	"errors"

	"github.com/spec-kit/ticket-workflow/internal/domain"
)

var (
	ErrSelfDependency  = errors.New("a step cannot depend on itself")
	ErrUnknownStep     = errors.New("dependency references a step outside the ticket")
	ErrDependencyCycle = errors.New("dependency would create a cycle")
	ErrDuplicateEdge   = errors.New("dependency already exists")
)

// ValidateEdge checks that adding from -> to (from depends on to) keeps the
// ticket's dependency graph a DAG.
func ValidateEdge(steps []domain.WorkflowStep, from, to string) error {
	if from == to {
		return ErrSelfDependency
	}
	byID := indexSteps(steps)
	source, ok := byID[from]
	if !ok {
		return ErrUnknownStep
	}
	if _, ok := byID[to]; !ok {
		return ErrUnknownStep
	}
	for _, dep := range source.DependsOn {
		if dep == to {
			return ErrDuplicateEdge
		}
	}
	if reachable(byID, to, from) {
		return ErrDependencyCycle
	}
	return nil
}

// reachable walks DependsOn edges from start looking for target.
func reachable(byID map[string]domain.WorkflowStep, start, target string) bool {
	visited := map[string]bool{}
	stack := []string{start}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if current == target {
			return true
		}
		if visited[current] {
			continue
		}
		visited[current] = true
		for _, next := range byID[current].DependsOn {
			if _, ok := byID[next]; ok && !visited[next] {
				stack = append(stack, next)
			}
		}
	}
	return false
}
