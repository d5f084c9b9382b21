package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-workflow/internal/domain"
)

// WorkflowStepRepository persists steps and their dependency edges.
type WorkflowStepRepository interface {
	Create(ctx context.Context, step *domain.WorkflowStep) error
	UpdateStatus(ctx context.Context, stepID string, status domain.StepStatus) error
	UpdateAssignee(ctx context.Context, stepID string, assigneeID *string) error
	GetByID(ctx context.Context, id string) (*domain.WorkflowStep, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.WorkflowStep, error)
	AddDependency(ctx context.Context, stepID, dependsOnID string) error
	RemoveDependency(ctx context.Context, stepID, dependsOnID string) error
	Delete(ctx context.Context, id string) error
}

const stepSelect = `
        SELECT s.id, s.ticket_id, s.title, s.status, s.level_1, s.level_2, s.level_3, s.is_parallel,
               s.dependency_mode, s.mandatory_documents, s.completion_certificate_required, s.assignee_id,
               s.created_at, s.updated_at,
               COALESCE(array_agg(d.depends_on_step_id::text ORDER BY d.created_at)
                        FILTER (WHERE d.depends_on_step_id IS NOT NULL), '{}') AS depends_on
        FROM workflow_steps s
        LEFT JOIN workflow_step_dependencies d ON d.step_id = s.id`

type workflowStepRepository struct {
	db DB
}

// NewWorkflowStepRepository builds repository.
func NewWorkflowStepRepository(db DB) WorkflowStepRepository {
	return &workflowStepRepository{db: db}
}

func (r *workflowStepRepository) Create(ctx context.Context, step *domain.WorkflowStep) error {
	const query = `
        INSERT INTO workflow_steps (ticket_id, title, status, level_1, level_2, level_3, is_parallel,
            dependency_mode, mandatory_documents, completion_certificate_required, assignee_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING id, created_at, updated_at`
	q := querier(ctx, r.db)
	mandatory := step.MandatoryDocuments
	if mandatory == nil {
		mandatory = []string{}
	}
	if err := q.QueryRow(ctx, query,
		step.TicketID,
		step.Title,
		step.Status,
		step.Level1,
		step.Level2,
		step.Level3,
		step.IsParallel,
		step.DependencyMode,
		mandatory,
		step.CompletionCertificateRequired,
		step.AssigneeID,
	).Scan(&step.ID, &step.CreatedAt, &step.UpdatedAt); err != nil {
		return err
	}
	for _, dep := range step.DependsOn {
		if err := r.AddDependency(ctx, step.ID, dep); err != nil {
			return err
		}
	}
	return nil
}

func (r *workflowStepRepository) UpdateStatus(ctx context.Context, stepID string, status domain.StepStatus) error {
	const query = `UPDATE workflow_steps SET status=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := querier(ctx, r.db).Exec(ctx, query, status, stepID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *workflowStepRepository) UpdateAssignee(ctx context.Context, stepID string, assigneeID *string) error {
	const query = `UPDATE workflow_steps SET assignee_id=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := querier(ctx, r.db).Exec(ctx, query, assigneeID, stepID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *workflowStepRepository) GetByID(ctx context.Context, id string) (*domain.WorkflowStep, error) {
	query := stepSelect + ` WHERE s.id=$1 GROUP BY s.id`
	return scanStep(querier(ctx, r.db).QueryRow(ctx, query, id))
}

func (r *workflowStepRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.WorkflowStep, error) {
	query := stepSelect + ` WHERE s.ticket_id=$1 GROUP BY s.id ORDER BY s.level_1, s.level_2, s.level_3, s.created_at`
	rows, err := querier(ctx, r.db).Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.WorkflowStep
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *step)
	}
	return result, rows.Err()
}

func (r *workflowStepRepository) AddDependency(ctx context.Context, stepID, dependsOnID string) error {
	const query = `
        INSERT INTO workflow_step_dependencies (step_id, depends_on_step_id)
        VALUES ($1,$2)
        ON CONFLICT (step_id, depends_on_step_id) DO NOTHING`
	_, err := querier(ctx, r.db).Exec(ctx, query, stepID, dependsOnID)
	return err
}

func (r *workflowStepRepository) RemoveDependency(ctx context.Context, stepID, dependsOnID string) error {
	const query = `DELETE FROM workflow_step_dependencies WHERE step_id=$1 AND depends_on_step_id=$2`
	cmd, err := querier(ctx, r.db).Exec(ctx, query, stepID, dependsOnID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *workflowStepRepository) Delete(ctx context.Context, id string) error {
	cmd, err := querier(ctx, r.db).Exec(ctx, `DELETE FROM workflow_steps WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanStep(row pgx.Row) (*domain.WorkflowStep, error) {
	var step domain.WorkflowStep
	if err := row.Scan(
		&step.ID,
		&step.TicketID,
		&step.Title,
		&step.Status,
		&step.Level1,
		&step.Level2,
		&step.Level3,
		&step.IsParallel,
		&step.DependencyMode,
		&step.MandatoryDocuments,
		&step.CompletionCertificateRequired,
		&step.AssigneeID,
		&step.CreatedAt,
		&step.UpdatedAt,
		&step.DependsOn,
	); err != nil {
		return nil, err
	}
	return &step, nil
}
