package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-workflow/internal/domain"
)

// DocumentRepository persists metadata for blob-store artifacts.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	// ListByTicket returns ticket-level and step documents of the ticket.
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Document, error)
	ListByStep(ctx context.Context, stepID string) ([]domain.Document, error)
	Delete(ctx context.Context, id string) error
}

const documentColumns = `id, ticket_id, step_id, file_name, mime_type, size_bytes, storage_key, is_mandatory,
       is_completion_certificate, requirement_name, uploaded_by, created_at`

type documentRepository struct {
	db DB
}

// NewDocumentRepository constructs repository.
func NewDocumentRepository(db DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(ctx context.Context, doc *domain.Document) error {
	const query = `
        INSERT INTO documents (ticket_id, step_id, file_name, mime_type, size_bytes, storage_key, is_mandatory,
            is_completion_certificate, requirement_name, uploaded_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at`
	return querier(ctx, r.db).QueryRow(ctx, query,
		doc.TicketID,
		doc.StepID,
		doc.FileName,
		doc.MimeType,
		doc.SizeBytes,
		doc.StorageKey,
		doc.IsMandatory,
		doc.IsCompletionCertificate,
		doc.RequirementName,
		doc.UploadedBy,
	).Scan(&doc.ID, &doc.CreatedAt)
}

func (r *documentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id=$1`
	return scanDocument(querier(ctx, r.db).QueryRow(ctx, query, id))
}

func (r *documentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE ticket_id=$1 ORDER BY created_at, id`
	return r.list(ctx, query, ticketID)
}

func (r *documentRepository) ListByStep(ctx context.Context, stepID string) ([]domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE step_id=$1 ORDER BY created_at, id`
	return r.list(ctx, query, stepID)
}

func (r *documentRepository) Delete(ctx context.Context, id string) error {
	cmd, err := querier(ctx, r.db).Exec(ctx, `DELETE FROM documents WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *documentRepository) list(ctx context.Context, query string, arg string) ([]domain.Document, error) {
	rows, err := querier(ctx, r.db).Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *doc)
	}
	return result, rows.Err()
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var doc domain.Document
	if err := row.Scan(
		&doc.ID,
		&doc.TicketID,
		&doc.StepID,
		&doc.FileName,
		&doc.MimeType,
		&doc.SizeBytes,
		&doc.StorageKey,
		&doc.IsMandatory,
		&doc.IsCompletionCertificate,
		&doc.RequirementName,
		&doc.UploadedBy,
		&doc.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &doc, nil
}
