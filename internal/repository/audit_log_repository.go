package repository

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/spec-kit/ticket-workflow/internal/domain"
)

// AuditLogRepository is append-only.
type AuditLogRepository interface {
	Append(ctx context.Context, entry *domain.AuditLogEntry) error
	// ListByTicket returns entries in timestamp order.
	ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.AuditLogEntry, error)
}

type auditLogRepository struct {
	db DB
}

// NewAuditLogRepository builds repository.
func NewAuditLogRepository(db DB) AuditLogRepository {
	return &auditLogRepository{db: db}
}

func (r *auditLogRepository) Append(ctx context.Context, entry *domain.AuditLogEntry) error {
	const query = `
        INSERT INTO audit_logs (ticket_id, actor_id, action, category, old_value, new_value, description, metadata)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at`

	oldValue, err := marshalJSON(entry.OldValue)
	if err != nil {
		return fmt.Errorf("audit_log marshal old_value: %w", err)
	}
	newValue, err := marshalJSON(entry.NewValue)
	if err != nil {
		return fmt.Errorf("audit_log marshal new_value: %w", err)
	}
	metadata, err := marshalJSON(entry.Metadata)
	if err != nil {
		return fmt.Errorf("audit_log marshal metadata: %w", err)
	}

	return querier(ctx, r.db).QueryRow(ctx, query,
		entry.TicketID,
		entry.ActorID,
		entry.Action,
		entry.Category,
		oldValue,
		newValue,
		entry.Description,
		metadata,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *auditLogRepository) ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.AuditLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	query, args, err := psql.
		Select("id", "ticket_id", "actor_id", "action", "category", "old_value", "new_value", "description", "metadata", "created_at").
		From("audit_logs").
		Where(sq.Eq{"ticket_id": ticketID}).
		OrderBy("created_at", "id").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := querier(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditLogEntry
	for rows.Next() {
		var (
			entry                        domain.AuditLogEntry
			oldValue, newValue, metadata []byte
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.ActorID,
			&entry.Action,
			&entry.Category,
			&oldValue,
			&newValue,
			&entry.Description,
			&metadata,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		if entry.OldValue, err = unmarshalJSON(oldValue); err != nil {
			return nil, fmt.Errorf("audit_log unmarshal old_value: %w", err)
		}
		if entry.NewValue, err = unmarshalJSON(newValue); err != nil {
			return nil, fmt.Errorf("audit_log unmarshal new_value: %w", err)
		}
		if entry.Metadata, err = unmarshalJSON(metadata); err != nil {
			return nil, fmt.Errorf("audit_log unmarshal metadata: %w", err)
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func marshalJSON(value map[string]any) ([]byte, error) {
	if value == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(value)
}

func unmarshalJSON(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var value map[string]any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, err
	}
	if len(value) == 0 {
		return nil, nil
	}
	return value, nil
}
