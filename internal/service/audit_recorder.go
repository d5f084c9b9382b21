package service

import (
	"context"

	"github.com/spec-kit/ticket-workflow/internal/domain"
	"github.com/spec-kit/ticket-workflow/internal/repository"
	"github.com/spec-kit/ticket-workflow/pkg/util/errorutil"
)

// AuditRecorder appends audit entries. Record joins the caller's transaction,
// so an entry is persisted exactly when the change it describes is.
type AuditRecorder struct {
	repo repository.AuditLogRepository
}

// NewAuditRecorder wraps the audit repository.
func NewAuditRecorder(repo repository.AuditLogRepository) *AuditRecorder {
	return &AuditRecorder{repo: repo}
}

// Record appends one entry.
func (r *AuditRecorder) Record(ctx context.Context, entry *domain.AuditLogEntry) error {
	if entry.TicketID == "" || entry.ActorID == "" || entry.Action == "" {
		return errorutil.NewInternalError(errMalformedAuditEntry)
	}
	if err := r.repo.Append(ctx, entry); err != nil {
		return storeErr(err, "audit log", map[string]any{"ticket_id": entry.TicketID})
	}
	return nil
}

// List returns a ticket's entries in timestamp order.
func (r *AuditRecorder) List(ctx context.Context, ticketID string, limit, offset int) ([]domain.AuditLogEntry, error) {
	entries, err := r.repo.ListByTicket(ctx, ticketID, limit, offset)
	if err != nil {
		return nil, storeErr(err, "audit log", map[string]any{"ticket_id": ticketID})
	}
	return entries, nil
}
