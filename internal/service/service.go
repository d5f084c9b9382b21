package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-workflow/internal/directory"
	"github.com/spec-kit/ticket-workflow/internal/domain"
	"github.com/spec-kit/ticket-workflow/internal/events"
	"github.com/spec-kit/ticket-workflow/internal/lock"
	"github.com/spec-kit/ticket-workflow/internal/repository"
	"github.com/spec-kit/ticket-workflow/internal/storage"
	"github.com/spec-kit/ticket-workflow/internal/workflow"
	"github.com/spec-kit/ticket-workflow/pkg/util/errorutil"
)

const (
	minRemarksLength         = 10
	minRejectionReasonLength = 20
	dependencyDatabase       = "database"
	dependencyBlobStore      = "blob store"
	dependencyDirectory      = "directory"
	dependencyLock           = "ticket lock"
)

// TxRunner runs fn inside one database transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Dependencies bundles collaborators shared by the workflow services.
type Dependencies struct {
	TicketRepo     repository.TicketRepository
	StepRepo       repository.WorkflowStepRepository
	ApprovalRepo   repository.FinanceApprovalRepository
	DocumentRepo   repository.DocumentRepository
	DepartmentRepo repository.DepartmentRepository
	Audit          *AuditRecorder
	Tx             TxRunner
	Locker         lock.Locker
	Directory      directory.Directory
	Blobs          storage.BlobStore
	Dispatcher     events.Dispatcher
	Permissions    workflow.PermissionTable
	Gate           *workflow.DocumentGate
	Logger         *zap.Logger
}

// Upload is a file handed to the engine.
type Upload struct {
	FileName string
	MimeType string
	Content  io.Reader
}

// core holds the collaborators and the helpers every service shares.
type core struct {
	tickets     repository.TicketRepository
	steps       repository.WorkflowStepRepository
	approvals   repository.FinanceApprovalRepository
	documents   repository.DocumentRepository
	departments repository.DepartmentRepository
	audit       *AuditRecorder
	tx          TxRunner
	locker      lock.Locker
	directory   directory.Directory
	blobs       storage.BlobStore
	dispatcher  events.Dispatcher
	permissions workflow.PermissionTable
	gate        *workflow.DocumentGate
	logger      *zap.Logger
}

func newCore(deps Dependencies) core {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	permissions := deps.Permissions
	if permissions == nil {
		permissions = workflow.DefaultPermissions()
	}
	gate := deps.Gate
	if gate == nil {
		gate = workflow.NewDocumentGate(workflow.NewRoleSet(domain.RoleFieldEngineer, domain.RoleManager))
	}
	return core{
		tickets:     deps.TicketRepo,
		steps:       deps.StepRepo,
		approvals:   deps.ApprovalRepo,
		documents:   deps.DocumentRepo,
		departments: deps.DepartmentRepo,
		audit:       deps.Audit,
		tx:          deps.Tx,
		locker:      deps.Locker,
		directory:   deps.Directory,
		blobs:       deps.Blobs,
		dispatcher:  deps.Dispatcher,
		permissions: permissions,
		gate:        gate,
		logger:      logger,
	}
}

func (c *core) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := c.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, storeErr(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	return ticket, nil
}

func (c *core) lockTicketRow(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := c.tickets.GetByIDForUpdate(ctx, ticketID)
	if err != nil {
		return nil, storeErr(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	return ticket, nil
}

func (c *core) loadStep(ctx context.Context, stepID string) (*domain.WorkflowStep, error) {
	step, err := c.steps.GetByID(ctx, stepID)
	if err != nil {
		return nil, storeErr(err, "workflow step", map[string]any{"step_id": stepID})
	}
	return step, nil
}

func (c *core) listSteps(ctx context.Context, ticketID string) ([]domain.WorkflowStep, error) {
	steps, err := c.steps.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, storeErr(err, "workflow steps", map[string]any{"ticket_id": ticketID})
	}
	return steps, nil
}

func (c *core) listDocuments(ctx context.Context, ticketID string) ([]domain.Document, error) {
	docs, err := c.documents.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, storeErr(err, "documents", map[string]any{"ticket_id": ticketID})
	}
	return docs, nil
}

// authorize checks a non-transition verb against the permission table.
func (c *core) authorize(actor *domain.User, ticket *domain.Ticket, verb workflow.Verb) error {
	if actor == nil {
		return errorutil.NewUnauthorized("actor required")
	}
	if c.permissions.Allowed(actor, ticket).Can(verb) {
		return nil
	}
	return errorutil.NewPermissionDenied("actor may not perform this action", map[string]any{
		"ticket_id": ticket.ID,
		"actor_id":  actor.ID,
		"role":      actor.Role,
		"verb":      verb,
	})
}

// mutate serializes fn against every other writer of the ticket and runs it
// in one transaction.
func (c *core) mutate(ctx context.Context, ticketID string, fn func(ctx context.Context) error) error {
	release, err := c.locker.Acquire(ctx, lock.TicketKey(ticketID))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return errorutil.NewDependencyUnavailable(dependencyLock, err)
	}
	defer release()

	if err := c.tx.RunInTx(ctx, fn); err != nil {
		return storeErr(err, "resource", nil)
	}
	return nil
}

func (c *core) record(ctx context.Context, entry *domain.AuditLogEntry) error {
	return c.audit.Record(ctx, entry)
}

func (c *core) publish(ctx context.Context, event events.Event) {
	if c.dispatcher == nil {
		return
	}
	if err := c.dispatcher.Publish(ctx, event); err != nil {
		c.logger.Warn("publish event", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

// storedBlob is a blob written ahead of the transaction that records it.
type storedBlob struct {
	key  string
	size int64
}

// putBlob stores the upload before the transaction. The caller must call
// discardBlob if the transaction does not commit.
func (c *core) putBlob(ctx context.Context, ticketID string, upload *Upload) (*storedBlob, error) {
	if upload == nil {
		return nil, nil
	}
	if strings.TrimSpace(upload.FileName) == "" || upload.Content == nil {
		return nil, errorutil.NewValidationError("file name and content are required", nil)
	}
	key := storage.NewKey(ticketID, upload.FileName)
	size, err := c.blobs.Put(ctx, key, upload.Content)
	if err != nil {
		return nil, errorutil.NewDependencyUnavailable(dependencyBlobStore, err)
	}
	return &storedBlob{key: key, size: size}, nil
}

func (c *core) discardBlob(blob *storedBlob) {
	if blob == nil {
		return
	}
	if err := c.blobs.Delete(context.Background(), blob.key); err != nil {
		c.logger.Warn("discard orphaned blob", zap.String("storage_key", blob.key), zap.Error(err))
	}
}

// documentFor builds the metadata row for a stored blob.
func documentFor(blob *storedBlob, upload *Upload, ticketID string, actorID string) *domain.Document {
	mimeType := upload.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return &domain.Document{
		TicketID:   ticketID,
		FileName:   strings.TrimSpace(upload.FileName),
		MimeType:   mimeType,
		SizeBytes:  blob.size,
		StorageKey: blob.key,
		UploadedBy: actorID,
	}
}

// storeErr classifies repository errors. pgx.ErrNoRows becomes NotFound.
func storeErr(err error, resource string, details map[string]any) error {
	return errorutil.FromStore(err, dependencyDatabase, resource, details)
}

func validateRemarks(field, value string, min int) error {
	if utf8.RuneCountInString(strings.TrimSpace(value)) < min {
		return errorutil.NewValidationError(field+" too short", map[string]any{
			"field":      field,
			"min_length": min,
		})
	}
	return nil
}

func isTerminal(status domain.TicketStatus) bool {
	switch status {
	case domain.TicketStatusCompleted, domain.TicketStatusClosed, domain.TicketStatusCancelled:
		return true
	}
	return false
}

func stepIDs(steps []domain.WorkflowStep) []string {
	ids := make([]string, len(steps))
	for i, step := range steps {
		ids[i] = step.ID
	}
	return ids
}

var errMalformedAuditEntry = errors.New("audit entry requires ticket, actor and action")
