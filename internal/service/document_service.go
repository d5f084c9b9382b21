package service

import (
	"context"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-workflow/internal/domain"
	"github.com/spec-kit/ticket-workflow/internal/storage"
	"github.com/spec-kit/ticket-workflow/internal/workflow"
	"github.com/spec-kit/ticket-workflow/pkg/util/errorutil"
)

// DocumentService records artifacts held by the blob store.
type DocumentService struct {
	core
}

// NewDocumentService constructs the service.
func NewDocumentService(deps Dependencies) *DocumentService {
	return &DocumentService{core: newCore(deps)}
}

// DocumentOwner addresses a ticket or one of its steps. A set StepID wins.
type DocumentOwner struct {
	TicketID string
	StepID   *string
}

// DocumentUpload is a file together with its gate flags.
type DocumentUpload struct {
	Owner                   DocumentOwner
	File                    Upload
	IsMandatory             bool
	IsCompletionCertificate bool
	RequirementName         string
}

// Upload stores the file and records it against its owner.
func (s *DocumentService) Upload(ctx context.Context, actor *domain.User, input DocumentUpload) (*domain.Document, error) {
	ticket, step, err := s.resolveOwner(ctx, input.Owner)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, ticket, workflow.VerbManageDocument); err != nil {
		return nil, err
	}
	if input.IsMandatory && step == nil {
		return nil, errorutil.NewValidationError("mandatory documents belong to a step", map[string]any{"field": "step_id"})
	}

	file := input.File
	blob, err := s.putBlob(ctx, ticket.ID, &file)
	if err != nil {
		return nil, err
	}
	doc := documentFor(blob, &file, ticket.ID, actor.ID)
	doc.IsMandatory = input.IsMandatory
	doc.IsCompletionCertificate = input.IsCompletionCertificate
	if name := strings.TrimSpace(input.RequirementName); name != "" {
		doc.RequirementName = &name
	}
	if step != nil {
		doc.StepID = &step.ID
	}

	err = s.mutate(ctx, ticket.ID, func(ctx context.Context) error {
		if err := s.requireEditableTicket(ctx, ticket.ID); err != nil {
			return err
		}
		if err := s.documents.Create(ctx, doc); err != nil {
			return storeErr(err, "document", nil)
		}
		return s.record(ctx, &domain.AuditLogEntry{
			TicketID: ticket.ID,
			ActorID:  actor.ID,
			Action:   domain.AuditActionDocumentUploaded,
			Category: domain.AuditCategoryDocument,
			NewValue: map[string]any{
				"document_id":               doc.ID,
				"owner_id":                  doc.OwnerID(),
				"file_name":                 doc.FileName,
				"is_mandatory":              doc.IsMandatory,
				"is_completion_certificate": doc.IsCompletionCertificate,
			},
			Description: "document uploaded",
		})
	})
	if err != nil {
		s.discardBlob(blob)
		return nil, err
	}
	return doc, nil
}

// List returns the owner's documents. For a ticket that includes step documents.
func (s *DocumentService) List(ctx context.Context, actor *domain.User, owner DocumentOwner) ([]domain.Document, error) {
	ticket, step, err := s.resolveOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, ticket, workflow.VerbView); err != nil {
		return nil, err
	}
	if step != nil {
		docs, err := s.documents.ListByStep(ctx, step.ID)
		if err != nil {
			return nil, storeErr(err, "documents", map[string]any{"step_id": step.ID})
		}
		return docs, nil
	}
	return s.listDocuments(ctx, ticket.ID)
}

// Open returns the document row and a reader over its bytes. The caller closes the reader.
func (s *DocumentService) Open(ctx context.Context, actor *domain.User, documentID string) (*domain.Document, io.ReadCloser, error) {
	doc, ticket, err := s.loadDocument(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.authorize(actor, ticket, workflow.VerbView); err != nil {
		return nil, nil, err
	}
	rc, err := s.blobs.Open(ctx, doc.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, errorutil.NewNotFound("document content", map[string]any{"document_id": doc.ID})
		}
		return nil, nil, errorutil.NewDependencyUnavailable(dependencyBlobStore, err)
	}
	return doc, rc, nil
}

// Delete removes the document row and, once committed, its blob.
func (s *DocumentService) Delete(ctx context.Context, actor *domain.User, documentID string) error {
	doc, ticket, err := s.loadDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if err := s.authorize(actor, ticket, workflow.VerbManageDocument); err != nil {
		return err
	}

	err = s.mutate(ctx, ticket.ID, func(ctx context.Context) error {
		if err := s.requireEditableTicket(ctx, ticket.ID); err != nil {
			return err
		}
		if err := s.documents.Delete(ctx, doc.ID); err != nil {
			return storeErr(err, "document", map[string]any{"document_id": doc.ID})
		}
		return s.record(ctx, &domain.AuditLogEntry{
			TicketID: ticket.ID,
			ActorID:  actor.ID,
			Action:   domain.AuditActionDocumentDeleted,
			Category: domain.AuditCategoryDocument,
			OldValue: map[string]any{
				"document_id":               doc.ID,
				"owner_id":                  doc.OwnerID(),
				"file_name":                 doc.FileName,
				"is_mandatory":              doc.IsMandatory,
				"is_completion_certificate": doc.IsCompletionCertificate,
			},
			Description: "document deleted",
		})
	})
	if err != nil {
		return err
	}

	if err := s.blobs.Delete(ctx, doc.StorageKey); err != nil {
		s.logger.Warn("delete document blob", zap.String("document_id", doc.ID), zap.String("storage_key", doc.StorageKey), zap.Error(err))
	}
	return nil
}

// requireEditableTicket re-reads the ticket under the row lock. Documents are
// frozen once the ticket is terminal or waiting on finance.
func (s *DocumentService) requireEditableTicket(ctx context.Context, ticketID string) error {
	current, err := s.lockTicketRow(ctx, ticketID)
	if err != nil {
		return err
	}
	return requireEditable(current)
}

func (s *DocumentService) resolveOwner(ctx context.Context, owner DocumentOwner) (*domain.Ticket, *domain.WorkflowStep, error) {
	if owner.StepID != nil && *owner.StepID != "" {
		step, err := s.loadStep(ctx, *owner.StepID)
		if err != nil {
			return nil, nil, err
		}
		if owner.TicketID != "" && owner.TicketID != step.TicketID {
			return nil, nil, errorutil.NewNotFound("workflow step", map[string]any{
				"step_id":   step.ID,
				"ticket_id": owner.TicketID,
			})
		}
		ticket, err := s.loadTicket(ctx, step.TicketID)
		if err != nil {
			return nil, nil, err
		}
		return ticket, step, nil
	}
	if owner.TicketID == "" {
		return nil, nil, errorutil.NewValidationError("ticket or step owner is required", map[string]any{"field": "owner"})
	}
	ticket, err := s.loadTicket(ctx, owner.TicketID)
	if err != nil {
		return nil, nil, err
	}
	return ticket, nil, nil
}

func (s *DocumentService) loadDocument(ctx context.Context, documentID string) (*domain.Document, *domain.Ticket, error) {
	doc, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, nil, storeErr(err, "document", map[string]any{"document_id": documentID})
	}
	ticket, err := s.loadTicket(ctx, doc.TicketID)
	if err != nil {
		return nil, nil, err
	}
	return doc, ticket, nil
}
