package handlers

import (
	"github.com/spec-kit/ticket-workflow/internal/api/dto"
	"github.com/spec-kit/ticket-workflow/internal/domain"
	"github.com/spec-kit/ticket-workflow/internal/service"
)

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:                      ticket.ID,
		Number:                  ticket.Number,
		Title:                   ticket.Title,
		Status:                  ticket.Status,
		Priority:                ticket.Priority,
		DepartmentID:            ticket.DepartmentID,
		Category:                ticket.Category,
		CreatorID:               ticket.CreatorID,
		AssigneeID:              ticket.AssigneeID,
		RequiresFinanceApproval: ticket.RequiresFinanceApproval,
		LatestFinanceStatus:     ticket.LatestFinanceStatus,
		FinanceSubmissionCount:  ticket.FinanceSubmissionCount,
		DueDate:                 ticket.DueDate,
		CreatedAt:               ticket.CreatedAt,
		UpdatedAt:               ticket.UpdatedAt,
	}
}

func ticketDetail(snapshot *service.TicketSnapshot) dto.TicketDetailResponse {
	ticket := snapshot.Ticket
	steps := make([]dto.StepResponse, 0, len(ticket.Steps))
	for i := range ticket.Steps {
		steps = append(steps, stepResponse(&ticket.Steps[i]))
	}
	attachments := make([]dto.DocumentResponse, 0, len(ticket.Attachments))
	for i := range ticket.Attachments {
		attachments = append(attachments, documentResponse(&ticket.Attachments[i]))
	}
	return dto.TicketDetailResponse{
		TicketSummary:             ticketSummary(ticket),
		Description:               ticket.Description,
		WaiveDocumentRequirements: ticket.WaiveDocumentRequirements,
		Steps:                     steps,
		Attachments:               attachments,
		FinanceApprovals:          approvalResponses(snapshot.Approvals),
		AvailableTransitions:      snapshot.AvailableTransitions,
	}
}

func auditResponses(entries []domain.AuditLogEntry) []dto.AuditEntryResponse {
	resp := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.AuditEntryResponse{
			ID:          entry.ID,
			ActorID:     entry.ActorID,
			Action:      entry.Action,
			Category:    entry.Category,
			OldValue:    entry.OldValue,
			NewValue:    entry.NewValue,
			Description: entry.Description,
			Metadata:    entry.Metadata,
			CreatedAt:   entry.CreatedAt,
		})
	}
	return resp
}

func stepResponse(step *domain.WorkflowStep) dto.StepResponse {
	dependsOn := step.DependsOn
	if dependsOn == nil {
		dependsOn = []string{}
	}
	mandatory := step.MandatoryDocuments
	if mandatory == nil {
		mandatory = []string{}
	}
	return dto.StepResponse{
		ID:                            step.ID,
		TicketID:                      step.TicketID,
		Title:                         step.Title,
		Status:                        step.Status,
		Level1:                        step.Level1,
		Level2:                        step.Level2,
		Level3:                        step.Level3,
		IsParallel:                    step.IsParallel,
		DependencyMode:                step.DependencyMode,
		DependsOn:                     dependsOn,
		MandatoryDocuments:            mandatory,
		CompletionCertificateRequired: step.CompletionCertificateRequired,
		IsDependencyLocked:            step.IsDependencyLocked,
		AssigneeID:                    step.AssigneeID,
		CreatedAt:                     step.CreatedAt,
		UpdatedAt:                     step.UpdatedAt,
	}
}

func stepGatesResponse(gates *service.StepGates) dto.StepGatesResponse {
	unmet := gates.Dependencies.Unmet
	if unmet == nil {
		unmet = []string{}
	}
	missing := gates.Documents.Missing
	if missing == nil {
		missing = []string{}
	}
	return dto.StepGatesResponse{
		Step: stepResponse(gates.Step),
		Dependencies: dto.DependencyStatusResponse{
			CanProceed: gates.Dependencies.CanProceed,
			Satisfied:  gates.Dependencies.Satisfied,
			Total:      gates.Dependencies.Total,
			Unmet:      unmet,
		},
		Documents: dto.DocumentStatusResponse{
			MandatoryRequired:   gates.Documents.MandatoryRequired,
			MandatoryUploaded:   gates.Documents.MandatoryUploaded,
			CertificateRequired: gates.Documents.CertificateRequired,
			CertificateUploaded: gates.Documents.CertificateUploaded,
			Satisfied:           gates.Documents.Satisfied,
			Missing:             missing,
		},
	}
}

func approvalResponse(approval *domain.FinanceApproval) dto.FinanceApprovalResponse {
	return dto.FinanceApprovalResponse{
		ID:                 approval.ID,
		TicketID:           approval.TicketID,
		SubmissionNumber:   approval.SubmissionNumber,
		TentativeCost:      approval.TentativeCost,
		CostDeductedFrom:   approval.CostDeductedFrom,
		FinanceOfficerID:   approval.FinanceOfficerID,
		SubmittedBy:        approval.SubmittedBy,
		Remarks:            approval.Remarks,
		Status:             approval.Status,
		ApprovalRemarks:    approval.ApprovalRemarks,
		RejectionReason:    approval.RejectionReason,
		ApprovalDocumentID: approval.ApprovalDocumentID,
		SubmittedAt:        approval.SubmittedAt,
		DecidedAt:          approval.DecidedAt,
	}
}

func approvalResponses(approvals []domain.FinanceApproval) []dto.FinanceApprovalResponse {
	resp := make([]dto.FinanceApprovalResponse, 0, len(approvals))
	for i := range approvals {
		resp = append(resp, approvalResponse(&approvals[i]))
	}
	return resp
}

func documentResponse(doc *domain.Document) dto.DocumentResponse {
	return dto.DocumentResponse{
		ID:                      doc.ID,
		TicketID:                doc.TicketID,
		StepID:                  doc.StepID,
		FileName:                doc.FileName,
		MimeType:                doc.MimeType,
		SizeBytes:               doc.SizeBytes,
		IsMandatory:             doc.IsMandatory,
		IsCompletionCertificate: doc.IsCompletionCertificate,
		RequirementName:         doc.RequirementName,
		UploadedBy:              doc.UploadedBy,
		CreatedAt:               doc.CreatedAt,
		URL:                     "/api/v1/documents/" + doc.ID + "/content",
	}
}
