package handlers

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-workflow/internal/api/dto"
	"github.com/spec-kit/ticket-workflow/internal/service"
	apperrors "github.com/spec-kit/ticket-workflow/pkg/util/errorutil"
)

// DocumentsHandler manages ticket and step documents.
type DocumentsHandler struct {
	documents *service.DocumentService
}

// NewDocumentsHandler constructs handler.
func NewDocumentsHandler(documentService *service.DocumentService) *DocumentsHandler {
	return &DocumentsHandler{documents: documentService}
}

// Upload POST /documents as multipart with fields ticket_id, step_id,
// is_mandatory, is_completion_certificate, requirement_name and file "file".
func (h *DocumentsHandler) Upload(c *fiber.Ctx) error {
	user, err := actor(c)
	if err != nil {
		return err
	}
	if !isMultipart(c) {
		return apperrors.NewValidationError("multipart form required", nil)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("file required", map[string]any{"field": "file"})
	}
	upload, closer, err := openFileHeader(fh)
	if err != nil {
		return err
	}
	defer closeQuietly(closer)

	doc, err := h.documents.Upload(c.UserContext(), user, service.DocumentUpload{
		Owner: service.DocumentOwner{
			TicketID: c.FormValue("ticket_id"),
			StepID:   optionalString(c.FormValue("step_id")),
		},
		File:                    *upload,
		IsMandatory:             formBool(c, "is_mandatory"),
		IsCompletionCertificate: formBool(c, "is_completion_certificate"),
		RequirementName:         c.FormValue("requirement_name"),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": documentResponse(doc)})
}

// List GET /documents?ticket_id=&step_id=.
func (h *DocumentsHandler) List(c *fiber.Ctx) error {
	user, err := actor(c)
	if err != nil {
		return err
	}
	owner := service.DocumentOwner{
		TicketID: c.Query("ticket_id"),
		StepID:   optionalString(c.Query("step_id")),
	}
	if owner.TicketID == "" && owner.StepID == nil {
		return apperrors.NewValidationError("ticket_id or step_id required", nil)
	}
	docs, err := h.documents.List(c.UserContext(), user, owner)
	if err != nil {
		return err
	}
	items := make([]dto.DocumentResponse, 0, len(docs))
	for i := range docs {
		items = append(items, documentResponse(&docs[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Content GET /documents/:id/content streams the stored file.
func (h *DocumentsHandler) Content(c *fiber.Ctx) error {
	user, err := actor(c)
	if err != nil {
		return err
	}
	doc, rc, err := h.documents.Open(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	mimeType := doc.MimeType
	if mimeType == "" {
		mimeType = fiber.MIMEOctetStream
	}
	c.Set(fiber.HeaderContentType, mimeType)
	c.Set(fiber.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": doc.FileName}))
	return c.SendStream(rc, int(doc.SizeBytes))
}

// Delete DELETE /documents/:id.
func (h *DocumentsHandler) Delete(c *fiber.Ctx) error {
	user, err := actor(c)
	if err != nil {
		return err
	}
	if err := h.documents.Delete(c.UserContext(), user, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func formBool(c *fiber.Ctx, field string) bool {
	parsed, err := strconv.ParseBool(c.FormValue(field))
	return err == nil && parsed
}
