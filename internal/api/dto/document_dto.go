package dto

import "time"

// DocumentResponse is document metadata; content is served separately.
type DocumentResponse struct {
	ID                      string    `json:"id"`
	TicketID                string    `json:"ticket_id"`
	StepID                  *string   `json:"step_id"`
	FileName                string    `json:"file_name"`
	MimeType                string    `json:"mime_type"`
	SizeBytes               int64     `json:"size_bytes"`
	IsMandatory             bool      `json:"is_mandatory"`
	IsCompletionCertificate bool      `json:"is_completion_certificate"`
	RequirementName         *string   `json:"requirement_name"`
	UploadedBy              string    `json:"uploaded_by"`
	CreatedAt               time.Time `json:"created_at"`
	URL                     string    `json:"url"`
}
