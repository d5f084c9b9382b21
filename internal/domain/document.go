package domain

import "time"

// Document records the identity of an artifact held by the blob store.
// StepID is nil for ticket-level documents.
type Document struct {
	ID                      string
	TicketID                string
	StepID                  *string
	FileName                string
	MimeType                string
	SizeBytes               int64
	StorageKey              string
	IsMandatory             bool
	IsCompletionCertificate bool
	RequirementName         *string
	UploadedBy              string
	CreatedAt               time.Time
}

// OwnerID returns the step id for step documents and the ticket id otherwise.
func (d Document) OwnerID() string {
	if d.StepID != nil {
		return *d.StepID
	}
	return d.TicketID
}
