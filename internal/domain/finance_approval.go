package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CostBearer names who carries the cost of the work.
type CostBearer string

const (
	CostBearerCurrentTenant  CostBearer = "Current Tenant/Employee"
	CostBearerVacatingTenant CostBearer = "Vacating Tenant/Employee"
	CostBearerManagement     CostBearer = "Borne by Management"
)

// IsValid reports whether b is one of the three fixed categories.
func (b CostBearer) IsValid() bool {
	switch b {
	case CostBearerCurrentTenant, CostBearerVacatingTenant, CostBearerManagement:
		return true
	}
	return false
}

// ApprovalStatus is the state of a single finance approval.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

// FinanceApproval is one submission of a ticket to a finance officer.
type FinanceApproval struct {
	ID                 string
	TicketID           string
	SubmissionNumber   int
	TentativeCost      decimal.Decimal
	CostDeductedFrom   CostBearer
	FinanceOfficerID   string
	SubmittedBy        string
	Remarks            string
	Status             ApprovalStatus
	ApprovalRemarks    *string
	RejectionReason    *string
	ApprovalDocumentID *string
	SubmittedAt        time.Time
	DecidedAt          *time.Time
}
