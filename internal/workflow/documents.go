package workflow

import (
	"github.com/spec-kit/ticket-workflow/internal/domain"
)

// RequirementCompletionCertificate names the certificate requirement in gate results.
const RequirementCompletionCertificate = "completion_certificate"

// RoleSet is a set of directory roles.
type RoleSet map[domain.Role]struct{}

// NewRoleSet builds a RoleSet from roles.
func NewRoleSet(roles ...domain.Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, role := range roles {
		set[role] = struct{}{}
	}
	return set
}

// Has reports whether role is in the set.
func (s RoleSet) Has(role domain.Role) bool {
	_, ok := s[role]
	return ok
}

// DocumentGate evaluates mandatory-document and completion-certificate requirements.
type DocumentGate struct {
	fieldRoles RoleSet
}

// NewDocumentGate returns a gate that demands certificates from the given field roles.
func NewDocumentGate(fieldRoles RoleSet) *DocumentGate {
	if fieldRoles == nil {
		fieldRoles = RoleSet{}
	}
	return &DocumentGate{fieldRoles: fieldRoles}
}

// GateInput bundles what the gate looks at.
type GateInput struct {
	Step *domain.WorkflowStep
	// Documents holds the step's documents and the ticket-level documents.
	Documents []domain.Document
	Role      domain.Role
	Waived    bool
}

// GateResult describes both gates for one step.
type GateResult struct {
	MandatoryRequired   int
	MandatoryUploaded   int
	MandatorySatisfied  bool
	CertificateRequired bool
	CertificateUploaded bool
	Satisfied           bool
	// Missing names unmet requirements, mandatory names first.
	Missing []string
}

// Evaluate computes the gate result. The mandatory gate counts documents tagged
// mandatory on the step; it does not match them to individual requirement names.
func (g *DocumentGate) Evaluate(in GateInput) GateResult {
	step := in.Step
	res := GateResult{MandatoryRequired: len(step.MandatoryDocuments)}

	matched := map[string]bool{}
	for _, doc := range in.Documents {
		onStep := doc.StepID != nil && *doc.StepID == step.ID
		if onStep && doc.IsMandatory {
			res.MandatoryUploaded++
			if doc.RequirementName != nil {
				matched[*doc.RequirementName] = true
			}
		}
		if doc.IsCompletionCertificate && (onStep || doc.StepID == nil) {
			res.CertificateUploaded = true
		}
	}
	res.MandatorySatisfied = res.MandatoryUploaded >= res.MandatoryRequired
	if !res.MandatorySatisfied {
		res.Missing = missingNames(step.MandatoryDocuments, matched, res.MandatoryRequired-res.MandatoryUploaded)
	}

	res.CertificateRequired = step.CompletionCertificateRequired && g.fieldRoles.Has(in.Role) && !in.Waived
	if res.CertificateRequired && !res.CertificateUploaded {
		res.Missing = append(res.Missing, RequirementCompletionCertificate)
	}

	res.Satisfied = res.MandatorySatisfied && (!res.CertificateRequired || res.CertificateUploaded)
	return res
}

// missingNames picks deficit requirement names, preferring ones no upload claimed.
func missingNames(names []string, matched map[string]bool, deficit int) []string {
	missing := make([]string, 0, deficit)
	for _, name := range names {
		if len(missing) == deficit {
			return missing
		}
		if !matched[name] {
			missing = append(missing, name)
		}
	}
	for i := len(names) - 1; i >= 0 && len(missing) < deficit; i-- {
		if matched[names[i]] {
			missing = append(missing, names[i])
		}
	}
	return missing
}
