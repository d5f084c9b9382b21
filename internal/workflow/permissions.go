package workflow

import (
	"github.com/spec-kit/ticket-workflow/internal/domain"
)

// Relation describes how an actor relates to a ticket.
type Relation string

const (
	RelationAny        Relation = "any"
	RelationCreator    Relation = "creator"
	RelationDepartment Relation = "department"
)

// Step-level verbs, evaluated through the same table as ticket transitions.
const (
	VerbEditSteps      Verb = "edit_steps"
	VerbProgressSteps  Verb = "progress_steps"
	VerbManageDocument Verb = "manage_documents"
	VerbView           Verb = "view"
)

// VerbSet is a set of allowed verbs.
type VerbSet map[Verb]struct{}

func verbs(list ...Verb) VerbSet {
	set := make(VerbSet, len(list))
	for _, v := range list {
		set[v] = struct{}{}
	}
	return set
}

func managerVerbs() VerbSet {
	all := append([]Verb{VerbEditSteps, VerbProgressSteps, VerbManageDocument, VerbView}, AllVerbs...)
	return verbs(all...)
}

// PermissionTable maps (relation, role) to the verbs that role may execute.
type PermissionTable map[Relation]map[domain.Role]VerbSet

// DefaultPermissions: overseers do anything; department managers do anything on
// their department's tickets; field engineers progress steps and attach
// documents in their department; finance officers read any ticket; requesters
// submit their own drafts.
func DefaultPermissions() PermissionTable {
	return PermissionTable{
		RelationAny: {
			domain.RoleOverseer: managerVerbs(),
			domain.RoleFinance:  verbs(VerbView),
		},
		RelationDepartment: {
			domain.RoleManager:       managerVerbs(),
			domain.RoleFieldEngineer: verbs(VerbProgressSteps, VerbManageDocument, VerbView),
		},
		RelationCreator: {
			domain.RoleRequester: verbs(VerbSubmit, VerbManageDocument, VerbView),
		},
	}
}

// Relations computes every relation the actor holds to the ticket.
func Relations(actor *domain.User, ticket *domain.Ticket) []Relation {
	relations := []Relation{RelationAny}
	if actor.ID == ticket.CreatorID {
		relations = append(relations, RelationCreator)
	}
	if actor.DepartmentID != "" && actor.DepartmentID == ticket.DepartmentID {
		relations = append(relations, RelationDepartment)
	}
	return relations
}

// Allowed evaluates the table once for the actor and ticket and returns the union of verbs.
func (t PermissionTable) Allowed(actor *domain.User, ticket *domain.Ticket) VerbSet {
	allowed := VerbSet{}
	if actor == nil || ticket == nil {
		return allowed
	}
	for _, rel := range Relations(actor, ticket) {
		for verb := range t[rel][actor.Role] {
			allowed[verb] = struct{}{}
		}
	}
	return allowed
}

// CanAll reports whether every verb in list is in the set.
func (s VerbSet) CanAll(list []Verb) bool {
	for _, verb := range list {
		if !s.Can(verb) {
			return false
		}
	}
	return true
}

// Can reports whether the verb is in the set.
func (s VerbSet) Can(verb Verb) bool {
	_, ok := s[verb]
	return ok
}

// CanTransition is the role gate for moving ticket to status to. A pair absent
// from the table is only let through to the table for actors holding every
// transition verb, so they get InvalidTransition rather than PermissionDenied.
func (t PermissionTable) CanTransition(actor *domain.User, ticket *domain.Ticket, to domain.TicketStatus) bool {
	allowed := t.Allowed(actor, ticket)
	if verb, ok := TransitionVerb(ticket.Status, to); ok {
		return allowed.Can(verb)
	}
	return allowed.CanAll(AllVerbs)
}
