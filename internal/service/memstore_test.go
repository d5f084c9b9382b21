package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-workflow/internal/directory"
	"github.com/spec-kit/ticket-workflow/internal/domain"
	"github.com/spec-kit/ticket-workflow/internal/repository"
)

// ---------------------------------------------------------------------------
// In-memory store. RunInTx snapshots every table and restores the snapshot
// when fn fails, so a rejected operation leaves no trace.
// ---------------------------------------------------------------------------

type memState struct {
	tickets     map[string]domain.Ticket
	steps       map[string]domain.WorkflowStep
	approvals   map[string]domain.FinanceApproval
	documents   map[string]domain.Document
	departments map[string]domain.Department
	audit       []domain.AuditLogEntry
}

func (s memState) clone() memState {
	out := memState{
		tickets:     make(map[string]domain.Ticket, len(s.tickets)),
		steps:       make(map[string]domain.WorkflowStep, len(s.steps)),
		approvals:   make(map[string]domain.FinanceApproval, len(s.approvals)),
		documents:   make(map[string]domain.Document, len(s.documents)),
		departments: make(map[string]domain.Department, len(s.departments)),
		audit:       append([]domain.AuditLogEntry(nil), s.audit...),
	}
	for k, v := range s.tickets {
		out.tickets[k] = v
	}
	for k, v := range s.steps {
		v.DependsOn = append([]string(nil), v.DependsOn...)
		out.steps[k] = v
	}
	for k, v := range s.approvals {
		out.approvals[k] = v
	}
	for k, v := range s.documents {
		out.documents[k] = v
	}
	for k, v := range s.departments {
		out.departments[k] = v
	}
	return out
}

type memStore struct {
	mu    sync.Mutex
	seq   int
	order map[string]int
	state memState

	// failAppend makes the audit append fail, simulating a database outage.
	failAppend error
}

func newMemStore() *memStore {
	return &memStore{
		order: map[string]int{},
		state: memState{
			tickets:     map[string]domain.Ticket{},
			steps:       map[string]domain.WorkflowStep{},
			approvals:   map[string]domain.FinanceApproval{},
			documents:   map[string]domain.Document{},
			departments: map[string]domain.Department{},
		},
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	id := fmt.Sprintf("%s-%d", prefix, m.seq)
	m.order[id] = m.seq
	return id
}

func (m *memStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	snapshot := m.state.clone()
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.state = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) ticket(id string) domain.Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.tickets[id]
}

func (m *memStore) step(id string) domain.WorkflowStep {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.steps[id]
}

func (m *memStore) auditActions(ticketID string) []domain.AuditAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var actions []domain.AuditAction
	for _, entry := range m.state.audit {
		if entry.TicketID == ticketID {
			actions = append(actions, entry.Action)
		}
	}
	return actions
}

// snapshot renders everything a client could observe about a ticket.
func (m *memStore) snapshot(ticketID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var b strings.Builder
	fmt.Fprintf(&b, "%+v\n", m.state.tickets[ticketID])
	for _, id := range m.sortedKeys(m.state.steps) {
		if step := m.state.steps[id]; step.TicketID == ticketID {
			fmt.Fprintf(&b, "%+v\n", step)
		}
	}
	for _, id := range m.sortedKeys(m.state.approvals) {
		if approval := m.state.approvals[id]; approval.TicketID == ticketID {
			fmt.Fprintf(&b, "%+v\n", approval)
		}
	}
	for _, id := range m.sortedKeys(m.state.documents) {
		if doc := m.state.documents[id]; doc.TicketID == ticketID {
			fmt.Fprintf(&b, "%+v\n", doc)
		}
	}
	fmt.Fprintf(&b, "audit=%d", len(m.auditFor(ticketID)))
	return b.String()
}

func (m *memStore) auditFor(ticketID string) []domain.AuditLogEntry {
	var out []domain.AuditLogEntry
	for _, entry := range m.state.audit {
		if entry.TicketID == ticketID {
			out = append(out, entry)
		}
	}
	return out
}

func (m *memStore) sortedKeys(table any) []string {
	var keys []string
	switch t := table.(type) {
	case map[string]domain.WorkflowStep:
		for k := range t {
			keys = append(keys, k)
		}
	case map[string]domain.FinanceApproval:
		for k := range t {
			keys = append(keys, k)
		}
	case map[string]domain.Document:
		for k := range t {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return m.order[keys[i]] < m.order[keys[j]] })
	return keys
}

// ---------------------------------------------------------------------------
// Repositories
// ---------------------------------------------------------------------------

type memTickets struct{ *memStore }

func (r memTickets) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket.ID = r.nextID("ticket")
	ticket.Number = fmt.Sprintf("TKT-%06d", r.seq)
	ticket.CreatedAt = time.Now().UTC()
	ticket.UpdatedAt = ticket.CreatedAt
	stored := *ticket
	stored.Steps, stored.Attachments = nil, nil
	r.state.tickets[ticket.ID] = stored
	return nil
}

func (r memTickets) Update(ctx context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.state.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = time.Now().UTC()
	stored := *ticket
	stored.Steps, stored.Attachments = nil, nil
	r.state.tickets[ticket.ID] = stored
	return nil
}

func (r memTickets) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.state.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &ticket, nil
}

func (r memTickets) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r memTickets) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range r.state.tickets {
		if filter.CreatorID != nil && ticket.CreatorID != *filter.CreatorID {
			continue
		}
		if filter.DepartmentID != nil && ticket.DepartmentID != *filter.DepartmentID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
			continue
		}
		out = append(out, ticket)
	}
	sort.Slice(out, func(i, j int) bool { return r.order[out[i].ID] > r.order[out[j].ID] })
	return out, nil
}

func containsStatus(list []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, candidate := range list {
		if candidate == status {
			return true
		}
	}
	return false
}

type memSteps struct{ *memStore }

func (r memSteps) Create(ctx context.Context, step *domain.WorkflowStep) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	step.ID = r.nextID("step")
	step.CreatedAt = time.Now().UTC()
	step.UpdatedAt = step.CreatedAt
	stored := *step
	stored.DependsOn = append([]string(nil), step.DependsOn...)
	r.state.steps[step.ID] = stored
	return nil
}

func (r memSteps) UpdateStatus(ctx context.Context, stepID string, status domain.StepStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	step, ok := r.state.steps[stepID]
	if !ok {
		return pgx.ErrNoRows
	}
	step.Status = status
	r.state.steps[stepID] = step
	return nil
}

func (r memSteps) UpdateAssignee(ctx context.Context, stepID string, assigneeID *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	step, ok := r.state.steps[stepID]
	if !ok {
		return pgx.ErrNoRows
	}
	step.AssigneeID = assigneeID
	r.state.steps[stepID] = step
	return nil
}

func (r memSteps) GetByID(ctx context.Context, id string) (*domain.WorkflowStep, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	step, ok := r.state.steps[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	step.DependsOn = append([]string(nil), step.DependsOn...)
	return &step, nil
}

func (r memSteps) ListByTicket(ctx context.Context, ticketID string) ([]domain.WorkflowStep, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.WorkflowStep
	for _, id := range r.sortedKeys(r.state.steps) {
		step := r.state.steps[id]
		if step.TicketID != ticketID {
			continue
		}
		step.DependsOn = append([]string(nil), step.DependsOn...)
		out = append(out, step)
	}
	return out, nil
}

func (r memSteps) AddDependency(ctx context.Context, stepID, dependsOnID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	step, ok := r.state.steps[stepID]
	if !ok {
		return pgx.ErrNoRows
	}
	for _, dep := range step.DependsOn {
		if dep == dependsOnID {
			return nil
		}
	}
	step.DependsOn = append(append([]string(nil), step.DependsOn...), dependsOnID)
	r.state.steps[stepID] = step
	return nil
}

func (r memSteps) RemoveDependency(ctx context.Context, stepID, dependsOnID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	step, ok := r.state.steps[stepID]
	if !ok {
		return pgx.ErrNoRows
	}
	var kept []string
	for _, dep := range step.DependsOn {
		if dep != dependsOnID {
			kept = append(kept, dep)
		}
	}
	if len(kept) == len(step.DependsOn) {
		return pgx.ErrNoRows
	}
	step.DependsOn = kept
	r.state.steps[stepID] = step
	return nil
}

func (r memSteps) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.state.steps[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.state.steps, id)
	for key, doc := range r.state.documents {
		if doc.StepID != nil && *doc.StepID == id {
			delete(r.state.documents, key)
		}
	}
	for key, step := range r.state.steps {
		var kept []string
		for _, dep := range step.DependsOn {
			if dep != id {
				kept = append(kept, dep)
			}
		}
		step.DependsOn = kept
		r.state.steps[key] = step
	}
	return nil
}

type memApprovals struct{ *memStore }

func (r memApprovals) Create(ctx context.Context, approval *domain.FinanceApproval) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.state.approvals {
		if existing.TicketID == approval.TicketID && existing.Status == domain.ApprovalStatusPending {
			return errors.New("duplicate key value violates unique constraint \"finance_approvals_one_pending\"")
		}
	}
	approval.ID = r.nextID("approval")
	approval.SubmittedAt = time.Now().UTC()
	r.state.approvals[approval.ID] = *approval
	return nil
}

func (r memApprovals) GetByIDForUpdate(ctx context.Context, id string) (*domain.FinanceApproval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	approval, ok := r.state.approvals[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &approval, nil
}

func (r memApprovals) UpdateDecision(ctx context.Context, approval *domain.FinanceApproval) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.state.approvals[approval.ID]
	if !ok || stored.Status != domain.ApprovalStatusPending {
		return pgx.ErrNoRows
	}
	r.state.approvals[approval.ID] = *approval
	return nil
}

func (r memApprovals) ListByTicket(ctx context.Context, ticketID string) ([]domain.FinanceApproval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.FinanceApproval
	for _, approval := range r.state.approvals {
		if approval.TicketID == ticketID {
			out = append(out, approval)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmissionNumber > out[j].SubmissionNumber })
	return out, nil
}

func (r memApprovals) HasPending(ctx context.Context, ticketID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, approval := range r.state.approvals {
		if approval.TicketID == ticketID && approval.Status == domain.ApprovalStatusPending {
			return true, nil
		}
	}
	return false, nil
}

type memDocuments struct{ *memStore }

func (r memDocuments) Create(ctx context.Context, doc *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc.ID = r.nextID("document")
	doc.CreatedAt = time.Now().UTC()
	r.state.documents[doc.ID] = *doc
	return nil
}

func (r memDocuments) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.state.documents[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &doc, nil
}

func (r memDocuments) ListByTicket(ctx context.Context, ticketID string) ([]domain.Document, error) {
	return r.filter(func(doc domain.Document) bool { return doc.TicketID == ticketID }), nil
}

func (r memDocuments) ListByStep(ctx context.Context, stepID string) ([]domain.Document, error) {
	return r.filter(func(doc domain.Document) bool { return doc.StepID != nil && *doc.StepID == stepID }), nil
}

func (r memDocuments) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.state.documents[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.state.documents, id)
	return nil
}

func (r memDocuments) filter(keep func(domain.Document) bool) []domain.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Document
	for _, id := range r.sortedKeys(r.state.documents) {
		if doc := r.state.documents[id]; keep(doc) {
			out = append(out, doc)
		}
	}
	return out
}

type memDepartments struct{ *memStore }

func (r memDepartments) Create(ctx context.Context, dept *domain.Department) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if dept.ID == "" {
		dept.ID = r.nextID("dept")
	}
	r.state.departments[dept.ID] = *dept
	return nil
}

func (r memDepartments) SetActive(ctx context.Context, id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	dept, ok := r.state.departments[id]
	if !ok {
		return pgx.ErrNoRows
	}
	dept.IsActive = active
	r.state.departments[id] = dept
	return nil
}

func (r memDepartments) GetByID(ctx context.Context, id string) (*domain.Department, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dept, ok := r.state.departments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &dept, nil
}

func (r memDepartments) ListActive(ctx context.Context) ([]domain.Department, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Department
	for _, dept := range r.state.departments {
		if dept.IsActive {
			out = append(out, dept)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type memAudit struct{ *memStore }

func (r memAudit) Append(ctx context.Context, entry *domain.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAppend != nil {
		return r.failAppend
	}
	entry.ID = r.nextID("audit")
	entry.CreatedAt = time.Now().UTC()
	r.state.audit = append(r.state.audit, *entry)
	return nil
}

func (r memAudit) ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.AuditLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.auditFor(ticketID)
	if offset >= len(entries) {
		return nil, nil
	}
	entries = entries[offset:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

// ---------------------------------------------------------------------------
// Directory
// ---------------------------------------------------------------------------

type memDirectory struct {
	mu    sync.Mutex
	users map[string]domain.User
	err   error
}

func (d *memDirectory) GetUser(ctx context.Context, id string) (*domain.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	user, ok := d.users[id]
	if !ok {
		return nil, directory.ErrNotFound
	}
	return &user, nil
}

// ListByRole lets the directory fake double as the users table.
func (d *memDirectory) ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	var out []domain.User
	for _, user := range d.users {
		if user.Role == role {
			out = append(out, user)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (d *memDirectory) Create(ctx context.Context, user *domain.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[user.ID] = *user
	return nil
}

func (d *memDirectory) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return d.GetUser(ctx, id)
}
