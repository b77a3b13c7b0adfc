package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/appeal-service/internal/config"
	"github.com/spec-kit/appeal-service/internal/domain"
	"github.com/spec-kit/appeal-service/internal/events"
	"github.com/spec-kit/appeal-service/internal/repository"
)

// In-memory fakes backing the service tests. They hold copies of every
// record so tests never observe aliasing through returned pointers.

type memTicketRepo struct {
	mu      sync.Mutex
	nextID  int64
	tickets map[int64]domain.Ticket
}

func newMemTicketRepo() *memTicketRepo {
	return &memTicketRepo{tickets: make(map[int64]domain.Ticket)}
}

func (r *memTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	ticket.ID = r.nextID
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now()
	}
	ticket.UpdatedAt = ticket.CreatedAt
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *memTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *memTicketRepo) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &ticket, nil
}

func (r *memTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range r.tickets {
		if filter.RequesterID != nil && ticket.RequesterID != *filter.RequesterID {
			continue
		}
		if filter.AssignedOperatorID != nil &&
			(ticket.AssignedOperatorID == nil || *ticket.AssignedOperatorID != *filter.AssignedOperatorID) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
			continue
		}
		out = append(out, ticket)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memTicketRepo) ListOverdue(_ context.Context, threshold time.Time) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.Status == domain.TicketStatusClosed {
			continue
		}
		if ticket.Status != domain.TicketStatusNew && ticket.FirstResponseAt != nil {
			continue
		}
		if !ticket.CreatedAt.Before(threshold) {
			continue
		}
		out = append(out, ticket)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func containsStatus(statuses []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

type memMessageRepo struct {
	mu       sync.Mutex
	nextID   int64
	messages []domain.Message
}

func newMemMessageRepo() *memMessageRepo {
	return &memMessageRepo{}
}

func (r *memMessageRepo) Create(_ context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	msg.ID = r.nextID
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *memMessageRepo) ListByTicket(_ context.Context, ticketID int64) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Message
	for _, msg := range r.messages {
		if msg.TicketID == ticketID {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memMessageRepo) MarkReadByOperator(_ context.Context, ticketID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.messages {
		if r.messages[i].TicketID == ticketID && !r.messages[i].FromOperator {
			r.messages[i].ReadByOperator = true
		}
	}
	return nil
}

type memWorkloadRepo struct {
	mu        sync.Mutex
	workloads map[int64]domain.OperatorWorkload
}

func newMemWorkloadRepo() *memWorkloadRepo {
	return &memWorkloadRepo{workloads: make(map[int64]domain.OperatorWorkload)}
}

func (r *memWorkloadRepo) GetByOperator(_ context.Context, operatorID int64) (*domain.OperatorWorkload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	workload, ok := r.workloads[operatorID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	workload.Expertise = append([]domain.CategoryExpertise(nil), workload.Expertise...)
	return &workload, nil
}

func (r *memWorkloadRepo) Save(_ context.Context, workload *domain.OperatorWorkload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *workload
	stored.Expertise = append([]domain.CategoryExpertise(nil), workload.Expertise...)
	r.workloads[workload.OperatorID] = stored
	return nil
}

func (r *memWorkloadRepo) ListAvailable(_ context.Context) ([]domain.OperatorWorkload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.OperatorWorkload
	for _, workload := range r.workloads {
		if workload.Available {
			out = append(out, workload)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ActiveTickets != out[j].ActiveTickets {
			return out[i].ActiveTickets < out[j].ActiveTickets
		}
		return out[i].OperatorID < out[j].OperatorID
	})
	return out, nil
}

func (r *memWorkloadRepo) ListByCategoryExpertise(_ context.Context, category domain.TicketCategory) ([]domain.OperatorWorkload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.OperatorWorkload
	for _, workload := range r.workloads {
		if workload.ExpertiseLevel(category) > 0 {
			out = append(out, workload)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		li, lj := out[i].ExpertiseLevel(category), out[j].ExpertiseLevel(category)
		if li != lj {
			return li > lj
		}
		return out[i].OperatorID < out[j].OperatorID
	})
	return out, nil
}

type memOperatorRepo struct {
	mu        sync.Mutex
	operators map[int64]domain.Operator
}

func newMemOperatorRepo() *memOperatorRepo {
	return &memOperatorRepo{operators: make(map[int64]domain.Operator)}
}

func (r *memOperatorRepo) add(op domain.Operator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operators[op.ID] = op
}

func (r *memOperatorRepo) GetByID(_ context.Context, id int64) (*domain.Operator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.operators[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &op, nil
}

func (r *memOperatorRepo) GetByEmail(_ context.Context, email string) (*domain.Operator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, op := range r.operators {
		if op.Email == email {
			return &op, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type memWorkloadCache struct {
	mu       sync.Mutex
	snapshot []domain.OperatorWorkload
	valid    bool
	hits     int
	misses   int
}

func (c *memWorkloadCache) GetAvailable(_ context.Context) ([]domain.OperatorWorkload, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid {
		c.misses++
		return nil, false
	}
	c.hits++
	return append([]domain.OperatorWorkload(nil), c.snapshot...), true
}

func (c *memWorkloadCache) SetAvailable(_ context.Context, workloads []domain.OperatorWorkload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = append([]domain.OperatorWorkload(nil), workloads...)
	c.valid = true
}

func (c *memWorkloadCache) Invalidate(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = nil
	c.valid = false
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) lastOfType(eventType events.EventType) (events.Event, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.events) - 1; i >= 0; i-- {
		if d.events[i].Type == eventType {
			return d.events[i], true
		}
	}
	return events.Event{}, false
}

func testScoring() config.ScoringConfig {
	return config.ScoringConfig{
		BaseScore:             100,
		ExpertiseWeight:       10,
		LoadPenalty:           20,
		RecencyBonus:          30,
		RecencyWindow:         4 * time.Hour,
		PriorityAffinityBonus: 50,
		AffinityMinLevel:      4,
	}
}

// ticketEnv bundles the full service graph over in-memory fakes. The clock
// is mutable so tests can advance time between calls.
type ticketEnv struct {
	now        time.Time
	tickets    *memTicketRepo
	messages   *memMessageRepo
	workloads  *memWorkloadRepo
	operators  *memOperatorRepo
	dispatcher *recordingDispatcher
	tracker    *WorkloadService
	engine     *AssignmentService
	lifecycle  *TicketService
}

func newTicketEnv() *ticketEnv {
	env := &ticketEnv{
		now:        time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC),
		tickets:    newMemTicketRepo(),
		messages:   newMemMessageRepo(),
		workloads:  newMemWorkloadRepo(),
		operators:  newMemOperatorRepo(),
		dispatcher: &recordingDispatcher{},
	}
	clock := func() time.Time { return env.now }
	env.tracker = NewWorkloadService(WorkloadDependencies{
		WorkloadRepo: env.workloads,
		Now:          clock,
	})
	env.engine = NewAssignmentService(AssignmentDependencies{
		Tracker: env.tracker,
		Weights: testScoring(),
		Now:     clock,
	})
	env.lifecycle = NewTicketService(TicketDependencies{
		TicketRepo:   env.tickets,
		MessageRepo:  env.messages,
		OperatorRepo: env.operators,
		Tracker:      env.tracker,
		Engine:       env.engine,
		Dispatcher:   env.dispatcher,
		Now:          clock,
	})
	return env
}

func (env *ticketEnv) advance(d time.Duration) {
	env.now = env.now.Add(d)
}

func (env *ticketEnv) addOperator(id int64, role domain.OperatorRole) {
	env.operators.add(domain.Operator{
		ID:     id,
		Name:   "op",
		Email:  "op@example.com",
		Role:   role,
		Active: true,
	})
}

func (env *ticketEnv) addWorkload(w domain.OperatorWorkload) {
	if w.LastActivityAt.IsZero() {
		w.LastActivityAt = env.now
	}
	if err := env.workloads.Save(context.Background(), &w); err != nil {
		panic(err)
	}
}

func (env *ticketEnv) newTicket(t *testing.T, category domain.TicketCategory, priority domain.TicketPriority) *domain.Ticket {
	t.Helper()
	ticket, err := env.lifecycle.CreateTicket(context.Background(), 42, category, priority,
		"Cannot sign in", "My account rejects the password I set yesterday")
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	return ticket
}
