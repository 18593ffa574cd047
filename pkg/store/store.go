package store

import (
	"sort"
	"sync"
	"time"

	"github.com/arpith/higate/internal/observability"
	"github.com/rs/zerolog/log"
)

// ResultStatus is the terminal status of one invocation.
type ResultStatus string

const (
	StatusCompleted ResultStatus = "completed"
	StatusFailed    ResultStatus = "failed"
	StatusRejected  ResultStatus = "rejected"
	StatusTimedOut  ResultStatus = "timed_out"
)

// TicketStatus is the lifecycle status of a confirmation ticket.
type TicketStatus string

const (
	TicketPending  TicketStatus = "pending"
	TicketApproved TicketStatus = "approved"
	TicketRejected TicketStatus = "rejected"
	TicketExpired  TicketStatus = "expired"
)

// Terminal reports whether the status is final.
func (s TicketStatus) Terminal() bool {
	return s != TicketPending
}

// Result is the recorded outcome of one invocation, cached by request ID
// for idempotent replay.
type Result struct {
	RequestID   string       `json:"request_id"`
	SessionID   string       `json:"session_id,omitempty"`
	ToolName    string       `json:"tool_name"`
	Status      ResultStatus `json:"status"`
	Payload     interface{}  `json:"payload,omitempty"`
	ErrorKind   string       `json:"error_kind,omitempty"`
	ErrorDetail string       `json:"error_detail,omitempty"`
	TicketID    string       `json:"ticket_id,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	FinishedAt  time.Time    `json:"finished_at"`
}

// Ticket tracks one pending-to-terminal human approval decision.
type Ticket struct {
	ID        string                 `json:"id"`
	RequestID string                 `json:"request_id"`
	SessionID string                 `json:"session_id,omitempty"`
	ToolName  string                 `json:"tool_name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
	Status    TicketStatus           `json:"status"`
	CreatedAt time.Time              `json:"created_at"`
	DecidedAt *time.Time             `json:"decided_at,omitempty"`
	Deadline  time.Time              `json:"deadline"`
	DecidedBy string                 `json:"decided_by,omitempty"`
}

// record pairs a pending invocation with its eventual result. done is
// closed exactly once, when the result lands.
type record struct {
	result *Result
	done   chan struct{}
}

// Options configures the store
type Options struct {
	Retention  time.Duration
	MaxEntries int
}

// Store is the process-wide state for in-flight and completed invocations
// and their tickets. All methods are safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	requests map[string]*record
	tickets  map[string]*Ticket

	retention  time.Duration
	maxEntries int
	archive    *Archive
}

// New creates an empty store
func New(opts Options) *Store {
	retention := opts.Retention
	if retention <= 0 {
		retention = time.Hour
	}
	maxEntries := opts.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 1000
	}

	return &Store{
		requests:   make(map[string]*record),
		tickets:    make(map[string]*Ticket),
		retention:  retention,
		maxEntries: maxEntries,
	}
}

// SetArchive attaches a SQLite archive that receives evicted entries.
func (s *Store) SetArchive(archive *Archive) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archive = archive
}

// BeginOutcome tells the dispatcher how to proceed with a request ID.
type BeginOutcome int

const (
	// BeginOwner means the caller owns execution and must call Complete.
	BeginOwner BeginOutcome = iota
	// BeginCached means a terminal result already exists.
	BeginCached
	// BeginJoin means another caller is executing; wait on Done.
	BeginJoin
)

// Begin claims a request ID. Exactly one caller per ID ever becomes the
// owner; everyone else observes the owner's result.
func (s *Store) Begin(requestID string) (BeginOutcome, *Result, <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, exists := s.requests[requestID]; exists {
		if rec.result != nil {
			cached := *rec.result
			return BeginCached, &cached, nil
		}
		return BeginJoin, nil, rec.done
	}

	s.requests[requestID] = &record{done: make(chan struct{})}
	return BeginOwner, nil, nil
}

// Complete records the owner's terminal result and releases joiners.
func (s *Store) Complete(result Result) {
	if result.FinishedAt.IsZero() {
		result.FinishedAt = time.Now()
	}

	s.mu.Lock()
	rec, exists := s.requests[result.RequestID]
	if !exists {
		// Complete without Begin: record it anyway so replay works.
		rec = &record{done: make(chan struct{})}
		s.requests[result.RequestID] = rec
	}
	alreadyDone := rec.result != nil
	if !alreadyDone {
		rec.result = &result
	}
	count := len(s.requests)
	s.mu.Unlock()

	if alreadyDone {
		log.Warn().Str("request_id", result.RequestID).Msg("Duplicate result ignored")
		return
	}

	close(rec.done)
	observability.SetStoreEntries(count)
}

// GetResult returns the cached result for a request ID, if any.
func (s *Store) GetResult(requestID string) (*Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.requests[requestID]
	if !exists || rec.result == nil {
		return nil, false
	}
	cached := *rec.result
	return &cached, true
}

// PutTicket inserts a new ticket. Ticket IDs are never reused.
func (s *Store) PutTicket(ticket Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := ticket
	s.tickets[ticket.ID] = &copied
}

// GetTicket returns a copy of a ticket by ID.
func (s *Store) GetTicket(ticketID string) (Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.tickets[ticketID]
	if !exists {
		return Ticket{}, false
	}
	return *t, true
}

// TransitionTicket applies a single-shot Pending → terminal transition.
// It returns the ticket after the call, the status found before the call,
// and whether the ticket exists. The transition is applied only when the
// previous status was Pending; racing decisions and expiry serialize here.
func (s *Store) TransitionTicket(ticketID string, to TicketStatus, actor string) (Ticket, TicketStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.tickets[ticketID]
	if !exists {
		return Ticket{}, "", false
	}

	prev := t.Status
	if prev == TicketPending && to.Terminal() {
		now := time.Now()
		t.Status = to
		t.DecidedAt = &now
		t.DecidedBy = actor
	}

	return *t, prev, true
}

// PendingTickets returns all tickets still awaiting a decision, oldest
// first.
func (s *Store) PendingTickets() []Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make([]Ticket, 0)
	for _, t := range s.tickets {
		if t.Status == TicketPending {
			pending = append(pending, *t)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	return pending
}

// PendingTicketsForSession returns pending tickets belonging to a session.
func (s *Store) PendingTicketsForSession(sessionID string) []Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make([]Ticket, 0)
	for _, t := range s.tickets {
		if t.Status == TicketPending && t.SessionID == sessionID {
			pending = append(pending, *t)
		}
	}
	return pending
}

// Counts returns the number of request records and tickets held.
func (s *Store) Counts() (requests int, tickets int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests), len(s.tickets)
}

// Sweep evicts terminal entries older than the retention window and, when
// the store exceeds its entry budget, the oldest terminal entries beyond
// it. Evicted entries are archived first. In-flight requests and pending
// tickets are never evicted.
func (s *Store) Sweep(now time.Time) int {
	cutoff := now.Add(-s.retention)

	s.mu.Lock()

	evictResults := make([]Result, 0)
	evictIDs := make([]string, 0)
	terminal := make([]string, 0, len(s.requests))
	for id, rec := range s.requests {
		if rec.result == nil {
			continue
		}
		terminal = append(terminal, id)
		if rec.result.FinishedAt.Before(cutoff) {
			evictResults = append(evictResults, *rec.result)
			evictIDs = append(evictIDs, id)
		}
	}

	// Count-based eviction keeps the most recent entries.
	overflow := len(s.requests) - s.maxEntries
	if overflow > len(evictIDs) {
		evicted := make(map[string]bool, len(evictIDs))
		for _, id := range evictIDs {
			evicted[id] = true
		}
		remaining := make([]string, 0, len(terminal))
		for _, id := range terminal {
			if !evicted[id] {
				remaining = append(remaining, id)
			}
		}
		sort.Slice(remaining, func(i, j int) bool {
			return s.requests[remaining[i]].result.FinishedAt.Before(s.requests[remaining[j]].result.FinishedAt)
		})
		extra := overflow - len(evictIDs)
		if extra > len(remaining) {
			extra = len(remaining)
		}
		for _, id := range remaining[:extra] {
			evictResults = append(evictResults, *s.requests[id].result)
			evictIDs = append(evictIDs, id)
		}
	}

	for _, id := range evictIDs {
		delete(s.requests, id)
	}

	evictTickets := make([]Ticket, 0)
	for id, t := range s.tickets {
		if t.Status.Terminal() && t.DecidedAt != nil && t.DecidedAt.Before(cutoff) {
			evictTickets = append(evictTickets, *t)
			delete(s.tickets, id)
		}
	}

	archive := s.archive
	count := len(s.requests)
	s.mu.Unlock()

	if archive != nil {
		if err := archive.ArchiveResults(evictResults); err != nil {
			log.Warn().Err(err).Msg("Failed to archive evicted results")
		}
		if err := archive.ArchiveTickets(evictTickets); err != nil {
			log.Warn().Err(err).Msg("Failed to archive evicted tickets")
		}
	}

	evicted := len(evictIDs) + len(evictTickets)
	if evicted > 0 {
		observability.RecordStoreEvictions(evicted)
		observability.SetStoreEntries(count)
		log.Debug().
			Int("results", len(evictIDs)).
			Int("tickets", len(evictTickets)).
			Msg("Store entries evicted")
	}

	return evicted
}
