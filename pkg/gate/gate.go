package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"

	"github.com/arpith/higate/internal/observability"
	"github.com/arpith/higate/pkg/store"
)

var (
	// ErrUnknownTicket is returned when deciding a ticket ID that does not exist.
	ErrUnknownTicket = errors.New("unknown ticket")
	// ErrTicketAlreadyDecided is returned when deciding a ticket that
	// already reached a terminal status.
	ErrTicketAlreadyDecided = errors.New("ticket already decided")
)

// Decision is a human verdict on a pending ticket.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ParseDecision parses user-supplied decision text.
func ParseDecision(s string) (Decision, error) {
	switch Decision(s) {
	case DecisionApprove, DecisionReject:
		return Decision(s), nil
	default:
		return "", fmt.Errorf("invalid decision %q: must be approve or reject", s)
	}
}

// Forwarder receives ticket lifecycle notifications. Implementations must
// not block; slow delivery belongs in their own goroutines.
type Forwarder interface {
	TicketCreated(ticket store.Ticket)
	TicketDecided(ticket store.Ticket)
}

// Gate suspends sensitive invocations behind confirmation tickets. Each
// ticket makes exactly one Pending to terminal transition; decisions,
// deadline expiry, and session teardown all race through the store and
// only one of them wins.
type Gate struct {
	store    *store.Store
	deadline time.Duration

	mu         sync.Mutex
	waiters    map[string]chan store.Ticket
	timers     map[string]*time.Timer
	forwarders []Forwarder
}

// New creates a gate with the given decision deadline.
func New(s *store.Store, deadline time.Duration) *Gate {
	if deadline <= 0 {
		deadline = 3 * time.Minute
	}
	return &Gate{
		store:    s,
		deadline: deadline,
		waiters:  make(map[string]chan store.Ticket),
		timers:   make(map[string]*time.Timer),
	}
}

// AddForwarder registers a notification sink for ticket events.
func (g *Gate) AddForwarder(f Forwarder) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.forwarders = append(g.forwarders, f)
}

// Deadline returns the configured decision deadline.
func (g *Gate) Deadline() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.deadline
}

// SetDeadline changes the deadline for tickets created after the call.
func (g *Gate) SetDeadline(deadline time.Duration) {
	if deadline <= 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deadline = deadline
}

// CreateTicket opens a pending ticket for a sensitive invocation and arms
// its expiry timer. Forwarders are notified asynchronously.
func (g *Gate) CreateTicket(ctx context.Context, requestID, sessionID, toolName string, args map[string]interface{}) (store.Ticket, error) {
	id, err := gonanoid.New(16)
	if err != nil {
		return store.Ticket{}, fmt.Errorf("failed to generate ticket id: %w", err)
	}

	g.mu.Lock()
	deadline := g.deadline
	g.mu.Unlock()

	now := time.Now()
	ticket := store.Ticket{
		ID:        "tkt_" + id,
		RequestID: requestID,
		SessionID: sessionID,
		ToolName:  toolName,
		Arguments: args,
		Status:    store.TicketPending,
		CreatedAt: now,
		Deadline:  now.Add(deadline),
	}

	g.store.PutTicket(ticket)

	g.mu.Lock()
	g.waiters[ticket.ID] = make(chan store.Ticket, 1)
	g.timers[ticket.ID] = time.AfterFunc(deadline, func() { g.expire(ticket.ID) })
	forwarders := append([]Forwarder(nil), g.forwarders...)
	g.mu.Unlock()

	observability.RecordTicketCreated()
	observability.RecordTicketAudit(ctx, "create:"+toolName, sessionID, string(store.TicketPending),
		map[string]interface{}{"ticket_id": ticket.ID, "request_id": requestID})

	log.Info().
		Str("ticket_id", ticket.ID).
		Str("request_id", requestID).
		Str("tool", toolName).
		Time("deadline", ticket.Deadline).
		Msg("Confirmation ticket created")

	for _, f := range forwarders {
		go f.TicketCreated(ticket)
	}

	return ticket, nil
}

// Decide applies a human verdict to a pending ticket. The first terminal
// transition wins; later calls get ErrTicketAlreadyDecided.
func (g *Gate) Decide(ctx context.Context, ticketID string, decision Decision, actor string) (store.Ticket, error) {
	to := store.TicketRejected
	if decision == DecisionApprove {
		to = store.TicketApproved
	}

	ticket, prev, found := g.store.TransitionTicket(ticketID, to, actor)
	if !found {
		return store.Ticket{}, fmt.Errorf("%s: %w", ticketID, ErrUnknownTicket)
	}
	if prev != store.TicketPending {
		return ticket, fmt.Errorf("%s is %s: %w", ticketID, prev, ErrTicketAlreadyDecided)
	}

	g.finish(ctx, ticket)

	log.Info().
		Str("ticket_id", ticketID).
		Str("status", string(ticket.Status)).
		Str("decided_by", actor).
		Msg("Confirmation ticket decided")

	return ticket, nil
}

// expire transitions a ticket whose deadline passed. Losing the race to a
// human decision is fine; the transition is simply a no-op then.
func (g *Gate) expire(ticketID string) {
	ticket, prev, found := g.store.TransitionTicket(ticketID, store.TicketExpired, "deadline")
	if !found || prev != store.TicketPending {
		return
	}

	g.finish(context.Background(), ticket)

	log.Warn().
		Str("ticket_id", ticketID).
		Str("tool", ticket.ToolName).
		Msg("Confirmation ticket expired")
}

// finish releases the waiter, stops the timer, and fans out the terminal
// ticket. Called exactly once per ticket, by whichever transition won.
func (g *Gate) finish(ctx context.Context, ticket store.Ticket) {
	g.mu.Lock()
	waiter := g.waiters[ticket.ID]
	timer := g.timers[ticket.ID]
	delete(g.waiters, ticket.ID)
	delete(g.timers, ticket.ID)
	forwarders := append([]Forwarder(nil), g.forwarders...)
	g.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}

	if waiter != nil {
		select {
		case waiter <- ticket:
		default:
			// Waiter already released
		}
	}

	waited := time.Duration(0)
	if ticket.DecidedAt != nil {
		waited = ticket.DecidedAt.Sub(ticket.CreatedAt)
	}
	observability.RecordTicketDecided(string(ticket.Status), waited)
	observability.RecordTicketAudit(ctx, "decide:"+ticket.ToolName, ticket.DecidedBy, string(ticket.Status),
		map[string]interface{}{"ticket_id": ticket.ID, "request_id": ticket.RequestID})

	for _, f := range forwarders {
		go f.TicketDecided(ticket)
	}
}

// AwaitDecision blocks until the ticket reaches a terminal status. If ctx
// is cancelled first the ticket is expired so the invocation fails closed.
func (g *Gate) AwaitDecision(ctx context.Context, ticketID string) (store.Ticket, error) {
	g.mu.Lock()
	waiter, waiting := g.waiters[ticketID]
	g.mu.Unlock()

	if !waiting {
		ticket, found := g.store.GetTicket(ticketID)
		if !found {
			return store.Ticket{}, fmt.Errorf("%s: %w", ticketID, ErrUnknownTicket)
		}
		return ticket, nil
	}

	select {
	case ticket := <-waiter:
		return ticket, nil

	case <-ctx.Done():
		ticket, prev, found := g.store.TransitionTicket(ticketID, store.TicketExpired, "caller")
		if !found {
			return store.Ticket{}, fmt.Errorf("%s: %w", ticketID, ErrUnknownTicket)
		}
		if prev == store.TicketPending {
			g.finish(context.Background(), ticket)
		}
		return ticket, nil
	}
}

// ExpireSession expires every pending ticket belonging to a session. Used
// when the session that created them goes away.
func (g *Gate) ExpireSession(sessionID string) int {
	pending := g.store.PendingTicketsForSession(sessionID)
	for _, ticket := range pending {
		g.expire(ticket.ID)
	}

	if len(pending) > 0 {
		log.Info().
			Str("session_id", sessionID).
			Int("tickets", len(pending)).
			Msg("Session tickets expired")
	}

	return len(pending)
}
