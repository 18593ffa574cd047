package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/arpith/higate/internal/observability"
	"github.com/arpith/higate/pkg/gate"
	"github.com/arpith/higate/pkg/registry"
	"github.com/arpith/higate/pkg/store"
)

// Error kinds carried on failed results. Downstream console errors keep
// the kind reported by the client (not_found, conflict, unauthorized,
// transient, unknown).
const (
	ErrKindUnknownTool      = "unknown_tool"
	ErrKindInvalidArguments = "invalid_arguments"
	ErrKindExecution        = "execution_error"
	ErrKindTimeout          = "execution_timeout"
)

// Request is one tool invocation attempt. RequestID is the idempotency
// key; dispatching the same ID twice replays the recorded result.
type Request struct {
	RequestID string                 `json:"request_id"`
	SessionID string                 `json:"session_id,omitempty"`
	ToolName  string                 `json:"tool_name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

// Dispatcher routes invocations through validation, the confirmation gate
// for sensitive tools, and the tool handler, recording exactly one result
// per request ID.
type Dispatcher struct {
	registry *registry.Registry
	gate     *gate.Gate
	store    *store.Store
	timeout  time.Duration
}

// New creates a dispatcher. timeout bounds a single handler execution.
func New(reg *registry.Registry, g *gate.Gate, s *store.Store, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{
		registry: reg,
		gate:     g,
		store:    s,
		timeout:  timeout,
	}
}

// Dispatch executes one invocation attempt. All outcomes, including
// rejections and failures, land in the returned result; the error return
// is reserved for malformed requests and cancelled waits.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (store.Result, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	if req.ToolName == "" {
		return store.Result{}, fmt.Errorf("tool name cannot be empty")
	}

	outcome, cached, done := d.store.Begin(req.RequestID)
	switch outcome {
	case store.BeginCached:
		observability.RecordInvocationReplay()
		log.Debug().
			Str("request_id", req.RequestID).
			Str("status", string(cached.Status)).
			Msg("Invocation replayed from cache")
		return *cached, nil

	case store.BeginJoin:
		log.Debug().Str("request_id", req.RequestID).Msg("Joining in-flight invocation")
		select {
		case <-done:
		case <-ctx.Done():
			return store.Result{}, fmt.Errorf("wait for request %s: %w", req.RequestID, ctx.Err())
		}
		result, ok := d.store.GetResult(req.RequestID)
		if !ok {
			return store.Result{}, fmt.Errorf("request %s finished without a result", req.RequestID)
		}
		observability.RecordInvocationReplay()
		return *result, nil
	}

	// This caller owns execution.
	return d.run(ctx, req), nil
}

// run performs the owning execution for a claimed request ID and records
// its terminal result.
func (d *Dispatcher) run(ctx context.Context, req Request) store.Result {
	start := time.Now()
	result := store.Result{
		RequestID: req.RequestID,
		SessionID: req.SessionID,
		ToolName:  req.ToolName,
		CreatedAt: start,
	}

	def, err := d.registry.Lookup(req.ToolName)
	if err != nil {
		result.Status = store.StatusFailed
		result.ErrorKind = ErrKindUnknownTool
		result.ErrorDetail = err.Error()
		return d.record(ctx, result, start)
	}

	if err := d.registry.ValidateArguments(req.ToolName, req.Arguments); err != nil {
		result.Status = store.StatusFailed
		result.ErrorKind = ErrKindInvalidArguments
		result.ErrorDetail = err.Error()
		return d.record(ctx, result, start)
	}

	if def.Sensitive {
		ticket, err := d.gate.CreateTicket(ctx, req.RequestID, req.SessionID, req.ToolName, req.Arguments)
		if err != nil {
			result.Status = store.StatusFailed
			result.ErrorKind = ErrKindExecution
			result.ErrorDetail = err.Error()
			return d.record(ctx, result, start)
		}
		result.TicketID = ticket.ID

		decided, err := d.gate.AwaitDecision(ctx, ticket.ID)
		if err != nil {
			result.Status = store.StatusFailed
			result.ErrorKind = ErrKindExecution
			result.ErrorDetail = err.Error()
			return d.record(ctx, result, start)
		}

		switch decided.Status {
		case store.TicketRejected:
			result.Status = store.StatusRejected
			result.ErrorDetail = fmt.Sprintf("rejected by %s", decided.DecidedBy)
			return d.record(ctx, result, start)

		case store.TicketExpired:
			result.Status = store.StatusTimedOut
			result.ErrorDetail = "confirmation deadline expired"
			return d.record(ctx, result, start)
		}
		// Approved: fall through to execution.
	}

	payload, err := d.execute(ctx, def, req.Arguments)
	if err != nil {
		result.Status = store.StatusFailed
		result.ErrorKind = errorKindFor(err)
		result.ErrorDetail = err.Error()
		return d.record(ctx, result, start)
	}

	result.Status = store.StatusCompleted
	result.Payload = payload
	return d.record(ctx, result, start)
}

// record completes the result in the store and emits observability.
func (d *Dispatcher) record(ctx context.Context, result store.Result, start time.Time) store.Result {
	result.FinishedAt = time.Now()
	d.store.Complete(result)

	duration := result.FinishedAt.Sub(start)
	observability.RecordInvocation(result.ToolName, string(result.Status), duration)
	observability.RecordInvocationAudit(ctx, result.ToolName, result.SessionID, string(result.Status),
		map[string]interface{}{
			"request_id": result.RequestID,
			"ticket_id":  result.TicketID,
			"error_kind": result.ErrorKind,
		})

	event := log.Info()
	if result.Status != store.StatusCompleted {
		event = log.Warn()
	}
	event.
		Str("request_id", result.RequestID).
		Str("tool", result.ToolName).
		Str("status", string(result.Status)).
		Dur("duration", duration).
		Msg("Invocation finished")

	return result
}

// errorKindFor maps handler errors to a result error kind.
func errorKindFor(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrKindTimeout
	}
	if kind := downstreamKind(err); kind != "" {
		return kind
	}
	return ErrKindExecution
}
