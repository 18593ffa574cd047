package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/arpith/higate/internal/tracing"
	"github.com/arpith/higate/pkg/dispatch"
	"github.com/arpith/higate/pkg/gate"
	"github.com/arpith/higate/pkg/store"
)

// registerBuiltinMethods wires the invocation and ticket surface.
func (s *Server) registerBuiltinMethods() {
	_ = s.router.RegisterMethod("tools.list", s.handleToolsList)
	_ = s.router.RegisterMethod("tools.invoke", s.handleToolsInvoke)
	_ = s.router.RegisterMethod("tickets.list", s.handleTicketsList)
	_ = s.router.RegisterMethod("tickets.decide", s.handleTicketsDecide)
	_ = s.router.RegisterMethod("status", s.handleStatus)
}

// handleToolsList returns the discovery catalog.
func (s *Server) handleToolsList(ctx context.Context, client *Client, params map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{
		"tools": s.registry.List(),
	}, nil
}

// handleToolsInvoke dispatches one invocation. The call is synchronous
// from the caller's view; sensitive tools suspend here until their ticket
// is decided or expires.
func (s *Server) handleToolsInvoke(ctx context.Context, client *Client, params map[string]interface{}) (interface{}, error) {
	toolName := paramString(params, "tool")
	if toolName == "" {
		return nil, &RPCError{Code: InvalidParams, Message: "tool is required"}
	}

	requestID := paramString(params, "request_id")
	if requestID == "" {
		requestID = uuid.New().String()
	}

	sessionID := paramString(params, "session_id")
	if sessionID == "" && client != nil {
		sessionID = "client:" + client.ID
	}
	if client != nil {
		client.TrackSession(sessionID)
	}

	arguments, _ := params["arguments"].(map[string]interface{})

	ctx = tracing.NewRequestContext(ctx, requestID, sessionID)
	logger := tracing.LoggerFromContext(ctx, s.logger)
	logger.Info().
		Str("tool", toolName).
		Msg("Gateway dispatching invocation")

	result, err := s.dispatcher.Dispatch(ctx, dispatch.Request{
		RequestID: requestID,
		SessionID: sessionID,
		ToolName:  toolName,
		Arguments: arguments,
	})
	if err != nil {
		return nil, &RPCError{Code: InvalidParams, Message: err.Error()}
	}

	s.broadcaster.Broadcast("invocation.finished", map[string]interface{}{
		"request_id": result.RequestID,
		"tool":       result.ToolName,
		"status":     result.Status,
		"ticket_id":  result.TicketID,
	})

	return result, nil
}

// handleTicketsList returns pending tickets, oldest first.
func (s *Server) handleTicketsList(ctx context.Context, client *Client, params map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{
		"tickets": s.store.PendingTickets(),
	}, nil
}

// handleTicketsDecide applies a human verdict to a pending ticket.
func (s *Server) handleTicketsDecide(ctx context.Context, client *Client, params map[string]interface{}) (interface{}, error) {
	ticketID := paramString(params, "ticket_id")
	if ticketID == "" {
		return nil, &RPCError{Code: InvalidParams, Message: "ticket_id is required"}
	}

	decision, err := gate.ParseDecision(paramString(params, "action"))
	if err != nil {
		return nil, &RPCError{Code: InvalidParams, Message: err.Error()}
	}

	actor := paramString(params, "decided_by")
	if actor == "" {
		actor = "gateway"
		if client != nil {
			actor = "gateway:" + client.ID
		}
	}

	ticket, err := s.gate.Decide(ctx, ticketID, decision, actor)
	if err != nil {
		switch {
		case errors.Is(err, gate.ErrUnknownTicket):
			return nil, &RPCError{Code: TicketNotFound, Message: err.Error()}
		case errors.Is(err, gate.ErrTicketAlreadyDecided):
			return nil, &RPCError{
				Code:    TicketDecided,
				Message: err.Error(),
				Data:    map[string]interface{}{"status": ticket.Status},
			}
		default:
			return nil, err
		}
	}

	return ticket, nil
}

// handleStatus reports gateway health for operators.
func (s *Server) handleStatus(ctx context.Context, client *Client, params map[string]interface{}) (interface{}, error) {
	requests, tickets := s.store.Counts()
	return map[string]interface{}{
		"clients":         s.clients.Count(),
		"tools":           s.registry.Count(),
		"pending_tickets": len(s.store.PendingTickets()),
		"stored_requests": requests,
		"stored_tickets":  tickets,
		"uptime_seconds":  int(time.Since(s.startedAt).Seconds()),
	}, nil
}

// TicketCreated implements gate.Forwarder by broadcasting the new ticket.
func (s *Server) TicketCreated(ticket store.Ticket) {
	s.broadcaster.Broadcast("ticket.created", ticket)
}

// TicketDecided implements gate.Forwarder by broadcasting the verdict.
func (s *Server) TicketDecided(ticket store.Ticket) {
	s.broadcaster.Broadcast("ticket.decided", ticket)
}

// paramString reads an optional string parameter.
func paramString(params map[string]interface{}, key string) string {
	if params == nil {
		return ""
	}
	v, _ := params[key].(string)
	return v
}

var _ gate.Forwarder = (*Server)(nil)
