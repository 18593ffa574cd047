package gate

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arpith/higate/pkg/store"
)

func TestCLIPrompt_Approves(t *testing.T) {
	g, s := newTestGate(time.Minute)

	var out bytes.Buffer
	prompt := NewCLIPrompt(g, strings.NewReader("y\n"), &out)

	ticket, err := g.CreateTicket(context.Background(), "req-1", "sess-1", "add_route",
		map[string]interface{}{"name": "r1"})
	require.NoError(t, err)

	prompt.TicketCreated(ticket)

	stored, _ := s.GetTicket(ticket.ID)
	assert.Equal(t, store.TicketApproved, stored.Status)
	assert.Equal(t, "cli", stored.DecidedBy)
	assert.Contains(t, out.String(), "add_route")
	assert.Contains(t, out.String(), ticket.ID)
}

func TestCLIPrompt_DefaultsToReject(t *testing.T) {
	g, s := newTestGate(time.Minute)

	prompt := NewCLIPrompt(g, strings.NewReader("\n"), &bytes.Buffer{})

	ticket, err := g.CreateTicket(context.Background(), "req-1", "sess-1", "update_route", nil)
	require.NoError(t, err)

	prompt.TicketCreated(ticket)

	stored, _ := s.GetTicket(ticket.ID)
	assert.Equal(t, store.TicketRejected, stored.Status)
}

func TestCLIPrompt_EOFRejects(t *testing.T) {
	g, s := newTestGate(time.Minute)

	prompt := NewCLIPrompt(g, strings.NewReader(""), &bytes.Buffer{})

	ticket, err := g.CreateTicket(context.Background(), "req-1", "sess-1", "add_route", nil)
	require.NoError(t, err)

	prompt.TicketCreated(ticket)

	stored, _ := s.GetTicket(ticket.ID)
	assert.Equal(t, store.TicketRejected, stored.Status)
}

func TestCLIPrompt_ConsumesOneAnswerPerTicket(t *testing.T) {
	g, s := newTestGate(time.Minute)

	// Both answers are buffered up front; each ticket must consume
	// exactly one line.
	prompt := NewCLIPrompt(g, strings.NewReader("n\ny\n"), &bytes.Buffer{})

	first, err := g.CreateTicket(context.Background(), "req-1", "sess-1", "add_route", nil)
	require.NoError(t, err)
	prompt.TicketCreated(first)

	second, err := g.CreateTicket(context.Background(), "req-2", "sess-1", "update_route", nil)
	require.NoError(t, err)
	prompt.TicketCreated(second)

	stored, _ := s.GetTicket(first.ID)
	assert.Equal(t, store.TicketRejected, stored.Status)

	stored, _ = s.GetTicket(second.ID)
	assert.Equal(t, store.TicketApproved, stored.Status)
}

func TestCLIPrompt_LateAnswerDropped(t *testing.T) {
	g, _ := newTestGate(time.Minute)

	var out bytes.Buffer
	prompt := NewCLIPrompt(g, strings.NewReader("y\n"), &out)

	ticket, err := g.CreateTicket(context.Background(), "req-1", "sess-1", "add_route", nil)
	require.NoError(t, err)

	// The operator decides elsewhere before the prompt is answered.
	_, err = g.Decide(context.Background(), ticket.ID, DecisionReject, "gateway")
	require.NoError(t, err)

	prompt.TicketCreated(ticket)
	assert.Contains(t, out.String(), "already decided")
}
