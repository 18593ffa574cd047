package gate

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/arpith/higate/pkg/store"
)

// CLIPrompt is a Forwarder that asks the operator for a verdict on the
// terminal. Prompts are serialized so concurrent tickets do not interleave.
type CLIPrompt struct {
	gate    *Gate
	scanner *bufio.Scanner
	writer  io.Writer
	mu      sync.Mutex
}

// NewCLIPrompt creates a terminal prompt bound to a gate. One scanner
// lives for the prompt's lifetime; a per-answer scanner could read
// ahead and swallow input meant for the next ticket.
func NewCLIPrompt(g *Gate, reader io.Reader, writer io.Writer) *CLIPrompt {
	return &CLIPrompt{
		gate:    g,
		scanner: bufio.NewScanner(reader),
		writer:  writer,
	}
}

// TicketCreated displays the ticket and reads a y/N answer. Anything but
// an explicit yes rejects. If the ticket expired while the operator was
// typing, the answer is dropped.
func (c *CLIPrompt) TicketCreated(ticket store.Ticket) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.displayTicket(ticket)

	decision := DecisionReject
	if c.readAnswer() {
		decision = DecisionApprove
	}

	_, err := c.gate.Decide(context.Background(), ticket.ID, decision, "cli")
	if err != nil {
		if errors.Is(err, ErrTicketAlreadyDecided) {
			fmt.Fprintf(c.writer, "  Ticket %s was already decided.\n", ticket.ID)
			return
		}
		log.Error().Err(err).Str("ticket_id", ticket.ID).Msg("CLI decision failed")
	}
}

// TicketDecided implements Forwarder. The prompt itself reports outcomes
// inline, so decisions made elsewhere are just logged.
func (c *CLIPrompt) TicketDecided(ticket store.Ticket) {
	if ticket.DecidedBy == "cli" {
		return
	}
	log.Debug().
		Str("ticket_id", ticket.ID).
		Str("status", string(ticket.Status)).
		Msg("Ticket decided outside CLI prompt")
}

// displayTicket displays the pending ticket to the operator
func (c *CLIPrompt) displayTicket(ticket store.Ticket) {
	fmt.Fprintln(c.writer, "")
	fmt.Fprintln(c.writer, "╔════════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(c.writer, "║              🔐 CONFIRMATION REQUIRED                          ║")
	fmt.Fprintln(c.writer, "╚════════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(c.writer, "")
	fmt.Fprintf(c.writer, "  Ticket:     %s\n", ticket.ID)
	fmt.Fprintf(c.writer, "  Tool:       %s\n", ticket.ToolName)

	if ticket.SessionID != "" {
		fmt.Fprintf(c.writer, "  Session:    %s\n", ticket.SessionID)
	}

	if len(ticket.Arguments) > 0 {
		args, err := json.MarshalIndent(ticket.Arguments, "  ", "  ")
		if err == nil {
			fmt.Fprintf(c.writer, "  Arguments:  %s\n", string(args))
		}
	}

	fmt.Fprintf(c.writer, "  Expires:    %s\n", ticket.Deadline.Format(time.RFC3339))
	fmt.Fprintln(c.writer, "")
	fmt.Fprint(c.writer, "  Approve this invocation? [y/N]: ")
}

// readAnswer reads and parses the operator's answer
func (c *CLIPrompt) readAnswer() bool {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			log.Error().Err(err).Msg("Failed to read CLI answer")
		}
		return false
	}

	input := strings.TrimSpace(strings.ToLower(c.scanner.Text()))
	return input == "y" || input == "yes"
}
