package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/arpith/higate/pkg/higress"
	"github.com/arpith/higate/pkg/registry"
)

// execute runs a tool handler under the execution timeout. The handler
// runs in its own goroutine so a stuck handler cannot block dispatch.
func (d *Dispatcher) execute(ctx context.Context, def *registry.ToolDefinition, args map[string]interface{}) (interface{}, error) {
	execCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	type outcome struct {
		payload interface{}
		err     error
	}
	resultChan := make(chan outcome, 1)

	go func() {
		payload, err := def.Handler(execCtx, args)
		resultChan <- outcome{payload: payload, err: err}
	}()

	select {
	case o := <-resultChan:
		return o.payload, o.err

	case <-execCtx.Done():
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("tool %s: %w", def.Name, context.DeadlineExceeded)
		}
		return nil, fmt.Errorf("tool %s cancelled: %w", def.Name, execCtx.Err())
	}
}

// downstreamKind extracts the console error kind from a handler error, or
// returns the empty string when the error did not come from the console.
func downstreamKind(err error) string {
	var apiErr *higress.APIError
	if errors.As(err, &apiErr) {
		return string(apiErr.Kind)
	}
	return ""
}
