package registry

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateTool is returned when registering a name that already exists.
	ErrDuplicateTool = errors.New("tool already registered")
	// ErrUnknownTool is returned when looking up a name that was never registered.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrRegistryClosed is returned when registering after Seal.
	ErrRegistryClosed = errors.New("registry is sealed")
)

// ValidationError reports arguments that do not satisfy a tool's parameter
// schema.
type ValidationError struct {
	Tool     string
	Problems []string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %s: %s", e.Tool, strings.Join(e.Problems, "; "))
}
