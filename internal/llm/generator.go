// Package llm wraps the external generation backend behind a small
// Generator interface so sessions can be driven by the real gateway, the
// offline mock, or a test stub interchangeably.
package llm

import (
	"context"
	"errors"

	"collection-agent-go/internal/types"
)

// Request carries one generation call: the system prompt, the ordered
// history so far, and the newest user text (empty for the opening
// greeting).
type Request struct {
	SystemPrompt string
	History      []types.Turn
	UserText     string
}

// Generator produces the agent's next utterance.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GenerationError reports a failed or empty backend generation. Transient
// errors (network, timeout, rate limit, 5xx) are worth exactly one retry;
// anything else is surfaced as-is.
type GenerationError struct {
	Transient bool
	Message   string
}

func (e *GenerationError) Error() string { return e.Message }

// IsTransient reports whether err is a transient GenerationError.
func IsTransient(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge) && ge.Transient
}
