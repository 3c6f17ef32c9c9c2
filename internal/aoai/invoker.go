package aoai

import (
	"context"

	"github.com/magicman/marv/internal/imaging"
)

// Mode is the call shape used for one invocation.
type Mode string

const (
	ModeSingleShot Mode = "single_shot"
	ModeThreadRun  Mode = "thread_run"
)

// Request is what the pipeline hands to an invoker.
type Request struct {
	Prompt string
	Images []imaging.Reference

	// Single-shot tuning; zero values fall back to the invoker's defaults.
	MaxTokens   int
	Temperature *float64
	JSONMode    bool
}

// Invocation records one external call cycle for logging.
type Invocation struct {
	Mode      Mode
	ThreadID  string
	RunID     string
	Status    string
	State     RunState
	LastError string
	Polls     int
}

// Result is the raw model text plus the invocation record.
type Result struct {
	Text       string
	Invocation Invocation
}

// Invoker runs one model call cycle. Implementations do not retry.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (Result, error)
}
