package aoai

import (
	"context"
	"fmt"
	"time"
)

// RunState is the invoker's view of a run's lifecycle.
type RunState int

const (
	Idle RunState = iota
	Dispatched
	Polling
	Completed
	Failed
	Cancelled
	Expired
	TimedOut
)

func (s RunState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dispatched:
		return "dispatched"
	case Polling:
		return "polling"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	case Expired:
		return "expired"
	case TimedOut:
		return "timed_out"
	}
	return fmt.Sprintf("RunState(%d)", int(s))
}

// Terminal reports whether no further polling happens from s.
func (s RunState) Terminal() bool {
	return s >= Completed
}

// Transition applies a provider run status to s. Terminal states are sticky. queued,
// in_progress and cancelling keep polling; any other status ends the run.
func Transition(s RunState, status string) RunState {
	if s.Terminal() {
		return s
	}
	switch status {
	case "queued", "in_progress", "cancelling":
		return Polling
	case "completed":
		return Completed
	case "cancelled":
		return Cancelled
	case "expired":
		return Expired
	default:
		// failed, incomplete, requires_action (no tools are registered) and anything unknown.
		return Failed
	}
}

// Run is the subset of the provider's run object the invoker reads.
type Run struct {
	ID        string `json:"id"`
	ThreadID  string `json:"thread_id"`
	Status    string `json:"status"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
}

// TimeoutError is returned when a run does not reach a terminal state within the ceiling.
type TimeoutError struct {
	RunID   string
	Status  string
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("run %s still %s after %s", e.RunID, e.Status, e.Elapsed.Round(time.Millisecond))
}

// RunError is returned when a run ends failed, cancelled or expired.
type RunError struct {
	RunID   string
	Status  string
	Code    string
	Message string
}

func (e *RunError) Error() string {
	if e.Code != "" || e.Message != "" {
		return fmt.Sprintf("run %s %s: %s %s", e.RunID, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("run %s ended with status %s", e.RunID, e.Status)
}

// Poller drives Transition on a fixed interval under a wall-clock ceiling.
type Poller struct {
	Interval time.Duration
	Timeout  time.Duration

	// Injectable for tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

func (p *Poller) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Poller) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Wait polls fetch until the run reaches a terminal state or the timeout elapses. It returns
// the last observed run, its state and the number of polls issued.
func (p *Poller) Wait(ctx context.Context, initial Run, fetch func(ctx context.Context) (Run, error)) (Run, RunState, int, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = time.Second
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	start := p.now()
	run := initial
	state := Transition(Dispatched, run.Status)
	polls := 0
	for !state.Terminal() {
		if elapsed := p.now().Sub(start); elapsed >= timeout {
			return run, TimedOut, polls, &TimeoutError{RunID: run.ID, Status: run.Status, Elapsed: elapsed}
		}
		if err := p.sleep(ctx, interval); err != nil {
			return run, state, polls, err
		}
		next, err := fetch(ctx)
		polls++
		if err != nil {
			return run, state, polls, err
		}
		run = next
		state = Transition(state, run.Status)
	}

	if state != Completed {
		re := &RunError{RunID: run.ID, Status: run.Status}
		if run.LastError != nil {
			re.Code, re.Message = run.LastError.Code, run.LastError.Message
		}
		return run, state, polls, re
	}
	return run, state, polls, nil
}
