package runner

import (
	"context"
	"sync"
	"time"
)

// Fake is a hand-written test double for Runner. It records every Run call
// and returns responses from handler functions keyed by the binary name,
// falling back to a default handler.
type Fake struct {
	mu sync.Mutex

	// Handlers maps a binary name to a function producing its result.
	// Looked up before DefaultHandler.
	Handlers map[string]func(args []string) (Result, error)

	// DefaultHandler is used when no entry in Handlers matches.
	DefaultHandler func(name string, args []string) (Result, error)

	// Calls records every Run invocation in order.
	Calls []Call

	// SleepImmediate makes Sleep return nil after a 1ms floor instead of
	// the requested duration, unless the context is already cancelled.
	SleepImmediate bool
}

// Call records a single Run invocation for test assertions.
type Call struct {
	Name    string
	Args    []string
	Timeout time.Duration
}

// NewFake creates an empty Fake with no registered handlers.
func NewFake() *Fake {
	return &Fake{
		Handlers:       make(map[string]func(args []string) (Result, error)),
		SleepImmediate: true,
	}
}

func (f *Fake) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (Result, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, Call{Name: name, Args: args, Timeout: timeout})
	handler := f.Handlers[name]
	defaultHandler := f.DefaultHandler
	f.mu.Unlock()

	if handler != nil {
		return handler(args)
	}
	if defaultHandler != nil {
		return defaultHandler(name, args)
	}
	return Result{}, nil
}

func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.SleepImmediate {
		// A small real floor keeps callers that loop on Sleep (e.g. a
		// poll loop with no work to do) from spinning at 100% CPU,
		// while staying far under any test's "this was immediate"
		// tolerance.
		time.Sleep(time.Millisecond)
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CallCount returns the number of Run invocations for the given binary name.
func (f *Fake) CallCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c.Name == name {
			n++
		}
	}
	return n
}

var _ Runner = (*Fake)(nil)
