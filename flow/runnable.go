package flow

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Params carries per-invocation runtime overrides of a runnable's
// constructor-time parameters. A nil Params is valid.
type Params map[string]any

// Runnable is the unit-of-work abstraction: it borrows a State and
// returns a Future that resolves to a new, independent State.
//
// A Runnable must not mutate its input State; transformed data is
// expressed through State.Updated. Runnables are stateless with respect
// to workflow data; parameters are fixed at construction, except for
// explicitly designed internal cursors (schedule stepping).
//
// The effective value of a parameter is resolved by priority: runtime
// override in Params, then the input State's auxiliary field of the same
// name, then the constructor default. See ResolveFloat and friends.
type Runnable interface {
	Run(ctx context.Context, state State, overrides Params) *Future
}

// RunnableFunc adapts a plain function to the Runnable interface. The
// function runs on its own goroutine; the returned Future resolves with
// its outcome.
type RunnableFunc func(ctx context.Context, state State, overrides Params) (State, error)

// Run implements Runnable.
func (f RunnableFunc) Run(ctx context.Context, state State, overrides Params) *Future {
	return runAsync(func() (State, error) {
		return f(ctx, state, overrides)
	})
}

// runAsync executes fn on a new goroutine and returns its pending result.
func runAsync(fn func() (State, error)) *Future {
	fut := newFuture()
	go func() {
		fut.resolve(fn())
	}()
	return fut
}

// Identity is a Runnable that returns its input state unchanged.
func Identity() Runnable {
	return RunnableFunc(func(_ context.Context, state State, _ Params) (State, error) {
		return state, nil
	})
}

// runnableName derives an event/metric label for a runnable: its Name()
// if it exposes one, else its Go type.
func runnableName(r Runnable) string {
	if n, ok := r.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", r)
}

var (
	ridMu      sync.Mutex
	ridEntropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// NewRunID returns a fresh ULID run identifier, used to key emitted
// events and persisted run history.
func NewRunID() string {
	ridMu.Lock()
	defer ridMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), ridEntropy).String()
}
