package flow

import "sync"

// Future is the pending result of a Runnable invocation. It resolves
// exactly once to a new State or an error.
//
// Futures are safe for concurrent use; any number of goroutines may
// block in Result or select on Done.
type Future struct {
	done  chan struct{}
	once  sync.Once
	state State
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// resolve settles the future. Subsequent calls are no-ops.
func (f *Future) resolve(state State, err error) {
	f.once.Do(func() {
		f.state = state
		f.err = err
		close(f.done)
	})
}

// Result blocks until the future resolves and returns its outcome.
func (f *Future) Result() (State, error) {
	<-f.done
	return f.state, f.err
}

// Done returns a channel closed when the future has resolved.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Resolved returns an already-settled future carrying state. Useful for
// runnables that can answer synchronously.
func Resolved(state State) *Future {
	f := newFuture()
	f.resolve(state, nil)
	return f
}

// Failed returns an already-settled future carrying err.
func Failed(err error) *Future {
	f := newFuture()
	f.resolve(State{}, err)
	return f
}
