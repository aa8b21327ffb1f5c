package flow

import (
	"context"
	"errors"
	"time"

	"github.com/quantalab/hybridflow/flow/emit"
)

// Loop repeats its body runnable, feeding each iteration's output State
// into the next. Iterations never overlap: the loop awaits each body
// Future before starting the next.
//
// The loop terminates when, in priority order:
//   - the body signals ErrScheduleExhausted (normal termination, the
//     state from the last completed iteration is the output),
//   - the stop condition, checked after each completed iteration,
//     returns true,
//   - the iteration cap (WithMaxIter) is reached.
//
// Cancellation between iterations yields the best-effort current state
// rather than an error, so enclosing compositions can still combine a
// result. Any other body error fails the loop immediately.
//
// When configured with a store, the loop persists a state snapshot after
// every completed iteration and a final checkpoint named after the run.
type Loop struct {
	body Runnable
	cfg  composeConfig
}

// NewLoop builds a loop around body.
func NewLoop(body Runnable, opts ...Option) *Loop {
	return &Loop{
		body: body,
		cfg:  newComposeConfig("loop", opts),
	}
}

// Name implements the optional naming hook used in events and metrics.
func (l *Loop) Name() string { return l.cfg.name }

// RunID returns the identifier under which this loop persists and emits.
func (l *Loop) RunID() string { return l.cfg.runID }

// Run implements Runnable.
func (l *Loop) Run(ctx context.Context, state State, overrides Params) *Future {
	return runAsync(func() (State, error) {
		l.cfg.metrics.RunStarted()
		start := time.Now()

		cur := state
		iteration := 0
		for {
			if ctx.Err() != nil {
				l.cfg.emit(emit.Event{Runnable: l.cfg.name, Iteration: iteration, Msg: "loop_cancelled"})
				l.cfg.metrics.RunFinished(l.cfg.name, start, "success")
				return cur, nil
			}

			iteration++
			next, err := l.body.Run(ctx, cur, overrides).Result()
			if errors.Is(err, ErrScheduleExhausted) {
				l.cfg.emit(emit.Event{Runnable: l.cfg.name, Iteration: iteration, Msg: "loop_terminated"})
				l.cfg.metrics.RunFinished(l.cfg.name, start, "success")
				return l.finish(ctx, cur, iteration-1), nil
			}
			if err != nil {
				l.cfg.metrics.RunFinished(l.cfg.name, start, "error")
				return State{}, err
			}

			l.cfg.metrics.LoopIteration(l.cfg.name)
			l.emitIteration(next, iteration)
			l.persist(ctx, next, iteration)

			if l.cfg.stop != nil && l.cfg.stop(cur, next, iteration) {
				l.cfg.emit(emit.Event{Runnable: l.cfg.name, Iteration: iteration, Msg: "loop_converged"})
				l.cfg.metrics.RunFinished(l.cfg.name, start, "success")
				return l.finish(ctx, next, iteration), nil
			}

			cur = next
			if l.cfg.maxIter > 0 && iteration >= l.cfg.maxIter {
				l.cfg.emit(emit.Event{Runnable: l.cfg.name, Iteration: iteration, Msg: "loop_max_iter"})
				l.cfg.metrics.RunFinished(l.cfg.name, start, "success")
				return l.finish(ctx, cur, iteration), nil
			}
		}
	})
}

func (l *Loop) emitIteration(next State, iteration int) {
	meta := map[string]any{}
	if best, ok := next.Samples().First(); ok {
		meta["best_energy"] = best.Energy
	}
	l.cfg.emit(emit.Event{
		Runnable:  l.cfg.name,
		Iteration: iteration,
		Msg:       "iteration_completed",
		Meta:      meta,
	})
}

func (l *Loop) persist(ctx context.Context, next State, iteration int) {
	if l.cfg.store == nil {
		return
	}
	if err := l.cfg.store.SaveStep(ctx, l.cfg.runID, iteration, l.cfg.name, next); err != nil {
		// Persistence is advisory; the workflow result is the in-memory
		// state. Surface the failure through events only.
		l.cfg.emit(emit.Event{
			Runnable:  l.cfg.name,
			Iteration: iteration,
			Msg:       "persist_failed",
			Meta:      map[string]any{"error": err.Error()},
		})
	}
}

func (l *Loop) finish(ctx context.Context, final State, iteration int) State {
	if l.cfg.store != nil {
		if err := l.cfg.store.SaveCheckpoint(ctx, l.cfg.runID, final, iteration); err != nil {
			l.cfg.emit(emit.Event{
				Runnable:  l.cfg.name,
				Iteration: iteration,
				Msg:       "persist_failed",
				Meta:      map[string]any{"error": err.Error()},
			})
		}
	}
	return final
}
