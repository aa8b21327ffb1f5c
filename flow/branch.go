package flow

import (
	"context"
	"errors"
	"time"

	"github.com/quantalab/hybridflow/flow/emit"
)

// Branch composes runnables sequentially: the output State of each stage
// becomes the input of the next. The Branch's Future resolves when the
// last stage resolves.
//
// Failure is fail-fast: the first stage error aborts the branch and is
// propagated unchanged; later stages are not invoked. Runtime overrides
// are passed through to every stage.
type Branch struct {
	stages []Runnable
	cfg    composeConfig
}

// NewBranch builds a sequential pipeline from the given stages.
func NewBranch(stages ...Runnable) *Branch {
	return &Branch{
		stages: stages,
		cfg:    newComposeConfig("branch", nil),
	}
}

// Configure applies options and returns the receiver for chaining.
func (b *Branch) Configure(opts ...Option) *Branch {
	for _, opt := range opts {
		opt(&b.cfg)
	}
	return b
}

// Name implements the optional naming hook used in events and metrics.
func (b *Branch) Name() string { return b.cfg.name }

// Run implements Runnable.
func (b *Branch) Run(ctx context.Context, state State, overrides Params) *Future {
	return runAsync(func() (State, error) {
		b.cfg.metrics.RunStarted()
		start := time.Now()

		cur := state
		for _, stage := range b.stages {
			if err := ctx.Err(); err != nil {
				// Cancellation between stages: surface the partial state
				// so an enclosing combinator can still use it.
				b.cfg.metrics.RunFinished(b.cfg.name, start, "success")
				b.cfg.emit(emit.Event{Runnable: b.cfg.name, Msg: "branch_cancelled"})
				return cur, nil
			}

			next, err := stage.Run(ctx, cur, overrides).Result()
			if errors.Is(err, ErrScheduleExhausted) {
				// Terminal signal, not a failure: propagate unchanged so
				// an enclosing Loop can stop cleanly.
				b.cfg.metrics.RunFinished(b.cfg.name, start, "success")
				b.cfg.emit(emit.Event{Runnable: runnableName(stage), Msg: "schedule_exhausted"})
				return State{}, err
			}
			if err != nil {
				b.cfg.metrics.RunFinished(b.cfg.name, start, "error")
				b.cfg.emit(emit.Event{
					Runnable: runnableName(stage),
					Msg:      "stage_failed",
					Meta:     map[string]any{"error": err.Error()},
				})
				return State{}, err
			}

			b.cfg.emit(emit.Event{Runnable: runnableName(stage), Msg: "stage_completed"})
			cur = next
		}

		b.cfg.metrics.RunFinished(b.cfg.name, start, "success")
		return cur, nil
	})
}
