package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quantalab/hybridflow/flow/emit"
)

// Race composes runnables concurrently. Every branch runs against its
// own value-like copy of the input State; copies share the read-only
// Problem but never mutable population data, so no locking is needed.
//
// By default all branches run to completion ("race" names the
// concurrency pattern, not early termination) and the outputs are merged
// by the configured CombinePolicy: BestOf keeps the output whose best
// sample has lowest energy, Concat concatenates all populations. With
// WithFirstCompleted the race instead resolves on the first successful
// branch and cancels the rest.
//
// Branch failures are isolated: survivors still combine, and the Race
// fails only when every branch failed.
type Race struct {
	branches []Runnable
	cfg      composeConfig
}

// NewRace builds a concurrent ensemble over the given branches.
func NewRace(branches ...Runnable) *Race {
	return &Race{
		branches: branches,
		cfg:      newComposeConfig("race", nil),
	}
}

// Configure applies options and returns the receiver for chaining.
func (r *Race) Configure(opts ...Option) *Race {
	for _, opt := range opts {
		opt(&r.cfg)
	}
	return r
}

// Name implements the optional naming hook used in events and metrics.
func (r *Race) Name() string { return r.cfg.name }

type branchOutcome struct {
	index int
	state State
	err   error
}

// Run implements Runnable.
func (r *Race) Run(ctx context.Context, state State, overrides Params) *Future {
	if len(r.branches) == 0 {
		return Failed(&DomainError{Reason: "race has no branches"})
	}

	return runAsync(func() (State, error) {
		r.cfg.metrics.RunStarted()
		start := time.Now()

		subctx, cancel := context.WithCancel(ctx)
		defer cancel()

		outcomes := make(chan branchOutcome, len(r.branches))
		for i, branch := range r.branches {
			go func(i int, branch Runnable) {
				st, err := branch.Run(subctx, state.clone(), overrides).Result()
				outcomes <- branchOutcome{index: i, state: st, err: err}
			}(i, branch)
		}

		var (
			survivors []branchOutcome
			failures  []error
		)
		for range r.branches {
			out := <-outcomes
			if out.err != nil {
				r.cfg.metrics.BranchFailed(runnableName(r.branches[out.index]))
				r.cfg.emit(emit.Event{
					Runnable: runnableName(r.branches[out.index]),
					Msg:      "branch_failed",
					Meta:     map[string]any{"error": out.err.Error()},
				})
				failures = append(failures, out.err)
				continue
			}

			survivors = append(survivors, out)
			if r.cfg.firstCompleted {
				// First success wins; losers observe the cancellation and
				// their results are discarded.
				cancel()
				break
			}
		}

		if len(survivors) == 0 {
			r.cfg.metrics.RunFinished(r.cfg.name, start, "error")
			return State{}, fmt.Errorf("all %d race branches failed: %w", len(r.branches), errors.Join(failures...))
		}

		combined := r.combine(survivors)
		r.cfg.metrics.RunFinished(r.cfg.name, start, "success")
		return combined, nil
	})
}

// combine merges surviving branch outputs per the configured policy.
// Both policies are order-independent, as required by the concurrency
// model: lowest-energy selection is commutative, and Concat normalizes
// ordering by branch index.
func (r *Race) combine(survivors []branchOutcome) State {
	if r.cfg.combine == Concat {
		// Deterministic order regardless of completion order.
		ordered := make([]branchOutcome, 0, len(survivors))
		for idx := range r.branches {
			for _, s := range survivors {
				if s.index == idx {
					ordered = append(ordered, s)
				}
			}
		}

		base := ordered[0]
		merged := base.state.Samples()
		for _, s := range ordered[1:] {
			merged = merged.Concat(s.state.Samples())
		}
		r.cfg.emit(emit.Event{Runnable: r.cfg.name, Msg: "race_combined"})
		return base.state.WithSamples(merged)
	}

	best := survivors[0]
	bestSample, hasBest := best.state.Samples().First()
	for _, s := range survivors[1:] {
		candidate, ok := s.state.Samples().First()
		if !ok {
			continue
		}
		if !hasBest || candidate.Energy < bestSample.Energy {
			best = s
			bestSample = candidate
			hasBest = true
		}
	}

	winner := runnableName(r.branches[best.index])
	r.cfg.metrics.RaceWon(winner)
	r.cfg.emit(emit.Event{
		Runnable: winner,
		Msg:      "race_won",
		Meta:     map[string]any{"best_energy": bestSample.Energy},
	})
	return best.state
}
