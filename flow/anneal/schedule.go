// Package anneal builds population-based annealing workflows on top of
// the flow combinators: inverse-temperature schedules, energy-weighted
// resampling, population annealing, parallel tempering, and the
// Kerberos racing portfolio.
package anneal

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/quantalab/hybridflow/flow"
	"github.com/quantalab/hybridflow/flow/sampler"
)

// Interpolation selects how a beta schedule is spaced between its
// endpoints.
type Interpolation string

const (
	// Linear spaces the schedule evenly.
	Linear Interpolation = "linear"

	// Geometric spaces the schedule by a constant ratio. Requires a
	// strictly positive low endpoint.
	Geometric Interpolation = "geometric"
)

// State field names produced and consumed by the schedule runnables.
const (
	// FieldBetaSchedule holds the []float64 schedule.
	FieldBetaSchedule = "beta_schedule"

	// FieldBeta holds the current inverse temperature.
	FieldBeta = "beta"

	// FieldDeltaBeta holds the inverse-temperature increment of the
	// most recent schedule step.
	FieldDeltaBeta = "delta_beta"
)

// BetaScheduleCalculator computes an inverse-temperature schedule for
// the state's problem and stores it under FieldBetaSchedule. When no
// explicit range is configured the endpoints are derived from the
// problem's energy scale.
type BetaScheduleCalculator struct {
	length        int
	interpolation Interpolation
	betaRange     []float64
}

// NewBetaScheduleCalculator creates the schedule runnable. betaRange may
// be nil to derive [hot, cold] from the problem; otherwise it must hold
// exactly two values.
func NewBetaScheduleCalculator(length int, interpolation Interpolation, betaRange []float64) *BetaScheduleCalculator {
	if length <= 0 {
		length = 2
	}
	if interpolation == "" {
		interpolation = Linear
	}
	return &BetaScheduleCalculator{
		length:        length,
		interpolation: interpolation,
		betaRange:     betaRange,
	}
}

// Name labels the runnable in events and metrics.
func (c *BetaScheduleCalculator) Name() string { return "beta-schedule-calculator" }

// Run implements flow.Runnable.
func (c *BetaScheduleCalculator) Run(ctx context.Context, state flow.State, overrides flow.Params) *flow.Future {
	return flow.RunnableFunc(func(_ context.Context, state flow.State, overrides flow.Params) (flow.State, error) {
		length, err := flow.ResolveInt("num_iter", overrides, state, &c.length)
		if err != nil {
			return flow.State{}, err
		}
		betaRange, err := flow.ResolveFloats("beta_range", overrides, state, c.betaRange)
		if err != nil {
			var missing *flow.MissingParameterError
			if !errors.As(err, &missing) {
				return flow.State{}, err
			}
			hot, cold := sampler.DefaultBetaRange(state.Problem())
			betaRange = []float64{hot, cold}
		}
		if len(betaRange) != 2 {
			return flow.State{}, &flow.DomainError{
				Reason: fmt.Sprintf("beta range must have exactly two endpoints, got %d", len(betaRange)),
			}
		}

		schedule, err := BetaSchedule(length, betaRange[0], betaRange[1], c.interpolation)
		if err != nil {
			return flow.State{}, err
		}
		return state.Updated(flow.Fields{FieldBetaSchedule: schedule}), nil
	}).Run(ctx, state, overrides)
}

// BetaSchedule interpolates length inverse temperatures from low to
// high. Geometric interpolation rejects a non-positive low endpoint.
func BetaSchedule(length int, low, high float64, interpolation Interpolation) ([]float64, error) {
	if length < 2 {
		return nil, &flow.DomainError{Reason: "beta schedule needs at least two points"}
	}
	out := make([]float64, length)
	switch interpolation {
	case Linear:
		step := (high - low) / float64(length-1)
		for i := range out {
			out[i] = low + float64(i)*step
		}
	case Geometric:
		if low <= 0 {
			return nil, &flow.DomainError{Reason: "geometric beta schedule requires a positive low endpoint"}
		}
		ratio := math.Pow(high/low, 1/float64(length-1))
		b := low
		for i := range out {
			out[i] = b
			b *= ratio
		}
	default:
		return nil, &flow.DomainError{Reason: fmt.Sprintf("unknown interpolation %q", interpolation)}
	}
	// Pin the endpoints against accumulated rounding.
	out[0] = low
	out[length-1] = high
	return out, nil
}

// BetaScheduleProgressor advances the state along its beta schedule one
// step per invocation. Each step publishes the new beta under FieldBeta
// and the increment over the previous beta under FieldDeltaBeta (the
// previous beta counts as zero before the first step). A progressor
// whose schedule is spent fails with flow.ErrScheduleExhausted, the
// loop termination signal.
//
// The cursor is internal progression state, deliberately outside the
// workflow State, so a progressor instance is single-run.
type BetaScheduleProgressor struct {
	mu     sync.Mutex
	cursor int
	prev   float64
}

// NewBetaScheduleProgressor creates a progressor with its cursor at the
// start of the schedule.
func NewBetaScheduleProgressor() *BetaScheduleProgressor {
	return &BetaScheduleProgressor{}
}

// Name labels the runnable in events and metrics.
func (p *BetaScheduleProgressor) Name() string { return "beta-schedule-progressor" }

// Run implements flow.Runnable.
func (p *BetaScheduleProgressor) Run(ctx context.Context, state flow.State, overrides flow.Params) *flow.Future {
	return flow.RunnableFunc(func(_ context.Context, state flow.State, overrides flow.Params) (flow.State, error) {
		schedule, err := flow.ResolveFloats(FieldBetaSchedule, overrides, state, nil)
		if err != nil {
			return flow.State{}, err
		}

		p.mu.Lock()
		defer p.mu.Unlock()
		if p.cursor >= len(schedule) {
			return flow.State{}, flow.ErrScheduleExhausted
		}
		beta := schedule[p.cursor]
		delta := beta - p.prev
		p.cursor++
		p.prev = beta

		return state.Updated(flow.Fields{
			FieldBeta:      beta,
			FieldDeltaBeta: delta,
		}), nil
	}).Run(ctx, state, overrides)
}
