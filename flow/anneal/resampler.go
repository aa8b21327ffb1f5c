package anneal

import (
	"context"
	"math"
	"math/rand"
	"sync"

	"github.com/quantalab/hybridflow/flow"
	"github.com/quantalab/hybridflow/flow/model"
)

// EnergyWeightedResampler redraws the state's population with
// replacement, weighting each sample proportionally to
// exp(-delta_beta * energy). Low-energy samples multiply and
// high-energy samples die out; the population size is preserved and the
// applied increment is recorded in the result's info under
// FieldDeltaBeta.
//
// delta_beta resolves by the standard priority: runtime override, the
// state's FieldDeltaBeta field, then the constructor default.
type EnergyWeightedResampler struct {
	deltaBeta *float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewEnergyWeightedResampler creates the resampler. deltaBeta may be
// nil to require the increment from the state or overrides. A zero seed
// draws from the clock.
func NewEnergyWeightedResampler(deltaBeta *float64, seed int64) *EnergyWeightedResampler {
	return &EnergyWeightedResampler{
		deltaBeta: deltaBeta,
		rng:       newSeededRNG(seed),
	}
}

// Name labels the runnable in events and metrics.
func (r *EnergyWeightedResampler) Name() string { return "energy-weighted-resampler" }

// Run implements flow.Runnable.
func (r *EnergyWeightedResampler) Run(ctx context.Context, state flow.State, overrides flow.Params) *flow.Future {
	return flow.RunnableFunc(func(_ context.Context, state flow.State, overrides flow.Params) (flow.State, error) {
		deltaBeta, err := flow.ResolveFloat(FieldDeltaBeta, overrides, state, r.deltaBeta)
		if err != nil {
			return flow.State{}, err
		}

		population := state.Samples()
		n := population.Len()
		if n == 0 {
			return flow.State{}, &flow.InvalidProblemError{Reason: "cannot resample an empty population"}
		}

		// Shift energies by the minimum before exponentiating; the
		// weights are defined up to a common factor and the shift keeps
		// exp() in range for large delta_beta * energy products.
		minEnergy := population.Get(0).Energy
		for i := 1; i < n; i++ {
			if e := population.Get(i).Energy; e < minEnergy {
				minEnergy = e
			}
		}

		cumulative := make([]float64, n)
		total := 0.0
		for i := 0; i < n; i++ {
			s := population.Get(i)
			w := math.Exp(-deltaBeta*(s.Energy-minEnergy)) * float64(s.Occurrences)
			total += w
			cumulative[i] = total
		}
		if total <= 0 || math.IsNaN(total) {
			return flow.State{}, &flow.DomainError{Reason: "resampling weights sum to zero"}
		}

		r.mu.Lock()
		defer r.mu.Unlock()

		resampled := make([]model.Sample, 0, n)
		for i := 0; i < n; i++ {
			u := r.rng.Float64() * total
			j := searchCumulative(cumulative, u)
			parent := population.Get(j)
			resampled = append(resampled, model.Sample{
				Assignment:  parent.CloneAssignment(),
				Energy:      parent.Energy,
				Occurrences: 1,
			})
		}

		result := model.NewSampleSet(resampled, nil).WithInfo(FieldDeltaBeta, deltaBeta)
		return state.WithSamples(result), nil
	}).Run(ctx, state, overrides)
}

// searchCumulative returns the first index whose cumulative weight
// exceeds u.
func searchCumulative(cumulative []float64, u float64) int {
	lo, hi := 0, len(cumulative)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if cumulative[mid] > u {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}
