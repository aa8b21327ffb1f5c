package sampler

import (
	"context"
	"math"
	"math/rand"
	"sync"

	"github.com/quantalab/hybridflow/flow"
	"github.com/quantalab/hybridflow/flow/model"
)

// problemSampler adapts a Sampler collaborator to the Runnable contract:
// it samples the state's full problem, seeding the collaborator with the
// state's current population, and replaces the population with the
// result. num_reads and num_sweeps resolve per the standard priority
// (runtime override, state field, constructor default).
type problemSampler struct {
	name    string
	sampler Sampler
	params  Params
}

// Name labels the adapter in events and metrics.
func (ps *problemSampler) Name() string { return ps.name }

// Run implements flow.Runnable.
func (ps *problemSampler) Run(ctx context.Context, state flow.State, overrides flow.Params) *flow.Future {
	return flow.RunnableFunc(func(ctx context.Context, state flow.State, overrides flow.Params) (flow.State, error) {
		params := ps.params

		numReads, err := flow.ResolveInt("num_reads", overrides, state, &params.NumReads)
		if err != nil {
			return flow.State{}, err
		}
		numSweeps, err := flow.ResolveInt("num_sweeps", overrides, state, &params.NumSweeps)
		if err != nil {
			return flow.State{}, err
		}
		params.NumReads = numReads
		params.NumSweeps = numSweeps
		params.InitialPopulation = state.Samples()

		result, err := ps.sampler.Sample(ctx, state.Problem(), params)
		if err != nil {
			return flow.State{}, &flow.SamplerError{Sampler: ps.name, Err: err}
		}
		return state.WithSamples(result), nil
	}).Run(ctx, state, overrides)
}

// NewSimulatedAnnealingProblemSampler wraps simulated annealing over the
// full problem as a Runnable.
func NewSimulatedAnnealingProblemSampler(params Params) flow.Runnable {
	return &problemSampler{
		name:    "simulated-annealing",
		sampler: NewSimulatedAnnealingSampler(),
		params:  params,
	}
}

// NewTabuProblemSampler wraps tabu search over the full problem as a
// Runnable.
func NewTabuProblemSampler(params Params) flow.Runnable {
	return &problemSampler{
		name:    "tabu-search",
		sampler: NewTabuSampler(),
		params:  params,
	}
}

// NewProblemSampler wraps an arbitrary collaborator as a Runnable, named
// for events and error attribution.
func NewProblemSampler(name string, s Sampler, params Params) flow.Runnable {
	return &problemSampler{name: name, sampler: s, params: params}
}

// FixedTemperatureSampler evolves every sample of the state's population
// with Metropolis sweeps at a fixed inverse temperature. It is the local
// evolution stage of population annealing.
//
// The effective beta resolves by the standard priority: runtime
// override, the state's "beta" field, then the constructor default.
// Population size is preserved.
type FixedTemperatureSampler struct {
	numSweeps int
	beta      *float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewFixedTemperatureSampler creates the local evolution runnable.
// beta may be nil to require the value from the state or overrides.
// A zero seed draws from the clock.
func NewFixedTemperatureSampler(numSweeps int, beta *float64, seed int64) *FixedTemperatureSampler {
	if numSweeps <= 0 {
		numSweeps = 100
	}
	return &FixedTemperatureSampler{
		numSweeps: numSweeps,
		beta:      beta,
		rng:       newRNG(seed),
	}
}

// Name labels the runnable in events and metrics.
func (f *FixedTemperatureSampler) Name() string { return "fixed-temperature" }

// Run implements flow.Runnable.
func (f *FixedTemperatureSampler) Run(ctx context.Context, state flow.State, overrides flow.Params) *flow.Future {
	return flow.RunnableFunc(func(ctx context.Context, state flow.State, overrides flow.Params) (flow.State, error) {
		beta, err := flow.ResolveFloat("beta", overrides, state, f.beta)
		if err != nil {
			return flow.State{}, err
		}
		numSweeps, err := flow.ResolveInt("num_sweeps", overrides, state, &f.numSweeps)
		if err != nil {
			return flow.State{}, err
		}

		p := state.Problem()
		variables := p.Variables()
		population := state.Samples()

		evolved := make([]model.Sample, 0, population.Len())
		f.mu.Lock()
		defer f.mu.Unlock()

		for i := 0; i < population.Len(); i++ {
			assignment := population.Get(i).CloneAssignment()

		sweeps:
			for sweep := 0; sweep < numSweeps; sweep++ {
				select {
				case <-ctx.Done():
					break sweeps
				default:
				}
				for _, v := range variables {
					delta := p.EnergyDelta(assignment, v)
					if delta <= 0 || f.rng.Float64() < math.Exp(-delta*beta) {
						assignment[v] = p.FlipValue(assignment[v])
					}
				}
			}

			evolved = append(evolved, model.Sample{
				Assignment:  assignment,
				Energy:      p.Energy(assignment),
				Occurrences: population.Get(i).Occurrences,
			})
		}

		result := model.NewSampleSet(evolved, nil).WithInfo("beta", beta)
		return state.WithSamples(result), nil
	}).Run(ctx, state, overrides)
}
