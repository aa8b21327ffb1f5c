package anneal

import (
	"context"

	"github.com/quantalab/hybridflow/flow"
	"github.com/quantalab/hybridflow/flow/model"
	"github.com/quantalab/hybridflow/flow/sampler"
)

// PopulationAnnealingConfig parameterizes NewPopulationAnnealing. Zero
// values select the defaults noted per field.
type PopulationAnnealingConfig struct {
	// NumReads is the population size (default 100).
	NumReads int

	// NumIter is the schedule length and iteration cap (default 100).
	NumIter int

	// NumSweeps is the Metropolis sweep count of the local evolution
	// stage per iteration (default 100).
	NumSweeps int

	// BetaRange optionally fixes the schedule endpoints [hot, cold];
	// nil derives them from the problem's energy scale.
	BetaRange []float64

	// Interpolation spaces the schedule (default Linear).
	Interpolation Interpolation

	// Seed fixes the random streams for reproducible runs; zero draws
	// from the clock.
	Seed int64
}

func (cfg *PopulationAnnealingConfig) applyDefaults() {
	if cfg.NumReads <= 0 {
		cfg.NumReads = 100
	}
	if cfg.NumIter <= 0 {
		cfg.NumIter = 100
	}
	if cfg.NumSweeps <= 0 {
		cfg.NumSweeps = 100
	}
	if cfg.Interpolation == "" {
		cfg.Interpolation = Linear
	}
}

// NewPopulationAnnealing assembles the population annealing workflow:
// seed a random population, compute a beta schedule over the problem's
// energy scale, then iterate schedule step, energy-weighted resampling,
// and fixed-temperature evolution until the schedule is exhausted.
//
// Options apply to the iteration loop (emitter, metrics, store, run ID).
func NewPopulationAnnealing(cfg PopulationAnnealingConfig, opts ...flow.Option) flow.Runnable {
	cfg.applyDefaults()

	iteration := flow.NewBranch(
		NewBetaScheduleProgressor(),
		NewEnergyWeightedResampler(nil, cfg.Seed),
		sampler.NewFixedTemperatureSampler(cfg.NumSweeps, nil, cfg.Seed),
	).Configure(flow.WithName("population-annealing-iteration"))

	loopOpts := append([]flow.Option{
		flow.WithName("population-annealing"),
		flow.WithMaxIter(cfg.NumIter),
	}, opts...)

	return flow.NewBranch(
		newPopulationInit(cfg.NumReads, cfg.Seed),
		NewBetaScheduleCalculator(cfg.NumIter, cfg.Interpolation, cfg.BetaRange),
		flow.NewLoop(iteration, loopOpts...),
	).Configure(flow.WithName("population-annealing-pipeline"))
}

// populationInit grows the state's population to the configured size
// with uniformly random samples. A population already at size passes
// through untouched, so a warm start survives.
type populationInit struct {
	numReads int
	seed     int64
}

func newPopulationInit(numReads int, seed int64) *populationInit {
	return &populationInit{numReads: numReads, seed: seed}
}

// Name labels the runnable in events and metrics.
func (pi *populationInit) Name() string { return "population-init" }

// Run implements flow.Runnable.
func (pi *populationInit) Run(ctx context.Context, state flow.State, overrides flow.Params) *flow.Future {
	return flow.RunnableFunc(func(ctx context.Context, state flow.State, overrides flow.Params) (flow.State, error) {
		numReads, err := flow.ResolveInt("num_reads", overrides, state, &pi.numReads)
		if err != nil {
			return flow.State{}, err
		}

		population := state.Samples()
		if population.Len() >= numReads {
			return state, nil
		}

		rs, err := sampler.NewRandomSampler().Sample(ctx, state.Problem(), sampler.Params{
			NumReads: numReads - population.Len(),
			Seed:     pi.seed,
		})
		if err != nil {
			return flow.State{}, &flow.SamplerError{Sampler: pi.Name(), Err: err}
		}

		var merged *model.SampleSet
		if population.Len() == 0 {
			merged = rs
		} else {
			merged = population.Concat(rs)
		}
		return state.WithSamples(merged), nil
	}).Run(ctx, state, overrides)
}
