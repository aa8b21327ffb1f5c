package anneal

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/quantalab/hybridflow/flow"
	"github.com/quantalab/hybridflow/flow/model"
	"github.com/quantalab/hybridflow/flow/sampler"
)

// ParallelTemperingConfig parameterizes NewParallelTempering. Zero
// values select the defaults noted per field.
type ParallelTemperingConfig struct {
	// NumReplicas is the size of the temperature ladder (default 8).
	NumReplicas int

	// NumIter caps the sweep-and-swap loop (default 100).
	NumIter int

	// NumSweeps is the Metropolis sweep count per replica per
	// iteration (default 100).
	NumSweeps int

	// BetaRange optionally fixes the ladder endpoints [hot, cold]; nil
	// derives them from the problem's energy scale.
	BetaRange []float64

	// Seed fixes the random streams for reproducible runs; zero draws
	// from the clock.
	Seed int64
}

func (cfg *ParallelTemperingConfig) applyDefaults() {
	if cfg.NumReplicas < 2 {
		cfg.NumReplicas = 8
	}
	if cfg.NumIter <= 0 {
		cfg.NumIter = 100
	}
	if cfg.NumSweeps <= 0 {
		cfg.NumSweeps = 100
	}
}

// NewParallelTempering assembles a parallel tempering workflow: one
// replica per rung of an inverse-temperature ladder, each iteration
// evolving every replica with Metropolis sweeps at its own temperature
// and then proposing replica exchanges down the ladder. The output
// population holds every replica's assignment, so First() yields the
// coldest chain's find.
//
// Options apply to the loop (emitter, metrics, store, run ID).
func NewParallelTempering(cfg ParallelTemperingConfig, opts ...flow.Option) flow.Runnable {
	cfg.applyDefaults()

	body := &temperingStep{cfg: cfg, rng: newSeededRNG(cfg.Seed)}

	loopOpts := append([]flow.Option{
		flow.WithName("parallel-tempering"),
		flow.WithMaxIter(cfg.NumIter),
	}, opts...)
	return flow.NewLoop(body, loopOpts...)
}

// temperingStep is one sweep-and-swap iteration. Replica assignments
// ride along as the state's population, one sample per rung, ordered
// hot to cold.
type temperingStep struct {
	cfg   ParallelTemperingConfig
	betas []float64

	mu  sync.Mutex
	rng *rand.Rand
}

// Name labels the runnable in events and metrics.
func (t *temperingStep) Name() string { return "tempering-step" }

// Run implements flow.Runnable.
func (t *temperingStep) Run(ctx context.Context, state flow.State, overrides flow.Params) *flow.Future {
	return flow.RunnableFunc(func(ctx context.Context, state flow.State, overrides flow.Params) (flow.State, error) {
		p := state.Problem()

		t.mu.Lock()
		defer t.mu.Unlock()

		if t.betas == nil {
			betas, err := t.ladder(p)
			if err != nil {
				return flow.State{}, err
			}
			t.betas = betas
		}

		replicas, energies, err := t.replicas(p, state.Samples())
		if err != nil {
			return flow.State{}, err
		}

		variables := p.Variables()
		for i, assignment := range replicas {
			beta := t.betas[i]
		sweeps:
			for sweep := 0; sweep < t.cfg.NumSweeps; sweep++ {
				select {
				case <-ctx.Done():
					break sweeps
				default:
				}
				for _, v := range variables {
					delta := p.EnergyDelta(assignment, v)
					if delta <= 0 || t.rng.Float64() < math.Exp(-delta*beta) {
						assignment[v] = p.FlipValue(assignment[v])
					}
				}
			}
			energies[i] = p.Energy(assignment)
		}

		// Exchange pass, coldest rung downward. A swap is accepted
		// with the standard replica exchange probability
		// min(1, exp((beta_i - beta_j) * (E_i - E_j))).
		for i := len(replicas) - 1; i > 0; i-- {
			arg := (t.betas[i] - t.betas[i-1]) * (energies[i] - energies[i-1])
			if arg >= 0 || t.rng.Float64() < math.Exp(arg) {
				replicas[i], replicas[i-1] = replicas[i-1], replicas[i]
				energies[i], energies[i-1] = energies[i-1], energies[i]
			}
		}

		samples := make([]model.Sample, len(replicas))
		for i, assignment := range replicas {
			samples[i] = model.Sample{
				Assignment:  assignment,
				Energy:      energies[i],
				Occurrences: 1,
			}
		}
		return state.WithSamples(model.NewSampleSet(samples, nil)), nil
	}).Run(ctx, state, overrides)
}

// ladder computes the replica betas, hot to cold.
func (t *temperingStep) ladder(p *model.Problem) ([]float64, error) {
	betaRange := t.cfg.BetaRange
	if betaRange == nil {
		hot, cold := sampler.DefaultBetaRange(p)
		betaRange = []float64{hot, cold}
	}
	if len(betaRange) != 2 {
		return nil, &flow.DomainError{Reason: "beta range must have exactly two endpoints"}
	}
	interpolation := Geometric
	if betaRange[0] <= 0 {
		interpolation = Linear
	}
	return BetaSchedule(t.cfg.NumReplicas, betaRange[0], betaRange[1], interpolation)
}

// replicas materializes one assignment per rung from the incoming
// population, cycling it when short and dropping extras when long.
func (t *temperingStep) replicas(p *model.Problem, population *model.SampleSet) ([]map[string]int, []float64, error) {
	n := t.cfg.NumReplicas
	assignments := make([]map[string]int, n)
	energies := make([]float64, n)

	if population.Len() == 0 {
		random := model.RandomSampleSet(p, n, t.rng)
		for i := 0; i < n; i++ {
			s := random.Get(i)
			assignments[i] = s.CloneAssignment()
			energies[i] = s.Energy
		}
		return assignments, energies, nil
	}

	for i := 0; i < n; i++ {
		s := population.Get(i % population.Len())
		assignments[i] = s.CloneAssignment()
		energies[i] = s.Energy
	}
	return assignments, energies, nil
}

// newSeededRNG mirrors the sampler package's seeding convention: zero
// draws from the clock.
func newSeededRNG(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}
