package anneal

import (
	"context"

	"github.com/quantalab/hybridflow/flow"
	"github.com/quantalab/hybridflow/flow/model"
	"github.com/quantalab/hybridflow/flow/sampler"
)

// KerberosConfig parameterizes NewKerberos. Zero values select the
// defaults noted per field.
type KerberosConfig struct {
	// MaxIter caps the outer loop (default 100).
	MaxIter int

	// ConvergenceWindow stops the loop after this many iterations
	// without improvement of the best energy (default 10).
	ConvergenceWindow int

	// NumReads and NumSweeps parameterize the classical branches
	// (defaults 1 and 10000).
	NumReads  int
	NumSweeps int

	// Tenure is the tabu branch's exclusion span; zero derives it from
	// the problem size.
	Tenure int

	// MaxSubproblemSize bounds the decomposed subproblem handed to the
	// delegated sampler (default 50 variables).
	MaxSubproblemSize int

	// SubproblemSampler solves the decomposed subproblem; typically a
	// quantum annealer client. Nil falls back to simulated annealing.
	SubproblemSampler sampler.Sampler

	// InitSample optionally seeds the starting population with a known
	// assignment instead of the all-minimum default.
	InitSample map[string]int

	// Seed fixes the random streams for reproducible runs; zero draws
	// from the clock.
	Seed int64
}

func (cfg *KerberosConfig) applyDefaults() {
	if cfg.MaxIter <= 0 {
		cfg.MaxIter = 100
	}
	if cfg.ConvergenceWindow <= 0 {
		cfg.ConvergenceWindow = 10
	}
	if cfg.NumReads <= 0 {
		cfg.NumReads = 1
	}
	if cfg.NumSweeps <= 0 {
		cfg.NumSweeps = 10000
	}
	if cfg.MaxSubproblemSize <= 0 {
		cfg.MaxSubproblemSize = 50
	}
	if cfg.SubproblemSampler == nil {
		cfg.SubproblemSampler = sampler.NewSimulatedAnnealingSampler()
	}
}

// NewKerberos assembles the racing portfolio solver: each iteration
// runs tabu search, simulated annealing, and a decompose-delegate-
// compose pipeline against clones of the current state, keeps the best
// result, and repeats until the best energy stalls for the convergence
// window or the iteration cap is hit.
//
// Options apply to the outer loop (emitter, metrics, store, run ID).
func NewKerberos(cfg KerberosConfig, opts ...flow.Option) flow.Runnable {
	cfg.applyDefaults()

	classical := sampler.Params{
		NumReads:  cfg.NumReads,
		NumSweeps: cfg.NumSweeps,
		Tenure:    cfg.Tenure,
		Seed:      cfg.Seed,
	}

	delegated := flow.NewBranch(
		sampler.NewEnergyImpactDecomposer(cfg.MaxSubproblemSize),
		sampler.NewSubproblemSampler("subproblem-sampler", cfg.SubproblemSampler, sampler.Params{
			NumReads:  cfg.NumReads,
			NumSweeps: cfg.NumSweeps,
			Seed:      cfg.Seed,
		}),
		sampler.NewSplatComposer(),
	).Configure(flow.WithName("decompose-delegate-compose"))

	race := flow.NewRace(
		sampler.NewTabuProblemSampler(classical),
		sampler.NewSimulatedAnnealingProblemSampler(classical),
		delegated,
	).Configure(
		flow.WithName("kerberos-race"),
		flow.WithCombinePolicy(flow.BestOf),
	)

	loopOpts := append([]flow.Option{
		flow.WithName("kerberos"),
		flow.WithMaxIter(cfg.MaxIter),
		flow.WithStopCondition(flow.NoImprovementWindow(cfg.ConvergenceWindow)),
	}, opts...)

	loop := flow.NewLoop(race, loopOpts...)
	if cfg.InitSample == nil {
		return loop
	}
	return flow.NewBranch(
		newSampleInit(cfg.InitSample),
		loop,
	).Configure(flow.WithName("kerberos-pipeline"))
}

// sampleInit replaces the state's population with a single caller-
// provided assignment.
type sampleInit struct {
	assignment map[string]int
}

func newSampleInit(assignment map[string]int) *sampleInit {
	return &sampleInit{assignment: assignment}
}

// Name labels the runnable in events and metrics.
func (si *sampleInit) Name() string { return "sample-init" }

// Run implements flow.Runnable.
func (si *sampleInit) Run(ctx context.Context, state flow.State, overrides flow.Params) *flow.Future {
	return flow.RunnableFunc(func(_ context.Context, state flow.State, _ flow.Params) (flow.State, error) {
		p := state.Problem()
		if err := p.ValidateAssignment(si.assignment); err != nil {
			return flow.State{}, err
		}
		seeded, err := model.FromAssignments(p, []map[string]int{si.assignment})
		if err != nil {
			return flow.State{}, err
		}
		return state.WithSamples(seeded), nil
	}).Run(ctx, state, overrides)
}
