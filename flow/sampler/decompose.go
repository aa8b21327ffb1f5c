package sampler

import (
	"context"
	"math"
	"sort"

	"github.com/quantalab/hybridflow/flow"
	"github.com/quantalab/hybridflow/flow/model"
)

// State field names used by the decompose/sample/compose pipeline.
const (
	// FieldSubproblem holds the extracted *model.Problem.
	FieldSubproblem = "subproblem"

	// FieldSubsamples holds the *model.SampleSet produced for the
	// subproblem by a delegated sampler.
	FieldSubsamples = "subsamples"
)

// EnergyImpactDecomposer extracts a subproblem over the variables whose
// single flips would change the energy of the current best sample the
// most. Couplings to variables outside the subset are folded into the
// subproblem's linear biases using the best sample's values, so the
// subproblem's ground state is the best completion of the frozen
// context.
type EnergyImpactDecomposer struct {
	size int
}

// NewEnergyImpactDecomposer creates a decomposer selecting up to size
// variables.
func NewEnergyImpactDecomposer(size int) *EnergyImpactDecomposer {
	return &EnergyImpactDecomposer{size: size}
}

// Name labels the runnable in events and metrics.
func (d *EnergyImpactDecomposer) Name() string { return "energy-impact-decomposer" }

// Run implements flow.Runnable.
func (d *EnergyImpactDecomposer) Run(ctx context.Context, state flow.State, overrides flow.Params) *flow.Future {
	return flow.RunnableFunc(func(_ context.Context, state flow.State, overrides flow.Params) (flow.State, error) {
		size, err := flow.ResolveInt("max_subproblem_size", overrides, state, &d.size)
		if err != nil {
			return flow.State{}, err
		}
		if size < 1 {
			return flow.State{}, &flow.DomainError{Reason: "subproblem size must be positive"}
		}

		p := state.Problem()
		best, ok := state.Samples().First()
		if !ok {
			return flow.State{}, &flow.InvalidProblemError{Reason: "state has no samples to decompose around"}
		}

		type impact struct {
			v      string
			weight float64
		}
		impacts := make([]impact, 0, p.NumVariables())
		for _, v := range p.Variables() {
			impacts = append(impacts, impact{v: v, weight: math.Abs(p.EnergyDelta(best.Assignment, v))})
		}
		sort.Slice(impacts, func(i, j int) bool {
			if impacts[i].weight != impacts[j].weight {
				return impacts[i].weight > impacts[j].weight
			}
			return impacts[i].v < impacts[j].v
		})

		if size > len(impacts) {
			size = len(impacts)
		}
		chosen := make(map[string]bool, size)
		for _, im := range impacts[:size] {
			chosen[im.v] = true
		}

		linear := make(map[string]float64, size)
		quadratic := make(map[[2]string]float64)
		for v := range chosen {
			bias := p.Linear(v)
			p.Neighbors(v, func(u string, coupling float64) {
				if chosen[u] {
					if v < u {
						quadratic[[2]string{v, u}] = coupling
					}
					return
				}
				// Frozen neighbor: fold its contribution into the bias.
				bias += coupling * float64(best.Assignment[u])
			})
			linear[v] = bias
		}

		sub, err := model.NewProblem(linear, quadratic, 0, p.Vartype())
		if err != nil {
			return flow.State{}, err
		}
		return state.Updated(flow.Fields{FieldSubproblem: sub}), nil
	}).Run(ctx, state, overrides)
}

// IdentityDecomposer passes the whole problem through as the
// subproblem. Useful as a baseline in decompose/sample/compose
// pipelines and for delegating a full problem to a subproblem sampler.
type IdentityDecomposer struct{}

// NewIdentityDecomposer creates the pass-through decomposer.
func NewIdentityDecomposer() *IdentityDecomposer {
	return &IdentityDecomposer{}
}

// Name labels the runnable in events and metrics.
func (d *IdentityDecomposer) Name() string { return "identity-decomposer" }

// Run implements flow.Runnable.
func (d *IdentityDecomposer) Run(ctx context.Context, state flow.State, overrides flow.Params) *flow.Future {
	return flow.RunnableFunc(func(_ context.Context, state flow.State, _ flow.Params) (flow.State, error) {
		return state.Updated(flow.Fields{FieldSubproblem: state.Problem()}), nil
	}).Run(ctx, state, overrides)
}

// SubproblemSampler delegates the state's current subproblem to a
// collaborator Sampler (for example a quantum annealer client) and
// stores the resulting population under FieldSubsamples.
type SubproblemSampler struct {
	name    string
	sampler Sampler
	params  Params
}

// NewSubproblemSampler wraps a collaborator for subproblem sampling.
func NewSubproblemSampler(name string, s Sampler, params Params) *SubproblemSampler {
	return &SubproblemSampler{name: name, sampler: s, params: params}
}

// Name labels the runnable in events and metrics.
func (s *SubproblemSampler) Name() string { return s.name }

// Run implements flow.Runnable.
func (s *SubproblemSampler) Run(ctx context.Context, state flow.State, overrides flow.Params) *flow.Future {
	return flow.RunnableFunc(func(ctx context.Context, state flow.State, overrides flow.Params) (flow.State, error) {
		field, ok := state.Field(FieldSubproblem)
		if !ok {
			return flow.State{}, &flow.MissingParameterError{Name: FieldSubproblem}
		}
		sub, ok := field.(*model.Problem)
		if !ok {
			return flow.State{}, &flow.InvalidProblemError{Reason: "subproblem field is not a problem"}
		}

		result, err := s.sampler.Sample(ctx, sub, s.params)
		if err != nil {
			return flow.State{}, &flow.SamplerError{Sampler: s.name, Err: err}
		}
		return state.Updated(flow.Fields{FieldSubsamples: result}), nil
	}).Run(ctx, state, overrides)
}

// SplatComposer reintegrates the best subproblem sample into the best
// full sample: subproblem variable values overwrite the corresponding
// full-assignment values, the energy is re-evaluated under the full
// problem, and the patched sample becomes the state's population.
type SplatComposer struct{}

// NewSplatComposer creates the reintegration runnable.
func NewSplatComposer() *SplatComposer {
	return &SplatComposer{}
}

// Name labels the runnable in events and metrics.
func (c *SplatComposer) Name() string { return "splat-composer" }

// Run implements flow.Runnable.
func (c *SplatComposer) Run(ctx context.Context, state flow.State, overrides flow.Params) *flow.Future {
	return flow.RunnableFunc(func(_ context.Context, state flow.State, _ flow.Params) (flow.State, error) {
		field, ok := state.Field(FieldSubsamples)
		if !ok {
			return flow.State{}, &flow.MissingParameterError{Name: FieldSubsamples}
		}
		subsamples, ok := field.(*model.SampleSet)
		if !ok {
			return flow.State{}, &flow.InvalidProblemError{Reason: "subsamples field is not a sample set"}
		}

		best, ok := state.Samples().First()
		if !ok {
			return flow.State{}, &flow.InvalidProblemError{Reason: "state has no samples to compose into"}
		}
		subBest, ok := subsamples.First()
		if !ok {
			return flow.State{}, &flow.InvalidProblemError{Reason: "subsamples are empty"}
		}

		patched := best.CloneAssignment()
		for v, val := range subBest.Assignment {
			patched[v] = val
		}

		p := state.Problem()
		composed := model.NewSampleSet([]model.Sample{{
			Assignment:  patched,
			Energy:      p.Energy(patched),
			Occurrences: 1,
		}}, nil)
		return state.WithSamples(composed), nil
	}).Run(ctx, state, overrides)
}
