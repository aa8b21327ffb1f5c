// Package sampler provides the black-box sampling collaborators invoked
// by workflows: classical heuristics (simulated annealing, tabu search),
// a uniform-random baseline, and the decomposer/composer pair that maps
// subproblems out to a delegated sampler and merges results back.
//
// The engine treats these as opaque: a Sampler accepts a Problem and
// sampling parameters and returns a SampleSet, or a failure that
// the engine wraps as a SamplerError without retrying.
package sampler

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/quantalab/hybridflow/flow/model"
)

// Params carries sampling parameters. Zero values select sampler
// defaults.
type Params struct {
	// NumReads is the number of samples to produce.
	NumReads int

	// NumSweeps is the number of full variable sweeps per read.
	NumSweeps int

	// Beta fixes the inverse temperature for fixed-temperature sweeps.
	// Ignored by samplers that run their own schedule.
	Beta float64

	// BetaRange overrides the annealing inverse-temperature range
	// [hot, cold]. Nil derives the range from the problem energy scale.
	BetaRange []float64

	// Tenure is the tabu tenure (recently flipped variables excluded
	// from steepest descent). Zero selects a problem-sized default.
	Tenure int

	// Seed makes the sampler deterministic. Zero seeds from the clock.
	Seed int64

	// InitialPopulation seeds the sampler's starting assignments. When
	// fewer than NumReads samples are given they are cycled; nil starts
	// from uniform random assignments.
	InitialPopulation *model.SampleSet
}

// Sampler is the collaborator contract: produce a sample population for
// a problem. Implementations should observe ctx between sweeps and
// return their best-effort population on cancellation.
type Sampler interface {
	Sample(ctx context.Context, p *model.Problem, params Params) (*model.SampleSet, error)
}

// DefaultBetaRange derives an annealing inverse-temperature range from
// the problem's energy scale: the hot bound makes the largest single
// flip acceptable with probability 1/2, the cold bound suppresses the
// smallest nonzero flip to 1%.
func DefaultBetaRange(p *model.Problem) (hot, cold float64) {
	minScale, maxScale := p.EnergyScale()
	hot = math.Log(2) / maxScale
	cold = math.Log(100) / minScale
	if cold <= hot {
		cold = hot * 2
	}
	return hot, cold
}

func newRNG(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// initialAssignments materializes NumReads starting assignments from the
// params, cycling the initial population when one is supplied.
func initialAssignments(p *model.Problem, params Params, numReads int, rng *rand.Rand) []map[string]int {
	out := make([]map[string]int, 0, numReads)

	if init := params.InitialPopulation; init != nil && init.Len() > 0 {
		for i := 0; i < numReads; i++ {
			out = append(out, init.Get(i%init.Len()).CloneAssignment())
		}
		return out
	}

	for i := 0; i < numReads; i++ {
		assignment := make(map[string]int, p.NumVariables())
		for _, v := range p.Variables() {
			if rng.Intn(2) == 0 {
				assignment[v] = p.Vartype().Low()
			} else {
				assignment[v] = p.Vartype().High()
			}
		}
		out = append(out, assignment)
	}
	return out
}
