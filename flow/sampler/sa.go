package sampler

import (
	"context"
	"math"

	"github.com/quantalab/hybridflow/flow/model"
)

// SimulatedAnnealingSampler runs single-flip Metropolis sweeps along a
// geometric inverse-temperature ladder from hot to cold.
type SimulatedAnnealingSampler struct{}

// NewSimulatedAnnealingSampler creates a simulated annealing sampler.
func NewSimulatedAnnealingSampler() *SimulatedAnnealingSampler {
	return &SimulatedAnnealingSampler{}
}

// Sample anneals NumReads assignments over NumSweeps sweeps each.
// Cancellation is observed between sweeps; the population produced so
// far (with partially annealed reads finalized) is returned without
// error.
func (s *SimulatedAnnealingSampler) Sample(ctx context.Context, p *model.Problem, params Params) (*model.SampleSet, error) {
	numReads := params.NumReads
	if numReads <= 0 {
		numReads = 10
	}
	numSweeps := params.NumSweeps
	if numSweeps <= 0 {
		numSweeps = 1000
	}

	var hot, cold float64
	if len(params.BetaRange) == 2 {
		hot, cold = params.BetaRange[0], params.BetaRange[1]
	} else {
		hot, cold = DefaultBetaRange(p)
	}
	betas := betaLadder(hot, cold, numSweeps)

	rng := newRNG(params.Seed)
	assignments := initialAssignments(p, params, numReads, rng)
	variables := p.Variables()

	samples := make([]model.Sample, 0, numReads)
	for _, assignment := range assignments {
	sweeps:
		for sweep := 0; sweep < numSweeps; sweep++ {
			select {
			case <-ctx.Done():
				break sweeps
			default:
			}

			beta := betas[sweep]
			for _, v := range variables {
				delta := p.EnergyDelta(assignment, v)
				if delta <= 0 || rng.Float64() < math.Exp(-delta*beta) {
					assignment[v] = p.FlipValue(assignment[v])
				}
			}
		}

		samples = append(samples, model.Sample{
			Assignment:  assignment,
			Energy:      p.Energy(assignment),
			Occurrences: 1,
		})
	}

	return model.NewSampleSet(samples, map[string]any{"beta_range": []float64{hot, cold}}), nil
}

// betaLadder interpolates n inverse temperatures geometrically from hot
// to cold, falling back to linear when the hot bound is not positive.
func betaLadder(hot, cold float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = cold
		return out
	}
	if hot <= 0 {
		step := (cold - hot) / float64(n-1)
		for i := range out {
			out[i] = hot + float64(i)*step
		}
		return out
	}
	ratio := math.Pow(cold/hot, 1/float64(n-1))
	b := hot
	for i := range out {
		out[i] = b
		b *= ratio
	}
	return out
}
