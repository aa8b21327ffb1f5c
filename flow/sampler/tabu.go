package sampler

import (
	"context"
	"math"

	"github.com/quantalab/hybridflow/flow/model"
)

// TabuSampler performs steepest-descent local search with a tabu list:
// each step flips the best non-tabu variable, recently flipped variables
// are excluded for a tenure of steps, and a tabu flip is allowed anyway
// when it improves on the best assignment seen (aspiration).
type TabuSampler struct{}

// NewTabuSampler creates a tabu search sampler.
func NewTabuSampler() *TabuSampler {
	return &TabuSampler{}
}

// Sample runs NumSweeps descent steps per read and returns each read's
// best-seen assignment. Cancellation is observed between steps.
func (t *TabuSampler) Sample(ctx context.Context, p *model.Problem, params Params) (*model.SampleSet, error) {
	numReads := params.NumReads
	if numReads <= 0 {
		numReads = 1
	}
	numSweeps := params.NumSweeps
	if numSweeps <= 0 {
		numSweeps = 100
	}
	tenure := params.Tenure
	if tenure <= 0 {
		// Conventional tenure: a fraction of the problem size, at least 1.
		tenure = p.NumVariables() / 4
		if tenure < 1 {
			tenure = 1
		}
	}

	rng := newRNG(params.Seed)
	assignments := initialAssignments(p, params, numReads, rng)
	variables := p.Variables()

	samples := make([]model.Sample, 0, numReads)
	for _, assignment := range assignments {
		bestAssignment := cloneAssignment(assignment)
		bestEnergy := p.Energy(assignment)
		curEnergy := bestEnergy
		tabuUntil := make(map[string]int, len(variables))

	steps:
		for step := 0; step < numSweeps; step++ {
			select {
			case <-ctx.Done():
				break steps
			default:
			}

			moveVar := ""
			moveDelta := math.Inf(1)
			for _, v := range variables {
				delta := p.EnergyDelta(assignment, v)
				if tabuUntil[v] > step && curEnergy+delta >= bestEnergy {
					continue
				}
				if delta < moveDelta {
					moveVar = v
					moveDelta = delta
				}
			}
			if moveVar == "" {
				break
			}

			assignment[moveVar] = p.FlipValue(assignment[moveVar])
			curEnergy += moveDelta
			tabuUntil[moveVar] = step + 1 + tenure

			if curEnergy < bestEnergy {
				bestEnergy = curEnergy
				bestAssignment = cloneAssignment(assignment)
			}
		}

		samples = append(samples, model.Sample{
			Assignment:  bestAssignment,
			Energy:      bestEnergy,
			Occurrences: 1,
		})
	}

	return model.NewSampleSet(samples, nil), nil
}

func cloneAssignment(a map[string]int) map[string]int {
	out := make(map[string]int, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
