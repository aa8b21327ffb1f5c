package sampler

import (
	"context"

	"github.com/quantalab/hybridflow/flow/model"
)

// RandomSampler draws uniformly random assignments. It is the baseline
// collaborator, useful as a stand-in for delegated hardware samplers in
// tests.
type RandomSampler struct{}

// NewRandomSampler creates a uniform random sampler.
func NewRandomSampler() *RandomSampler {
	return &RandomSampler{}
}

// Sample draws NumReads uniform assignments.
func (r *RandomSampler) Sample(_ context.Context, p *model.Problem, params Params) (*model.SampleSet, error) {
	numReads := params.NumReads
	if numReads <= 0 {
		numReads = 1
	}
	return model.RandomSampleSet(p, numReads, newRNG(params.Seed)), nil
}
