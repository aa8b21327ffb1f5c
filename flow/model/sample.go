package model

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"strings"
)

// Sample is one complete variable assignment tagged with its energy under
// the associated Problem, and a multiplicity count.
type Sample struct {
	Assignment  map[string]int `json:"assignment"`
	Energy      float64        `json:"energy"`
	Occurrences int            `json:"occurrences"`
}

// CloneAssignment returns an independent copy of the sample's assignment.
func (s Sample) CloneAssignment() map[string]int {
	out := make(map[string]int, len(s.Assignment))
	for v, val := range s.Assignment {
		out[v] = val
	}
	return out
}

// key is a canonical representation of the assignment, used to merge
// identical samples during aggregation.
func (s Sample) key() string {
	vars := make([]string, 0, len(s.Assignment))
	for v := range s.Assignment {
		vars = append(vars, v)
	}
	sort.Strings(vars)

	var b strings.Builder
	for _, v := range vars {
		fmt.Fprintf(&b, "%s=%d;", v, s.Assignment[v])
	}
	return b.String()
}

// SampleSet is an ordered population of Samples plus provenance metadata,
// such as the inverse temperature at which the population was produced.
//
// SampleSets are immutable by convention: operations return new sets and
// never modify the receiver. Info values are shared between derived sets
// and must be treated as read-only.
type SampleSet struct {
	samples []Sample
	info    map[string]any
}

// NewSampleSet builds a SampleSet from pre-computed samples. The samples
// slice is retained; callers hand over ownership. Info may be nil.
func NewSampleSet(samples []Sample, info map[string]any) *SampleSet {
	if info == nil {
		info = make(map[string]any)
	}
	return &SampleSet{samples: samples, info: info}
}

// FromAssignments builds a SampleSet by evaluating each assignment's
// energy under the problem. Every assignment must cover all problem
// variables.
func FromAssignments(p *Problem, assignments []map[string]int) (*SampleSet, error) {
	samples := make([]Sample, 0, len(assignments))
	for i, a := range assignments {
		if err := p.ValidateAssignment(a); err != nil {
			return nil, fmt.Errorf("assignment %d: %w", i, err)
		}
		samples = append(samples, Sample{
			Assignment:  a,
			Energy:      p.Energy(a),
			Occurrences: 1,
		})
	}
	return NewSampleSet(samples, nil), nil
}

// MinSampleSet returns a single-sample population with every variable at
// its lowest domain value. This is the default population for a fresh
// workflow state.
func MinSampleSet(p *Problem) *SampleSet {
	assignment := make(map[string]int, p.NumVariables())
	for _, v := range p.Variables() {
		assignment[v] = p.Vartype().Low()
	}
	return NewSampleSet([]Sample{{
		Assignment:  assignment,
		Energy:      p.Energy(assignment),
		Occurrences: 1,
	}}, nil)
}

// RandomSampleSet draws n uniformly random assignments using rng.
func RandomSampleSet(p *Problem, n int, rng *rand.Rand) *SampleSet {
	samples := make([]Sample, 0, n)
	for i := 0; i < n; i++ {
		assignment := make(map[string]int, p.NumVariables())
		for _, v := range p.Variables() {
			if rng.Intn(2) == 0 {
				assignment[v] = p.Vartype().Low()
			} else {
				assignment[v] = p.Vartype().High()
			}
		}
		samples = append(samples, Sample{
			Assignment:  assignment,
			Energy:      p.Energy(assignment),
			Occurrences: 1,
		})
	}
	return NewSampleSet(samples, nil)
}

// Len returns the number of samples in the population.
func (ss *SampleSet) Len() int { return len(ss.samples) }

// Get returns the i-th sample.
func (ss *SampleSet) Get(i int) Sample { return ss.samples[i] }

// Samples returns the underlying sample slice. The slice and its samples
// must be treated as read-only.
func (ss *SampleSet) Samples() []Sample { return ss.samples }

// Info returns the provenance metadata map, read-only.
func (ss *SampleSet) Info() map[string]any { return ss.info }

// InfoValue looks up a single provenance entry.
func (ss *SampleSet) InfoValue(key string) (any, bool) {
	v, ok := ss.info[key]
	return v, ok
}

// WithInfo returns a new SampleSet sharing this set's samples with one
// provenance entry added or replaced.
func (ss *SampleSet) WithInfo(key string, value any) *SampleSet {
	info := make(map[string]any, len(ss.info)+1)
	for k, v := range ss.info {
		info[k] = v
	}
	info[key] = value
	return &SampleSet{samples: ss.samples, info: info}
}

// First returns the lowest-energy sample. Ties resolve to the earliest
// sample in population order. ok is false for an empty population.
func (ss *SampleSet) First() (best Sample, ok bool) {
	if len(ss.samples) == 0 {
		return Sample{}, false
	}
	best = ss.samples[0]
	for _, s := range ss.samples[1:] {
		if s.Energy < best.Energy {
			best = s
		}
	}
	return best, true
}

// Aggregate merges samples with identical assignments, summing their
// occurrence counts. Order of first appearance is preserved, as is the
// provenance metadata.
func (ss *SampleSet) Aggregate() *SampleSet {
	index := make(map[string]int, len(ss.samples))
	merged := make([]Sample, 0, len(ss.samples))

	for _, s := range ss.samples {
		k := s.key()
		if at, seen := index[k]; seen {
			merged[at].Occurrences += s.Occurrences
			continue
		}
		index[k] = len(merged)
		merged = append(merged, Sample{
			Assignment:  s.Assignment,
			Energy:      s.Energy,
			Occurrences: s.Occurrences,
		})
	}

	return &SampleSet{samples: merged, info: ss.info}
}

// Concat returns a new SampleSet holding this population followed by the
// samples of each other population in order. Provenance metadata of the
// receiver is kept; the others' is dropped.
func (ss *SampleSet) Concat(others ...*SampleSet) *SampleSet {
	total := len(ss.samples)
	for _, o := range others {
		total += len(o.samples)
	}

	samples := make([]Sample, 0, total)
	samples = append(samples, ss.samples...)
	for _, o := range others {
		samples = append(samples, o.samples...)
	}
	return &SampleSet{samples: samples, info: ss.info}
}

// Clone returns a deep copy of the population: assignments are copied so
// the clone can be evolved independently.
func (ss *SampleSet) Clone() *SampleSet {
	samples := make([]Sample, len(ss.samples))
	for i, s := range ss.samples {
		samples[i] = Sample{
			Assignment:  s.CloneAssignment(),
			Energy:      s.Energy,
			Occurrences: s.Occurrences,
		}
	}
	info := make(map[string]any, len(ss.info))
	for k, v := range ss.info {
		info[k] = v
	}
	return &SampleSet{samples: samples, info: info}
}

// sampleSetJSON is the serialized form of a SampleSet.
type sampleSetJSON struct {
	Samples []Sample       `json:"samples"`
	Info    map[string]any `json:"info"`
}

// MarshalJSON implements json.Marshaler.
func (ss *SampleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(sampleSetJSON{Samples: ss.samples, Info: ss.info})
}

// UnmarshalJSON implements json.Unmarshaler.
func (ss *SampleSet) UnmarshalJSON(data []byte) error {
	var in sampleSetJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.Info == nil {
		in.Info = make(map[string]any)
	}
	ss.samples = in.Samples
	ss.info = in.Info
	return nil
}
