package flow

import (
	"encoding/json"

	"github.com/quantalab/hybridflow/flow/model"
)

// FieldSamples is the reserved field name that routes a *model.SampleSet
// through Updated to the state's sample population.
const FieldSamples = "samples"

// Fields is a named-field overlay applied to a State by Updated.
type Fields map[string]any

// State is the unit of data flowing through the engine: a shared
// read-only Problem reference, the current sample population, and an
// open-ended set of auxiliary fields (beta, schedules, sweep counts).
//
// States are immutable by convention. Updated returns a new State with
// fields overlaid; the receiver is never modified. The Problem reference
// is shared across all states of a run, so concurrently racing branches
// need no locking.
type State struct {
	problem *model.Problem
	samples *model.SampleSet
	fields  map[string]any
}

// FromProblem builds the initial State of a workflow run: the problem, a
// default single-sample population with every variable at its lowest
// domain value, and the given auxiliary fields (nil is fine).
//
// Returns an InvalidProblemError if the problem is nil or has no
// variables.
func FromProblem(problem *model.Problem, fields Fields) (State, error) {
	if problem == nil {
		return State{}, &InvalidProblemError{Reason: "problem is nil"}
	}
	if problem.NumVariables() == 0 {
		return State{}, &InvalidProblemError{Reason: "problem has no variables"}
	}

	s := State{
		problem: problem,
		samples: model.MinSampleSet(problem),
		fields:  make(map[string]any),
	}
	return s.Updated(fields), nil
}

// Problem returns the shared problem reference.
func (s State) Problem() *model.Problem { return s.problem }

// Samples returns the current sample population.
func (s State) Samples() *model.SampleSet { return s.samples }

// Field looks up an auxiliary field by name.
func (s State) Field(name string) (any, bool) {
	v, ok := s.fields[name]
	return v, ok
}

// Fields returns the auxiliary field map, read-only.
func (s State) Fields() map[string]any { return s.fields }

// Updated returns a new State with the given fields overlaid. Fields not
// named are inherited unchanged, as is the problem reference. A
// *model.SampleSet under the "samples" key replaces the population
// wholesale. Updated(nil) returns an equivalent state.
func (s State) Updated(fields Fields) State {
	next := State{
		problem: s.problem,
		samples: s.samples,
		fields:  make(map[string]any, len(s.fields)+len(fields)),
	}
	for k, v := range s.fields {
		next.fields[k] = v
	}
	for k, v := range fields {
		if k == FieldSamples {
			if ss, ok := v.(*model.SampleSet); ok {
				next.samples = ss
				continue
			}
		}
		next.fields[k] = v
	}
	return next
}

// WithSamples returns a new State whose population is replaced by ss.
func (s State) WithSamples(ss *model.SampleSet) State {
	return s.Updated(Fields{FieldSamples: ss})
}

// clone returns a value-like copy for Race fan-out: the population and
// field map are duplicated so branches cannot observe each other, while
// the read-only problem stays shared. Field values themselves are shared
// and must be treated as read-only by runnables.
func (s State) clone() State {
	next := State{
		problem: s.problem,
		fields:  make(map[string]any, len(s.fields)),
	}
	if s.samples != nil {
		next.samples = s.samples.Clone()
	}
	for k, v := range s.fields {
		next.fields[k] = v
	}
	return next
}

// stateJSON is the persisted form of a State, used by flow/store
// snapshots.
type stateJSON struct {
	Problem *model.Problem   `json:"problem"`
	Samples *model.SampleSet `json:"samples"`
	Fields  map[string]any   `json:"fields"`
}

// MarshalJSON implements json.Marshaler. Auxiliary field values must be
// JSON-serializable for a state to be persisted.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(stateJSON{Problem: s.problem, Samples: s.samples, Fields: s.fields})
}

// UnmarshalJSON implements json.Unmarshaler. Numeric field values decode
// as float64 per encoding/json; parameter resolution accepts both forms.
func (s *State) UnmarshalJSON(data []byte) error {
	var in stateJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.Fields == nil {
		in.Fields = make(map[string]any)
	}
	s.problem = in.Problem
	s.samples = in.Samples
	s.fields = in.Fields
	return nil
}
