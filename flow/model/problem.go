// Package model defines the quadratic optimization model consumed by
// hybridflow workflows: problems over binary or spin variables, samples
// (full variable assignments with energies), and sample populations.
package model

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Vartype identifies the variable domain of a Problem.
type Vartype int

const (
	// Spin variables take values in {-1, +1} (Ising model).
	Spin Vartype = iota

	// Binary variables take values in {0, 1} (QUBO model).
	Binary
)

// String returns the canonical name of the vartype.
func (v Vartype) String() string {
	switch v {
	case Spin:
		return "SPIN"
	case Binary:
		return "BINARY"
	default:
		return fmt.Sprintf("Vartype(%d)", int(v))
	}
}

// Low returns the smaller of the two values a variable of this vartype
// can take (-1 for spin, 0 for binary).
func (v Vartype) Low() int {
	if v == Spin {
		return -1
	}
	return 0
}

// High returns the larger admissible value (+1 for spin, 1 for binary).
func (v Vartype) High() int { return 1 }

// Problem is a quadratic model over discrete variables:
//
//	E(x) = offset + sum_v linear[v]*x_v + sum_{u<v} quadratic[u,v]*x_u*x_v
//
// A Problem is immutable after construction and safe for concurrent use.
// Workflow components share a single Problem reference for the lifetime of
// a run; only sample populations flow through the pipeline.
type Problem struct {
	vartype   Vartype
	linear    map[string]float64
	quadratic map[[2]string]float64
	offset    float64

	// adjacency index, built once for energy-delta queries
	adj map[string]map[string]float64

	variables []string // sorted
}

// NewProblem builds a Problem from linear and quadratic coefficients.
//
// Quadratic keys (u, v) and (v, u) are merged; a key with u == v is
// rejected. Variables mentioned only in quadratic terms are included with
// zero linear bias. Either coefficient map may be nil.
func NewProblem(linear map[string]float64, quadratic map[[2]string]float64, offset float64, vartype Vartype) (*Problem, error) {
	p := &Problem{
		vartype:   vartype,
		linear:    make(map[string]float64, len(linear)),
		quadratic: make(map[[2]string]float64, len(quadratic)),
		adj:       make(map[string]map[string]float64),
		offset:    offset,
	}

	for v, bias := range linear {
		p.linear[v] = bias
	}

	for key, bias := range quadratic {
		u, v := key[0], key[1]
		if u == v {
			return nil, fmt.Errorf("self-interaction on variable %q", u)
		}
		if u > v {
			u, v = v, u
		}
		p.quadratic[[2]string{u, v}] += bias
		if _, ok := p.linear[u]; !ok {
			p.linear[u] = 0
		}
		if _, ok := p.linear[v]; !ok {
			p.linear[v] = 0
		}
	}

	for key, bias := range p.quadratic {
		u, v := key[0], key[1]
		if p.adj[u] == nil {
			p.adj[u] = make(map[string]float64)
		}
		if p.adj[v] == nil {
			p.adj[v] = make(map[string]float64)
		}
		p.adj[u][v] = bias
		p.adj[v][u] = bias
	}

	p.variables = make([]string, 0, len(p.linear))
	for v := range p.linear {
		p.variables = append(p.variables, v)
	}
	sort.Strings(p.variables)

	return p, nil
}

// FromIsing builds a spin Problem from Ising coefficients h (linear) and
// J (coupling strengths).
func FromIsing(h map[string]float64, j map[[2]string]float64, offset float64) (*Problem, error) {
	return NewProblem(h, j, offset, Spin)
}

// FromQUBO builds a binary Problem from a QUBO coefficient map. Diagonal
// entries (v, v) become linear biases.
func FromQUBO(q map[[2]string]float64) (*Problem, error) {
	linear := make(map[string]float64)
	quadratic := make(map[[2]string]float64)
	for key, bias := range q {
		if key[0] == key[1] {
			linear[key[0]] += bias
		} else {
			quadratic[key] += bias
		}
	}
	return NewProblem(linear, quadratic, 0, Binary)
}

// Vartype returns the variable domain of the problem.
func (p *Problem) Vartype() Vartype { return p.vartype }

// Offset returns the constant energy offset.
func (p *Problem) Offset() float64 { return p.offset }

// NumVariables returns the number of variables in the problem.
func (p *Problem) NumVariables() int { return len(p.variables) }

// Variables returns the problem's variable names in sorted order.
// The returned slice must not be modified.
func (p *Problem) Variables() []string { return p.variables }

// HasVariable reports whether v is a variable of the problem.
func (p *Problem) HasVariable(v string) bool {
	_, ok := p.linear[v]
	return ok
}

// Linear returns the linear bias of variable v (zero if absent).
func (p *Problem) Linear(v string) float64 { return p.linear[v] }

// Quadratic returns the coupling between u and v (zero if absent).
func (p *Problem) Quadratic(u, v string) float64 {
	if u > v {
		u, v = v, u
	}
	return p.quadratic[[2]string{u, v}]
}

// Neighbors calls fn for every variable coupled to v with a nonzero bias.
func (p *Problem) Neighbors(v string, fn func(u string, bias float64)) {
	for u, bias := range p.adj[v] {
		fn(u, bias)
	}
}

// EachQuadratic calls fn for every quadratic term, with u < v.
func (p *Problem) EachQuadratic(fn func(u, v string, bias float64)) {
	for key, bias := range p.quadratic {
		fn(key[0], key[1], bias)
	}
}

// Energy evaluates the model energy of a complete assignment. Variables
// missing from the assignment contribute as zero; ValidateAssignment is
// the strict entry point.
func (p *Problem) Energy(assignment map[string]int) float64 {
	e := p.offset
	for v, bias := range p.linear {
		e += bias * float64(assignment[v])
	}
	for key, bias := range p.quadratic {
		e += bias * float64(assignment[key[0]]) * float64(assignment[key[1]])
	}
	return e
}

// EnergyDelta returns the energy change caused by flipping variable v in
// the given assignment (spin: negate, binary: toggle). The assignment is
// not modified.
func (p *Problem) EnergyDelta(assignment map[string]int, v string) float64 {
	old := assignment[v]
	var next int
	if p.vartype == Spin {
		next = -old
	} else {
		next = 1 - old
	}

	contrib := p.linear[v]
	for u, bias := range p.adj[v] {
		contrib += bias * float64(assignment[u])
	}
	return float64(next-old) * contrib
}

// FlipValue returns the opposite domain value of val under the problem's
// vartype.
func (p *Problem) FlipValue(val int) int {
	if p.vartype == Spin {
		return -val
	}
	return 1 - val
}

// EnergyScale returns the smallest and largest effective single-flip bias
// magnitudes of the problem. It is used to derive default annealing
// temperature ranges: the largest scale bounds the energy change of any
// single flip, the smallest nonzero scale is the finest energy resolution.
//
// For a problem with no nonzero biases both values are 1.
func (p *Problem) EnergyScale() (min, max float64) {
	min = math.Inf(1)
	max = 0

	observe := func(b float64) {
		b = math.Abs(b)
		if b == 0 {
			return
		}
		if b < min {
			min = b
		}
	}

	for v, bias := range p.linear {
		total := math.Abs(bias)
		observe(bias)
		for _, qb := range p.adj[v] {
			total += math.Abs(qb)
			observe(qb)
		}
		if total > max {
			max = total
		}
	}

	if max == 0 {
		return 1, 1
	}
	if math.IsInf(min, 1) {
		min = max
	}
	return min, max
}

// ValidateAssignment checks that the assignment covers every problem
// variable exactly once with values from the problem's domain.
func (p *Problem) ValidateAssignment(assignment map[string]int) error {
	if len(assignment) != len(p.variables) {
		return fmt.Errorf("assignment covers %d variables, problem has %d", len(assignment), len(p.variables))
	}
	for v, val := range assignment {
		if !p.HasVariable(v) {
			return fmt.Errorf("assignment names unknown variable %q", v)
		}
		if val != p.vartype.Low() && val != p.vartype.High() {
			return fmt.Errorf("variable %q has value %d outside %s domain", v, val, p.vartype)
		}
	}
	return nil
}

// problemJSON is the serialized form of a Problem. Quadratic terms are
// encoded as triples because JSON object keys cannot be pairs.
type problemJSON struct {
	Vartype   string              `json:"vartype"`
	Linear    map[string]float64  `json:"linear"`
	Quadratic []quadraticTermJSON `json:"quadratic"`
	Offset    float64             `json:"offset"`
}

type quadraticTermJSON struct {
	U    string  `json:"u"`
	V    string  `json:"v"`
	Bias float64 `json:"bias"`
}

// MarshalJSON implements json.Marshaler.
func (p *Problem) MarshalJSON() ([]byte, error) {
	out := problemJSON{
		Vartype:   p.vartype.String(),
		Linear:    p.linear,
		Quadratic: make([]quadraticTermJSON, 0, len(p.quadratic)),
		Offset:    p.offset,
	}
	for key, bias := range p.quadratic {
		out.Quadratic = append(out.Quadratic, quadraticTermJSON{U: key[0], V: key[1], Bias: bias})
	}
	sort.Slice(out.Quadratic, func(i, j int) bool {
		if out.Quadratic[i].U != out.Quadratic[j].U {
			return out.Quadratic[i].U < out.Quadratic[j].U
		}
		return out.Quadratic[i].V < out.Quadratic[j].V
	})
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Problem) UnmarshalJSON(data []byte) error {
	var in problemJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	var vt Vartype
	switch in.Vartype {
	case "SPIN":
		vt = Spin
	case "BINARY":
		vt = Binary
	default:
		return fmt.Errorf("unknown vartype %q", in.Vartype)
	}

	quadratic := make(map[[2]string]float64, len(in.Quadratic))
	for _, term := range in.Quadratic {
		quadratic[[2]string{term.U, term.V}] += term.Bias
	}

	built, err := NewProblem(in.Linear, quadratic, in.Offset, vt)
	if err != nil {
		return err
	}
	*p = *built
	return nil
}
