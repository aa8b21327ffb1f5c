package flow

import (
	"github.com/quantalab/hybridflow/flow/emit"
	"github.com/quantalab/hybridflow/flow/store"
)

// StopCondition decides whether a Loop should terminate. It receives the
// state before and after the iteration that just completed, and the
// 1-based iteration index. Returning true stops the loop with next as
// its final output.
type StopCondition func(prev, next State, iteration int) bool

// CombinePolicy selects how a Race merges its branch outputs.
type CombinePolicy int

const (
	// BestOf keeps the single branch output whose population's best
	// sample has the lowest energy.
	BestOf CombinePolicy = iota

	// Concat concatenates the populations of all surviving branches.
	Concat
)

// composeConfig collects the options shared by the combinators.
type composeConfig struct {
	name    string
	runID   string
	emitter emit.Emitter
	metrics *Metrics
	store   store.Store[State]

	// Loop
	maxIter int
	stop    StopCondition

	// Race
	combine        CombinePolicy
	firstCompleted bool
}

func newComposeConfig(name string, opts []Option) composeConfig {
	cfg := composeConfig{
		name:    name,
		emitter: emit.NewNullEmitter(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.runID == "" {
		cfg.runID = NewRunID()
	}
	return cfg
}

func (c *composeConfig) emit(ev emit.Event) {
	ev.RunID = c.runID
	c.emitter.Emit(ev)
}

// Option configures a combinator.
type Option func(*composeConfig)

// WithName labels the combinator in events and metrics.
func WithName(name string) Option {
	return func(c *composeConfig) { c.name = name }
}

// WithRunID fixes the run identifier instead of generating a ULID.
func WithRunID(runID string) Option {
	return func(c *composeConfig) { c.runID = runID }
}

// WithEmitter routes lifecycle events to the given emitter.
func WithEmitter(e emit.Emitter) Option {
	return func(c *composeConfig) {
		if e != nil {
			c.emitter = e
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(c *composeConfig) { c.metrics = m }
}

// WithStore persists a state snapshot after every completed loop
// iteration, keyed by the combinator's run ID.
func WithStore(st store.Store[State]) Option {
	return func(c *composeConfig) { c.store = st }
}

// WithMaxIter caps a Loop at n iterations. Zero means no cap.
func WithMaxIter(n int) Option {
	return func(c *composeConfig) { c.maxIter = n }
}

// WithStopCondition installs a Loop termination predicate, checked after
// each completed iteration.
func WithStopCondition(stop StopCondition) Option {
	return func(c *composeConfig) { c.stop = stop }
}

// WithCombinePolicy selects a Race's merge policy (default BestOf).
func WithCombinePolicy(p CombinePolicy) Option {
	return func(c *composeConfig) { c.combine = p }
}

// WithFirstCompleted makes a Race resolve with its first successful
// branch and cancel the rest, instead of awaiting all branches.
func WithFirstCompleted() Option {
	return func(c *composeConfig) { c.firstCompleted = true }
}

// NoImprovementWindow returns a StopCondition that stops a loop once the
// best sample energy has not improved for window consecutive iterations.
func NoImprovementWindow(window int) StopCondition {
	stagnant := 0
	return func(prev, next State, _ int) bool {
		prevBest, okPrev := prev.Samples().First()
		nextBest, okNext := next.Samples().First()
		if !okPrev || !okNext {
			return false
		}
		if nextBest.Energy < prevBest.Energy {
			stagnant = 0
			return false
		}
		stagnant++
		return stagnant >= window
	}
}
