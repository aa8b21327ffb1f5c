// Package emit provides pluggable observability for workflow execution:
// structured events describing runnable lifecycle, and emitter backends
// that log, buffer, or trace them.
package emit

// Event describes one observability event from a workflow run.
//
// Events are produced by the composition combinators (branch stages,
// race branches, loop iterations) and by instrumented runnables.
type Event struct {
	// RunID identifies the workflow run that produced this event.
	RunID string

	// Iteration is the loop iteration counter, when the event originates
	// inside a loop. Zero for non-loop events.
	Iteration int

	// Runnable names the runnable the event refers to. Empty for
	// run-level events.
	Runnable string

	// Msg is a short machine-matchable description, e.g. "stage_completed",
	// "branch_failed", "loop_terminated".
	Msg string

	// Meta carries additional structured data. Common keys:
	//   - "error": failure description
	//   - "best_energy": lowest sample energy after the step
	//   - "beta": current inverse temperature
	//   - "duration_ms": execution duration
	Meta map[string]any
}
