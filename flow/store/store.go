// Package store persists workflow run history: per-iteration state
// snapshots and named checkpoints for later resumption.
//
// Backends: in-memory (testing/single-process), SQLite (single file,
// zero setup), MySQL (shared server deployments). State snapshots are
// serialized to JSON, so the state type must round-trip through
// encoding/json.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a run ID or checkpoint ID does not exist.
var ErrNotFound = errors.New("not found")

// StepRecord is one persisted iteration of a workflow run.
type StepRecord[S any] struct {
	// Step is the 1-based iteration number within the run.
	Step int

	// Label names the workflow stage that produced this state.
	Label string

	// State is the full state snapshot after the iteration.
	State S
}

// Checkpoint is a named snapshot of a run, created explicitly so a
// workflow can be branched or resumed from a known point.
type Checkpoint[S any] struct {
	ID    string
	State S
	Step  int
}

// Store provides persistence for workflow state snapshots.
//
// Loops write a StepRecord after every completed iteration when
// configured with a store; checkpoints are saved on demand.
//
// Type parameter S is the state type to persist.
type Store[S any] interface {
	// SaveStep persists the state after one loop iteration.
	SaveStep(ctx context.Context, runID string, step int, label string, state S) error

	// LoadLatest retrieves the most recent snapshot for a run, returning
	// ErrNotFound if the run has no persisted steps.
	LoadLatest(ctx context.Context, runID string) (state S, step int, err error)

	// SaveCheckpoint stores a named snapshot. An existing checkpoint with
	// the same ID is overwritten.
	SaveCheckpoint(ctx context.Context, cpID string, state S, step int) error

	// LoadCheckpoint retrieves a named snapshot, returning ErrNotFound if
	// no checkpoint with this ID exists.
	LoadCheckpoint(ctx context.Context, cpID string) (state S, step int, err error)
}
