package store

import (
	"context"
	"errors"
	"testing"
)

// testState is a minimal JSON-serializable state for store tests.
type testState struct {
	Best  float64 `json:"best"`
	Label string  `json:"label"`
}

// exerciseStore runs the shared Store contract against any backend.
func exerciseStore(t *testing.T, st Store[testState]) {
	t.Helper()
	ctx := context.Background()

	t.Run("load latest on unknown run", func(t *testing.T) {
		_, _, err := st.LoadLatest(ctx, "no-such-run")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("latest step wins", func(t *testing.T) {
		if err := st.SaveStep(ctx, "run-a", 1, "loop", testState{Best: -1, Label: "first"}); err != nil {
			t.Fatalf("SaveStep: %v", err)
		}
		if err := st.SaveStep(ctx, "run-a", 2, "loop", testState{Best: -4, Label: "second"}); err != nil {
			t.Fatalf("SaveStep: %v", err)
		}

		state, step, err := st.LoadLatest(ctx, "run-a")
		if err != nil {
			t.Fatalf("LoadLatest: %v", err)
		}
		if step != 2 || state.Best != -4 {
			t.Errorf("expected step 2 with best -4, got step %d best %v", step, state.Best)
		}
	})

	t.Run("re-saving a step replaces it", func(t *testing.T) {
		if err := st.SaveStep(ctx, "run-b", 1, "loop", testState{Best: 0}); err != nil {
			t.Fatalf("SaveStep: %v", err)
		}
		if err := st.SaveStep(ctx, "run-b", 1, "loop", testState{Best: -9}); err != nil {
			t.Fatalf("SaveStep: %v", err)
		}

		state, _, err := st.LoadLatest(ctx, "run-b")
		if err != nil {
			t.Fatalf("LoadLatest: %v", err)
		}
		if state.Best != -9 {
			t.Errorf("expected replacement state, got %v", state.Best)
		}
	})

	t.Run("checkpoint round trip", func(t *testing.T) {
		if err := st.SaveCheckpoint(ctx, "cp-final", testState{Best: -7, Label: "done"}, 42); err != nil {
			t.Fatalf("SaveCheckpoint: %v", err)
		}

		state, step, err := st.LoadCheckpoint(ctx, "cp-final")
		if err != nil {
			t.Fatalf("LoadCheckpoint: %v", err)
		}
		if step != 42 || state.Label != "done" {
			t.Errorf("unexpected checkpoint: step %d state %+v", step, state)
		}

		// Overwrite.
		if err := st.SaveCheckpoint(ctx, "cp-final", testState{Best: -8}, 43); err != nil {
			t.Fatalf("SaveCheckpoint: %v", err)
		}
		state, step, err = st.LoadCheckpoint(ctx, "cp-final")
		if err != nil {
			t.Fatalf("LoadCheckpoint: %v", err)
		}
		if step != 43 || state.Best != -8 {
			t.Errorf("expected overwritten checkpoint, got step %d state %+v", step, state)
		}
	})

	t.Run("unknown checkpoint", func(t *testing.T) {
		_, _, err := st.LoadCheckpoint(ctx, "no-such-cp")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}
