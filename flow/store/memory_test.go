package store

import (
	"context"
	"testing"
)

func TestMemStore(t *testing.T) {
	exerciseStore(t, NewMemStore[testState]())
}

func TestMemStoreSteps(t *testing.T) {
	st := NewMemStore[testState]()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if err := st.SaveStep(ctx, "run-a", i, "loop", testState{Best: float64(-i)}); err != nil {
			t.Fatalf("SaveStep: %v", err)
		}
	}

	steps := st.Steps("run-a")
	if len(steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(steps))
	}
	if steps[2].Step != 3 || steps[2].State.Best != -3 {
		t.Errorf("unexpected last step: %+v", steps[2])
	}

	// Returned history is a copy.
	steps[0].Label = "mutated"
	if st.Steps("run-a")[0].Label != "loop" {
		t.Error("caller mutation leaked into the store")
	}
}
