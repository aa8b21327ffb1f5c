package flow

import (
	"context"
	"errors"
	"testing"
)

// appendStage records its tag in the state under "trace".
func appendStage(tag string) Runnable {
	return RunnableFunc(func(_ context.Context, state State, _ Params) (State, error) {
		var trace []string
		if v, ok := state.Field("trace"); ok {
			trace = v.([]string)
		}
		next := make([]string, len(trace), len(trace)+1)
		copy(next, trace)
		next = append(next, tag)
		return state.Updated(Fields{"trace": next}), nil
	})
}

func stateTrace(t *testing.T, state State) []string {
	t.Helper()
	v, ok := state.Field("trace")
	if !ok {
		return nil
	}
	return v.([]string)
}

func TestBranch(t *testing.T) {
	t.Run("stages run in order", func(t *testing.T) {
		state, _ := FromProblem(testProblem(t), nil)
		b := NewBranch(appendStage("one"), appendStage("two"), appendStage("three"))

		out, err := b.Run(context.Background(), state, nil).Result()
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		trace := stateTrace(t, out)
		if len(trace) != 3 || trace[0] != "one" || trace[2] != "three" {
			t.Errorf("unexpected stage order %v", trace)
		}
	})

	t.Run("first error aborts later stages", func(t *testing.T) {
		state, _ := FromProblem(testProblem(t), nil)
		boom := errors.New("boom")
		ran := false
		b := NewBranch(
			RunnableFunc(func(context.Context, State, Params) (State, error) {
				return State{}, boom
			}),
			RunnableFunc(func(_ context.Context, s State, _ Params) (State, error) {
				ran = true
				return s, nil
			}),
		)

		_, err := b.Run(context.Background(), state, nil).Result()
		if !errors.Is(err, boom) {
			t.Fatalf("expected the stage error, got %v", err)
		}
		if ran {
			t.Error("later stage ran after a failure")
		}
	})

	t.Run("schedule exhaustion propagates unchanged", func(t *testing.T) {
		state, _ := FromProblem(testProblem(t), nil)
		b := NewBranch(
			RunnableFunc(func(context.Context, State, Params) (State, error) {
				return State{}, ErrScheduleExhausted
			}),
			appendStage("unreachable"),
		)

		_, err := b.Run(context.Background(), state, nil).Result()
		if !errors.Is(err, ErrScheduleExhausted) {
			t.Fatalf("expected ErrScheduleExhausted, got %v", err)
		}
	})

	t.Run("overrides reach every stage", func(t *testing.T) {
		state, _ := FromProblem(testProblem(t), nil)
		var got float64
		b := NewBranch(RunnableFunc(func(_ context.Context, s State, overrides Params) (State, error) {
			v, err := ResolveFloat("beta", overrides, s, nil)
			got = v
			return s, err
		}))

		if _, err := b.Run(context.Background(), state, Params{"beta": 0.7}).Result(); err != nil {
			t.Fatalf("Run: %v", err)
		}
		if got != 0.7 {
			t.Errorf("expected override 0.7, got %v", got)
		}
	})

	t.Run("cancellation returns the partial state", func(t *testing.T) {
		state, _ := FromProblem(testProblem(t), nil)
		ctx, cancel := context.WithCancel(context.Background())
		b := NewBranch(
			RunnableFunc(func(_ context.Context, s State, _ Params) (State, error) {
				cancel()
				return s.Updated(Fields{"trace": []string{"one"}}), nil
			}),
			appendStage("two"),
		)

		out, err := b.Run(ctx, state, nil).Result()
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		trace := stateTrace(t, out)
		if len(trace) != 1 || trace[0] != "one" {
			t.Errorf("expected only the first stage's work, got %v", trace)
		}
	})
}
