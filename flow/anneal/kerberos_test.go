package anneal

import (
	"context"
	"testing"

	"github.com/quantalab/hybridflow/flow"
	"github.com/quantalab/hybridflow/flow/emit"
	"github.com/quantalab/hybridflow/flow/model"
	"github.com/quantalab/hybridflow/flow/sampler"
)

func chainProblem(t *testing.T) *model.Problem {
	t.Helper()
	p, err := model.FromIsing(nil, map[[2]string]float64{
		{"a", "b"}: -1,
		{"b", "c"}: -1,
		{"c", "d"}: -1,
	}, 0)
	if err != nil {
		t.Fatalf("FromIsing: %v", err)
	}
	return p
}

func TestKerberos(t *testing.T) {
	t.Run("finds the chain ground state", func(t *testing.T) {
		state, err := flow.FromProblem(chainProblem(t), nil)
		if err != nil {
			t.Fatalf("FromProblem: %v", err)
		}
		k := NewKerberos(KerberosConfig{
			MaxIter:           3,
			ConvergenceWindow: 2,
			NumReads:          1,
			NumSweeps:         200,
			MaxSubproblemSize: 2,
			Seed:              23,
		})

		out, err := k.Run(context.Background(), state, nil).Result()
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		best, ok := out.Samples().First()
		if !ok {
			t.Fatal("expected a final population")
		}
		if best.Energy != -3 {
			t.Errorf("expected ground energy -3, got %v", best.Energy)
		}
	})

	t.Run("stalls stop the loop before the cap", func(t *testing.T) {
		state, _ := flow.FromProblem(chainProblem(t), nil)
		buffer := emit.NewBufferedEmitter()
		k := NewKerberos(KerberosConfig{
			MaxIter:           50,
			ConvergenceWindow: 2,
			NumReads:          1,
			NumSweeps:         200,
			MaxSubproblemSize: 2,
			Seed:              23,
		}, flow.WithEmitter(buffer), flow.WithRunID("kerberos-run"))

		if _, err := k.Run(context.Background(), state, nil).Result(); err != nil {
			t.Fatalf("Run: %v", err)
		}
		// The first iteration reaches the ground state; two stagnant
		// iterations later the window trips, well short of 50.
		iterations := buffer.HistoryByMsg("kerberos-run", "iteration_completed")
		if len(iterations) >= 50 {
			t.Errorf("expected early convergence, ran %d iterations", len(iterations))
		}
		if len(buffer.HistoryByMsg("kerberos-run", "loop_converged")) != 1 {
			t.Error("expected a loop_converged event")
		}
	})

	t.Run("init sample seeds the population", func(t *testing.T) {
		state, _ := flow.FromProblem(chainProblem(t), nil)
		init := map[string]int{"a": 1, "b": 1, "c": 1, "d": 1}
		k := NewKerberos(KerberosConfig{
			MaxIter:           1,
			ConvergenceWindow: 1,
			NumReads:          1,
			NumSweeps:         50,
			MaxSubproblemSize: 2,
			InitSample:        init,
			Seed:              23,
		})

		out, err := k.Run(context.Background(), state, nil).Result()
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		best, _ := out.Samples().First()
		// The all-up seed is itself a ground state.
		if best.Energy != -3 {
			t.Errorf("expected ground energy -3, got %v", best.Energy)
		}
	})

	t.Run("invalid init sample fails", func(t *testing.T) {
		state, _ := flow.FromProblem(chainProblem(t), nil)
		k := NewKerberos(KerberosConfig{
			MaxIter:    1,
			InitSample: map[string]int{"a": 1}, // incomplete
			Seed:       23,
		})

		if _, err := k.Run(context.Background(), state, nil).Result(); err == nil {
			t.Error("expected validation error for incomplete init sample")
		}
	})

	t.Run("delegated branch uses the custom subproblem sampler", func(t *testing.T) {
		state, _ := flow.FromProblem(chainProblem(t), nil)
		rec := recordingSampler{calls: make(chan int, 16)}
		k := NewKerberos(KerberosConfig{
			MaxIter:           2,
			ConvergenceWindow: 1,
			NumReads:          1,
			NumSweeps:         100,
			MaxSubproblemSize: 2,
			SubproblemSampler: rec,
			Seed:              23,
		})

		if _, err := k.Run(context.Background(), state, nil).Result(); err != nil {
			t.Fatalf("Run: %v", err)
		}
		if len(rec.calls) == 0 {
			t.Error("expected the custom sampler to be invoked")
		}
		if size := <-rec.calls; size > 2 {
			t.Errorf("expected a subproblem of at most 2 variables, got %d", size)
		}
	})
}

// recordingSampler delegates to tabu search while counting invocations.
type recordingSampler struct {
	calls chan int
}

func (r recordingSampler) Sample(ctx context.Context, p *model.Problem, params sampler.Params) (*model.SampleSet, error) {
	select {
	case r.calls <- p.NumVariables():
	default:
	}
	return sampler.NewTabuSampler().Sample(ctx, p, params)
}
