package sampler

import (
	"context"
	"testing"

	"github.com/quantalab/hybridflow/flow/model"
)

// ferromagnet builds a small Ising chain whose ground states are the two
// fully aligned configurations at energy -(n-1).
func ferromagnet(t *testing.T, n int) *model.Problem {
	t.Helper()
	j := make(map[[2]string]float64)
	names := []string{"a", "b", "c", "d", "e", "f"}
	for i := 0; i < n-1; i++ {
		j[[2]string{names[i], names[i+1]}] = -1
	}
	p, err := model.FromIsing(nil, j, 0)
	if err != nil {
		t.Fatalf("FromIsing: %v", err)
	}
	return p
}

func TestSimulatedAnnealingSampler(t *testing.T) {
	t.Run("finds the ground state of a small chain", func(t *testing.T) {
		p := ferromagnet(t, 4)
		ss, err := NewSimulatedAnnealingSampler().Sample(context.Background(), p, Params{
			NumReads:  5,
			NumSweeps: 200,
			Seed:      7,
		})
		if err != nil {
			t.Fatalf("Sample: %v", err)
		}
		best, ok := ss.First()
		if !ok {
			t.Fatal("expected samples")
		}
		if best.Energy != -3 {
			t.Errorf("expected ground energy -3, got %v", best.Energy)
		}
	})

	t.Run("population size matches num reads", func(t *testing.T) {
		p := ferromagnet(t, 3)
		ss, err := NewSimulatedAnnealingSampler().Sample(context.Background(), p, Params{
			NumReads:  7,
			NumSweeps: 10,
			Seed:      1,
		})
		if err != nil {
			t.Fatalf("Sample: %v", err)
		}
		if ss.Len() != 7 {
			t.Errorf("expected 7 samples, got %d", ss.Len())
		}
	})

	t.Run("records the beta range", func(t *testing.T) {
		p := ferromagnet(t, 3)
		ss, err := NewSimulatedAnnealingSampler().Sample(context.Background(), p, Params{
			NumReads:  1,
			NumSweeps: 10,
			BetaRange: []float64{0.1, 5},
			Seed:      1,
		})
		if err != nil {
			t.Fatalf("Sample: %v", err)
		}
		v, ok := ss.InfoValue("beta_range")
		if !ok {
			t.Fatal("expected beta_range info")
		}
		br := v.([]float64)
		if br[0] != 0.1 || br[1] != 5 {
			t.Errorf("unexpected beta range %v", br)
		}
	})

	t.Run("seeded runs are reproducible", func(t *testing.T) {
		p := ferromagnet(t, 4)
		params := Params{NumReads: 3, NumSweeps: 50, Seed: 99}
		a, err := NewSimulatedAnnealingSampler().Sample(context.Background(), p, params)
		if err != nil {
			t.Fatalf("Sample: %v", err)
		}
		b, err := NewSimulatedAnnealingSampler().Sample(context.Background(), p, params)
		if err != nil {
			t.Fatalf("Sample: %v", err)
		}
		for i := 0; i < a.Len(); i++ {
			if a.Get(i).Energy != b.Get(i).Energy {
				t.Fatalf("read %d differs: %v vs %v", i, a.Get(i).Energy, b.Get(i).Energy)
			}
		}
	})

	t.Run("initial population is cycled", func(t *testing.T) {
		p := ferromagnet(t, 3)
		init := model.MinSampleSet(p)
		ss, err := NewSimulatedAnnealingSampler().Sample(context.Background(), p, Params{
			NumReads:          4,
			NumSweeps:         0, // defaults apply, sweeps still anneal
			Seed:              3,
			InitialPopulation: init,
		})
		if err != nil {
			t.Fatalf("Sample: %v", err)
		}
		if ss.Len() != 4 {
			t.Errorf("expected 4 samples, got %d", ss.Len())
		}
	})
}

func TestDefaultBetaRange(t *testing.T) {
	p := ferromagnet(t, 3)
	hot, cold := DefaultBetaRange(p)
	if hot <= 0 {
		t.Errorf("expected positive hot beta, got %v", hot)
	}
	if cold <= hot {
		t.Errorf("expected cold > hot, got hot=%v cold=%v", hot, cold)
	}
}
