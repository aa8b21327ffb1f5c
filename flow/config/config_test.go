package config

import (
	"context"
	"strings"
	"testing"

	"github.com/quantalab/hybridflow/flow"
	"github.com/quantalab/hybridflow/flow/model"
)

const paYAML = `
workflow: population_annealing
seed: 42
population_annealing:
  num_reads: 8
  num_iter: 5
  num_sweeps: 10
  interpolation: linear
`

func TestParse(t *testing.T) {
	t.Run("valid document", func(t *testing.T) {
		cfg, err := Parse(strings.NewReader(paYAML))
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if cfg.Workflow != WorkflowPopulationAnnealing {
			t.Errorf("unexpected workflow %q", cfg.Workflow)
		}
		if cfg.PopulationAnnealing.NumReads != 8 {
			t.Errorf("expected num_reads 8, got %d", cfg.PopulationAnnealing.NumReads)
		}
		if cfg.Seed != 42 {
			t.Errorf("expected seed 42, got %d", cfg.Seed)
		}
	})

	t.Run("unknown keys are rejected", func(t *testing.T) {
		doc := "workflow: kerberos\nkerberos:\n  max_itr: 5\n"
		if _, err := Parse(strings.NewReader(doc)); err == nil {
			t.Error("expected error for misspelled key")
		}
	})

	t.Run("missing workflow is rejected", func(t *testing.T) {
		if _, err := Parse(strings.NewReader("seed: 1\n")); err == nil {
			t.Error("expected error for missing workflow")
		}
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{Workflow: WorkflowKerberos}
	}

	t.Run("unknown workflow", func(t *testing.T) {
		c := valid()
		c.Workflow = "quantum_leap"
		if err := c.Validate(); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("bad beta range", func(t *testing.T) {
		c := valid()
		c.PopulationAnnealing.BetaRange = []float64{1}
		if err := c.Validate(); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("bad interpolation", func(t *testing.T) {
		c := valid()
		c.PopulationAnnealing.Interpolation = "cubic"
		if err := c.Validate(); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("sql drivers require a dsn", func(t *testing.T) {
		c := valid()
		c.Store.Driver = "sqlite"
		if err := c.Validate(); err == nil {
			t.Error("expected error")
		}
		c.Store.DSN = "runs.db"
		if err := c.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("unknown store driver", func(t *testing.T) {
		c := valid()
		c.Store.Driver = "etcd"
		if err := c.Validate(); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("unknown logging format", func(t *testing.T) {
		c := valid()
		c.Logging.Format = "xml"
		if err := c.Validate(); err == nil {
			t.Error("expected error")
		}
	})
}

func TestBuild(t *testing.T) {
	t.Run("population annealing workflow runs", func(t *testing.T) {
		cfg, err := Parse(strings.NewReader(paYAML))
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		w, err := cfg.Build()
		if err != nil {
			t.Fatalf("Build: %v", err)
		}

		p, err := model.FromIsing(nil, map[[2]string]float64{{"a", "b"}: -1}, 0)
		if err != nil {
			t.Fatalf("FromIsing: %v", err)
		}
		state, err := flow.FromProblem(p, nil)
		if err != nil {
			t.Fatalf("FromProblem: %v", err)
		}

		out, err := w.Run(context.Background(), state, nil).Result()
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		best, ok := out.Samples().First()
		if !ok || best.Energy != -1 {
			t.Errorf("expected ground energy -1, got %v", best.Energy)
		}
	})

	t.Run("memory store builds", func(t *testing.T) {
		c := &Config{Workflow: WorkflowParallelTempering, Store: Persistence{Driver: "memory"}}
		st, err := c.BuildStore()
		if err != nil {
			t.Fatalf("BuildStore: %v", err)
		}
		if st == nil {
			t.Fatal("expected a store")
		}
	})

	t.Run("no driver means no store", func(t *testing.T) {
		c := &Config{Workflow: WorkflowKerberos}
		st, err := c.BuildStore()
		if err != nil {
			t.Fatalf("BuildStore: %v", err)
		}
		if st != nil {
			t.Error("expected nil store when persistence is disabled")
		}
	})
}
