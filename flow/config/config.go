// Package config loads annealing workflow definitions from YAML and
// builds them into runnable pipelines.
package config

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/quantalab/hybridflow/flow"
	"github.com/quantalab/hybridflow/flow/anneal"
	"github.com/quantalab/hybridflow/flow/emit"
	"github.com/quantalab/hybridflow/flow/store"
)

// Workflow identifiers accepted by Config.Workflow.
const (
	WorkflowPopulationAnnealing = "population_annealing"
	WorkflowKerberos            = "kerberos"
	WorkflowParallelTempering   = "parallel_tempering"
)

// Config is the root of a workflow definition file.
type Config struct {
	// Workflow selects the pipeline to build.
	Workflow string `yaml:"workflow"`

	// Seed fixes the random streams of every stage; zero draws from
	// the clock.
	Seed int64 `yaml:"seed"`

	PopulationAnnealing PopulationAnnealing `yaml:"population_annealing"`
	Kerberos            Kerberos            `yaml:"kerberos"`
	ParallelTempering   ParallelTempering   `yaml:"parallel_tempering"`

	Store   Persistence `yaml:"store"`
	Logging Logging     `yaml:"logging"`
}

// PopulationAnnealing mirrors anneal.PopulationAnnealingConfig.
type PopulationAnnealing struct {
	NumReads      int       `yaml:"num_reads"`
	NumIter       int       `yaml:"num_iter"`
	NumSweeps     int       `yaml:"num_sweeps"`
	BetaRange     []float64 `yaml:"beta_range"`
	Interpolation string    `yaml:"interpolation"`
}

// Kerberos mirrors anneal.KerberosConfig. The subproblem sampler is a
// code-level collaborator and stays outside the file format.
type Kerberos struct {
	MaxIter           int `yaml:"max_iter"`
	ConvergenceWindow int `yaml:"convergence_window"`
	NumReads          int `yaml:"num_reads"`
	NumSweeps         int `yaml:"num_sweeps"`
	Tenure            int `yaml:"tenure"`
	MaxSubproblemSize int `yaml:"max_subproblem_size"`
}

// ParallelTempering mirrors anneal.ParallelTemperingConfig.
type ParallelTempering struct {
	NumReplicas int       `yaml:"num_replicas"`
	NumIter     int       `yaml:"num_iter"`
	NumSweeps   int       `yaml:"num_sweeps"`
	BetaRange   []float64 `yaml:"beta_range"`
}

// Persistence selects where loop iterations and checkpoints are saved.
type Persistence struct {
	// Driver is one of "", "memory", "sqlite", "mysql". Empty disables
	// persistence.
	Driver string `yaml:"driver"`

	// DSN is the sqlite file path or the mysql connection string.
	DSN string `yaml:"dsn"`
}

// Logging configures the lifecycle event log.
type Logging struct {
	// Enabled turns event logging on.
	Enabled bool `yaml:"enabled"`

	// Format is "text" (default) or "json".
	Format string `yaml:"format"`
}

// Load reads and validates a workflow definition file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads and validates a workflow definition from r.
func Parse(r io.Reader) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for structural errors.
func (c *Config) Validate() error {
	switch c.Workflow {
	case WorkflowPopulationAnnealing, WorkflowKerberos, WorkflowParallelTempering:
	case "":
		return fmt.Errorf("config: workflow is required")
	default:
		return fmt.Errorf("config: unknown workflow %q", c.Workflow)
	}

	if br := c.PopulationAnnealing.BetaRange; len(br) != 0 && len(br) != 2 {
		return fmt.Errorf("config: population_annealing.beta_range must have exactly two endpoints")
	}
	if br := c.ParallelTempering.BetaRange; len(br) != 0 && len(br) != 2 {
		return fmt.Errorf("config: parallel_tempering.beta_range must have exactly two endpoints")
	}
	switch c.PopulationAnnealing.Interpolation {
	case "", string(anneal.Linear), string(anneal.Geometric):
	default:
		return fmt.Errorf("config: unknown interpolation %q", c.PopulationAnnealing.Interpolation)
	}

	switch c.Store.Driver {
	case "", "memory":
	case "sqlite", "mysql":
		if c.Store.DSN == "" {
			return fmt.Errorf("config: store driver %q requires a dsn", c.Store.Driver)
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: unknown logging format %q", c.Logging.Format)
	}
	return nil
}

// Build assembles the configured workflow. Extra options are appended
// after the ones derived from the file, so callers can override them.
func (c *Config) Build(opts ...flow.Option) (flow.Runnable, error) {
	built, err := c.buildOptions()
	if err != nil {
		return nil, err
	}
	built = append(built, opts...)

	switch c.Workflow {
	case WorkflowPopulationAnnealing:
		pa := c.PopulationAnnealing
		return anneal.NewPopulationAnnealing(anneal.PopulationAnnealingConfig{
			NumReads:      pa.NumReads,
			NumIter:       pa.NumIter,
			NumSweeps:     pa.NumSweeps,
			BetaRange:     pa.BetaRange,
			Interpolation: anneal.Interpolation(pa.Interpolation),
			Seed:          c.Seed,
		}, built...), nil
	case WorkflowKerberos:
		k := c.Kerberos
		return anneal.NewKerberos(anneal.KerberosConfig{
			MaxIter:           k.MaxIter,
			ConvergenceWindow: k.ConvergenceWindow,
			NumReads:          k.NumReads,
			NumSweeps:         k.NumSweeps,
			Tenure:            k.Tenure,
			MaxSubproblemSize: k.MaxSubproblemSize,
			Seed:              c.Seed,
		}, built...), nil
	case WorkflowParallelTempering:
		pt := c.ParallelTempering
		return anneal.NewParallelTempering(anneal.ParallelTemperingConfig{
			NumReplicas: pt.NumReplicas,
			NumIter:     pt.NumIter,
			NumSweeps:   pt.NumSweeps,
			BetaRange:   pt.BetaRange,
			Seed:        c.Seed,
		}, built...), nil
	default:
		return nil, fmt.Errorf("config: unknown workflow %q", c.Workflow)
	}
}

// buildOptions derives flow options from the persistence and logging
// sections.
func (c *Config) buildOptions() ([]flow.Option, error) {
	var opts []flow.Option

	if c.Logging.Enabled {
		opts = append(opts, flow.WithEmitter(emit.NewLogEmitter(os.Stderr, c.Logging.Format == "json")))
	}

	st, err := c.BuildStore()
	if err != nil {
		return nil, err
	}
	if st != nil {
		opts = append(opts, flow.WithStore(st))
	}
	return opts, nil
}

// BuildStore opens the configured persistence backend, or returns nil
// when persistence is disabled.
func (c *Config) BuildStore() (store.Store[flow.State], error) {
	switch c.Store.Driver {
	case "":
		return nil, nil
	case "memory":
		return store.NewMemStore[flow.State](), nil
	case "sqlite":
		return store.NewSQLiteStore[flow.State](c.Store.DSN)
	case "mysql":
		return store.NewMySQLStore[flow.State](c.Store.DSN)
	default:
		return nil, fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
}
