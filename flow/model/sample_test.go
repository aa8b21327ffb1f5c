package model

import (
	"math/rand"
	"testing"
)

func TestFirst(t *testing.T) {
	t.Run("lowest energy wins", func(t *testing.T) {
		ss := NewSampleSet([]Sample{
			{Assignment: map[string]int{"a": 1}, Energy: 2, Occurrences: 1},
			{Assignment: map[string]int{"a": -1}, Energy: -3, Occurrences: 1},
			{Assignment: map[string]int{"a": 1}, Energy: 0, Occurrences: 1},
		}, nil)
		best, ok := ss.First()
		if !ok {
			t.Fatal("expected a best sample")
		}
		if best.Energy != -3 {
			t.Errorf("expected best energy -3, got %v", best.Energy)
		}
	})

	t.Run("earliest wins ties", func(t *testing.T) {
		ss := NewSampleSet([]Sample{
			{Assignment: map[string]int{"a": 1}, Energy: 1, Occurrences: 1},
			{Assignment: map[string]int{"a": -1}, Energy: 1, Occurrences: 1},
		}, nil)
		best, _ := ss.First()
		if best.Assignment["a"] != 1 {
			t.Errorf("expected the earlier sample on a tie, got %v", best.Assignment)
		}
	})

	t.Run("empty set", func(t *testing.T) {
		if _, ok := NewSampleSet(nil, nil).First(); ok {
			t.Error("expected no best sample from an empty set")
		}
	})
}

func TestAggregate(t *testing.T) {
	ss := NewSampleSet([]Sample{
		{Assignment: map[string]int{"a": 1, "b": -1}, Energy: 1, Occurrences: 2},
		{Assignment: map[string]int{"a": -1, "b": -1}, Energy: 0, Occurrences: 1},
		{Assignment: map[string]int{"a": 1, "b": -1}, Energy: 1, Occurrences: 3},
	}, nil)

	agg := ss.Aggregate()
	if agg.Len() != 2 {
		t.Fatalf("expected 2 aggregated samples, got %d", agg.Len())
	}
	// First-seen order is preserved.
	if got := agg.Get(0).Occurrences; got != 5 {
		t.Errorf("expected merged occurrences 5, got %d", got)
	}
	if got := agg.Get(1).Occurrences; got != 1 {
		t.Errorf("expected occurrences 1, got %d", got)
	}
}

func TestConcat(t *testing.T) {
	p, _ := FromIsing(map[string]float64{"a": 1}, nil, 0)
	first := MinSampleSet(p).WithInfo("origin", "first")
	second := NewSampleSet([]Sample{
		{Assignment: map[string]int{"a": 1}, Energy: 1, Occurrences: 1},
	}, nil)

	merged := first.Concat(second)
	if merged.Len() != 2 {
		t.Fatalf("expected 2 samples, got %d", merged.Len())
	}
	if v, ok := merged.InfoValue("origin"); !ok || v != "first" {
		t.Errorf("expected receiver info to survive, got %v", v)
	}
	// Receiver is unchanged.
	if first.Len() != 1 {
		t.Errorf("expected receiver untouched, got %d samples", first.Len())
	}
}

func TestMinSampleSet(t *testing.T) {
	p, _ := FromIsing(map[string]float64{"a": 1, "b": -2}, nil, 0)
	ss := MinSampleSet(p)
	if ss.Len() != 1 {
		t.Fatalf("expected a single sample, got %d", ss.Len())
	}
	s := ss.Get(0)
	if s.Assignment["a"] != -1 || s.Assignment["b"] != -1 {
		t.Errorf("expected all-minimum assignment, got %v", s.Assignment)
	}
	if got, want := s.Energy, p.Energy(s.Assignment); got != want {
		t.Errorf("expected recorded energy %v, got %v", want, got)
	}
}

func TestFromAssignments(t *testing.T) {
	p, _ := FromIsing(map[string]float64{"a": 1, "b": 1}, nil, 0)

	t.Run("valid assignments get energies", func(t *testing.T) {
		ss, err := FromAssignments(p, []map[string]int{{"a": 1, "b": -1}})
		if err != nil {
			t.Fatalf("FromAssignments: %v", err)
		}
		if got := ss.Get(0).Energy; got != 0 {
			t.Errorf("expected energy 0, got %v", got)
		}
	})

	t.Run("invalid assignment rejected", func(t *testing.T) {
		if _, err := FromAssignments(p, []map[string]int{{"a": 1}}); err == nil {
			t.Error("expected validation error")
		}
	})
}

func TestRandomSampleSet(t *testing.T) {
	p, _ := FromIsing(map[string]float64{"a": 0, "b": 0, "c": 0}, nil, 0)
	rng := rand.New(rand.NewSource(42))
	ss := RandomSampleSet(p, 5, rng)
	if ss.Len() != 5 {
		t.Fatalf("expected 5 samples, got %d", ss.Len())
	}
	for i := 0; i < ss.Len(); i++ {
		if err := p.ValidateAssignment(ss.Get(i).Assignment); err != nil {
			t.Errorf("sample %d invalid: %v", i, err)
		}
	}
}
