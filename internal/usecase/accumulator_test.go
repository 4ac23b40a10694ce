package usecase

import (
	"math"
	"testing"
	"time"

	domrepo "HelixPull/internal/domain/repository"
)

func TestAccumulatorFirstObservationFolds(t *testing.T) {
	acc := NewAccumulator()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	cum, last := acc.Apply(domrepo.TF1m, 2.5, t0)
	if cum != 2.5 {
		t.Fatalf("cumulative = %v, want 2.5", cum)
	}
	if !last.Equal(t0) {
		t.Fatalf("lastUpdate = %v, want t0", last)
	}
}

func TestAccumulatorGateHolds(t *testing.T) {
	acc := NewAccumulator()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	acc.Apply(domrepo.TF1m, 2.5, t0)

	// 30s later: inside the 1m window, nothing folds.
	cum, last := acc.Apply(domrepo.TF1m, 4.0, t0.Add(30*time.Second))
	if cum != 2.5 {
		t.Fatalf("cumulative = %v, want 2.5 (gated)", cum)
	}
	if !last.Equal(t0) {
		t.Fatalf("lastUpdate must be untouched while gated")
	}
}

func TestAccumulatorGateOpens(t *testing.T) {
	acc := NewAccumulator()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	acc.Apply(domrepo.TF1m, 2.5, t0)

	t1 := t0.Add(time.Minute) // exactly one duration later
	cum, last := acc.Apply(domrepo.TF1m, 4.0, t1)
	if math.Abs(cum-6.5) > 1e-9 {
		t.Fatalf("cumulative = %v, want 6.5", cum)
	}
	if !last.Equal(t1) {
		t.Fatalf("lastUpdate = %v, want t1", last)
	}
}

func TestAccumulatorTimeframesIndependent(t *testing.T) {
	acc := NewAccumulator()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	acc.Apply(domrepo.TF1m, 1.0, t0)
	acc.Apply(domrepo.TF1h, 10.0, t0)

	// Within the hour but past the minute.
	acc.Apply(domrepo.TF1m, 1.0, t0.Add(2*time.Minute))
	acc.Apply(domrepo.TF1h, 10.0, t0.Add(2*time.Minute))

	if cum, _ := acc.State(domrepo.TF1m); cum != 2.0 {
		t.Fatalf("1m cumulative = %v, want 2.0", cum)
	}
	if cum, _ := acc.State(domrepo.TF1h); cum != 10.0 {
		t.Fatalf("1h cumulative = %v, want 10.0 (gated)", cum)
	}
}

func TestAccumulatorRestore(t *testing.T) {
	acc := NewAccumulator()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	acc.Restore(domrepo.TF1d, 42.0, t0)

	// Within the day: gated against the restored lastUpdate.
	cum, _ := acc.Apply(domrepo.TF1d, 5.0, t0.Add(time.Hour))
	if cum != 42.0 {
		t.Fatalf("cumulative = %v, want restored 42.0", cum)
	}
	cum, _ = acc.Apply(domrepo.TF1d, 5.0, t0.Add(24*time.Hour))
	if cum != 47.0 {
		t.Fatalf("cumulative = %v, want 47.0 after gate", cum)
	}
}
