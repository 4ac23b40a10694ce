package cache

import (
	"math"
	"testing"

	domrepo "HelixPull/internal/domain/repository"
)

func TestDeltaUnavailableWithoutData(t *testing.T) {
	c := NewPriceCache()
	if _, ok := c.Delta("BTCUSDT", domrepo.TF1m); ok {
		t.Fatalf("delta should be unavailable on empty cache")
	}

	c.SetOpen("BTCUSDT", domrepo.TF1m, "45000", 1000)
	if _, ok := c.Delta("BTCUSDT", domrepo.TF1m); ok {
		t.Fatalf("delta should be unavailable without a current price")
	}

	c.SetCurrent("ETHUSDT", "3200")
	if _, ok := c.Delta("ETHUSDT", domrepo.TF1m); ok {
		t.Fatalf("delta should be unavailable without an open price")
	}
}

func TestDeltaValue(t *testing.T) {
	c := NewPriceCache()
	c.SetOpen("BTCUSDT", domrepo.TF1h, "45000", 1000)
	c.SetCurrent("BTCUSDT", "45100")

	d, ok := c.Delta("BTCUSDT", domrepo.TF1h)
	if !ok {
		t.Fatalf("expected delta")
	}
	if math.Abs(d-0.2222222222) > 1e-6 {
		t.Fatalf("delta = %v, want ~0.2222", d)
	}
}

func TestDeltaZeroOrBadOpen(t *testing.T) {
	c := NewPriceCache()
	c.SetOpen("BTCUSDT", domrepo.TF1m, "0", 1000)
	c.SetCurrent("BTCUSDT", "45100")
	if _, ok := c.Delta("BTCUSDT", domrepo.TF1m); ok {
		t.Fatalf("zero open must yield unavailable")
	}

	c.SetOpen("BTCUSDT", domrepo.TF5m, "not-a-number", 1000)
	if _, ok := c.Delta("BTCUSDT", domrepo.TF5m); ok {
		t.Fatalf("unparseable open must yield unavailable")
	}
}

func TestSetOpenIdempotentPerOpenTime(t *testing.T) {
	c := NewPriceCache()
	if !c.SetOpen("BTCUSDT", domrepo.TF1m, "45000", 1000) {
		t.Fatalf("first open should record a new period")
	}
	// Same openTime, different open value: first observation wins.
	if c.SetOpen("BTCUSDT", domrepo.TF1m, "46000", 1000) {
		t.Fatalf("same openTime must be a no-op")
	}
	c.SetCurrent("BTCUSDT", "45450")
	d, ok := c.Delta("BTCUSDT", domrepo.TF1m)
	if !ok || math.Abs(d-1.0) > 1e-9 {
		t.Fatalf("delta = %v ok=%v, want 1.0 against the first open", d, ok)
	}
}

func TestSetOpenNewPeriodReplaces(t *testing.T) {
	c := NewPriceCache()
	c.SetOpen("BTCUSDT", domrepo.TF1m, "45000", 1000)
	if !c.SetOpen("BTCUSDT", domrepo.TF1m, "46000", 61000) {
		t.Fatalf("new openTime must replace the cached open")
	}
	c.SetCurrent("BTCUSDT", "46460")
	d, ok := c.Delta("BTCUSDT", domrepo.TF1m)
	if !ok || math.Abs(d-1.0) > 1e-9 {
		t.Fatalf("delta = %v ok=%v, want 1.0 against the new open", d, ok)
	}
}

func TestSetCurrentMateriality(t *testing.T) {
	c := NewPriceCache()
	if !c.SetCurrent("BTCUSDT", "45000.00") {
		t.Fatalf("first price is always material")
	}
	if c.SetCurrent("BTCUSDT", "45000.005") {
		t.Fatalf("sub-epsilon move should not be material")
	}
	if !c.SetCurrent("BTCUSDT", "45000.02") {
		t.Fatalf("move above epsilon should be material")
	}
	// Last write wins regardless of materiality.
	got, _ := c.Current("BTCUSDT")
	if got != "45000.02" {
		t.Fatalf("current = %s, want last written", got)
	}
}

func TestSnapshotIsConsistentCopy(t *testing.T) {
	c := NewPriceCache()
	c.SetOpen("BTCUSDT", domrepo.TF1m, "100", 1000)
	c.SetCurrent("BTCUSDT", "110")

	snap := c.Snapshot()
	c.SetCurrent("BTCUSDT", "200")
	c.SetOpen("BTCUSDT", domrepo.TF1m, "150", 61000)

	d, ok := snap.Delta("BTCUSDT", domrepo.TF1m)
	if !ok || math.Abs(d-10.0) > 1e-9 {
		t.Fatalf("snapshot delta = %v ok=%v, want 10.0 unaffected by later writes", d, ok)
	}
}
