package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"HelixPull/internal/domain/models"
	domrepo "HelixPull/internal/domain/repository"
	"HelixPull/internal/service/cache"
	applogger "HelixPull/pkg/logger"
)

type fakeHelixStore struct {
	mu       sync.Mutex
	appended []models.HelixRecord
	notify   chan struct{}
}

func newFakeHelixStore() *fakeHelixStore {
	return &fakeHelixStore{notify: make(chan struct{}, 64)}
}

func (s *fakeHelixStore) Append(_ context.Context, r *models.HelixRecord) error {
	s.mu.Lock()
	s.appended = append(s.appended, *r)
	s.mu.Unlock()
	s.notify <- struct{}{}
	return nil
}

func (s *fakeHelixStore) Latest(context.Context, domrepo.Timeframe) (*models.HelixRecord, error) {
	return nil, nil
}

func (s *fakeHelixStore) History(context.Context, domrepo.Timeframe, int) ([]*models.HelixRecord, error) {
	return nil, nil
}

func (s *fakeHelixStore) records() []models.HelixRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.HelixRecord, len(s.appended))
	copy(out, s.appended)
	return out
}

type fakeBroadcaster struct {
	mu      sync.Mutex
	batches []map[string]models.TimeframeUpdate
	gate    chan struct{} // when set, Publish blocks until a receive
}

func (b *fakeBroadcaster) Publish(updates map[string]models.TimeframeUpdate) {
	if b.gate != nil {
		b.gate <- struct{}{}
	}
	b.mu.Lock()
	b.batches = append(b.batches, updates)
	b.mu.Unlock()
}

func (b *fakeBroadcaster) Subscribers() int { return 1 }

func (b *fakeBroadcaster) published() []map[string]models.TimeframeUpdate {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]map[string]models.TimeframeUpdate, len(b.batches))
	copy(out, b.batches)
	return out
}

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	log, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func seededCache() *cache.PriceCache {
	pc := cache.NewPriceCache()
	pc.SetOpen("BTCUSDT", domrepo.TF1m, "100", 1700000000000)
	pc.SetOpen("ETHUSDT", domrepo.TF1m, "100", 1700000000000)
	pc.SetCurrent("BTCUSDT", "110")
	pc.SetCurrent("ETHUSDT", "95")
	return pc
}

func TestRunPassComputesHelix(t *testing.T) {
	store := newFakeHelixStore()
	bc := &fakeBroadcaster{}
	engine := NewEngine("BTCUSDT", "ETHUSDT", seededCache(), NewAccumulator(), store, bc, nil, testLogger(t))

	engine.RunPass(context.Background())

	batches := bc.published()
	if len(batches) != 1 {
		t.Fatalf("published %d batches, want 1", len(batches))
	}
	update, ok := batches[0]["1m"]
	if !ok {
		t.Fatalf("no 1m update in %v", batches[0])
	}
	// base +10%, comparison -5%, helix +15.
	if update.BaseDelta != "10.00" || update.ComparisonDelta != "-5.00" {
		t.Fatalf("deltas = %s / %s", update.BaseDelta, update.ComparisonDelta)
	}
	if update.HelixValue != "15.00" || update.CumulativeValue != "15.00" {
		t.Fatalf("helix = %s cumulative = %s", update.HelixValue, update.CumulativeValue)
	}
	if update.Interpretation != models.InterpretationBase {
		t.Fatalf("interpretation = %q", update.Interpretation)
	}

	select {
	case <-store.notify:
	case <-time.After(2 * time.Second):
		t.Fatalf("record was not persisted")
	}
	recs := store.records()
	if len(recs) != 1 || recs[0].Timeframe != "1m" || recs[0].HelixValue != 15 {
		t.Fatalf("unexpected persisted records: %+v", recs)
	}
}

func TestRunPassSkipsIncompleteTimeframes(t *testing.T) {
	pc := cache.NewPriceCache()
	pc.SetOpen("BTCUSDT", domrepo.TF1m, "100", 1700000000000)
	pc.SetCurrent("BTCUSDT", "110")
	// Comparison symbol has no state at all.

	store := newFakeHelixStore()
	bc := &fakeBroadcaster{}
	engine := NewEngine("BTCUSDT", "ETHUSDT", pc, NewAccumulator(), store, bc, nil, testLogger(t))

	engine.RunPass(context.Background())

	if got := bc.published(); len(got) != 0 {
		t.Fatalf("expected no broadcast, got %v", got)
	}
	if got := engine.Latest(); len(got) != 0 {
		t.Fatalf("expected no latest records, got %v", got)
	}
}

func TestTriggerCoalescesConcurrentRequests(t *testing.T) {
	store := newFakeHelixStore()
	bc := &fakeBroadcaster{gate: make(chan struct{})}
	engine := NewEngine("BTCUSDT", "ETHUSDT", seededCache(), NewAccumulator(), store, bc, nil, testLogger(t))

	ctx := context.Background()
	engine.Trigger(ctx)

	// Wait for the first pass to reach the broadcaster, then pile on
	// triggers while it is blocked there.
	<-bc.gate
	for i := 0; i < 5; i++ {
		engine.Trigger(ctx)
	}

	// The queued triggers collapse into exactly one follow-up pass.
	<-bc.gate

	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-bc.gate:
			t.Fatalf("unexpected extra pass")
		case <-deadline:
			if got := len(bc.published()); got != 2 {
				t.Fatalf("published %d batches, want 2", got)
			}
			return
		case <-time.After(50 * time.Millisecond):
			if len(bc.published()) == 2 {
				return
			}
		}
	}
}

func TestLatestFor(t *testing.T) {
	store := newFakeHelixStore()
	engine := NewEngine("BTCUSDT", "ETHUSDT", seededCache(), NewAccumulator(), store, &fakeBroadcaster{}, nil, testLogger(t))
	engine.RunPass(context.Background())

	rec, ok := engine.LatestFor(domrepo.TF1m)
	if !ok {
		t.Fatalf("no latest record for 1m")
	}
	if rec.HelixValue != 15 || rec.Interpretation != models.InterpretationBase {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if _, ok := engine.LatestFor(domrepo.TF1h); ok {
		t.Fatalf("1h should have no record")
	}
}
