package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"HelixPull/internal/domain/models"
	domrepo "HelixPull/internal/domain/repository"
	"HelixPull/internal/middleware"
	"HelixPull/internal/service/activity"
	"HelixPull/internal/service/cache"
)

type scriptedStream struct {
	name string

	mu          sync.Mutex
	connectErrs []error
	connects    int
	frames      chan []byte
	errs        chan error
}

func newScriptedStream(name string, frames ...[]byte) *scriptedStream {
	ch := make(chan []byte, len(frames)+1)
	for _, f := range frames {
		ch <- f
	}
	return &scriptedStream{name: name, frames: ch, errs: make(chan error, 1)}
}

func (s *scriptedStream) Name() string { return s.name }

func (s *scriptedStream) Connect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connects++
	if len(s.connectErrs) > 0 {
		err := s.connectErrs[0]
		s.connectErrs = s.connectErrs[1:]
		return err
	}
	return nil
}

func (s *scriptedStream) Read(context.Context) (<-chan []byte, <-chan error) {
	return s.frames, s.errs
}

func (s *scriptedStream) Close() error      { return nil }
func (s *scriptedStream) IsConnected() bool { return true }

func (s *scriptedStream) connectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

type fakePublisher struct {
	mu      sync.Mutex
	trades  []models.Trade
	candles []models.Candle
}

func (p *fakePublisher) PublishTrade(_ context.Context, t *models.Trade) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.trades = append(p.trades, *t)
	return nil
}

func (p *fakePublisher) PublishCandle(_ context.Context, c *models.Candle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.candles = append(p.candles, *c)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.trades), len(p.candles)
}

type fakeMetrics struct {
	mu         sync.Mutex
	errors     map[string]int
	reconnects int
}

func newFakeMetrics() *fakeMetrics { return &fakeMetrics{errors: make(map[string]int)} }

func (m *fakeMetrics) RecordMessage(string, string) {}
func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}
func (m *fakeMetrics) RecordLastPrice(string, float64) {}
func (m *fakeMetrics) RecordLatency(string, float64)   {}
func (m *fakeMetrics) RecordReconnect(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconnects++
}
func (m *fakeMetrics) SetSubscribers(int) {}

func (m *fakeMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func TestCandleCollectorFeedsEngine(t *testing.T) {
	log := testLogger(t)
	pc := cache.NewPriceCache()
	pc.SetOpen("ETHUSDT", domrepo.TF1m, "100", 1700000000000)
	pc.SetCurrent("ETHUSDT", "95")

	bc := &fakeBroadcaster{}
	engine := NewEngine("BTCUSDT", "ETHUSDT", pc, NewAccumulator(), newFakeHelixStore(), bc, nil, log)

	pub := &fakePublisher{}
	pipeline := middleware.NewPersistPipeline(1, 16, log, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pipeline.Start(ctx)

	frame := []byte(`{"e":"kline","s":"BTCUSDT","k":{"t":1700000000000,"T":1700000059999,"o":"100","h":"111","l":"99","c":"110","v":"5","n":10,"x":false}}`)
	stream := newScriptedStream("BTCUSDT@kline_1m", frame)

	collector := NewCandleCollector(stream, "BTCUSDT", domrepo.TF1m, pc, engine, pipeline, pub, nil, activity.NewLog(10), newFakeMetrics(), log, time.Second)
	go collector.Run(ctx)

	waitFor(t, func() bool { return len(bc.published()) > 0 }, "broadcast")
	update := bc.published()[0]["1m"]
	if update.HelixValue != "15.00" {
		t.Fatalf("helix = %q, want 15.00", update.HelixValue)
	}

	waitFor(t, func() bool { _, candles := pub.counts(); return candles == 1 }, "candle persist")

	if _, ok := pc.Current("BTCUSDT"); !ok {
		t.Fatalf("current price not cached")
	}
}

func TestCandleCollectorDropsMalformedFrames(t *testing.T) {
	log := testLogger(t)
	pc := cache.NewPriceCache()
	engine := NewEngine("BTCUSDT", "ETHUSDT", pc, NewAccumulator(), newFakeHelixStore(), &fakeBroadcaster{}, nil, log)

	pipeline := middleware.NewPersistPipeline(1, 16, log, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pipeline.Start(ctx)

	metrics := newFakeMetrics()
	stream := newScriptedStream("BTCUSDT@kline_1m", []byte(`garbage`))
	collector := NewCandleCollector(stream, "BTCUSDT", domrepo.TF1m, pc, engine, pipeline, &fakePublisher{}, nil, activity.NewLog(10), metrics, log, time.Second)
	go collector.Run(ctx)

	waitFor(t, func() bool { return metrics.errorCount("candle_parse") == 1 }, "parse error count")
	if _, ok := pc.Current("BTCUSDT"); ok {
		t.Fatalf("malformed frame must not touch the cache")
	}
}

func TestTradeCollectorSamplesPersistence(t *testing.T) {
	log := testLogger(t)
	pc := cache.NewPriceCache()
	engine := NewEngine("BTCUSDT", "ETHUSDT", pc, NewAccumulator(), newFakeHelixStore(), &fakeBroadcaster{}, nil, log)

	pub := &fakePublisher{}
	pipeline := middleware.NewPersistPipeline(1, 16, log, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pipeline.Start(ctx)

	sampled := []byte(`{"e":"trade","s":"BTCUSDT","t":4200,"p":"45000.00","q":"0.5","T":1700000000001,"m":false}`)
	skipped := []byte(`{"e":"trade","s":"BTCUSDT","t":4201,"p":"45000.50","q":"0.5","T":1700000000002,"m":false}`)
	stream := newScriptedStream("BTCUSDT@trade", sampled, skipped)

	collector := NewTradeCollector(stream, "BTCUSDT", pc, engine, pipeline, pub, nil, activity.NewLog(10), newFakeMetrics(), log, time.Second)
	go collector.Run(ctx)

	waitFor(t, func() bool {
		p, ok := pc.Current("BTCUSDT")
		return ok && p == "45000.50"
	}, "current price")

	waitFor(t, func() bool { trades, _ := pub.counts(); return trades == 1 }, "sampled trade persist")
	if trades, _ := pub.counts(); trades != 1 {
		t.Fatalf("persisted %d trades, want 1", trades)
	}
}

func TestCollectorReconnectsAfterConnectFailure(t *testing.T) {
	log := testLogger(t)
	pc := cache.NewPriceCache()
	pc.SetOpen("BTCUSDT", domrepo.TF1m, "100", 1700000000000)
	pc.SetCurrent("BTCUSDT", "100")
	pc.SetOpen("ETHUSDT", domrepo.TF1m, "100", 1700000000000)
	pc.SetCurrent("ETHUSDT", "100")

	bc := &fakeBroadcaster{}
	engine := NewEngine("BTCUSDT", "ETHUSDT", pc, NewAccumulator(), newFakeHelixStore(), bc, nil, log)

	pipeline := middleware.NewPersistPipeline(1, 16, log, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pipeline.Start(ctx)

	metrics := newFakeMetrics()
	frame := []byte(`{"e":"trade","s":"BTCUSDT","t":4200,"p":"110","q":"0.5","T":1700000000001,"m":false}`)
	stream := newScriptedStream("BTCUSDT@trade", frame)
	stream.connectErrs = []error{context.DeadlineExceeded}

	collector := NewTradeCollector(stream, "BTCUSDT", pc, engine, pipeline, &fakePublisher{}, nil, activity.NewLog(10), metrics, log, 20*time.Millisecond)
	go collector.Run(ctx)

	// During the outage nothing recomputes and cached values stay readable.
	waitFor(t, func() bool { return stream.connectCount() >= 1 }, "first connect attempt")
	if got := len(bc.published()); got != 0 {
		t.Fatalf("published %d updates during outage, want 0", got)
	}
	if p, ok := pc.Current("BTCUSDT"); !ok || p != "100" {
		t.Fatalf("cached price during outage = %q (%v), want 100", p, ok)
	}

	waitFor(t, func() bool { return stream.connectCount() >= 2 }, "second connect attempt")
	if metrics.errorCount("stream_connect") != 1 {
		t.Fatalf("connect errors = %d, want 1", metrics.errorCount("stream_connect"))
	}

	// The first valid message after reconnect drives a fresh pass.
	waitFor(t, func() bool { return len(bc.published()) > 0 }, "post-reconnect broadcast")
	update := bc.published()[0]["1m"]
	if update.BaseDelta != "10.00" {
		t.Fatalf("post-reconnect base delta = %q, want 10.00", update.BaseDelta)
	}
}
