package usecase

import (
	"context"
	"sync"
	"time"

	"HelixPull/internal/domain/models"
	domrepo "HelixPull/internal/domain/repository"
	"HelixPull/internal/service/cache"
	applogger "HelixPull/pkg/logger"
)

// Engine recomputes the helix analytics for every timeframe whenever a
// material price change arrives. Passes are single flight: triggers
// landing while a pass runs coalesce into exactly one follow-up pass,
// so the engine never falls behind the stream and never runs two passes
// concurrently.
type Engine struct {
	baseSymbol       string
	comparisonSymbol string

	cache       *cache.PriceCache
	accumulator *Accumulator
	helixStore  domrepo.HelixStore
	latestStore domrepo.LatestStore // optional
	broadcaster domrepo.Broadcaster
	metrics     domrepo.Metrics
	logger      *applogger.Logger

	flightMu sync.Mutex
	running  bool
	pending  bool

	latestMu sync.RWMutex
	latest   map[domrepo.Timeframe]models.HelixRecord
}

type EngineOption func(*Engine)

// WithLatestStore mirrors each computed record to an external
// latest-value store.
func WithLatestStore(s domrepo.LatestStore) EngineOption {
	return func(e *Engine) { e.latestStore = s }
}

func NewEngine(
	baseSymbol, comparisonSymbol string,
	priceCache *cache.PriceCache,
	accumulator *Accumulator,
	helixStore domrepo.HelixStore,
	broadcaster domrepo.Broadcaster,
	metrics domrepo.Metrics,
	log *applogger.Logger,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		baseSymbol:       baseSymbol,
		comparisonSymbol: comparisonSymbol,
		cache:            priceCache,
		accumulator:      accumulator,
		helixStore:       helixStore,
		broadcaster:      broadcaster,
		metrics:          metrics,
		logger:           log,
		latest:           make(map[domrepo.Timeframe]models.HelixRecord),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Trigger requests a recomputation pass. If a pass is already in
// flight the request is folded into a single queued follow-up; extra
// triggers while one is queued are absorbed.
func (e *Engine) Trigger(ctx context.Context) {
	e.flightMu.Lock()
	if e.running {
		e.pending = true
		e.flightMu.Unlock()
		return
	}
	e.running = true
	e.flightMu.Unlock()

	go func() {
		for {
			e.RunPass(ctx)

			e.flightMu.Lock()
			if !e.pending {
				e.running = false
				e.flightMu.Unlock()
				return
			}
			e.pending = false
			e.flightMu.Unlock()
		}
	}()
}

// RunPass executes one full recomputation over all timeframes against a
// single consistent cache snapshot. Timeframes with an incomplete input
// set are skipped for this pass.
func (e *Engine) RunPass(ctx context.Context) {
	started := time.Now()
	snap := e.cache.Snapshot()
	now := time.Now()

	updates := make(map[string]models.TimeframeUpdate)
	for _, tf := range domrepo.Timeframes() {
		baseDelta, ok := snap.Delta(e.baseSymbol, tf)
		if !ok {
			continue
		}
		comparisonDelta, ok := snap.Delta(e.comparisonSymbol, tf)
		if !ok {
			continue
		}

		helix := baseDelta - comparisonDelta
		cumulative, lastUpdate := e.accumulator.Apply(tf, helix, now)

		record := models.HelixRecord{
			Timeframe:       string(tf),
			BaseDelta:       baseDelta,
			ComparisonDelta: comparisonDelta,
			HelixValue:      helix,
			CumulativeValue: cumulative,
			Interpretation:  models.Interpret(helix),
			Time:            now,
			LastUpdateTime:  lastUpdate,
		}

		e.latestMu.Lock()
		e.latest[tf] = record
		e.latestMu.Unlock()

		e.persist(ctx, record)
		updates[string(tf)] = models.UpdateFromRecord(record)
	}

	if len(updates) > 0 && e.broadcaster != nil {
		e.broadcaster.Publish(updates)
	}
	if e.metrics != nil {
		e.metrics.RecordLatency("helix_pass", time.Since(started).Seconds())
	}
}

// persist hands the record to storage without blocking the pass.
// Failures are logged and dropped; history has gaps rather than the
// engine having backpressure.
func (e *Engine) persist(ctx context.Context, record models.HelixRecord) {
	go func() {
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		if err := e.helixStore.Append(writeCtx, &record); err != nil {
			e.logger.Error("helix append failed",
				applogger.String("timeframe", record.Timeframe),
				applogger.Error(err),
			)
			if e.metrics != nil {
				e.metrics.RecordError("helix_append")
			}
		}
		if e.latestStore != nil {
			if err := e.latestStore.SetLatestHelix(writeCtx, &record); err != nil {
				e.logger.Error("latest helix mirror failed",
					applogger.String("timeframe", record.Timeframe),
					applogger.Error(err),
				)
			}
		}
	}()
}

// Latest returns the most recently computed record per timeframe.
func (e *Engine) Latest() map[string]models.HelixRecord {
	e.latestMu.RLock()
	defer e.latestMu.RUnlock()
	out := make(map[string]models.HelixRecord, len(e.latest))
	for tf, r := range e.latest {
		out[string(tf)] = r
	}
	return out
}

// LatestFor returns the most recent record for one timeframe.
func (e *Engine) LatestFor(tf domrepo.Timeframe) (models.HelixRecord, bool) {
	e.latestMu.RLock()
	defer e.latestMu.RUnlock()
	r, ok := e.latest[tf]
	return r, ok
}
