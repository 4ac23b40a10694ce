package usecase

import (
	"context"
	"sync"
	"time"

	domrepo "HelixPull/internal/domain/repository"
	applogger "HelixPull/pkg/logger"
)

type accState struct {
	cumulative float64
	lastUpdate time.Time
}

// Accumulator keeps the per-timeframe running sum of helix values. A
// value is folded in at most once per full timeframe duration; between
// gates the instantaneous helix is still reported, only the accumulation
// is held back.
type Accumulator struct {
	mu     sync.Mutex
	states map[domrepo.Timeframe]accState
}

func NewAccumulator() *Accumulator {
	return &Accumulator{states: make(map[domrepo.Timeframe]accState)}
}

// Apply offers helix value v observed at time now to the timeframe's
// state machine and returns the resulting cumulative value and
// last-update time. The first observation for a timeframe always folds.
func (a *Accumulator) Apply(tf domrepo.Timeframe, v float64, now time.Time) (float64, time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := a.states[tf]
	if st.lastUpdate.IsZero() || now.Sub(st.lastUpdate) >= domrepo.Duration(tf) {
		st.cumulative += v
		st.lastUpdate = now
		a.states[tf] = st
	}
	return st.cumulative, st.lastUpdate
}

// Restore seeds a timeframe's state, used at startup to survive restarts.
func (a *Accumulator) Restore(tf domrepo.Timeframe, cumulative float64, lastUpdate time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.states[tf] = accState{cumulative: cumulative, lastUpdate: lastUpdate}
}

// State reports the current cumulative value and last-update time.
func (a *Accumulator) State(tf domrepo.Timeframe) (float64, time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := a.states[tf]
	return st.cumulative, st.lastUpdate
}

// Hydrate loads the latest persisted record per timeframe. A missing
// record leaves the timeframe uninitialized; read errors are logged and
// treated the same, losing only the accumulated total.
func (a *Accumulator) Hydrate(ctx context.Context, store domrepo.HelixStore, l *applogger.Logger) {
	for _, tf := range domrepo.Timeframes() {
		rec, err := store.Latest(ctx, tf)
		if err != nil {
			l.Warn("accumulator hydrate failed",
				applogger.String("timeframe", string(tf)),
				applogger.Error(err),
			)
			continue
		}
		if rec == nil {
			continue
		}
		a.Restore(tf, rec.CumulativeValue, rec.LastUpdateTime)
	}
}
