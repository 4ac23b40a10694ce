package cache

import (
	"sync"

	"github.com/shopspring/decimal"

	"HelixPull/internal/domain/models"
	domrepo "HelixPull/internal/domain/repository"
)

// materialityEpsilon is the smallest price move that counts as a change
// worth recomputing for.
var materialityEpsilon = decimal.NewFromFloat(0.01)

var hundred = decimal.NewFromInt(100)

// PriceCache is the shared store of per-symbol current prices and
// per-symbol-per-timeframe period-open prices. It is mutated only by the
// stream collectors and read by the helix engine via Snapshot.
type PriceCache struct {
	mu       sync.RWMutex
	opens    map[string]map[domrepo.Timeframe]models.OpenPrice
	currents map[string]string
}

func NewPriceCache() *PriceCache {
	return &PriceCache{
		opens:    make(map[string]map[domrepo.Timeframe]models.OpenPrice),
		currents: make(map[string]string),
	}
}

// SetOpen records the period-open price for (symbol, timeframe). An
// update carrying the openTime already cached is a no-op: the first
// observed open for a period is authoritative. Returns true when a new
// period was recorded.
func (c *PriceCache) SetOpen(symbol string, tf domrepo.Timeframe, open string, openTime int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	byTF, ok := c.opens[symbol]
	if !ok {
		byTF = make(map[domrepo.Timeframe]models.OpenPrice)
		c.opens[symbol] = byTF
	}
	if cur, ok := byTF[tf]; ok && cur.OpenTime == openTime {
		return false
	}
	byTF[tf] = models.OpenPrice{Open: open, OpenTime: openTime}
	return true
}

// SetCurrent overwrites the latest known price for symbol, last write
// wins. The returned bool reports whether the move from the previous
// value exceeds the materiality epsilon; the collectors use it to decide
// whether to trigger a recomputation pass.
func (c *PriceCache) SetCurrent(symbol, price string) bool {
	c.mu.Lock()
	old, had := c.currents[symbol]
	c.currents[symbol] = price
	c.mu.Unlock()

	if !had {
		return true
	}
	newD, err := decimal.NewFromString(price)
	if err != nil {
		return false
	}
	oldD, err := decimal.NewFromString(old)
	if err != nil {
		return true
	}
	return newD.Sub(oldD).Abs().GreaterThan(materialityEpsilon)
}

// Current returns the latest price for symbol, if any.
func (c *PriceCache) Current(symbol string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.currents[symbol]
	return p, ok
}

// Delta computes the percentage change of the current price from the
// period-open price. ok is false when either side is missing, either
// fails to parse, or the open is zero.
func (c *PriceCache) Delta(symbol string, tf domrepo.Timeframe) (float64, bool) {
	return c.Snapshot().Delta(symbol, tf)
}

// Snapshot copies the cache under a single lock acquisition so that a
// full recomputation pass observes a consistent cross-symbol state.
func (c *PriceCache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	opens := make(map[string]map[domrepo.Timeframe]models.OpenPrice, len(c.opens))
	for sym, byTF := range c.opens {
		cp := make(map[domrepo.Timeframe]models.OpenPrice, len(byTF))
		for tf, op := range byTF {
			cp[tf] = op
		}
		opens[sym] = cp
	}
	currents := make(map[string]string, len(c.currents))
	for sym, p := range c.currents {
		currents[sym] = p
	}
	return Snapshot{opens: opens, currents: currents}
}

// Snapshot is an immutable point-in-time copy of the cache.
type Snapshot struct {
	opens    map[string]map[domrepo.Timeframe]models.OpenPrice
	currents map[string]string
}

// Current returns the snapshot's latest price for symbol.
func (s Snapshot) Current(symbol string) (string, bool) {
	p, ok := s.currents[symbol]
	return p, ok
}

// Delta is (current − open) / open × 100 against the snapshot.
func (s Snapshot) Delta(symbol string, tf domrepo.Timeframe) (float64, bool) {
	byTF, ok := s.opens[symbol]
	if !ok {
		return 0, false
	}
	op, ok := byTF[tf]
	if !ok || op.Open == "" {
		return 0, false
	}
	cur, ok := s.currents[symbol]
	if !ok || cur == "" {
		return 0, false
	}
	openD, err := decimal.NewFromString(op.Open)
	if err != nil || openD.IsZero() {
		return 0, false
	}
	curD, err := decimal.NewFromString(cur)
	if err != nil {
		return 0, false
	}
	return curD.Sub(openD).Div(openD).Mul(hundred).InexactFloat64(), true
}
