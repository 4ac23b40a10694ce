package repository

import "time"

// Timeframe is a supported candle period.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF3m  Timeframe = "3m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF30m Timeframe = "30m"
	TF1h  Timeframe = "1h"
	TF2h  Timeframe = "2h"
	TF4h  Timeframe = "4h"
	TF6h  Timeframe = "6h"
	TF8h  Timeframe = "8h"
	TF12h Timeframe = "12h"
	TF1d  Timeframe = "1d"
	TF3d  Timeframe = "3d"
	TF1w  Timeframe = "1w"
	TF1M  Timeframe = "1M"
)

// timeframes is the fixed catalog, ordered shortest to longest.
var timeframes = []Timeframe{
	TF1m, TF3m, TF5m, TF15m, TF30m,
	TF1h, TF2h, TF4h, TF6h, TF8h, TF12h,
	TF1d, TF3d,
	TF1w,
	TF1M,
}

// durationsMs maps each timeframe to its exact length in milliseconds.
// A month is approximated as 30 days.
var durationsMs = map[Timeframe]int64{
	TF1m:  60_000,
	TF3m:  3 * 60_000,
	TF5m:  5 * 60_000,
	TF15m: 15 * 60_000,
	TF30m: 30 * 60_000,
	TF1h:  3_600_000,
	TF2h:  2 * 3_600_000,
	TF4h:  4 * 3_600_000,
	TF6h:  6 * 3_600_000,
	TF8h:  8 * 3_600_000,
	TF12h: 12 * 3_600_000,
	TF1d:  86_400_000,
	TF3d:  3 * 86_400_000,
	TF1w:  604_800_000,
	TF1M:  2_592_000_000,
}

// Timeframes returns the catalog in order. The returned slice is shared;
// callers must not modify it.
func Timeframes() []Timeframe { return timeframes }

// IsValidTimeframe returns true if tf is in the catalog.
func IsValidTimeframe(tf Timeframe) bool {
	_, ok := durationsMs[tf]
	return ok
}

// DurationMs returns the timeframe length in milliseconds, or 0 for an
// unknown timeframe.
func DurationMs(tf Timeframe) int64 { return durationsMs[tf] }

// Duration returns the timeframe length as a time.Duration.
func Duration(tf Timeframe) time.Duration {
	return time.Duration(durationsMs[tf]) * time.Millisecond
}

// NormalizeTimeframe converts a raw string to a catalog timeframe,
// returning ok=false when it is not supported.
func NormalizeTimeframe(s string) (Timeframe, bool) {
	tf := Timeframe(s)
	return tf, IsValidTimeframe(tf)
}
