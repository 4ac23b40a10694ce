package models

import (
	"strconv"
	"time"
)

// Interpretation labels for a helix value.
const (
	InterpretationBase       = "base outperforming"
	InterpretationComparison = "comparison outperforming"
	InterpretationNeutral    = "neutral"
)

// Interpret maps a helix value to its label. The band is fixed at +/-1
// percentage point.
func Interpret(helixValue float64) string {
	switch {
	case helixValue > 1:
		return InterpretationBase
	case helixValue < -1:
		return InterpretationComparison
	default:
		return InterpretationNeutral
	}
}

// HelixRecord is one computed helix observation for a timeframe, the
// logical row persisted to the per-timeframe history series.
type HelixRecord struct {
	Timeframe       string    `json:"timeframe"`
	BaseDelta       float64   `json:"base_delta"`
	ComparisonDelta float64   `json:"comparison_delta"`
	HelixValue      float64   `json:"helix_value"`
	CumulativeValue float64   `json:"cumulative_helix_value"`
	Interpretation  string    `json:"interpretation"`
	Time            time.Time `json:"time"`
	LastUpdateTime  time.Time `json:"last_update_time"`
}

// TimeframeUpdate is the broadcast view of one timeframe's helix state.
// Numeric fields are formatted to two decimals, matching what clients
// render directly.
type TimeframeUpdate struct {
	Timeframe       string `json:"timeframe"`
	BaseDelta       string `json:"baseDelta"`
	ComparisonDelta string `json:"comparisonDelta"`
	HelixValue      string `json:"helixValue"`
	CumulativeValue string `json:"cumulativeHelixValue"`
	Interpretation  string `json:"interpretation"`
	Timestamp       string `json:"timestamp"`
}

// UpdateFromRecord formats a record for broadcast.
func UpdateFromRecord(r HelixRecord) TimeframeUpdate {
	return TimeframeUpdate{
		Timeframe:       r.Timeframe,
		BaseDelta:       formatFixed(r.BaseDelta),
		ComparisonDelta: formatFixed(r.ComparisonDelta),
		HelixValue:      formatFixed(r.HelixValue),
		CumulativeValue: formatFixed(r.CumulativeValue),
		Interpretation:  r.Interpretation,
		Timestamp:       r.Time.UTC().Format(time.RFC3339),
	}
}

func formatFixed(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
