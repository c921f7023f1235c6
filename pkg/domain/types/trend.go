package types

// Trend is a coarse direction of a risk signal
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendWorsening Trend = "worsening"
)

// String returns the string representation of the trend
func (t Trend) String() string {
	if t == "" {
		return string(TrendStable)
	}
	return string(t)
}

// IsValid checks if the trend is valid
func (t Trend) IsValid() bool {
	switch t {
	case TrendImproving, TrendStable, TrendWorsening:
		return true
	default:
		return false
	}
}

// CombineTrend merges two directions: worsening on either side wins,
// improving needs both sides improving, anything else is stable.
func CombineTrend(a, b Trend) Trend {
	if a == TrendWorsening || b == TrendWorsening {
		return TrendWorsening
	}
	if a == TrendImproving && b == TrendImproving {
		return TrendImproving
	}
	return TrendStable
}
