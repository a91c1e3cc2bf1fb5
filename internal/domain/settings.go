package domain

const (
	MaxProblemCount = 200
	MaxDigits       = 6
	MinSeries       = 1
	MaxSeries       = 12
)

// Settings configures the problem set and pacing of a session. Immutable once created.
type Settings struct {
	Operations        []Operation `json:"operations"`
	Series            []int       `json:"series"`
	ProblemCount      int         `json:"problemCount"`
	LeftDigits        int         `json:"leftDigits"`
	RightDigits       int         `json:"rightDigits"`
	Decimals          bool        `json:"decimals"`
	Negatives         bool        `json:"negatives"`
	SecondsPerProblem int         `json:"secondsPerProblem"` // 0 = untimed
	AutoAdvance       bool        `json:"autoAdvance"`
	LeaderboardSize   int         `json:"leaderboardSize"` // 0 = show all
}

// Timed reports whether each problem has a fixed time budget.
func (s Settings) Timed() bool {
	return s.SecondsPerProblem > 0
}

// Has reports whether op is enabled.
func (s Settings) Has(op Operation) bool {
	for _, o := range s.Operations {
		if o == op {
			return true
		}
	}
	return false
}

// Validate checks the settings once, at session creation.
func (s Settings) Validate() error {
	if len(s.Operations) == 0 {
		return invalid("at least one operation is required")
	}
	seen := make(map[Operation]bool, len(s.Operations))
	for _, op := range s.Operations {
		switch op {
		case OpAdd, OpSubtract, OpMultiply, OpDivide:
		default:
			return invalid("unknown operation %q", op)
		}
		if seen[op] {
			return invalid("duplicate operation %q", op)
		}
		seen[op] = true
	}
	if (s.Has(OpMultiply) || s.Has(OpDivide)) && len(s.Series) == 0 {
		return invalid("series are required for multiply and divide")
	}
	for _, v := range s.Series {
		if v < MinSeries || v > MaxSeries {
			return invalid("series %d out of range %d-%d", v, MinSeries, MaxSeries)
		}
	}
	if s.ProblemCount < 1 || s.ProblemCount > MaxProblemCount {
		return invalid("problemCount must be between 1 and %d", MaxProblemCount)
	}
	if s.LeftDigits < 1 || s.LeftDigits > MaxDigits {
		return invalid("leftDigits must be between 1 and %d", MaxDigits)
	}
	if s.RightDigits < 1 || s.RightDigits > MaxDigits {
		return invalid("rightDigits must be between 1 and %d", MaxDigits)
	}
	if s.SecondsPerProblem < 0 {
		return invalid("secondsPerProblem must not be negative")
	}
	if s.LeaderboardSize < 0 {
		return invalid("leaderboardSize must not be negative")
	}
	return nil
}
