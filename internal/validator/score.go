package validator

// Score penalties.
const (
	WarningPenalty       = 2.0
	ErrorPenalty         = 5.0
	CriticalErrorPenalty = 15.0
)

// Score starts from the share of valid tables and subtracts a penalty per
// warning and error. The result is clamped to [0,100].
func Score(validTables, tables int, warnings []ValidationWarning, errs []ValidationError) float64 {
	score := percentage(validTables, tables)
	score -= WarningPenalty * float64(len(warnings))
	for _, e := range errs {
		if e.Critical {
			score -= CriticalErrorPenalty
		} else {
			score -= ErrorPenalty
		}
	}
	return Clamp(score)
}

// Clamp bounds a score to [0,100].
func Clamp(score float64) float64 {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	}
	return score
}
