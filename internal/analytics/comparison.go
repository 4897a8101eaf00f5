package analytics

// PercentChange compares a period's count with the preceding one.
// A previous count of zero yields 100 when current is positive and 0 otherwise.
func PercentChange(current, previous int64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return float64(current-previous) / float64(previous) * 100
}
