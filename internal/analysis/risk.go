package analysis

// Risk buckets the size of a change's blast radius.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// RiskLevel classifies affected + dependency count: under 5 is low, under 15
// is medium, anything else is high.
func RiskLevel(total int) Risk {
	switch {
	case total < 5:
		return RiskLow
	case total < 15:
		return RiskMedium
	default:
		return RiskHigh
	}
}
