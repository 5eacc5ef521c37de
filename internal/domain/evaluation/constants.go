package evaluation

const (
	StatusPending          = "pending"
	StatusSelfEvaluated    = "self_evaluated"
	StatusManagerEvaluated = "manager_evaluated"
	StatusPendingConfirm   = "pending_confirm"
	StatusCompleted        = "completed"

	PeriodMonthly   = "monthly"
	PeriodQuarterly = "quarterly"
	PeriodYearly    = "yearly"
)

// statusRank orders the workflow. Transitions may only move to a higher rank.
var statusRank = map[string]int{
	StatusPending:          0,
	StatusSelfEvaluated:    1,
	StatusManagerEvaluated: 2,
	StatusPendingConfirm:   3,
	StatusCompleted:        4,
}

func StatusRank(status string) int {
	rank, ok := statusRank[status]
	if !ok {
		return -1
	}
	return rank
}

// IsForward reports whether moving from one status to another advances the
// workflow. Unknown statuses never advance.
func IsForward(from, to string) bool {
	fromRank, toRank := StatusRank(from), StatusRank(to)
	return fromRank >= 0 && toRank > fromRank
}

func ValidPeriod(period string) bool {
	switch period {
	case PeriodMonthly, PeriodQuarterly, PeriodYearly:
		return true
	}
	return false
}
