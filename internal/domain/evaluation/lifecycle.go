package evaluation

import (
	"errors"
	"fmt"
	"time"
)

// Stage is one of the four manual advancement actions in the review workflow.
type Stage string

const (
	StageSelf    Stage = "self"
	StageManager Stage = "manager"
	StageHR      Stage = "hr"
	StageConfirm Stage = "confirm"
)

var (
	ErrNotEligible       = errors.New("actor is not eligible for this stage")
	ErrEvaluationExpired = errors.New("evaluation is past its advancement window")
	ErrAlreadyConfirmed  = errors.New("final score has already been confirmed")
	ErrUnknownStage      = errors.New("unknown stage")
)

// IncompleteScoresError reports exactly how many items still need a score
// before the requested stage can complete.
type IncompleteScoresError struct {
	Stage   Stage
	Missing int
}

func (e IncompleteScoresError) Error() string {
	return fmt.Sprintf("%d item(s) not yet scored for %s stage", e.Missing, e.Stage)
}

// Transition is the outcome of a successful stage advancement. The store
// applies it; the controller itself never mutates anything.
type Transition struct {
	Stage       Stage
	FromStatus  string
	NextStatus  string
	TotalScore  float64
	FinalScores []FinalScoreUpdate
}

// FinalScoreUpdate carries the per-item final value fixed at confirmation.
type FinalScoreUpdate struct {
	ScoreID    string
	FinalScore float64
}

// CanAdvance is the pure eligibility gate shared by the transition path and
// by anything deciding whether to offer the action at all. It looks only at
// role and status; completeness and staleness are checked in Advance.
func CanAdvance(eval Evaluation, scores []Score, actor Principal, stage Stage) bool {
	switch stage {
	case StageSelf:
		return actor.EmployeeID != "" &&
			actor.EmployeeID == eval.EmployeeID &&
			eval.Status == StatusPending
	case StageManager:
		return eval.ManagerID != "" &&
			actor.EmployeeID == eval.ManagerID &&
			actor.EmployeeID != eval.EmployeeID &&
			eval.Status == StatusSelfEvaluated
	case StageHR:
		return actor.HR && eval.Status == StatusManagerEvaluated
	case StageConfirm:
		return actor.EmployeeID != "" &&
			actor.EmployeeID == eval.EmployeeID &&
			eval.Status == StatusPendingConfirm &&
			!anyFinalPresent(scores)
	}
	return false
}

// Advance validates staleness, eligibility and completeness, then returns
// the transition to apply. It performs no I/O.
func Advance(eval Evaluation, scores []Score, actor Principal, stage Stage, now time.Time, staleness time.Duration) (Transition, error) {
	switch stage {
	case StageSelf, StageManager, StageHR, StageConfirm:
	default:
		return Transition{}, ErrUnknownStage
	}

	if staleness > 0 && now.Sub(eval.CreatedAt) > staleness {
		return Transition{}, ErrEvaluationExpired
	}

	if !CanAdvance(eval, scores, actor, stage) {
		if stage == StageConfirm &&
			actor.EmployeeID == eval.EmployeeID &&
			eval.Status == StatusPendingConfirm &&
			anyFinalPresent(scores) {
			return Transition{}, ErrAlreadyConfirmed
		}
		return Transition{}, ErrNotEligible
	}

	if missing := UnscoredCount(stage, scores); missing > 0 {
		return Transition{}, IncompleteScoresError{Stage: stage, Missing: missing}
	}

	transition := Transition{
		Stage:      stage,
		FromStatus: eval.Status,
		NextStatus: nextStatus(eval, stage),
		TotalScore: ComputeTotal(stage, scores),
	}

	if stage == StageConfirm {
		transition.FinalScores = make([]FinalScoreUpdate, 0, len(scores))
		for _, score := range scores {
			final := score.ManagerScore.Or(score.SelfScore)
			transition.FinalScores = append(transition.FinalScores, FinalScoreUpdate{
				ScoreID:    score.ID,
				FinalScore: final.Value,
			})
		}
	}

	return transition, nil
}

// UnscoredCount returns how many items still lack the score the given stage
// requires. Confirm has no completeness requirement of its own.
func UnscoredCount(stage Stage, scores []Score) int {
	missing := 0
	for _, score := range scores {
		switch stage {
		case StageSelf:
			if !score.SelfScore.Entered() {
				missing++
			}
		case StageManager:
			if !score.ManagerScore.Entered() {
				missing++
			}
		case StageHR:
			if !score.FinalScore.Present() && !score.ManagerScore.Entered() {
				missing++
			}
		}
	}
	return missing
}

// ComputeTotal is the single aggregate reducer shared by every stage:
// self sums self scores, manager sums manager scores, hr and confirm sum
// final-or-manager, with unscored items counting as zero.
func ComputeTotal(stage Stage, scores []Score) float64 {
	total := 0.0
	for _, score := range scores {
		switch stage {
		case StageSelf:
			if score.SelfScore.Entered() {
				total += score.SelfScore.Value
			}
		case StageManager:
			if score.ManagerScore.Entered() {
				total += score.ManagerScore.Value
			}
		case StageHR, StageConfirm:
			if score.FinalScore.Present() {
				total += score.FinalScore.Value
			} else if score.ManagerScore.Entered() {
				total += score.ManagerScore.Value
			}
		}
	}
	return total
}

func nextStatus(eval Evaluation, stage Stage) string {
	switch stage {
	case StageSelf:
		// An employee with nobody to review them skips the manager stage.
		if eval.ManagerID == "" {
			return StatusManagerEvaluated
		}
		return StatusSelfEvaluated
	case StageManager:
		return StatusManagerEvaluated
	case StageHR:
		return StatusPendingConfirm
	case StageConfirm:
		return StatusCompleted
	}
	return eval.Status
}

func anyFinalPresent(scores []Score) bool {
	for _, score := range scores {
		if score.FinalScore.Present() {
			return true
		}
	}
	return false
}
