package evaluation

import (
	"errors"
	"testing"
	"time"
)

var window = 30 * 24 * time.Hour

func sampleEvaluation(status string) Evaluation {
	return Evaluation{
		ID:         "eval-1",
		EmployeeID: "emp-1",
		ManagerID:  "mgr-1",
		TemplateID: "tpl-1",
		Period:     PeriodMonthly,
		Year:       2026,
		Month:      8,
		Status:     status,
		CreatedAt:  time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC),
	}
}

func sampleScores() []Score {
	return []Score{
		{ID: "s-1", EvaluationID: "eval-1", ItemName: "Delivery", MaxScore: 40},
		{ID: "s-2", EvaluationID: "eval-1", ItemName: "Quality", MaxScore: 30},
		{ID: "s-3", EvaluationID: "eval-1", ItemName: "Teamwork", MaxScore: 30},
	}
}

func selfScored(values ...float64) []Score {
	scores := sampleScores()
	for i, v := range values {
		scores[i].SelfScore = Scored(v)
	}
	return scores
}

func TestAdvanceSelfStage(t *testing.T) {
	eval := sampleEvaluation(StatusPending)
	scores := selfScored(20, 20, 20)
	actor := Principal{UserID: "u-1", EmployeeID: "emp-1"}
	now := eval.CreatedAt.Add(24 * time.Hour)

	transition, err := Advance(eval, scores, actor, StageSelf, now, window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transition.NextStatus != StatusSelfEvaluated {
		t.Fatalf("expected self_evaluated, got %s", transition.NextStatus)
	}
	if transition.TotalScore != 60 {
		t.Fatalf("expected total 60, got %v", transition.TotalScore)
	}
}

func TestAdvanceSelfStageSkipsManagerWhenNoneAssigned(t *testing.T) {
	eval := sampleEvaluation(StatusPending)
	eval.ManagerID = ""
	scores := selfScored(10, 10, 10)
	actor := Principal{UserID: "u-1", EmployeeID: "emp-1"}

	transition, err := Advance(eval, scores, actor, StageSelf, eval.CreatedAt.Add(time.Hour), window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transition.NextStatus != StatusManagerEvaluated {
		t.Fatalf("expected manager_evaluated, got %s", transition.NextStatus)
	}
}

func TestAdvanceSelfStageReportsUnscoredCount(t *testing.T) {
	eval := sampleEvaluation(StatusPending)
	scores := selfScored(20, 20) // third item untouched
	actor := Principal{UserID: "u-1", EmployeeID: "emp-1"}

	_, err := Advance(eval, scores, actor, StageSelf, eval.CreatedAt.Add(time.Hour), window)
	var incomplete IncompleteScoresError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected IncompleteScoresError, got %v", err)
	}
	if incomplete.Missing != 1 {
		t.Fatalf("expected 1 missing item, got %d", incomplete.Missing)
	}
}

func TestZeroSelfScoreCountsAsUnscored(t *testing.T) {
	eval := sampleEvaluation(StatusPending)
	scores := selfScored(20, 20)
	scores[2].SelfScore = Scored(0)
	actor := Principal{UserID: "u-1", EmployeeID: "emp-1"}

	_, err := Advance(eval, scores, actor, StageSelf, eval.CreatedAt.Add(time.Hour), window)
	var incomplete IncompleteScoresError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected IncompleteScoresError, got %v", err)
	}
	if incomplete.Missing != 1 {
		t.Fatalf("expected 1 missing item, got %d", incomplete.Missing)
	}
}

func TestSelfStageRequiresSubject(t *testing.T) {
	eval := sampleEvaluation(StatusPending)
	scores := selfScored(20, 20, 20)
	actor := Principal{UserID: "u-2", EmployeeID: "emp-2"}

	if CanAdvance(eval, scores, actor, StageSelf) {
		t.Fatal("non-subject must not be eligible for self stage")
	}
	if _, err := Advance(eval, scores, actor, StageSelf, eval.CreatedAt.Add(time.Hour), window); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible, got %v", err)
	}
}

func TestManagerStageEligibility(t *testing.T) {
	eval := sampleEvaluation(StatusSelfEvaluated)
	scores := sampleScores()

	manager := Principal{UserID: "u-9", EmployeeID: "mgr-1"}
	stranger := Principal{UserID: "u-8", EmployeeID: "mgr-2"}

	if !CanAdvance(eval, scores, manager, StageManager) {
		t.Fatal("direct manager should be eligible")
	}
	if CanAdvance(eval, scores, stranger, StageManager) {
		t.Fatal("non-manager must not be eligible")
	}
}

func TestManagerCannotEvaluateThemself(t *testing.T) {
	eval := sampleEvaluation(StatusSelfEvaluated)
	// Degenerate org data: employee recorded as their own manager.
	eval.EmployeeID = "mgr-1"
	actor := Principal{UserID: "u-9", EmployeeID: "mgr-1"}

	if CanAdvance(eval, sampleScores(), actor, StageManager) {
		t.Fatal("manager must never evaluate their own review")
	}
}

func TestManagerStageTotalsManagerScores(t *testing.T) {
	eval := sampleEvaluation(StatusSelfEvaluated)
	scores := sampleScores()
	for i, v := range []float64{30, 25, 20} {
		scores[i].ManagerScore = Scored(v)
	}
	actor := Principal{UserID: "u-9", EmployeeID: "mgr-1"}

	transition, err := Advance(eval, scores, actor, StageManager, eval.CreatedAt.Add(time.Hour), window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transition.NextStatus != StatusManagerEvaluated {
		t.Fatalf("expected manager_evaluated, got %s", transition.NextStatus)
	}
	if transition.TotalScore != 75 {
		t.Fatalf("expected total 75, got %v", transition.TotalScore)
	}
}

func TestHRStageAcceptsManagerOrFinalScores(t *testing.T) {
	eval := sampleEvaluation(StatusManagerEvaluated)
	scores := sampleScores()
	scores[0].ManagerScore = Scored(30)
	scores[1].FinalScore = Scored(22)
	scores[2].ManagerScore = Scored(18)
	actor := Principal{UserID: "u-5", HR: true}

	transition, err := Advance(eval, scores, actor, StageHR, eval.CreatedAt.Add(time.Hour), window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transition.NextStatus != StatusPendingConfirm {
		t.Fatalf("expected pending_confirm, got %s", transition.NextStatus)
	}
	if transition.TotalScore != 70 {
		t.Fatalf("expected total 70, got %v", transition.TotalScore)
	}
}

func TestHRStageRequiresHRRole(t *testing.T) {
	eval := sampleEvaluation(StatusManagerEvaluated)
	actor := Principal{UserID: "u-9", EmployeeID: "mgr-1"}

	if CanAdvance(eval, sampleScores(), actor, StageHR) {
		t.Fatal("non-HR actor must not complete the HR review")
	}
}

func TestConfirmCopiesManagerThenSelfScores(t *testing.T) {
	eval := sampleEvaluation(StatusPendingConfirm)
	scores := sampleScores()
	scores[0].SelfScore = Scored(20)
	scores[0].ManagerScore = Scored(30)
	scores[1].SelfScore = Scored(15) // no manager score entered
	scores[2].ManagerScore = Scored(18)
	actor := Principal{UserID: "u-1", EmployeeID: "emp-1"}

	transition, err := Advance(eval, scores, actor, StageConfirm, eval.CreatedAt.Add(time.Hour), window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transition.NextStatus != StatusCompleted {
		t.Fatalf("expected completed, got %s", transition.NextStatus)
	}
	if len(transition.FinalScores) != 3 {
		t.Fatalf("expected 3 final score updates, got %d", len(transition.FinalScores))
	}
	want := []float64{30, 15, 18}
	for i, update := range transition.FinalScores {
		if update.FinalScore != want[i] {
			t.Fatalf("final score %d: expected %v, got %v", i, want[i], update.FinalScore)
		}
	}
	if transition.TotalScore != 48 {
		t.Fatalf("expected total 48, got %v", transition.TotalScore)
	}
}

func TestConfirmIsOneShot(t *testing.T) {
	eval := sampleEvaluation(StatusPendingConfirm)
	scores := sampleScores()
	scores[0].FinalScore = Scored(30)
	actor := Principal{UserID: "u-1", EmployeeID: "emp-1"}

	if CanAdvance(eval, scores, actor, StageConfirm) {
		t.Fatal("confirm must be ineligible once any final score exists")
	}
	if _, err := Advance(eval, scores, actor, StageConfirm, eval.CreatedAt.Add(time.Hour), window); !errors.Is(err, ErrAlreadyConfirmed) {
		t.Fatalf("expected ErrAlreadyConfirmed, got %v", err)
	}
}

func TestExplicitZeroFinalScoreStillBlocksConfirm(t *testing.T) {
	eval := sampleEvaluation(StatusPendingConfirm)
	scores := sampleScores()
	scores[1].FinalScore = Scored(0)
	actor := Principal{UserID: "u-1", EmployeeID: "emp-1"}

	if _, err := Advance(eval, scores, actor, StageConfirm, eval.CreatedAt.Add(time.Hour), window); !errors.Is(err, ErrAlreadyConfirmed) {
		t.Fatalf("expected ErrAlreadyConfirmed for recorded zero, got %v", err)
	}
}

func TestStaleEvaluationBlocksEveryStage(t *testing.T) {
	stages := []Stage{StageSelf, StageManager, StageHR, StageConfirm}
	for _, stage := range stages {
		eval := sampleEvaluation(StatusPending)
		actor := Principal{UserID: "u-1", EmployeeID: "emp-1", HR: true}
		now := eval.CreatedAt.Add(window + time.Hour)

		if _, err := Advance(eval, selfScored(20, 20, 20), actor, stage, now, window); !errors.Is(err, ErrEvaluationExpired) {
			t.Fatalf("stage %s: expected ErrEvaluationExpired, got %v", stage, err)
		}
	}
}

func TestCanAdvanceIsPure(t *testing.T) {
	eval := sampleEvaluation(StatusPending)
	scores := selfScored(20, 20, 20)
	actor := Principal{UserID: "u-1", EmployeeID: "emp-1"}

	first := CanAdvance(eval, scores, actor, StageSelf)
	for i := 0; i < 5; i++ {
		if CanAdvance(eval, scores, actor, StageSelf) != first {
			t.Fatal("eligibility changed with unchanged inputs")
		}
	}
}

func TestStatusOrderIsForwardOnly(t *testing.T) {
	order := []string{StatusPending, StatusSelfEvaluated, StatusManagerEvaluated, StatusPendingConfirm, StatusCompleted}
	for i, from := range order {
		for j, to := range order {
			if IsForward(from, to) != (j > i) {
				t.Fatalf("IsForward(%s, %s) wrong", from, to)
			}
		}
	}
	if IsForward(StatusCompleted, "bogus") {
		t.Fatal("unknown status must not count as forward")
	}
}

func TestComputeTotalTreatsMissingAsZero(t *testing.T) {
	scores := sampleScores()
	scores[0].ManagerScore = Scored(12)
	if got := ComputeTotal(StageManager, scores); got != 12 {
		t.Fatalf("expected 12, got %v", got)
	}
	if got := ComputeTotal(StageConfirm, scores); got != 12 {
		t.Fatalf("expected final-or-manager total 12, got %v", got)
	}
}
