package evaluation

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidPeriod = errors.New("period fields do not match the period kind")

// validatePeriod enforces: month present iff monthly, quarter present iff
// quarterly, neither for yearly.
func validatePeriod(eval Evaluation) error {
	if !ValidPeriod(eval.Period) {
		return ErrInvalidPeriod
	}
	switch eval.Period {
	case PeriodMonthly:
		if eval.Month < 1 || eval.Month > 12 || eval.Quarter != 0 {
			return ErrInvalidPeriod
		}
	case PeriodQuarterly:
		if eval.Quarter < 1 || eval.Quarter > 4 || eval.Month != 0 {
			return ErrInvalidPeriod
		}
	case PeriodYearly:
		if eval.Month != 0 || eval.Quarter != 0 {
			return ErrInvalidPeriod
		}
	}
	return nil
}

// Create opens a new review in pending status and snapshots the template's
// KPI items into score rows.
func (s *Service) Create(ctx context.Context, eval Evaluation) (Evaluation, error) {
	if err := validatePeriod(eval); err != nil {
		return Evaluation{}, err
	}
	eval.Status = StatusPending
	eval.TotalScore = 0
	if eval.CreatedAt.IsZero() {
		eval.CreatedAt = time.Now().UTC()
	}

	id, err := s.store.CreateEvaluation(ctx, eval)
	if err != nil {
		return Evaluation{}, err
	}
	if _, err := s.store.CreateScoresFromTemplate(ctx, id, eval.TemplateID); err != nil {
		return Evaluation{}, err
	}
	return s.store.GetEvaluation(ctx, id)
}

func (s *Service) Get(ctx context.Context, evaluationID string) (Evaluation, error) {
	return s.store.GetEvaluation(ctx, evaluationID)
}

func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) ([]Evaluation, error) {
	return s.store.ListEvaluations(ctx, filter, limit, offset)
}

func (s *Service) Delete(ctx context.Context, evaluationID string) error {
	return s.store.DeleteEvaluation(ctx, evaluationID)
}

func (s *Service) Scores(ctx context.Context, evaluationID string) ([]Score, error) {
	return s.store.ListScores(ctx, evaluationID)
}

func (s *Service) StageHistory(ctx context.Context, evaluationID string) ([]StageRecord, error) {
	return s.store.ListStageRecords(ctx, evaluationID)
}

func (s *Service) UpdateFinalComment(ctx context.Context, evaluationID, comment string) error {
	return s.store.UpdateFinalComment(ctx, evaluationID, comment)
}

func (s *Service) PendingCount(ctx context.Context, actor Principal) (int, error) {
	return s.store.PendingCount(ctx, actor)
}

// SaveScore records one variant of a line-item score. Range and final-lock
// rules hold no matter which role calls it.
func (s *Service) SaveScore(ctx context.Context, scoreID string, variant Variant, value float64, comment string, managerAuto bool) (Score, error) {
	if !ValidVariant(variant) {
		return Score{}, ErrUnknownVariant
	}

	current, err := s.store.GetScore(ctx, scoreID)
	if err != nil {
		return Score{}, err
	}
	if value < 0 || value > current.MaxScore {
		return Score{}, ErrScoreOutOfRange
	}
	if variant == VariantFinal && current.FinalScore.Present() {
		return Score{}, ErrFinalScoreLocked
	}

	if err := s.store.SaveStageScore(ctx, scoreID, variant, value, comment, managerAuto); err != nil {
		return Score{}, err
	}
	return s.store.GetScore(ctx, scoreID)
}

// AdvanceStage runs the pure lifecycle controller against the stored state
// and applies the resulting transition in one transaction. Validation errors
// come back untouched so handlers can name what is missing.
func (s *Service) AdvanceStage(ctx context.Context, evaluationID string, actor Principal, stage Stage, now time.Time, staleness time.Duration) (Evaluation, Transition, error) {
	eval, err := s.store.GetEvaluation(ctx, evaluationID)
	if err != nil {
		return Evaluation{}, Transition{}, err
	}
	scores, err := s.store.ListScores(ctx, evaluationID)
	if err != nil {
		return Evaluation{}, Transition{}, err
	}

	transition, err := Advance(eval, scores, actor, stage, now, staleness)
	if err != nil {
		return Evaluation{}, Transition{}, err
	}

	updated, err := s.store.ApplyTransition(ctx, evaluationID, transition, actor.UserID, now)
	if err != nil {
		return Evaluation{}, Transition{}, err
	}
	return updated, transition, nil
}

// Eligible mirrors CanAdvance for a stored evaluation, used by handlers to
// report which action the caller may take next.
func (s *Service) Eligible(ctx context.Context, evaluationID string, actor Principal, stage Stage) (bool, error) {
	eval, err := s.store.GetEvaluation(ctx, evaluationID)
	if err != nil {
		return false, err
	}
	scores, err := s.store.ListScores(ctx, evaluationID)
	if err != nil {
		return false, err
	}
	return CanAdvance(eval, scores, actor, stage), nil
}
