package evaluation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrStatusConflict is returned when a transition loses the race against a
// concurrent status change; the workflow only ever moves forward once.
var ErrStatusConflict = errors.New("evaluation status changed concurrently")

const evaluationColumns = `
	e.id, e.employee_id, emp.name, COALESCE(emp.manager_id, ''), e.template_id,
	e.period, e.year, COALESCE(e.month, 0), COALESCE(e.quarter, 0),
	e.status, e.total_score, COALESCE(e.final_comment, ''), e.created_at
`

func scanEvaluation(row pgx.Row) (Evaluation, error) {
	var eval Evaluation
	err := row.Scan(
		&eval.ID, &eval.EmployeeID, &eval.EmployeeName, &eval.ManagerID, &eval.TemplateID,
		&eval.Period, &eval.Year, &eval.Month, &eval.Quarter,
		&eval.Status, &eval.TotalScore, &eval.FinalComment, &eval.CreatedAt,
	)
	return eval, err
}

func (s *Store) CreateEvaluation(ctx context.Context, eval Evaluation) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
		INSERT INTO evaluations (employee_id, template_id, period, year, month, quarter, status, total_score, final_comment, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, 0), NULLIF($6, 0), $7, $8, $9, $10)
		RETURNING id
	`, eval.EmployeeID, eval.TemplateID, eval.Period, eval.Year, eval.Month, eval.Quarter,
		eval.Status, eval.TotalScore, eval.FinalComment, eval.CreatedAt).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) GetEvaluation(ctx context.Context, evaluationID string) (Evaluation, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT `+evaluationColumns+`
		FROM evaluations e
		JOIN employees emp ON emp.id = e.employee_id
		WHERE e.id = $1
	`, evaluationID)
	return scanEvaluation(row)
}

func (s *Store) ListEvaluations(ctx context.Context, filter ListFilter, limit, offset int) ([]Evaluation, error) {
	query := `
		SELECT ` + evaluationColumns + `
		FROM evaluations e
		JOIN employees emp ON emp.id = e.employee_id
		WHERE 1=1
	`
	args := []any{}
	idx := 1
	if filter.EmployeeID != "" {
		query += fmt.Sprintf(" AND e.employee_id = $%d", idx)
		args = append(args, filter.EmployeeID)
		idx++
	}
	if filter.ManagerID != "" {
		query += fmt.Sprintf(" AND emp.manager_id = $%d", idx)
		args = append(args, filter.ManagerID)
		idx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND e.status = $%d", idx)
		args = append(args, filter.Status)
		idx++
	}
	if filter.Period != "" {
		query += fmt.Sprintf(" AND e.period = $%d", idx)
		args = append(args, filter.Period)
		idx++
	}
	if filter.Year != 0 {
		query += fmt.Sprintf(" AND e.year = $%d", idx)
		args = append(args, filter.Year)
		idx++
	}
	query += fmt.Sprintf(" ORDER BY e.created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var evals []Evaluation
	for rows.Next() {
		eval, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		evals = append(evals, eval)
	}
	return evals, rows.Err()
}

func (s *Store) UpdateFinalComment(ctx context.Context, evaluationID, comment string) error {
	_, err := s.DB.Exec(ctx, "UPDATE evaluations SET final_comment = $1 WHERE id = $2", comment, evaluationID)
	return err
}

func (s *Store) DeleteEvaluation(ctx context.Context, evaluationID string) error {
	_, err := s.DB.Exec(ctx, "DELETE FROM evaluations WHERE id = $1", evaluationID)
	return err
}

const scoreColumns = `
	id, evaluation_id, item_name, COALESCE(item_description, ''), max_score,
	self_score, COALESCE(self_comment, ''),
	manager_score, COALESCE(manager_comment, ''), manager_auto,
	hr_score, COALESCE(hr_comment, ''),
	final_score, COALESCE(final_comment, '')
`

func scanScore(row pgx.Row) (Score, error) {
	var score Score
	var selfScore, managerScore, hrScore, finalScore *float64
	err := row.Scan(
		&score.ID, &score.EvaluationID, &score.ItemName, &score.ItemDescription, &score.MaxScore,
		&selfScore, &score.SelfComment,
		&managerScore, &score.ManagerComment, &score.ManagerAuto,
		&hrScore, &score.HRComment,
		&finalScore, &score.FinalComment,
	)
	if err != nil {
		return Score{}, err
	}
	score.SelfScore = fromNullable(selfScore)
	score.ManagerScore = fromNullable(managerScore)
	score.HRScore = fromNullable(hrScore)
	score.FinalScore = fromNullable(finalScore)
	return score, nil
}

func fromNullable(value *float64) ScoreValue {
	if value == nil {
		return ScoreValue{}
	}
	return Scored(*value)
}

func (s *Store) ListScores(ctx context.Context, evaluationID string) ([]Score, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT `+scoreColumns+`
		FROM evaluation_scores
		WHERE evaluation_id = $1
		ORDER BY position, id
	`, evaluationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []Score
	for rows.Next() {
		score, err := scanScore(rows)
		if err != nil {
			return nil, err
		}
		scores = append(scores, score)
	}
	return scores, rows.Err()
}

func (s *Store) GetScore(ctx context.Context, scoreID string) (Score, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT `+scoreColumns+`
		FROM evaluation_scores
		WHERE id = $1
	`, scoreID)
	return scanScore(row)
}

func (s *Store) CreateScoresFromTemplate(ctx context.Context, evaluationID, templateID string) (int, error) {
	tag, err := s.DB.Exec(ctx, `
		INSERT INTO evaluation_scores (evaluation_id, item_name, item_description, max_score, position)
		SELECT $1, name, description, max_score, position
		FROM kpi_items
		WHERE template_id = $2
	`, evaluationID, templateID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) SaveStageScore(ctx context.Context, scoreID string, variant Variant, value float64, comment string, managerAuto bool) error {
	var query string
	args := []any{value, comment, scoreID}
	switch variant {
	case VariantSelf:
		query = "UPDATE evaluation_scores SET self_score = $1, self_comment = $2 WHERE id = $3"
	case VariantManager:
		query = "UPDATE evaluation_scores SET manager_score = $1, manager_comment = $2, manager_auto = $4 WHERE id = $3"
		args = append(args, managerAuto)
	case VariantHR:
		query = "UPDATE evaluation_scores SET hr_score = $1, hr_comment = $2 WHERE id = $3"
	case VariantFinal:
		query = "UPDATE evaluation_scores SET final_score = $1, final_comment = $2 WHERE id = $3"
	default:
		return ErrUnknownVariant
	}
	_, err := s.DB.Exec(ctx, query, args...)
	return err
}

// ApplyTransition commits a stage advancement atomically: status + total on
// the evaluation (guarded by the status it was computed from), the stage
// history row, and on confirmation the per-item final scores.
func (s *Store) ApplyTransition(ctx context.Context, evaluationID string, transition Transition, actorUserID string, recordedAt time.Time) (Evaluation, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Evaluation{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE evaluations SET status = $1, total_score = $2
		WHERE id = $3 AND status = $4
	`, transition.NextStatus, transition.TotalScore, evaluationID, transition.FromStatus)
	if err != nil {
		return Evaluation{}, err
	}
	if tag.RowsAffected() == 0 {
		return Evaluation{}, ErrStatusConflict
	}

	for _, update := range transition.FinalScores {
		if _, err := tx.Exec(ctx, `
			UPDATE evaluation_scores SET final_score = $1
			WHERE id = $2 AND final_score IS NULL
		`, update.FinalScore, update.ScoreID); err != nil {
			return Evaluation{}, err
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO evaluation_stages (evaluation_id, stage, from_status, to_status, actor_user_id, total_score, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, evaluationID, string(transition.Stage), transition.FromStatus, transition.NextStatus, actorUserID, transition.TotalScore, recordedAt); err != nil {
		return Evaluation{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Evaluation{}, err
	}
	return s.GetEvaluation(ctx, evaluationID)
}

func (s *Store) ListStageRecords(ctx context.Context, evaluationID string) ([]StageRecord, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, evaluation_id, stage, from_status, to_status, actor_user_id, total_score, recorded_at
		FROM evaluation_stages
		WHERE evaluation_id = $1
		ORDER BY recorded_at
	`, evaluationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []StageRecord
	for rows.Next() {
		var record StageRecord
		var stage string
		if err := rows.Scan(&record.ID, &record.EvaluationID, &stage, &record.FromStatus, &record.ToStatus, &record.ActorUserID, &record.TotalScore, &record.RecordedAt); err != nil {
			return nil, err
		}
		record.Stage = Stage(stage)
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *Store) ManagerIDByEmployeeID(ctx context.Context, employeeID string) (string, error) {
	var managerID *string
	if err := s.DB.QueryRow(ctx, "SELECT manager_id FROM employees WHERE id = $1", employeeID).Scan(&managerID); err != nil {
		return "", err
	}
	if managerID == nil {
		return "", nil
	}
	return *managerID, nil
}

// PendingCount returns how many evaluations currently wait on the actor:
// their own self or confirm stages, their reports' manager stage, and for HR
// the reviews ready for HR completion.
func (s *Store) PendingCount(ctx context.Context, actor Principal) (int, error) {
	query := `
		SELECT COUNT(1)
		FROM evaluations e
		JOIN employees emp ON emp.id = e.employee_id
		WHERE (e.employee_id = $1 AND e.status IN ($2, $3))
		   OR (emp.manager_id = $1 AND e.employee_id <> $1 AND e.status = $4)
	`
	args := []any{actor.EmployeeID, StatusPending, StatusPendingConfirm, StatusSelfEvaluated}
	if actor.HR {
		query += " OR e.status = $5"
		args = append(args, StatusManagerEvaluated)
	}

	var count int
	if err := s.DB.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
