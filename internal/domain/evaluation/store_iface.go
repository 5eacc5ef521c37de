package evaluation

import (
	"context"
	"time"
)

type StoreAPI interface {
	CreateEvaluation(ctx context.Context, eval Evaluation) (string, error)
	GetEvaluation(ctx context.Context, evaluationID string) (Evaluation, error)
	ListEvaluations(ctx context.Context, filter ListFilter, limit, offset int) ([]Evaluation, error)
	UpdateFinalComment(ctx context.Context, evaluationID, comment string) error
	DeleteEvaluation(ctx context.Context, evaluationID string) error

	ListScores(ctx context.Context, evaluationID string) ([]Score, error)
	GetScore(ctx context.Context, scoreID string) (Score, error)
	CreateScoresFromTemplate(ctx context.Context, evaluationID, templateID string) (int, error)
	SaveStageScore(ctx context.Context, scoreID string, variant Variant, value float64, comment string, managerAuto bool) error

	ApplyTransition(ctx context.Context, evaluationID string, transition Transition, actorUserID string, recordedAt time.Time) (Evaluation, error)
	ListStageRecords(ctx context.Context, evaluationID string) ([]StageRecord, error)

	ManagerIDByEmployeeID(ctx context.Context, employeeID string) (string, error)
	PendingCount(ctx context.Context, actor Principal) (int, error)
}

type ListFilter struct {
	EmployeeID string
	ManagerID  string
	Status     string
	Period     string
	Year       int
}
