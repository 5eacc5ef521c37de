package invitation

import "context"

type StoreAPI interface {
	CreateInvitation(ctx context.Context, inv Invitation) (string, error)
	GetInvitation(ctx context.Context, invitationID string) (Invitation, error)
	ListInvitationsByEvaluation(ctx context.Context, evaluationID string) ([]Invitation, error)
	ListInvitationsForEmployee(ctx context.Context, employeeID string, limit, offset int) ([]Invitation, error)
	UpdateInvitationStatus(ctx context.Context, invitationID, fromStatus, toStatus string) error
	DeleteInvitation(ctx context.Context, invitationID string) error
	PendingInvitationCount(ctx context.Context, inviteeID string) (int, error)

	CreateInvitedScores(ctx context.Context, invitationID, evaluationID string) (int, error)
	ListInvitedScores(ctx context.Context, invitationID string) ([]InvitedScore, error)
	GetInvitedScore(ctx context.Context, invitedScoreID string) (InvitedScore, Invitation, error)
	SaveInvitedScore(ctx context.Context, invitedScoreID string, value float64, comment string) error

	EvaluationParticipants(ctx context.Context, evaluationID string) (employeeID, managerID string, err error)
	EmployeeEmail(ctx context.Context, employeeID string) (string, error)
}
