package invitation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrInviteeNotEligible = errors.New("invitee may not be the subject or their direct manager")

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

type Service struct {
	store       StoreAPI
	Mailer      Mailer
	DefaultFrom string
}

func NewService(store StoreAPI) *Service {
	return &Service{store: store, DefaultFrom: "no-reply@example.com"}
}

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

// Create issues a peer-scoring request. Peers only: the evaluation's subject
// and their direct manager are excluded, since both already score through
// the main workflow.
func (s *Service) Create(ctx context.Context, inv Invitation) (Invitation, error) {
	subjectID, managerID, err := s.store.EvaluationParticipants(ctx, inv.EvaluationID)
	if err != nil {
		return Invitation{}, err
	}
	if inv.InviteeID == subjectID || (managerID != "" && inv.InviteeID == managerID) {
		return Invitation{}, ErrInviteeNotEligible
	}

	inv.Status = StatusPending
	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now

	id, err := s.store.CreateInvitation(ctx, inv)
	if err != nil {
		return Invitation{}, err
	}

	created, err := s.store.GetInvitation(ctx, id)
	if err != nil {
		return Invitation{}, err
	}
	s.mailInvitee(ctx, created)
	return created, nil
}

func (s *Service) mailInvitee(ctx context.Context, inv Invitation) {
	if s.Mailer == nil {
		return
	}
	email, err := s.store.EmployeeEmail(ctx, inv.InviteeID)
	if err != nil || email == "" {
		if err != nil {
			slog.Warn("invitation email lookup failed", "err", err)
		}
		return
	}
	body := "You have been invited to score a peer evaluation."
	if inv.Message != "" {
		body += "\n\n" + inv.Message
	}
	if err := s.Mailer.Send(ctx, s.DefaultFrom, email, "Peer evaluation invitation", body); err != nil {
		slog.Warn("invitation email send failed", "err", err)
	}
}

func (s *Service) Get(ctx context.Context, invitationID string) (Invitation, error) {
	return s.store.GetInvitation(ctx, invitationID)
}

func (s *Service) ListByEvaluation(ctx context.Context, evaluationID string) ([]Invitation, error) {
	return s.store.ListInvitationsByEvaluation(ctx, evaluationID)
}

func (s *Service) ListForEmployee(ctx context.Context, employeeID string, limit, offset int) ([]Invitation, error) {
	return s.store.ListInvitationsForEmployee(ctx, employeeID, limit, offset)
}

func (s *Service) Delete(ctx context.Context, invitationID string) error {
	return s.store.DeleteInvitation(ctx, invitationID)
}

func (s *Service) PendingCount(ctx context.Context, inviteeID string) (int, error) {
	return s.store.PendingInvitationCount(ctx, inviteeID)
}

// Act applies one lifecycle action. Accepting also snapshots the
// evaluation's items into invited score rows for the invitee to fill in.
func (s *Service) Act(ctx context.Context, invitationID, actorEmployeeID string, action Action) (Invitation, error) {
	inv, err := s.store.GetInvitation(ctx, invitationID)
	if err != nil {
		return Invitation{}, err
	}

	next, err := Resolve(inv, actorEmployeeID, action)
	if err != nil {
		return Invitation{}, err
	}

	if err := s.store.UpdateInvitationStatus(ctx, invitationID, inv.Status, next); err != nil {
		return Invitation{}, err
	}

	if action == ActionAccept {
		if _, err := s.store.CreateInvitedScores(ctx, invitationID, inv.EvaluationID); err != nil {
			return Invitation{}, err
		}
	}

	return s.store.GetInvitation(ctx, invitationID)
}

func (s *Service) Scores(ctx context.Context, invitationID string) ([]InvitedScore, error) {
	return s.store.ListInvitedScores(ctx, invitationID)
}

// SaveScore records one invited line-item score; only the invitee of an
// accepted invitation may write, and the value must respect the item range.
func (s *Service) SaveScore(ctx context.Context, invitedScoreID, actorEmployeeID string, value float64, comment string) (InvitedScore, error) {
	current, inv, err := s.store.GetInvitedScore(ctx, invitedScoreID)
	if err != nil {
		return InvitedScore{}, err
	}
	if actorEmployeeID != inv.InviteeID {
		return InvitedScore{}, ErrWrongActor
	}
	if inv.Status != StatusAccepted {
		return InvitedScore{}, ErrInvalidTransition
	}
	if value < 0 || value > current.MaxScore {
		return InvitedScore{}, ErrScoreOutOfRange
	}

	if err := s.store.SaveInvitedScore(ctx, invitedScoreID, value, comment); err != nil {
		return InvitedScore{}, err
	}
	updated, _, err := s.store.GetInvitedScore(ctx, invitedScoreID)
	return updated, err
}
