package invitation

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// ErrStatusConflict mirrors the guarded update: the invitation moved to a
// different status between read and write.
var ErrStatusConflict = errors.New("invitation status changed concurrently")

const invitationColumns = `
	i.id, i.evaluation_id, i.inviter_id, i.invitee_id, emp.name,
	i.status, COALESCE(i.message, ''), i.created_at, i.updated_at
`

func scanInvitation(row pgx.Row) (Invitation, error) {
	var inv Invitation
	err := row.Scan(
		&inv.ID, &inv.EvaluationID, &inv.InviterID, &inv.InviteeID, &inv.InviteeName,
		&inv.Status, &inv.Message, &inv.CreatedAt, &inv.UpdatedAt,
	)
	return inv, err
}

func (s *Store) CreateInvitation(ctx context.Context, inv Invitation) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
		INSERT INTO evaluation_invitations (evaluation_id, inviter_id, invitee_id, status, message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, inv.EvaluationID, inv.InviterID, inv.InviteeID, inv.Status, inv.Message, inv.CreatedAt, inv.UpdatedAt).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) GetInvitation(ctx context.Context, invitationID string) (Invitation, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT `+invitationColumns+`
		FROM evaluation_invitations i
		JOIN employees emp ON emp.id = i.invitee_id
		WHERE i.id = $1
	`, invitationID)
	return scanInvitation(row)
}

func (s *Store) ListInvitationsByEvaluation(ctx context.Context, evaluationID string) ([]Invitation, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT `+invitationColumns+`
		FROM evaluation_invitations i
		JOIN employees emp ON emp.id = i.invitee_id
		WHERE i.evaluation_id = $1
		ORDER BY i.created_at
	`, evaluationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInvitations(rows)
}

func (s *Store) ListInvitationsForEmployee(ctx context.Context, employeeID string, limit, offset int) ([]Invitation, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT `+invitationColumns+`
		FROM evaluation_invitations i
		JOIN employees emp ON emp.id = i.invitee_id
		WHERE i.invitee_id = $1 OR i.inviter_id = $1
		ORDER BY i.created_at DESC
		LIMIT $2 OFFSET $3
	`, employeeID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInvitations(rows)
}

func collectInvitations(rows pgx.Rows) ([]Invitation, error) {
	var invitations []Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}

func (s *Store) UpdateInvitationStatus(ctx context.Context, invitationID, fromStatus, toStatus string) error {
	tag, err := s.DB.Exec(ctx, `
		UPDATE evaluation_invitations SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`, toStatus, invitationID, fromStatus)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (s *Store) DeleteInvitation(ctx context.Context, invitationID string) error {
	_, err := s.DB.Exec(ctx, "DELETE FROM evaluation_invitations WHERE id = $1", invitationID)
	return err
}

func (s *Store) PendingInvitationCount(ctx context.Context, inviteeID string) (int, error) {
	var count int
	err := s.DB.QueryRow(ctx, `
		SELECT COUNT(1) FROM evaluation_invitations
		WHERE invitee_id = $1 AND status = $2
	`, inviteeID, StatusPending).Scan(&count)
	return count, err
}

func (s *Store) CreateInvitedScores(ctx context.Context, invitationID, evaluationID string) (int, error) {
	tag, err := s.DB.Exec(ctx, `
		INSERT INTO invited_scores (invitation_id, item_name, max_score, position)
		SELECT $1, item_name, max_score, position
		FROM evaluation_scores
		WHERE evaluation_id = $2
	`, invitationID, evaluationID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) ListInvitedScores(ctx context.Context, invitationID string) ([]InvitedScore, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, invitation_id, item_name, max_score, COALESCE(score, 0), COALESCE(comment, '')
		FROM invited_scores
		WHERE invitation_id = $1
		ORDER BY position, id
	`, invitationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []InvitedScore
	for rows.Next() {
		var score InvitedScore
		if err := rows.Scan(&score.ID, &score.InvitationID, &score.ItemName, &score.MaxScore, &score.Score, &score.Comment); err != nil {
			return nil, err
		}
		scores = append(scores, score)
	}
	return scores, rows.Err()
}

func (s *Store) GetInvitedScore(ctx context.Context, invitedScoreID string) (InvitedScore, Invitation, error) {
	var score InvitedScore
	err := s.DB.QueryRow(ctx, `
		SELECT id, invitation_id, item_name, max_score, COALESCE(score, 0), COALESCE(comment, '')
		FROM invited_scores
		WHERE id = $1
	`, invitedScoreID).Scan(&score.ID, &score.InvitationID, &score.ItemName, &score.MaxScore, &score.Score, &score.Comment)
	if err != nil {
		return InvitedScore{}, Invitation{}, err
	}

	inv, err := s.GetInvitation(ctx, score.InvitationID)
	if err != nil {
		return InvitedScore{}, Invitation{}, err
	}
	return score, inv, nil
}

func (s *Store) SaveInvitedScore(ctx context.Context, invitedScoreID string, value float64, comment string) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE invited_scores SET score = $1, comment = $2 WHERE id = $3
	`, value, comment, invitedScoreID)
	return err
}

func (s *Store) EvaluationParticipants(ctx context.Context, evaluationID string) (string, string, error) {
	var employeeID string
	var managerID *string
	err := s.DB.QueryRow(ctx, `
		SELECT e.employee_id, emp.manager_id
		FROM evaluations e
		JOIN employees emp ON emp.id = e.employee_id
		WHERE e.id = $1
	`, evaluationID).Scan(&employeeID, &managerID)
	if err != nil {
		return "", "", err
	}
	if managerID == nil {
		return employeeID, "", nil
	}
	return employeeID, *managerID, nil
}

func (s *Store) EmployeeEmail(ctx context.Context, employeeID string) (string, error) {
	var email string
	err := s.DB.QueryRow(ctx, `
		SELECT u.email
		FROM employees emp
		JOIN users u ON u.id = emp.user_id
		WHERE emp.id = $1
	`, employeeID).Scan(&email)
	return email, err
}
