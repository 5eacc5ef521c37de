package invitation

import "time"

const (
	StatusPending   = "pending"
	StatusAccepted  = "accepted"
	StatusDeclined  = "declined"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Invitation asks a peer (not the direct manager) to contribute scores to an
// evaluation. It runs its own lifecycle, independent of the evaluation's.
type Invitation struct {
	ID           string    `json:"id"`
	EvaluationID string    `json:"evaluationId"`
	InviterID    string    `json:"inviterId"`
	InviteeID    string    `json:"inviteeId"`
	InviteeName  string    `json:"inviteeName,omitempty"`
	Status       string    `json:"status"`
	Message      string    `json:"message,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type InvitedScore struct {
	ID           string  `json:"id"`
	InvitationID string  `json:"invitationId"`
	ItemName     string  `json:"itemName"`
	MaxScore     float64 `json:"maxScore"`
	Score        float64 `json:"score"`
	Comment      string  `json:"comment,omitempty"`
}
