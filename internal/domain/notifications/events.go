package notifications

import (
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Control events carry channel bookkeeping; everything else is a business
// change notification fanned out to subscribers.
const (
	TypeConnected = "connected"
	TypeHeartbeat = "heartbeat"

	TypeEvaluationCreated       = "evaluation_created"
	TypeEvaluationUpdated       = "evaluation_updated"
	TypeEvaluationDeleted       = "evaluation_deleted"
	TypeEvaluationStatusChanged = "evaluation_status_changed"

	TypeInvitationCreated       = "invitation_created"
	TypeInvitationUpdated       = "invitation_updated"
	TypeInvitationDeleted       = "invitation_deleted"
	TypeInvitationStatusChanged = "invitation_status_changed"

	TypeInvitedScoreUpdated = "invited_score_updated"
	TypeSelfScoreUpdated    = "self_score_updated"
	TypeManagerScoreUpdated = "manager_score_updated"
	TypeHRScoreUpdated      = "hr_score_updated"
)

type EventData struct {
	SubjectID    string          `json:"subjectId,omitempty"`
	EmployeeID   string          `json:"employeeId,omitempty"`
	OperatorID   string          `json:"operatorId,omitempty"`
	OperatorName string          `json:"operatorName,omitempty"`
	Message      string          `json:"message,omitempty"`
	UserID       string          `json:"userId,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// Event is the wire unit of the realtime channel. Ephemeral: never persisted
// beyond the hub's short replay buffer.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Data      EventData `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

func New(eventType string, data EventData) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

func Connected(userID string) Event {
	return New(TypeConnected, EventData{UserID: userID})
}

func Heartbeat() Event {
	return New(TypeHeartbeat, EventData{})
}

// Control reports whether the event is channel bookkeeping rather than a
// business notification.
func (e Event) Control() bool {
	return e.Type == TypeConnected || e.Type == TypeHeartbeat
}

// AffectsEvaluations matches the counter-refresh rule: any business type
// naming "evaluation" invalidates the pending-evaluation count.
func AffectsEvaluations(eventType string) bool {
	return strings.Contains(eventType, "evaluation")
}

func AffectsInvitations(eventType string) bool {
	return strings.Contains(eventType, "invitation")
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func Decode(raw []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}
