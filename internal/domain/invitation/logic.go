package invitation

import "errors"

// Action is a requested invitation lifecycle step.
type Action string

const (
	ActionAccept   Action = "accept"
	ActionDecline  Action = "decline"
	ActionCancel   Action = "cancel"
	ActionComplete Action = "complete"
)

var (
	ErrInvalidTransition = errors.New("invitation cannot take that action in its current status")
	ErrWrongActor        = errors.New("actor may not perform this invitation action")
	ErrUnknownAction     = errors.New("unknown invitation action")
	ErrScoreOutOfRange   = errors.New("invited score outside the item's allowed range")
)

// NextStatus returns the status an action leads to from the current one.
// pending -> accepted | declined | cancelled; accepted -> completed.
func NextStatus(current string, action Action) (string, error) {
	switch action {
	case ActionAccept:
		if current == StatusPending {
			return StatusAccepted, nil
		}
	case ActionDecline:
		if current == StatusPending {
			return StatusDeclined, nil
		}
	case ActionCancel:
		if current == StatusPending {
			return StatusCancelled, nil
		}
	case ActionComplete:
		if current == StatusAccepted {
			return StatusCompleted, nil
		}
	default:
		return "", ErrUnknownAction
	}
	return "", ErrInvalidTransition
}

// CanAct gates who may take which action: the invitee accepts, declines and
// completes; the inviter cancels.
func CanAct(inv Invitation, actorEmployeeID string, action Action) bool {
	if actorEmployeeID == "" {
		return false
	}
	switch action {
	case ActionAccept, ActionDecline, ActionComplete:
		return actorEmployeeID == inv.InviteeID
	case ActionCancel:
		return actorEmployeeID == inv.InviterID
	}
	return false
}

// Resolve validates actor and transition together and returns the next
// status. Pure; the store applies the result.
func Resolve(inv Invitation, actorEmployeeID string, action Action) (string, error) {
	if !CanAct(inv, actorEmployeeID, action) {
		return "", ErrWrongActor
	}
	return NextStatus(inv.Status, action)
}

// Terminal reports whether no further action can ever apply.
func Terminal(status string) bool {
	switch status {
	case StatusDeclined, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}
