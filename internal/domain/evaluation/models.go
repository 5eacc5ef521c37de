package evaluation

import (
	"time"

	"github.com/goccy/go-json"
)

// ScoreValue distinguishes "never entered" from an entered value. The product
// rule inherited from the original workflow treats an entered zero the same
// as absent for completeness checks, so Scored excludes zero while Present
// does not.
type ScoreValue struct {
	Value float64
	Valid bool
}

func Scored(value float64) ScoreValue {
	return ScoreValue{Value: value, Valid: true}
}

// Present reports whether any value was recorded, including zero.
func (v ScoreValue) Present() bool {
	return v.Valid
}

// Entered reports whether the value counts as scored for stage completeness.
func (v ScoreValue) Entered() bool {
	return v.Valid && v.Value != 0
}

func (v ScoreValue) Or(fallback ScoreValue) ScoreValue {
	if v.Entered() {
		return v
	}
	return fallback
}

func (v ScoreValue) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.Value)
}

func (v *ScoreValue) UnmarshalJSON(data []byte) error {
	var value *float64
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	if value == nil {
		*v = ScoreValue{}
		return nil
	}
	*v = Scored(*value)
	return nil
}

type Evaluation struct {
	ID           string    `json:"id"`
	EmployeeID   string    `json:"employeeId"`
	EmployeeName string    `json:"employeeName,omitempty"`
	ManagerID    string    `json:"managerId,omitempty"`
	TemplateID   string    `json:"templateId"`
	Period       string    `json:"period"`
	Year         int       `json:"year"`
	Month        int       `json:"month,omitempty"`
	Quarter      int       `json:"quarter,omitempty"`
	Status       string    `json:"status"`
	TotalScore   float64   `json:"totalScore"`
	FinalComment string    `json:"finalComment,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Score struct {
	ID              string     `json:"id"`
	EvaluationID    string     `json:"evaluationId"`
	ItemName        string     `json:"itemName"`
	ItemDescription string     `json:"itemDescription,omitempty"`
	MaxScore        float64    `json:"maxScore"`
	SelfScore       ScoreValue `json:"selfScore"`
	SelfComment     string     `json:"selfComment,omitempty"`
	ManagerScore    ScoreValue `json:"managerScore"`
	ManagerComment  string     `json:"managerComment,omitempty"`
	ManagerAuto     bool       `json:"managerAuto,omitempty"`
	HRScore         ScoreValue `json:"hrScore"`
	HRComment       string     `json:"hrComment,omitempty"`
	FinalScore      ScoreValue `json:"finalScore"`
	FinalComment    string     `json:"finalComment,omitempty"`
}

// Principal is the acting user as the lifecycle guards see them: an immutable
// value threaded through every eligibility check.
type Principal struct {
	UserID     string
	EmployeeID string
	HR         bool
}

type StageRecord struct {
	ID           string    `json:"id"`
	EvaluationID string    `json:"evaluationId"`
	Stage        Stage     `json:"stage"`
	FromStatus   string    `json:"fromStatus"`
	ToStatus     string    `json:"toStatus"`
	ActorUserID  string    `json:"actorUserId"`
	TotalScore   float64   `json:"totalScore"`
	RecordedAt   time.Time `json:"recordedAt"`
}
