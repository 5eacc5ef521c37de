package core

import "time"

type Department struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parentId,omitempty"`
}

type Employee struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	DepartmentID string    `json:"departmentId,omitempty"`
	ManagerID    string    `json:"managerId,omitempty"`
	Role         string    `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
}

type KPITemplate struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Period      string    `json:"period"`
	Items       []KPIItem `json:"items,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type KPIItem struct {
	ID          string  `json:"id"`
	TemplateID  string  `json:"templateId"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	MaxScore    float64 `json:"maxScore"`
	Position    int     `json:"position"`
}
