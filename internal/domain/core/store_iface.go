package core

import "context"

type StoreAPI interface {
	ListDepartments(ctx context.Context) ([]Department, error)
	CreateDepartment(ctx context.Context, dept Department) (string, error)
	UpdateDepartment(ctx context.Context, dept Department) error
	DeleteDepartment(ctx context.Context, departmentID string) error

	ListEmployees(ctx context.Context, departmentID, managerID string, limit, offset int) ([]Employee, error)
	GetEmployee(ctx context.Context, employeeID string) (Employee, error)
	CreateEmployee(ctx context.Context, emp Employee) (string, error)
	UpdateEmployee(ctx context.Context, emp Employee) error
	DeactivateEmployee(ctx context.Context, employeeID string) error

	ListTemplates(ctx context.Context) ([]KPITemplate, error)
	GetTemplate(ctx context.Context, templateID string) (KPITemplate, error)
	CreateTemplate(ctx context.Context, tpl KPITemplate) (string, error)
	DeleteTemplate(ctx context.Context, templateID string) error
	CreateItem(ctx context.Context, item KPIItem) (string, error)
	UpdateItem(ctx context.Context, item KPIItem) error
	DeleteItem(ctx context.Context, itemID string) error
}
