package core

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrInvalidMaxScore = errors.New("kpi item max score must be positive")

type Service struct {
	store StoreAPI
}

func NewService(store StoreAPI) *Service {
	return &Service{store: store}
}

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Service) ListDepartments(ctx context.Context) ([]Department, error) {
	return s.store.ListDepartments(ctx)
}

func (s *Service) CreateDepartment(ctx context.Context, dept Department) (string, error) {
	return s.store.CreateDepartment(ctx, dept)
}

func (s *Service) UpdateDepartment(ctx context.Context, dept Department) error {
	return s.store.UpdateDepartment(ctx, dept)
}

func (s *Service) DeleteDepartment(ctx context.Context, departmentID string) error {
	return s.store.DeleteDepartment(ctx, departmentID)
}

func (s *Service) ListEmployees(ctx context.Context, departmentID, managerID string, limit, offset int) ([]Employee, error) {
	return s.store.ListEmployees(ctx, departmentID, managerID, limit, offset)
}

func (s *Service) GetEmployee(ctx context.Context, employeeID string) (Employee, error) {
	return s.store.GetEmployee(ctx, employeeID)
}

func (s *Service) CreateEmployee(ctx context.Context, emp Employee) (string, error) {
	emp.Name = strings.TrimSpace(emp.Name)
	return s.store.CreateEmployee(ctx, emp)
}

func (s *Service) UpdateEmployee(ctx context.Context, emp Employee) error {
	return s.store.UpdateEmployee(ctx, emp)
}

func (s *Service) DeactivateEmployee(ctx context.Context, employeeID string) error {
	return s.store.DeactivateEmployee(ctx, employeeID)
}

func (s *Service) ListTemplates(ctx context.Context) ([]KPITemplate, error) {
	return s.store.ListTemplates(ctx)
}

func (s *Service) GetTemplate(ctx context.Context, templateID string) (KPITemplate, error) {
	return s.store.GetTemplate(ctx, templateID)
}

func (s *Service) CreateTemplate(ctx context.Context, tpl KPITemplate) (string, error) {
	for _, item := range tpl.Items {
		if item.MaxScore <= 0 {
			return "", ErrInvalidMaxScore
		}
	}
	id, err := s.store.CreateTemplate(ctx, tpl)
	if err != nil {
		return "", err
	}
	for i, item := range tpl.Items {
		item.TemplateID = id
		item.Position = i + 1
		if _, err := s.store.CreateItem(ctx, item); err != nil {
			return "", err
		}
	}
	return id, nil
}

func (s *Service) DeleteTemplate(ctx context.Context, templateID string) error {
	return s.store.DeleteTemplate(ctx, templateID)
}

func (s *Service) CreateItem(ctx context.Context, item KPIItem) (string, error) {
	if item.MaxScore <= 0 {
		return "", ErrInvalidMaxScore
	}
	return s.store.CreateItem(ctx, item)
}

func (s *Service) UpdateItem(ctx context.Context, item KPIItem) error {
	if item.MaxScore <= 0 {
		return ErrInvalidMaxScore
	}
	return s.store.UpdateItem(ctx, item)
}

func (s *Service) DeleteItem(ctx context.Context, itemID string) error {
	return s.store.DeleteItem(ctx, itemID)
}
