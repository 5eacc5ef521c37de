package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

func (s *Store) ListDepartments(ctx context.Context) ([]Department, error) {
	rows, err := s.DB.Query(ctx, "SELECT id, name, COALESCE(parent_id, '') FROM departments ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var departments []Department
	for rows.Next() {
		var dept Department
		if err := rows.Scan(&dept.ID, &dept.Name, &dept.ParentID); err != nil {
			return nil, err
		}
		departments = append(departments, dept)
	}
	return departments, rows.Err()
}

func (s *Store) CreateDepartment(ctx context.Context, dept Department) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
		INSERT INTO departments (name, parent_id) VALUES ($1, NULLIF($2, ''))
		RETURNING id
	`, dept.Name, dept.ParentID).Scan(&id)
	return id, err
}

func (s *Store) UpdateDepartment(ctx context.Context, dept Department) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE departments SET name = $1, parent_id = NULLIF($2, '') WHERE id = $3
	`, dept.Name, dept.ParentID, dept.ID)
	return err
}

func (s *Store) DeleteDepartment(ctx context.Context, departmentID string) error {
	_, err := s.DB.Exec(ctx, "DELETE FROM departments WHERE id = $1", departmentID)
	return err
}

const employeeColumns = `
	emp.id, emp.user_id, emp.name, u.email, COALESCE(emp.department_id, ''),
	COALESCE(emp.manager_id, ''), u.role, emp.active, emp.created_at
`

func scanEmployee(row pgx.Row) (Employee, error) {
	var emp Employee
	err := row.Scan(
		&emp.ID, &emp.UserID, &emp.Name, &emp.Email, &emp.DepartmentID,
		&emp.ManagerID, &emp.Role, &emp.Active, &emp.CreatedAt,
	)
	return emp, err
}

func (s *Store) ListEmployees(ctx context.Context, departmentID, managerID string, limit, offset int) ([]Employee, error) {
	query := `
		SELECT ` + employeeColumns + `
		FROM employees emp
		JOIN users u ON u.id = emp.user_id
		WHERE emp.active
	`
	args := []any{}
	idx := 1
	if departmentID != "" {
		query += fmt.Sprintf(" AND emp.department_id = $%d", idx)
		args = append(args, departmentID)
		idx++
	}
	if managerID != "" {
		query += fmt.Sprintf(" AND emp.manager_id = $%d", idx)
		args = append(args, managerID)
		idx++
	}
	query += fmt.Sprintf(" ORDER BY emp.name LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

func (s *Store) GetEmployee(ctx context.Context, employeeID string) (Employee, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT `+employeeColumns+`
		FROM employees emp
		JOIN users u ON u.id = emp.user_id
		WHERE emp.id = $1
	`, employeeID)
	return scanEmployee(row)
}

func (s *Store) CreateEmployee(ctx context.Context, emp Employee) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
		INSERT INTO employees (user_id, name, department_id, manager_id, active)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), true)
		RETURNING id
	`, emp.UserID, emp.Name, emp.DepartmentID, emp.ManagerID).Scan(&id)
	return id, err
}

func (s *Store) UpdateEmployee(ctx context.Context, emp Employee) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE employees
		SET name = $1, department_id = NULLIF($2, ''), manager_id = NULLIF($3, '')
		WHERE id = $4
	`, emp.Name, emp.DepartmentID, emp.ManagerID, emp.ID)
	return err
}

func (s *Store) DeactivateEmployee(ctx context.Context, employeeID string) error {
	_, err := s.DB.Exec(ctx, "UPDATE employees SET active = false WHERE id = $1", employeeID)
	return err
}

func (s *Store) ListTemplates(ctx context.Context) ([]KPITemplate, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, name, COALESCE(description, ''), period, created_at
		FROM kpi_templates
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []KPITemplate
	for rows.Next() {
		var tpl KPITemplate
		if err := rows.Scan(&tpl.ID, &tpl.Name, &tpl.Description, &tpl.Period, &tpl.CreatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, tpl)
	}
	return templates, rows.Err()
}

func (s *Store) GetTemplate(ctx context.Context, templateID string) (KPITemplate, error) {
	var tpl KPITemplate
	err := s.DB.QueryRow(ctx, `
		SELECT id, name, COALESCE(description, ''), period, created_at
		FROM kpi_templates
		WHERE id = $1
	`, templateID).Scan(&tpl.ID, &tpl.Name, &tpl.Description, &tpl.Period, &tpl.CreatedAt)
	if err != nil {
		return KPITemplate{}, err
	}

	rows, err := s.DB.Query(ctx, `
		SELECT id, template_id, name, COALESCE(description, ''), max_score, position
		FROM kpi_items
		WHERE template_id = $1
		ORDER BY position
	`, templateID)
	if err != nil {
		return KPITemplate{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var item KPIItem
		if err := rows.Scan(&item.ID, &item.TemplateID, &item.Name, &item.Description, &item.MaxScore, &item.Position); err != nil {
			return KPITemplate{}, err
		}
		tpl.Items = append(tpl.Items, item)
	}
	return tpl, rows.Err()
}

func (s *Store) CreateTemplate(ctx context.Context, tpl KPITemplate) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
		INSERT INTO kpi_templates (name, description, period)
		VALUES ($1, $2, $3)
		RETURNING id
	`, tpl.Name, tpl.Description, tpl.Period).Scan(&id)
	return id, err
}

func (s *Store) DeleteTemplate(ctx context.Context, templateID string) error {
	_, err := s.DB.Exec(ctx, "DELETE FROM kpi_templates WHERE id = $1", templateID)
	return err
}

func (s *Store) CreateItem(ctx context.Context, item KPIItem) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
		INSERT INTO kpi_items (template_id, name, description, max_score, position)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, item.TemplateID, item.Name, item.Description, item.MaxScore, item.Position).Scan(&id)
	return id, err
}

func (s *Store) UpdateItem(ctx context.Context, item KPIItem) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE kpi_items SET name = $1, description = $2, max_score = $3, position = $4
		WHERE id = $5
	`, item.Name, item.Description, item.MaxScore, item.Position, item.ID)
	return err
}

func (s *Store) DeleteItem(ctx context.Context, itemID string) error {
	_, err := s.DB.Exec(ctx, "DELETE FROM kpi_items WHERE id = $1", itemID)
	return err
}
