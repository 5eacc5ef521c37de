package reports

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

type DepartmentAverage struct {
	DepartmentID   string  `json:"departmentId"`
	DepartmentName string  `json:"departmentName"`
	AverageScore   float64 `json:"averageScore"`
	Completed      int     `json:"completed"`
}

type Summary struct {
	Year          int                 `json:"year"`
	Period        string              `json:"period,omitempty"`
	ByStatus      []StatusCount       `json:"byStatus"`
	ByDepartment  []DepartmentAverage `json:"byDepartment"`
	AverageScore  float64             `json:"averageScore"`
	CompletedRate float64             `json:"completedRate"`
}

type Service struct {
	DB *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{DB: db}
}

func (s *Service) Summary(ctx context.Context, year int, period string) (Summary, error) {
	out := Summary{Year: year, Period: period}

	query := `
		SELECT status, COUNT(1)
		FROM evaluations
		WHERE year = $1
	`
	args := []any{year}
	if period != "" {
		query += " AND period = $2"
		args = append(args, period)
	}
	query += " GROUP BY status ORDER BY status"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return Summary{}, err
	}
	defer rows.Close()

	total := 0
	completed := 0
	for rows.Next() {
		var sc StatusCount
		if err := rows.Scan(&sc.Status, &sc.Count); err != nil {
			return Summary{}, err
		}
		out.ByStatus = append(out.ByStatus, sc)
		total += sc.Count
		if sc.Status == "completed" {
			completed = sc.Count
		}
	}
	if err := rows.Err(); err != nil {
		return Summary{}, err
	}
	if total > 0 {
		out.CompletedRate = float64(completed) / float64(total)
	}

	avgQuery := `
		SELECT COALESCE(AVG(total_score), 0)
		FROM evaluations
		WHERE year = $1 AND status = 'completed'
	`
	avgArgs := []any{year}
	if period != "" {
		avgQuery += " AND period = $2"
		avgArgs = append(avgArgs, period)
	}
	if err := s.DB.QueryRow(ctx, avgQuery, avgArgs...).Scan(&out.AverageScore); err != nil {
		return Summary{}, err
	}

	deptQuery := `
		SELECT d.id, d.name, COALESCE(AVG(e.total_score), 0), COUNT(1)
		FROM evaluations e
		JOIN employees emp ON emp.id = e.employee_id
		JOIN departments d ON d.id = emp.department_id
		WHERE e.year = $1 AND e.status = 'completed'
	`
	deptArgs := []any{year}
	if period != "" {
		deptQuery += " AND e.period = $2"
		deptArgs = append(deptArgs, period)
	}
	deptQuery += " GROUP BY d.id, d.name ORDER BY d.name"

	deptRows, err := s.DB.Query(ctx, deptQuery, deptArgs...)
	if err != nil {
		return Summary{}, err
	}
	defer deptRows.Close()

	for deptRows.Next() {
		var da DepartmentAverage
		if err := deptRows.Scan(&da.DepartmentID, &da.DepartmentName, &da.AverageScore, &da.Completed); err != nil {
			return Summary{}, err
		}
		out.ByDepartment = append(out.ByDepartment, da)
	}
	return out, deptRows.Err()
}
