package auth

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type UserContext struct {
	UserID     string
	EmployeeID string
	Role       string
}

func (u UserContext) IsHR() bool {
	return u.Role == RoleHR || u.Role == RoleAdmin
}

type AuthUser struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	EmployeeID   string
	Active       bool
}

type Service struct {
	Store *Store
}

func NewService(store *Store) *Service {
	return &Service{Store: store}
}

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Service) FindActiveUserByEmail(ctx context.Context, email string) (AuthUser, error) {
	return s.Store.FindActiveUserByEmail(ctx, email)
}

func (s *Service) UpdateLastLogin(ctx context.Context, userID string) error {
	return s.Store.UpdateLastLogin(ctx, userID)
}

// CreateUser provisions an account for an employee record to attach to.
func (s *Service) CreateUser(ctx context.Context, email, password, role string) (string, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return "", err
	}
	return s.Store.CreateUser(ctx, email, hash, role)
}

func (s *Store) FindActiveUserByEmail(ctx context.Context, email string) (AuthUser, error) {
	var user AuthUser
	var employeeID *string
	err := s.DB.QueryRow(ctx, `
		SELECT u.id, u.email, u.password_hash, u.role, emp.id, u.active
		FROM users u
		LEFT JOIN employees emp ON emp.user_id = u.id
		WHERE u.email = $1 AND u.active
	`, email).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Role, &employeeID, &user.Active)
	if err != nil {
		return AuthUser{}, err
	}
	if employeeID != nil {
		user.EmployeeID = *employeeID
	}
	return user, nil
}

func (s *Store) UpdateLastLogin(ctx context.Context, userID string) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET last_login_at = now() WHERE id = $1", userID)
	return err
}

func (s *Store) CreateUser(ctx context.Context, email, passwordHash, role string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, role, active)
		VALUES ($1, $2, $3, true)
		RETURNING id
	`, email, passwordHash, role).Scan(&id)
	return id, err
}
