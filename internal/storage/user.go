package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/linemk/coffee-shop/internal/domain/models"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

type UserStorage interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	SetVerified(ctx context.Context, username string) error
	// DeactivateUnverifiedBefore снимает is_active у всех неверифицированных
	// пользователей, зарегистрированных раньше cutoff. Возвращает число затронутых строк.
	DeactivateUnverifiedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	List(ctx context.Context) ([]*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) (*models.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
	ListStaffEmails(ctx context.Context) ([]string, error)
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *userRepository {
	return &userRepository{db: db}
}

const userColumns = "id, username, email, pass_hash, is_active, is_verified, is_staff, date_joined, updated_at"

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	if err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.PassHash,
		&user.IsActive, &user.IsVerified, &user.IsStaff,
		&user.DateJoined, &user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// получение уже существующего пользователя по имени
func (r *userRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = $1", username)
	return scanUser(row)
}

func (r *userRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id)
	return scanUser(row)
}

func (r *userRepository) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	query := `INSERT INTO users (id, username, email, pass_hash, is_active, is_verified, is_staff, date_joined, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	          RETURNING date_joined, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Username, user.Email, user.PassHash,
		user.IsActive, user.IsVerified, user.IsStaff,
	).Scan(&user.DateJoined, &user.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (r *userRepository) SetVerified(ctx context.Context, username string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET is_verified = TRUE, updated_at = NOW() WHERE username = $1", username)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Повторный запуск ничего не меняет: уже деактивированные строки
// не попадают под условие is_active = TRUE.
func (r *userRepository) DeactivateUnverifiedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_active = FALSE, updated_at = NOW()
		 WHERE is_verified = FALSE AND is_active = TRUE AND date_joined < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate unverified users: %w", err)
	}
	return res.RowsAffected()
}

// List возвращает всех пользователей в порядке регистрации.
func (r *userRepository) List(ctx context.Context) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY date_joined")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		if err := rows.Scan(
			&user.ID, &user.Username, &user.Email, &user.PassHash,
			&user.IsActive, &user.IsVerified, &user.IsStaff,
			&user.DateJoined, &user.UpdatedAt,
		); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateUser сохраняет изменяемые администратором поля пользователя.
func (r *userRepository) UpdateUser(ctx context.Context, user *models.User) (*models.User, error) {
	query := `UPDATE users SET email = $1, is_active = $2, is_verified = $3, is_staff = $4, updated_at = NOW()
	          WHERE id = $5
	          RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query,
		user.Email, user.IsActive, user.IsVerified, user.IsStaff, user.ID,
	).Scan(&user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

func (r *userRepository) DeleteUser(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ListStaffEmails возвращает непустые email администраторов для рассылки уведомлений.
func (r *userRepository) ListStaffEmails(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT email FROM users WHERE is_staff = TRUE AND email <> ''")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return emails, nil
}
