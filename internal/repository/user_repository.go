package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/aryan0dhankhar/orderme/internal/domain"
)

const uniqueViolation = "23505"

const userColumns = `id, email, phone_number, password_hash, tenant_id, role, is_active, created_at, updated_at`

// PostgresUserRepository implements domain.UserRepository using PostgreSQL
type PostgresUserRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresUserRepository creates a new user repository
func NewPostgresUserRepository(db *sql.DB, logger *slog.Logger) *PostgresUserRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresUserRepository{
		db:     db,
		logger: logger,
	}
}

// Insert stores a new user and fills in ID and CreatedAt
func (r *PostgresUserRepository) Insert(ctx context.Context, user *domain.User) (*domain.User, error) {
	query := `
		INSERT INTO users (email, phone_number, password_hash, tenant_id, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	stored := *user
	err := r.db.QueryRowContext(ctx, query,
		user.Email,
		user.PhoneNumber,
		user.PasswordHash,
		user.TenantID,
		user.Role,
		user.IsActive,
	).Scan(&stored.ID, &stored.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, domain.ErrDuplicateEmail
		}
		r.logger.Error("failed to insert user",
			slog.Int64("tenant_id", user.TenantID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return &stored, nil
}

// FindByID retrieves a user by ID
func (r *PostgresUserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.findOne(ctx, query, id)
}

// FindByEmail retrieves a user by email
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.findOne(ctx, query, email)
}

func (r *PostgresUserRepository) findOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		r.logger.Error("failed to query user", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*domain.User, error) {
	var (
		user      domain.User
		phone     sql.NullString
		updatedAt sql.NullTime
	)
	err := row.Scan(
		&user.ID,
		&user.Email,
		&phone,
		&user.PasswordHash,
		&user.TenantID,
		&user.Role,
		&user.IsActive,
		&user.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if phone.Valid {
		user.PhoneNumber = &phone.String
	}
	if updatedAt.Valid {
		user.UpdatedAt = &updatedAt.Time
	}
	return &user, nil
}
