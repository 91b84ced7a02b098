package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/trckr/apiserver/internal/db"
	"github.com/trckr/apiserver/types"
)

// UserRepository handles persistence for users.
type UserRepository struct {
	db *db.Manager
}

func NewUserRepository(m *db.Manager) *UserRepository {
	return &UserRepository{db: m}
}

const userColumns = `id, name, email, password_hash, created_at, updated_at`

func scanUser(row rowScanner) (types.User, error) {
	var user types.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return types.User{}, translate(err)
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return db.Run(ctx, r.db, "get user by id", r.db.Timeouts().Read, func(ctx context.Context, conn db.Conn) (types.User, error) {
		return scanUser(conn.QueryRowContext(ctx, query, id))
	})
}

// GetByEmail looks a user up case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	return db.Run(ctx, r.db, "get user by email", r.db.Timeouts().Read, func(ctx context.Context, conn db.Conn) (types.User, error) {
		return scanUser(conn.QueryRowContext(ctx, query, email))
	})
}

// Create inserts user. A duplicate email yields ErrConflict.
func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (id, name, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	err := db.Exec(ctx, r.db, "create user", r.db.Timeouts().Write, func(ctx context.Context, conn db.Conn) error {
		_, err := conn.ExecContext(
			ctx,
			query,
			user.ID,
			user.Name,
			user.Email,
			user.PasswordHash,
			user.CreatedAt,
			user.UpdatedAt,
		)
		return translate(err)
	})
	if err != nil {
		return types.User{}, err
	}
	return user, nil
}
