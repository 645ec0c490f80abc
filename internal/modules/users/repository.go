package users

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"stockfolio/internal/domain"
)

// Repository handles user database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new user repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "users").Logger(),
	}
}

// CreateTx inserts a user inside an existing database transaction.
// A duplicate username surfaces as domain.ErrUserExists.
func (r *Repository) CreateTx(tx *sql.Tx, username, hashedPassword string) (domain.User, error) {
	now := time.Now().UTC()

	res, err := tx.Exec(`
		INSERT INTO users (username, hashed_password, created_at)
		VALUES (?, ?, ?)`,
		username, hashedPassword, now.Format(time.RFC3339Nano),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.User{}, domain.ErrUserExists
		}
		return domain.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to read user id: %w", err)
	}

	return domain.User{
		ID:             id,
		Username:       username,
		HashedPassword: hashedPassword,
		CreatedAt:      now,
	}, nil
}

// GetByUsername returns the user with the given username
func (r *Repository) GetByUsername(username string) (domain.User, error) {
	var user domain.User
	var createdAt string

	err := r.db.QueryRow(`
		SELECT id, username, hashed_password, created_at
		FROM users
		WHERE username = ?`,
		username,
	).Scan(&user.ID, &user.Username, &user.HashedPassword, &createdAt)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to get user: %w", err)
	}

	if user.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return domain.User{}, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}

	return user, nil
}
