package users

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"stockfolio/internal/auth"
	"stockfolio/internal/domain"
	"stockfolio/internal/modules/portfolio"
)

// Service handles registration and login. Registration creates the
// user's single portfolio in the same database transaction, so a user
// never exists without one.
type Service struct {
	db            *sql.DB
	userRepo      *Repository
	portfolioRepo *portfolio.Repository
	tokens        *auth.Tokens
	log           zerolog.Logger
}

// NewService creates a new user service
func NewService(
	db *sql.DB,
	userRepo *Repository,
	portfolioRepo *portfolio.Repository,
	tokens *auth.Tokens,
	log zerolog.Logger,
) *Service {
	return &Service{
		db:            db,
		userRepo:      userRepo,
		portfolioRepo: portfolioRepo,
		tokens:        tokens,
		log:           log.With().Str("service", "users").Logger(),
	}
}

// Register creates a user and their portfolio and returns a bearer token
func (s *Service) Register(username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", fmt.Errorf("%w: username is required", domain.ErrInvalidCredentials)
	}

	if err := ValidatePassword(password); err != nil {
		return "", err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin registration: %w", err)
	}
	defer tx.Rollback()

	user, err := s.userRepo.CreateTx(tx, username, string(hashed))
	if err != nil {
		return "", err
	}

	if _, err := s.portfolioRepo.CreateTx(tx, user.ID); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit registration: %w", err)
	}

	s.log.Info().Str("username", username).Int64("user_id", user.ID).Msg("User registered")

	return s.tokens.Issue(user.ID)
}

// Login verifies credentials and returns a bearer token
func (s *Service) Login(username, password string) (string, error) {
	user, err := s.userRepo.GetByUsername(strings.TrimSpace(username))
	if errors.Is(err, domain.ErrNotFound) {
		return "", domain.ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return "", domain.ErrInvalidCredentials
	}

	return s.tokens.Issue(user.ID)
}

// ValidatePassword enforces the complexity rules: at least 8 chars with
// a lowercase letter, an uppercase letter, a digit and a special char.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return domain.ErrWeakPassword
	}

	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if !hasLower || !hasUpper || !hasDigit || !hasSpecial {
		return domain.ErrWeakPassword
	}

	return nil
}
