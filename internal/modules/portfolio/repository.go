package portfolio

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stockfolio/internal/domain"
)

// Repository handles portfolio database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new portfolio repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "portfolio").Logger(),
	}
}

// CreateTx inserts the user's portfolio inside an existing database
// transaction, so registration and portfolio creation commit together.
func (r *Repository) CreateTx(tx *sql.Tx, userID int64) (domain.Portfolio, error) {
	p := domain.Portfolio{
		ID:         uuid.NewString(),
		UserID:     userID,
		TotalValue: decimal.Zero,
		ROI:        decimal.Zero,
		CreatedAt:  time.Now().UTC(),
	}

	_, err := tx.Exec(`
		INSERT INTO portfolios (id, user_id, total_value, roi, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.TotalValue.String(), p.ROI.String(),
		p.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return domain.Portfolio{}, fmt.Errorf("failed to create portfolio: %w", err)
	}

	return p, nil
}

// GetByUserID returns the user's portfolio
func (r *Repository) GetByUserID(userID int64) (domain.Portfolio, error) {
	var p domain.Portfolio
	var totalStr, roiStr, createdAt string
	var valuedAt sql.NullString

	err := r.db.QueryRow(`
		SELECT id, user_id, total_value, roi, valued_at, created_at
		FROM portfolios
		WHERE user_id = ?`,
		userID,
	).Scan(&p.ID, &p.UserID, &totalStr, &roiStr, &valuedAt, &createdAt)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.Portfolio{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Portfolio{}, fmt.Errorf("failed to get portfolio: %w", err)
	}

	if p.TotalValue, err = decimal.NewFromString(totalStr); err != nil {
		return domain.Portfolio{}, fmt.Errorf("invalid stored total_value %q: %w", totalStr, err)
	}
	if p.ROI, err = decimal.NewFromString(roiStr); err != nil {
		return domain.Portfolio{}, fmt.Errorf("invalid stored roi %q: %w", roiStr, err)
	}

	if p.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return domain.Portfolio{}, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}

	if valuedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, valuedAt.String)
		if err != nil {
			return domain.Portfolio{}, fmt.Errorf("invalid valued_at %q: %w", valuedAt.String, err)
		}
		p.ValuedAt = &t
	}

	return p, nil
}

// UpdateValuation refreshes the cached total_value/roi columns
func (r *Repository) UpdateValuation(portfolioID string, totalValue, roi decimal.Decimal, valuedAt time.Time) error {
	_, err := r.db.Exec(`
		UPDATE portfolios
		SET total_value = ?, roi = ?, valued_at = ?
		WHERE id = ?`,
		totalValue.String(), roi.String(),
		valuedAt.UTC().Format(time.RFC3339Nano),
		portfolioID,
	)
	if err != nil {
		return fmt.Errorf("failed to update valuation cache: %w", err)
	}

	return nil
}
