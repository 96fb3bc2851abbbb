// Package users manages marketplace accounts: the people the bot buys from
// and sells to. Accounts live in the ledger database so balance credits and
// transaction rows commit in the same unit of work.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/skinflow/tradebot/internal/domain"
)

// externalIDPattern matches a 17-digit SteamID64 in the public universe.
var externalIDPattern = regexp.MustCompile(`^7656119\d{10}$`)

const userColumns = "id, external_id, username, balance, is_active, trade_url, created_at"

// Repository provides access to user accounts in the ledger database.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new user repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "users").Logger(),
	}
}

// ValidateExternalID checks that an id looks like a real platform account id.
func ValidateExternalID(externalID string) error {
	if !externalIDPattern.MatchString(externalID) {
		return domain.NewValidationError("external_id", "must be a 17-digit account id starting with 7656119")
	}
	return nil
}

// Create inserts a new user and fills in the assigned id.
func (r *Repository) Create(ctx context.Context, user *domain.User) error {
	if err := ValidateExternalID(user.ExternalID); err != nil {
		return err
	}
	if user.Balance < 0 {
		return domain.NewValidationError("balance", "must not be negative")
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO users (external_id, username, balance, is_active, trade_url)
		VALUES (?, ?, ?, ?, ?)`,
		user.ExternalID, user.Username, user.Balance, user.IsActive, user.TradeURL)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewConflictError("user", user.ExternalID)
		}
		return fmt.Errorf("failed to create user %s: %w", user.ExternalID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read new user id: %w", err)
	}
	user.ID = id

	r.log.Info().Int64("user_id", id).Str("external_id", user.ExternalID).Msg("user created")
	return nil
}

// GetByID returns the user with the given internal id.
func (r *Repository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", id)
	return scanUser(row, fmt.Sprintf("%d", id))
}

// GetByExternalID returns the user owning the given platform account id.
func (r *Repository) GetByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE external_id = ?", externalID)
	return scanUser(row, externalID)
}

// List returns users ordered by creation time, newest first.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows, "")
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// SetActive enables or disables trading for a user. Inactive users have
// every incoming buy offer declined.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE users SET is_active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		active, id)
	if err != nil {
		return fmt.Errorf("failed to update user %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update of user %d: %w", id, err)
	}
	if affected == 0 {
		return domain.NewNotFoundError("user", fmt.Sprintf("%d", id))
	}
	return nil
}

// AdjustBalance applies a signed delta to a user's balance. The schema's
// non-negative check rejects overdrafts; that surfaces as a validation error.
func (r *Repository) AdjustBalance(ctx context.Context, id int64, delta float64) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE users SET balance = balance + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		delta, id)
	if err != nil {
		if isCheckViolation(err) {
			return domain.NewValidationError("balance", "insufficient balance")
		}
		return fmt.Errorf("failed to adjust balance of user %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check balance adjustment of user %d: %w", id, err)
	}
	if affected == 0 {
		return domain.NewNotFoundError("user", fmt.Sprintf("%d", id))
	}
	return nil
}

// SetTradeURL stores the user's trade link used when sending them offers.
func (r *Repository) SetTradeURL(ctx context.Context, id int64, tradeURL string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE users SET trade_url = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		tradeURL, id)
	if err != nil {
		return fmt.Errorf("failed to update trade url of user %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update of user %d: %w", id, err)
	}
	if affected == 0 {
		return domain.NewNotFoundError("user", fmt.Sprintf("%d", id))
	}
	return nil
}

// Count returns the total number of users.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner, key string) (*domain.User, error) {
	var user domain.User
	var createdAt string
	err := row.Scan(&user.ID, &user.ExternalID, &user.Username, &user.Balance,
		&user.IsActive, &user.TradeURL, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("user", key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	user.CreatedAt = parseTime(createdAt)
	return &user, nil
}

func parseTime(value string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339, "2006-01-02T15:04:05Z"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isCheckViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "CHECK constraint failed")
}
