// Package ledger owns the durable record of transactions, balances and
// bot-held inventory, and the reconciliation of offer outcomes against it.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/skinflow/tradebot/internal/database"
	"github.com/skinflow/tradebot/internal/domain"
)

// Compile-time interface check
var _ domain.LedgerStore = (*Store)(nil)

// transactionColumns is the column list for the transactions table.
// Column order must match scanTransaction.
const transactionColumns = `id, trade_offer_id, user_id, kind, status, item_name, item_asset_id, price, commission, final_amount, created_at, completed_at`

// Store is the SQL-backed ledger store. The Complete* operations run as
// single transactions whose status flip is guarded on the pending state:
// the affected-row count of that conditional update is the real source of
// idempotency under duplicate event delivery.
type Store struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewStore creates a ledger store on the given ledger database.
func NewStore(ledgerDB *sql.DB, log zerolog.Logger) *Store {
	return &Store{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "ledger").Logger(),
	}
}

// FindTransactionByOfferID returns the transaction recorded for an
// external trade offer id.
func (s *Store) FindTransactionByOfferID(ctx context.Context, tradeOfferID string) (*domain.Transaction, error) {
	query := "SELECT " + transactionColumns + " FROM transactions WHERE trade_offer_id = ?"

	row := s.ledgerDB.QueryRowContext(ctx, query, tradeOfferID)
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFoundError("transaction", tradeOfferID)
		}
		return nil, fmt.Errorf("failed to find transaction by offer id: %w", err)
	}

	return tx, nil
}

// FindTransactionByID returns a transaction by its internal id.
func (s *Store) FindTransactionByID(ctx context.Context, id string) (*domain.Transaction, error) {
	query := "SELECT " + transactionColumns + " FROM transactions WHERE id = ?"

	row := s.ledgerDB.QueryRowContext(ctx, query, id)
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFoundError("transaction", id)
		}
		return nil, fmt.Errorf("failed to find transaction by id: %w", err)
	}

	return tx, nil
}

// InsertPendingTransaction records a new pending transaction. The unique
// index on trade_offer_id enforces at most one transaction per offer;
// a violation surfaces as a ConflictError.
func (s *Store) InsertPendingTransaction(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions
		(id, trade_offer_id, user_id, kind, status, item_name, item_asset_id,
		 price, commission, final_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	createdAt := tx.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.ledgerDB.ExecContext(ctx, query,
		tx.ID,
		tx.TradeOfferID,
		tx.UserID,
		string(tx.Kind),
		string(domain.StatusPending),
		tx.ItemName,
		tx.ItemAssetID,
		tx.Price,
		tx.Commission,
		tx.FinalAmount,
		formatTime(createdAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewConflictError("transaction", tx.TradeOfferID)
		}
		return fmt.Errorf("failed to insert pending transaction: %w", err)
	}

	s.log.Info().
		Str("transaction_id", tx.ID).
		Str("trade_offer_id", tx.TradeOfferID).
		Str("kind", string(tx.Kind)).
		Float64("final_amount", tx.FinalAmount).
		Msg("Pending transaction recorded")

	return nil
}

// CompleteBuyTransaction completes a buy: status flip guarded on pending,
// balance credit, inventory insert. All or nothing; a guard mismatch
// (already completed or failed) returns a ConflictError and changes nothing.
func (s *Store) CompleteBuyTransaction(ctx context.Context, transactionID string, finalAmount float64, asset domain.AssetInfo) error {
	now := time.Now().UTC()

	err := database.WithTransaction(s.ledgerDB, func(tx *sql.Tx) error {
		var userID int64
		err := tx.QueryRowContext(ctx,
			"SELECT user_id FROM transactions WHERE id = ?", transactionID,
		).Scan(&userID)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NewNotFoundError("transaction", transactionID)
		}
		if err != nil {
			return fmt.Errorf("failed to load transaction owner: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE transactions SET status = ?, completed_at = ? WHERE id = ? AND status = ?`,
			string(domain.StatusCompleted), formatTime(now), transactionID, string(domain.StatusPending),
		)
		if err != nil {
			return fmt.Errorf("failed to flip transaction status: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if affected == 0 {
			// Not pending anymore: duplicate delivery
			return domain.NewConflictError("transaction", transactionID)
		}

		res, err = tx.ExecContext(ctx,
			`UPDATE users SET balance = balance + ?, updated_at = ? WHERE id = ?`,
			finalAmount, formatTime(now), userID,
		)
		if err != nil {
			return fmt.Errorf("failed to credit user balance: %w", err)
		}
		affected, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if affected == 0 {
			return domain.NewNotFoundError("user", fmt.Sprintf("%d", userID))
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO bot_inventory
			 (asset_id, item_name, app_id, context_id, price, source_transaction_id, acquired_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			asset.AssetID, asset.ItemName, asset.AppID, asset.ContextID,
			asset.Price, transactionID, formatTime(now),
		)
		if err != nil {
			return fmt.Errorf("failed to insert inventory item: %w", err)
		}

		return nil
	})
	if err != nil {
		// WithTransaction wraps the inner error; keep the typed errors visible
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			return conflict
		}
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			return notFound
		}
		return err
	}

	s.log.Info().
		Str("transaction_id", transactionID).
		Str("asset_id", asset.AssetID).
		Float64("final_amount", finalAmount).
		Msg("Buy transaction completed")

	return nil
}

// CompleteSellTransaction completes a sell: status flip guarded on pending,
// inventory delete, catalog listing closed. All or nothing.
func (s *Store) CompleteSellTransaction(ctx context.Context, transactionID string) error {
	now := time.Now().UTC()

	err := database.WithTransaction(s.ledgerDB, func(tx *sql.Tx) error {
		var assetID string
		err := tx.QueryRowContext(ctx,
			"SELECT item_asset_id FROM transactions WHERE id = ?", transactionID,
		).Scan(&assetID)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NewNotFoundError("transaction", transactionID)
		}
		if err != nil {
			return fmt.Errorf("failed to load transaction asset: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE transactions SET status = ?, completed_at = ? WHERE id = ? AND status = ?`,
			string(domain.StatusCompleted), formatTime(now), transactionID, string(domain.StatusPending),
		)
		if err != nil {
			return fmt.Errorf("failed to flip transaction status: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if affected == 0 {
			return domain.NewConflictError("transaction", transactionID)
		}

		if _, err := tx.ExecContext(ctx,
			"DELETE FROM bot_inventory WHERE asset_id = ?", assetID,
		); err != nil {
			return fmt.Errorf("failed to delete inventory item: %w", err)
		}

		// The listing is sold; close it so it never shows in the shop again
		if _, err := tx.ExecContext(ctx,
			`UPDATE catalog_items SET is_listed = 0, is_available = 0, updated_at = ? WHERE asset_id = ?`,
			formatTime(now), assetID,
		); err != nil {
			return fmt.Errorf("failed to close catalog listing: %w", err)
		}

		return nil
	})
	if err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			return conflict
		}
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			return notFound
		}
		return err
	}

	s.log.Info().
		Str("transaction_id", transactionID).
		Msg("Sell transaction completed")

	return nil
}

// MarkTransactionFailed flips a pending transaction to failed. Used when
// an outbound send fails or an incoming offer reaches a dead terminal
// state. Guarded on pending like the completions.
func (s *Store) MarkTransactionFailed(ctx context.Context, transactionID string) error {
	res, err := s.ledgerDB.ExecContext(ctx,
		`UPDATE transactions SET status = ?, completed_at = ? WHERE id = ? AND status = ?`,
		string(domain.StatusFailed), formatTime(time.Now().UTC()), transactionID, string(domain.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("failed to mark transaction failed: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return domain.NewConflictError("transaction", transactionID)
	}

	s.log.Warn().
		Str("transaction_id", transactionID).
		Msg("Transaction marked failed")

	return nil
}

// AssignTradeOfferID replaces the placeholder offer id of a pre-registered
// pending transaction with the id the transport assigned on send.
func (s *Store) AssignTradeOfferID(ctx context.Context, transactionID, tradeOfferID string) error {
	res, err := s.ledgerDB.ExecContext(ctx,
		`UPDATE transactions SET trade_offer_id = ? WHERE id = ? AND status = ?`,
		tradeOfferID, transactionID, string(domain.StatusPending),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewConflictError("transaction", tradeOfferID)
		}
		return fmt.Errorf("failed to assign trade offer id: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return domain.NewConflictError("transaction", transactionID)
	}

	return nil
}

// FindUserByExternalID returns the user owning the given platform account id.
func (s *Store) FindUserByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	query := `SELECT id, external_id, username, balance, is_active, trade_url, created_at
	          FROM users WHERE external_id = ?`

	var (
		user      domain.User
		isActive  int
		createdAt string
	)
	err := s.ledgerDB.QueryRowContext(ctx, query, externalID).Scan(
		&user.ID, &user.ExternalID, &user.Username, &user.Balance,
		&isActive, &user.TradeURL, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("user", externalID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by external id: %w", err)
	}

	user.IsActive = isActive != 0
	user.CreatedAt = parseTime(createdAt)

	return &user, nil
}

// ListPendingOlderThan returns pending transactions created before the
// cutoff. Used by the stale-pending sweep; a long-lived pending row is
// money or an item in an ambiguous state.
func (s *Store) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]domain.Transaction, error) {
	query := "SELECT " + transactionColumns + ` FROM transactions
	          WHERE status = ? AND created_at < ? ORDER BY created_at ASC`

	rows, err := s.ledgerDB.QueryContext(ctx, query,
		string(domain.StatusPending), formatTime(cutoff.UTC()))
	if err != nil {
		return nil, fmt.Errorf("failed to list stale pending transactions: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// ListRecent returns the most recently created transactions.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	query := "SELECT " + transactionColumns + " FROM transactions ORDER BY created_at DESC LIMIT ?"

	rows, err := s.ledgerDB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent transactions: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// CountByStatus returns transaction counts keyed by status.
func (s *Store) CountByStatus(ctx context.Context) (map[domain.TransactionStatus]int, error) {
	rows, err := s.ledgerDB.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM transactions GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count transactions by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.TransactionStatus]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[domain.TransactionStatus(status)] = count
	}

	return counts, rows.Err()
}

// ListInventory returns all items currently held by the bot.
func (s *Store) ListInventory(ctx context.Context) ([]domain.BotInventoryItem, error) {
	query := `SELECT id, asset_id, item_name, app_id, context_id, price,
	                 source_transaction_id, acquired_at
	          FROM bot_inventory ORDER BY acquired_at DESC`

	rows, err := s.ledgerDB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	defer rows.Close()

	var items []domain.BotInventoryItem
	for rows.Next() {
		var (
			item       domain.BotInventoryItem
			acquiredAt string
		)
		if err := rows.Scan(&item.ID, &item.AssetID, &item.ItemName, &item.AppID,
			&item.ContextID, &item.Price, &item.SourceTransactionID, &acquiredAt); err != nil {
			return nil, fmt.Errorf("failed to scan inventory item: %w", err)
		}
		item.AcquiredAt = parseTime(acquiredAt)
		items = append(items, item)
	}

	return items, rows.Err()
}

// rowScanner abstracts *sql.Row and *sql.Rows for the scan helpers
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		tx          domain.Transaction
		kind        string
		status      string
		createdAt   string
		completedAt sql.NullString
	)

	err := row.Scan(
		&tx.ID, &tx.TradeOfferID, &tx.UserID, &kind, &status,
		&tx.ItemName, &tx.ItemAssetID, &tx.Price, &tx.Commission,
		&tx.FinalAmount, &createdAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.Kind = domain.TransactionKind(kind)
	tx.Status = domain.TransactionStatus(status)
	tx.CreatedAt = parseTime(createdAt)
	if completedAt.Valid {
		t := parseTime(completedAt.String)
		tx.CompletedAt = &t
	}

	return &tx, nil
}

func collectTransactions(rows *sql.Rows) ([]domain.Transaction, error) {
	var result []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		result = append(result, *tx)
	}
	return result, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

// parseTime handles the timestamp formats that can appear in the database:
// values written by this code and SQLite's CURRENT_TIMESTAMP default.
func parseTime(value string) time.Time {
	for _, layout := range []string{
		"2006-01-02 15:04:05",
		time.RFC3339,
		"2006-01-02T15:04:05Z07:00",
	} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// isUniqueViolation reports whether err is a SQLite unique constraint error
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed: UNIQUE")
}
