// Package catalog manages the bot's for-sale listings. A listing backs every
// outbound sell offer: it is reserved when the offer is sent, closed when the
// sale completes and reopened when the offer dies without completing.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/skinflow/tradebot/internal/domain"
	"github.com/skinflow/tradebot/internal/modules/ledger"
)

var _ ledger.CatalogReopener = (*Repository)(nil)

const catalogColumns = "id, asset_id, market_hash_name, game, exterior, price, is_listed, is_available, created_at"

// Repository provides access to catalog listings in the ledger database.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new catalog repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "catalog").Logger(),
	}
}

// Create inserts a new listing as listed and available.
func (r *Repository) Create(ctx context.Context, item *domain.CatalogItem) error {
	if item.AssetID == "" {
		return domain.NewValidationError("asset_id", "must not be empty")
	}
	if item.MarketHashName == "" {
		return domain.NewValidationError("market_hash_name", "must not be empty")
	}
	if item.Price < 0 {
		return domain.NewValidationError("price", "must not be negative")
	}
	if item.Game == "" {
		item.Game = "cs2"
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO catalog_items (asset_id, market_hash_name, game, exterior, price, is_listed, is_available)
		VALUES (?, ?, ?, ?, ?, 1, 1)`,
		item.AssetID, item.MarketHashName, item.Game, item.Exterior, item.Price)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.NewConflictError("catalog_item", item.AssetID)
		}
		return fmt.Errorf("failed to create listing %s: %w", item.AssetID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read new listing id: %w", err)
	}
	item.ID = id
	item.IsListed = true
	item.IsAvailable = true

	r.log.Info().Str("asset_id", item.AssetID).Str("item", item.MarketHashName).Msg("listing created")
	return nil
}

// GetByAssetID returns the listing for an inventory asset.
func (r *Repository) GetByAssetID(ctx context.Context, assetID string) (*domain.CatalogItem, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+catalogColumns+" FROM catalog_items WHERE asset_id = ?", assetID)
	return scanCatalogItem(row, assetID)
}

// ListAvailable returns listings that are visible and not reserved by an
// in-flight sell offer.
func (r *Repository) ListAvailable(ctx context.Context, limit, offset int) ([]*domain.CatalogItem, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+catalogColumns+" FROM catalog_items WHERE is_listed = 1 AND is_available = 1 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}
	defer rows.Close()
	return collectCatalogItems(rows)
}

// Search returns available listings whose name contains the query.
func (r *Repository) Search(ctx context.Context, query string, limit int) ([]*domain.CatalogItem, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+catalogColumns+" FROM catalog_items WHERE is_listed = 1 AND is_available = 1 AND market_hash_name LIKE ? ORDER BY price ASC LIMIT ?",
		"%"+query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search catalog: %w", err)
	}
	defer rows.Close()
	return collectCatalogItems(rows)
}

// ReserveListing takes an available listing out of circulation for an
// outbound sell offer. The guard on is_available makes concurrent sends of
// the same asset lose cleanly with a conflict.
func (r *Repository) ReserveListing(ctx context.Context, assetID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE catalog_items
		SET is_available = 0, updated_at = CURRENT_TIMESTAMP
		WHERE asset_id = ? AND is_listed = 1 AND is_available = 1`,
		assetID)
	if err != nil {
		return fmt.Errorf("failed to reserve listing %s: %w", assetID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check reservation of %s: %w", assetID, err)
	}
	if affected == 0 {
		if _, getErr := r.GetByAssetID(ctx, assetID); domain.IsNotFound(getErr) {
			return getErr
		}
		return domain.NewConflictError("catalog_item", assetID)
	}
	return nil
}

// ReopenListing puts a reserved listing back on sale after its sell offer
// died without completing.
func (r *Repository) ReopenListing(ctx context.Context, assetID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE catalog_items
		SET is_listed = 1, is_available = 1, updated_at = CURRENT_TIMESTAMP
		WHERE asset_id = ?`,
		assetID)
	if err != nil {
		return fmt.Errorf("failed to reopen listing %s: %w", assetID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check reopening of %s: %w", assetID, err)
	}
	if affected == 0 {
		return domain.NewNotFoundError("catalog_item", assetID)
	}
	r.log.Info().Str("asset_id", assetID).Msg("listing reopened")
	return nil
}

// SetPrice updates the asking price of a listing.
func (r *Repository) SetPrice(ctx context.Context, assetID string, price float64) error {
	if price < 0 {
		return domain.NewValidationError("price", "must not be negative")
	}
	result, err := r.db.ExecContext(ctx,
		"UPDATE catalog_items SET price = ?, updated_at = CURRENT_TIMESTAMP WHERE asset_id = ?",
		price, assetID)
	if err != nil {
		return fmt.Errorf("failed to set price of %s: %w", assetID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check price update of %s: %w", assetID, err)
	}
	if affected == 0 {
		return domain.NewNotFoundError("catalog_item", assetID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCatalogItem(row rowScanner, key string) (*domain.CatalogItem, error) {
	var item domain.CatalogItem
	var createdAt string
	err := row.Scan(&item.ID, &item.AssetID, &item.MarketHashName, &item.Game,
		&item.Exterior, &item.Price, &item.IsListed, &item.IsAvailable, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("catalog_item", key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan catalog item: %w", err)
	}
	item.CreatedAt = parseTime(createdAt)
	return &item, nil
}

func collectCatalogItems(rows *sql.Rows) ([]*domain.CatalogItem, error) {
	var items []*domain.CatalogItem
	for rows.Next() {
		item, err := scanCatalogItem(rows, "")
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func parseTime(value string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339, "2006-01-02T15:04:05Z"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
