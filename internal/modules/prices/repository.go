// Package prices stores and syncs OHLCV history for tracked assets.
package prices

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"quantfolio/internal/database"
	"quantfolio/internal/domain"
)

// Repository persists assets and their price bars in sqlite.
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates a new price repository.
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "prices_repository").Logger(),
	}
}

// GetAsset returns the asset for symbol, or domain.ErrAssetNotFound.
func (r *Repository) GetAsset(symbol string) (*domain.Asset, error) {
	row := r.db.QueryRow(
		`SELECT id, symbol, name, asset_type, currency, last_updated FROM assets WHERE symbol = ?`,
		symbol,
	)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset %s: %w", symbol, err)
	}
	return asset, nil
}

// ListAssets returns all known assets ordered by symbol.
func (r *Repository) ListAssets() ([]domain.Asset, error) {
	rows, err := r.db.Query(
		`SELECT id, symbol, name, asset_type, currency, last_updated FROM assets ORDER BY symbol`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()

	var assets []domain.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, *asset)
	}
	return assets, rows.Err()
}

// UpsertAsset inserts the asset or updates its metadata, keyed by symbol.
// A zero ID gets a fresh UUID. Returns the stored asset.
func (r *Repository) UpsertAsset(asset domain.Asset) (*domain.Asset, error) {
	if asset.ID == "" {
		asset.ID = uuid.NewString()
	}
	_, err := r.db.Exec(
		`INSERT INTO assets (id, symbol, name, asset_type, currency, last_updated)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(symbol) DO UPDATE SET
		   name = excluded.name,
		   asset_type = excluded.asset_type,
		   currency = excluded.currency`,
		asset.ID, asset.Symbol, asset.Name, string(asset.AssetType), asset.Currency,
		asset.LastUpdated.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert asset %s: %w", asset.Symbol, err)
	}
	// Re-read: on conflict the stored ID wins, not the one we generated.
	return r.GetAsset(asset.Symbol)
}

// SavePoints stores bars for the asset, replacing any existing bar at the
// same timestamp, and stamps the asset's last_updated.
func (r *Repository) SavePoints(symbol string, interval domain.Interval, points []domain.PricePoint) (int, error) {
	asset, err := r.GetAsset(symbol)
	if err != nil {
		return 0, err
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR REPLACE INTO prices (asset_id, interval, ts, open, high, low, close, volume)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.Exec(
			asset.ID, string(interval), p.Timestamp.Unix(),
			p.Open, p.High, p.Low, p.Close, p.Volume,
		); err != nil {
			return 0, fmt.Errorf("failed to insert bar for %s: %w", symbol, err)
		}
	}

	if _, err := tx.Exec(
		`UPDATE assets SET last_updated = ? WHERE id = ?`,
		time.Now().Unix(), asset.ID,
	); err != nil {
		return 0, fmt.Errorf("failed to stamp asset %s: %w", symbol, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit bars for %s: %w", symbol, err)
	}

	r.log.Debug().Str("symbol", symbol).Str("interval", string(interval)).
		Int("bars", len(points)).Msg("Stored price bars")
	return len(points), nil
}

// GetSeries implements domain.PriceSource.
func (r *Repository) GetSeries(symbol string, interval domain.Interval, from, to *time.Time) (domain.PriceSeries, error) {
	series := domain.PriceSeries{Symbol: symbol, Interval: interval}

	asset, err := r.GetAsset(symbol)
	if err != nil {
		return series, err
	}

	query := `SELECT ts, open, high, low, close, volume FROM prices
	          WHERE asset_id = ? AND interval = ?`
	args := []interface{}{asset.ID, string(interval)}
	if from != nil {
		query += ` AND ts >= ?`
		args = append(args, from.Unix())
	}
	if to != nil {
		query += ` AND ts <= ?`
		args = append(args, to.Unix())
	}
	query += ` ORDER BY ts ASC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return series, fmt.Errorf("failed to query bars for %s: %w", symbol, err)
	}
	defer rows.Close()

	for rows.Next() {
		var ts int64
		var p domain.PricePoint
		if err := rows.Scan(&ts, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume); err != nil {
			return series, fmt.Errorf("failed to scan bar for %s: %w", symbol, err)
		}
		p.Timestamp = time.Unix(ts, 0).UTC()
		series.Points = append(series.Points, p)
	}
	return series, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAsset(row rowScanner) (*domain.Asset, error) {
	var asset domain.Asset
	var assetType string
	var lastUpdated int64
	if err := row.Scan(&asset.ID, &asset.Symbol, &asset.Name, &assetType, &asset.Currency, &lastUpdated); err != nil {
		return nil, err
	}
	asset.AssetType = domain.AssetType(assetType)
	asset.LastUpdated = time.Unix(lastUpdated, 0).UTC()
	return &asset, nil
}
