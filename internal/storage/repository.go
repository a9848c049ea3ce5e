package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/guttosm/pricefinder/internal/domain/models"
	"github.com/guttosm/pricefinder/internal/logger"
	pq "github.com/lib/pq"
)

// CandidateStore returns every price stored for a product/brand pair.
//
// Implementations must return an empty, non-nil slice when nothing matches.
// Results may come in any order and may include records outside the
// requested date; callers filter and rank them.
type CandidateStore interface {
	FindCandidates(ctx context.Context, productID, brandID int64) ([]models.Price, error)
	Ping(ctx context.Context) error
}

// PricesRepository is the PostgreSQL-backed store: candidate lookup for the
// resolver plus the bulk-load operations used by tariff ingestion.
type PricesRepository interface {
	CandidateStore
	InsertPricesBatch(ctx context.Context, sourceFile string, prices []models.Price) error
	HasIngestionForFile(ctx context.Context, filename string) (bool, error)
	UpsertIngestionLog(ctx context.Context, filename string, rowCount int) error
	DeletePricesBySource(ctx context.Context, filename string) error
}

type pricesRepository struct {
	db *sql.DB
}

func NewPricesRepository(db *sql.DB) PricesRepository {
	return &pricesRepository{db: db}
}

const findCandidatesQuery = `
	SELECT id, product_id, brand_id, price_list, start_date, end_date, priority, price, curr
	FROM prices
	WHERE product_id = $1 AND brand_id = $2
	ORDER BY priority DESC, id ASC`

// FindCandidates loads all prices for the product/brand pair, highest priority first.
func (r *pricesRepository) FindCandidates(ctx context.Context, productID, brandID int64) ([]models.Price, error) {
	log := logger.Component("storage")
	start := time.Now()

	rows, err := r.db.QueryContext(ctx, findCandidatesQuery, productID, brandID)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]models.Price, 0)
	for rows.Next() {
		var p models.Price
		if err := rows.Scan(
			&p.ID,
			&p.ProductID,
			&p.BrandID,
			&p.PriceList,
			&p.StartDate,
			&p.EndDate,
			&p.Priority,
			&p.Amount,
			&p.Currency,
		); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		p.StartDate = p.StartDate.UTC()
		p.EndDate = p.EndDate.UTC()
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}

	log.Debug().
		Int64("product_id", productID).
		Int64("brand_id", brandID).
		Int("rows", len(out)).
		Dur("elapsed", time.Since(start)).
		Msg("candidates loaded")

	return out, nil
}

func (r *pricesRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const registerBrandsQuery = `
	INSERT INTO brands (id, name)
	SELECT b, 'BRAND ' || b FROM unnest($1::bigint[]) AS b
	ON CONFLICT (id) DO NOTHING`

// InsertPricesBatch inserts multiple prices into DB in a single transaction.
// Brand IDs not yet present in brands are registered first with a
// placeholder name.
func (r *pricesRepository) InsertPricesBatch(ctx context.Context, sourceFile string, prices []models.Price) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	// Small optimization for bulk load
	if _, err := tx.ExecContext(ctx, `SET LOCAL synchronous_commit = OFF`); err != nil {
		_ = tx.Rollback()
		return err
	}

	if _, err := tx.ExecContext(ctx, registerBrandsQuery, pq.Array(brandIDs(prices))); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("register brands: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(
		"prices",
		"brand_id",
		"start_date",
		"end_date",
		"price_list",
		"product_id",
		"priority",
		"price",
		"curr",
		"source_file",
	))
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	for _, p := range prices {
		if _, err := stmt.ExecContext(ctx,
			p.BrandID,
			p.StartDate.UTC(),
			p.EndDate.UTC(),
			p.PriceList,
			p.ProductID,
			p.Priority,
			p.Amount.String(),
			p.Currency,
			sourceFile,
		); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return err
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		_ = tx.Rollback()
		return err
	}
	if err := stmt.Close(); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// brandIDs returns the distinct brand IDs of prices in first-seen order.
func brandIDs(prices []models.Price) []int64 {
	seen := make(map[int64]struct{}, 1)
	ids := make([]int64, 0, 1)
	for _, p := range prices {
		if _, ok := seen[p.BrandID]; ok {
			continue
		}
		seen[p.BrandID] = struct{}{}
		ids = append(ids, p.BrandID)
	}
	return ids
}

// HasIngestionForFile checks if a tariff file was already loaded.
func (r *pricesRepository) HasIngestionForFile(ctx context.Context, filename string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM ingestion_log WHERE filename = $1)`, filename).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// UpsertIngestionLog records (or updates) an ingestion entry for a file.
func (r *pricesRepository) UpsertIngestionLog(ctx context.Context, filename string, rowCount int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ingestion_log (filename, row_count)
		VALUES ($1, $2)
		ON CONFLICT (filename)
		DO UPDATE SET row_count = EXCLUDED.row_count,
					  ingested_at = NOW()
	`, filename, rowCount)
	return err
}

// DeletePricesBySource removes the prices previously loaded from filename.
func (r *pricesRepository) DeletePricesBySource(ctx context.Context, filename string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM prices WHERE source_file = $1`, filename)
	return err
}
