package ingestion

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guttosm/pricefinder/internal/domain/models"
	"github.com/guttosm/pricefinder/internal/storage"
)

// tariffDateLayout is the timestamp format used by tariff exports, e.g. "2020-06-14-15.00.00".
const tariffDateLayout = "2006-01-02-15.04.05"

// expectedHeaders enforces strict column ordering for tariff files.
// If the header doesn't match EXACTLY (order + count), ingestion must fail.
var expectedHeaders = []string{
	"BRAND_ID",
	"START_DATE",
	"END_DATE",
	"PRICE_LIST",
	"PRODUCT_ID",
	"PRIORITY",
	"PRICE",
	"CURR",
}

// ParseFile reads a whole tariff file into memory. It is used to seed the
// in-memory store, where files are small enough to hold at once.
func ParseFile(path string) ([]models.Price, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	var out []models.Price
	if _, err := readTariffs(context.Background(), f, func(p models.Price) error {
		out = append(out, p)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// parseAndPersistFile opens, validates, parses, and persists one file in batches.
// It fails on:
//   - header not matching expected order/length
//   - any row that does not convert to a valid price
//   - unrecoverable I/O errors
//
// Parameters:
//   - ctx:    context for cancellation/timeouts.
//   - path:   file path.
//   - source: name recorded in prices.source_file.
//   - repo:   repository for DB insertion.
//   - batch:  batch size for inserts (e.g., 5000).
func parseAndPersistFile(ctx context.Context, path, source string, repo storage.PricesRepository, batch int) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	buf := make([]models.Price, 0, batch)
	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		if err := repo.InsertPricesBatch(ctx, source, buf); err != nil {
			return err
		}
		buf = buf[:0]
		return nil
	}

	total, err := readTariffs(ctx, f, func(p models.Price) error {
		buf = append(buf, p)
		if len(buf) >= batch {
			if err := flush(); err != nil {
				return fmt.Errorf("flush batch: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := flush(); err != nil {
		return 0, fmt.Errorf("final flush: %w", err)
	}
	return total, nil
}

// readTariffs validates the header and streams every row through emit.
// It returns the number of rows emitted.
func readTariffs(ctx context.Context, src io.Reader, emit func(models.Price) error) (int, error) {
	r := csv.NewReader(src)
	r.Comma = ';'
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1 // checked explicitly below for a better message

	header, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	if len(header) != len(expectedHeaders) {
		return 0, fmt.Errorf("invalid header length: expected %d, got %d", len(expectedHeaders), len(header))
	}
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		if !strings.EqualFold(strings.TrimSpace(h), expectedHeaders[i]) {
			return 0, fmt.Errorf("invalid header at col %d: expected %q, got %q", i+1, expectedHeaders[i], h)
		}
	}

	lineNumber := 1
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read line after %d: %w", lineNumber, err)
		}
		lineNumber++

		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if len(rec) != len(expectedHeaders) {
			return 0, fmt.Errorf("invalid column count on line %d: expected %d got %d", lineNumber, len(expectedHeaders), len(rec))
		}

		p, err := recordToPrice(rec)
		if err != nil {
			return 0, fmt.Errorf("line %d: %w", lineNumber, err)
		}
		if err := emit(p); err != nil {
			return 0, fmt.Errorf("line %d: %w", lineNumber, err)
		}
		total++
	}
	return total, nil
}

// recordToPrice converts a single CSV record (already validated length==8)
// into a models.Price. Every cell is required.
//
// Column order:
//
//	0 BRAND_ID    → BrandID (positive int64)
//	1 START_DATE  → StartDate ("2006-01-02-15.04.05", UTC)
//	2 END_DATE    → EndDate (same layout, not before StartDate)
//	3 PRICE_LIST  → PriceList (int64)
//	4 PRODUCT_ID  → ProductID (positive int64)
//	5 PRIORITY    → Priority (int, >= 0)
//	6 PRICE       → Amount (decimal, comma or dot separator, >= 0)
//	7 CURR        → Currency (ISO-4217 code, upper-cased)
func recordToPrice(rec []string) (models.Price, error) {
	var p models.Price
	var err error

	if p.BrandID, err = parsePositiveID(rec[0], "BRAND_ID"); err != nil {
		return p, err
	}
	if p.StartDate, err = parseTariffDate(rec[1], "START_DATE"); err != nil {
		return p, err
	}
	if p.EndDate, err = parseTariffDate(rec[2], "END_DATE"); err != nil {
		return p, err
	}
	if p.EndDate.Before(p.StartDate) {
		return p, fmt.Errorf("END_DATE %s is before START_DATE %s", strings.TrimSpace(rec[2]), strings.TrimSpace(rec[1]))
	}

	if p.PriceList, err = strconv.ParseInt(strings.TrimSpace(rec[3]), 10, 64); err != nil {
		return p, fmt.Errorf("invalid PRICE_LIST: %v", err)
	}
	if p.ProductID, err = parsePositiveID(rec[4], "PRODUCT_ID"); err != nil {
		return p, err
	}

	if p.Priority, err = strconv.Atoi(strings.TrimSpace(rec[5])); err != nil {
		return p, fmt.Errorf("invalid PRIORITY: %v", err)
	}
	if p.Priority < 0 {
		return p, fmt.Errorf("invalid PRIORITY: must not be negative, got %d", p.Priority)
	}

	amount := strings.ReplaceAll(strings.TrimSpace(rec[6]), ",", ".")
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return p, fmt.Errorf("invalid PRICE: %v", err)
	}
	if p.Amount.IsNegative() {
		return p, fmt.Errorf("invalid PRICE: must not be negative, got %s", p.Amount)
	}

	p.Currency = strings.ToUpper(strings.TrimSpace(rec[7]))
	if len(p.Currency) != 3 {
		return p, fmt.Errorf("invalid CURR: expected a 3-letter code, got %q", rec[7])
	}

	return p, nil
}

func parsePositiveID(s, column string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", column, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive, got %d", column, v)
	}
	return v, nil
}

func parseTariffDate(s, column string) (time.Time, error) {
	t, err := time.ParseInLocation(tariffDateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %v", column, err)
	}
	return t, nil
}
