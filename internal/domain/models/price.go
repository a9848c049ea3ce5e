package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Price represents one priced offer for a product sold under a brand.
//
// Fields:
//   - ID: Unique identifier of the record.
//   - ProductID: Priced product.
//   - BrandID: Selling brand/chain (e.g., 1 = ZARA).
//   - PriceList: Tariff the record belongs to; passed through to callers.
//   - StartDate, EndDate: Inclusive validity window.
//   - Priority: Rank used to disambiguate overlapping windows (higher wins).
//   - Amount: Final sale price, kept as an exact decimal.
//   - Currency: ISO 4217 code (e.g., "EUR").
//
// A Price is treated as an immutable value once loaded from the store.
type Price struct {
	ID        int64
	ProductID int64
	BrandID   int64
	PriceList int64
	StartDate time.Time
	EndDate   time.Time
	Priority  int
	Amount    decimal.Decimal
	Currency  string
}

// IsApplicableAt reports whether t falls inside the closed window
// [StartDate, EndDate]. Boundary instants are applicable.
func (p Price) IsApplicableAt(t time.Time) bool {
	return !t.Before(p.StartDate) && !t.After(p.EndDate)
}

// HasHigherPriorityThan reports whether p strictly outranks other.
func (p Price) HasHigherPriorityThan(other Price) bool {
	return p.Priority > other.Priority
}
