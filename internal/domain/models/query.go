package models

import (
	"fmt"
	"time"
)

// PriceQuery carries the caller intent for a price lookup.
//
// Pointer fields distinguish "not provided" from a zero value, so that
// validation can report a missing parameter separately from an invalid one.
type PriceQuery struct {
	ApplicationDate *time.Time
	ProductID       *int64
	BrandID         *int64
}

// NewPriceQuery builds a fully populated query.
func NewPriceQuery(applicationDate time.Time, productID, brandID int64) *PriceQuery {
	return &PriceQuery{
		ApplicationDate: &applicationDate,
		ProductID:       &productID,
		BrandID:         &brandID,
	}
}

// Validate checks the query fields in a fixed order and returns an
// *InvalidQueryError for the first failing rule:
//
//  1. application date present
//  2. product id present
//  3. product id positive
//  4. brand id present
//  5. brand id positive
//
// It never touches storage.
func (q *PriceQuery) Validate() error {
	if q.ApplicationDate == nil {
		return NewInvalidQueryError("application date is required")
	}
	if q.ProductID == nil {
		return NewInvalidQueryError("product id is required")
	}
	if *q.ProductID <= 0 {
		return NewInvalidQueryError(fmt.Sprintf("product id must be positive, got %d", *q.ProductID))
	}
	if q.BrandID == nil {
		return NewInvalidQueryError("brand id is required")
	}
	if *q.BrandID <= 0 {
		return NewInvalidQueryError(fmt.Sprintf("brand id must be positive, got %d", *q.BrandID))
	}
	return nil
}
