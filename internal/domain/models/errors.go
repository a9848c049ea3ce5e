package models

import (
	"errors"
	"fmt"
	"time"
)

// Sentinels for errors.Is checks against the typed errors below.
var (
	ErrInvalidQuery  = errors.New("invalid price query")
	ErrPriceNotFound = errors.New("price not found")
)

// InvalidQueryError is returned when a PriceQuery fails validation.
// It is raised before any data access and is never retried.
type InvalidQueryError struct {
	Reason string
}

func NewInvalidQueryError(reason string) *InvalidQueryError {
	return &InvalidQueryError{Reason: reason}
}

func (e *InvalidQueryError) Error() string {
	return e.Reason
}

// Is allows errors.Is(err, ErrInvalidQuery).
func (e *InvalidQueryError) Is(target error) bool {
	return target == ErrInvalidQuery
}

// PriceNotFoundError is returned when no stored price is applicable for the
// queried product, brand and date.
type PriceNotFoundError struct {
	ProductID       int64
	BrandID         int64
	ApplicationDate time.Time
}

func NewPriceNotFoundError(productID, brandID int64, applicationDate time.Time) *PriceNotFoundError {
	return &PriceNotFoundError{
		ProductID:       productID,
		BrandID:         brandID,
		ApplicationDate: applicationDate,
	}
}

func (e *PriceNotFoundError) Error() string {
	return fmt.Sprintf("no applicable price for product %d, brand %d at %s",
		e.ProductID, e.BrandID, e.ApplicationDate.Format(DateTimeLayout))
}

// Is allows errors.Is(err, ErrPriceNotFound).
func (e *PriceNotFoundError) Is(target error) bool {
	return target == ErrPriceNotFound
}

// DateTimeLayout is the wire format for application and validity dates
// (local date-time, no zone; interpreted as UTC).
const DateTimeLayout = "2006-01-02T15:04:05"
