package dto

import (
	"encoding/json"

	"github.com/guttosm/pricefinder/internal/domain/models"
)

// PriceResponse represents the JSON structure returned by the
// GET /api/v1/prices endpoint.
//
// Price is a json.Number rendered straight from the decimal amount so the
// value never passes through float64.
type PriceResponse struct {
	ProductID int64       `json:"productId" example:"35455"`
	BrandID   int64       `json:"brandId" example:"1"`
	PriceList int64       `json:"priceList" example:"1"`
	StartDate string      `json:"startDate" example:"2020-06-14T00:00:00"`
	EndDate   string      `json:"endDate" example:"2020-12-31T23:59:59"`
	Price     json.Number `json:"price" swaggertype:"number" example:"35.50"`
	Currency  string      `json:"currency" example:"EUR"`
}

// minAmountScale is the minimum number of fraction digits rendered for amounts.
const minAmountScale = 2

// NewPriceResponse maps a domain price into its API representation.
func NewPriceResponse(p models.Price) PriceResponse {
	scale := int32(minAmountScale)
	if exp := -p.Amount.Exponent(); exp > scale {
		scale = exp
	}
	return PriceResponse{
		ProductID: p.ProductID,
		BrandID:   p.BrandID,
		PriceList: p.PriceList,
		StartDate: p.StartDate.Format(models.DateTimeLayout),
		EndDate:   p.EndDate.Format(models.DateTimeLayout),
		Price:     json.Number(p.Amount.StringFixed(scale)),
		Currency:  p.Currency,
	}
}
