package service

import (
	"context"
	"fmt"
	"time"

	"github.com/guttosm/pricefinder/internal/domain/models"
	"github.com/guttosm/pricefinder/internal/logger"
	"github.com/guttosm/pricefinder/internal/metrics"
	"github.com/guttosm/pricefinder/internal/storage"
)

// PriceService resolves the single applicable price for a query.
type PriceService interface {
	GetApplicablePrice(ctx context.Context, query *models.PriceQuery) (*models.Price, error)
}

type priceService struct {
	store storage.CandidateStore
}

func NewPriceService(store storage.CandidateStore) PriceService {
	return &priceService{store: store}
}

// GetApplicablePrice validates the query, loads every candidate for the
// product/brand pair, keeps those whose window contains the application date
// and returns the highest-priority survivor.
//
// Errors:
//   - *models.InvalidQueryError when validation fails (no store access).
//   - *models.PriceNotFoundError when no candidate is applicable.
//   - a wrapped store error for infrastructure failures.
//
// A nil query is a programming error and panics.
func (s *priceService) GetApplicablePrice(ctx context.Context, query *models.PriceQuery) (*models.Price, error) {
	if query == nil {
		panic("service: nil price query")
	}
	log := logger.Component("resolver")

	if err := query.Validate(); err != nil {
		log.Warn().Err(err).Msg("invalid price query")
		metrics.ObserveResolution(metrics.OutcomeInvalidQuery)
		return nil, err
	}

	productID, brandID, at := *query.ProductID, *query.BrandID, *query.ApplicationDate

	found, err := s.store.FindCandidates(ctx, productID, brandID)
	if err != nil {
		metrics.ObserveResolution(metrics.OutcomeStoreError)
		return nil, fmt.Errorf("find candidates: %w", err)
	}
	metrics.ObserveCandidates(len(found))

	log.Debug().
		Int64("product_id", productID).
		Int64("brand_id", brandID).
		Int("candidates", len(found)).
		Msg("candidates retrieved")

	best, ok := SelectHighestPriority(FilterApplicable(found, at))
	if !ok {
		nf := models.NewPriceNotFoundError(productID, brandID, at)
		log.Warn().Err(nf).Msg("no applicable price")
		metrics.ObserveResolution(metrics.OutcomeNotFound)
		return nil, nf
	}

	metrics.ObserveResolution(metrics.OutcomeFound)
	return &best, nil
}

// FilterApplicable returns the prices whose closed validity window contains at.
// The input slice is not modified.
func FilterApplicable(prices []models.Price, at time.Time) []models.Price {
	out := make([]models.Price, 0, len(prices))
	for _, p := range prices {
		if p.IsApplicableAt(at) {
			out = append(out, p)
		}
	}
	return out
}

// SelectHighestPriority returns the price with the maximum priority.
// Ties go to the lowest ID so the result does not depend on store ordering.
// The boolean is false when prices is empty.
func SelectHighestPriority(prices []models.Price) (models.Price, bool) {
	if len(prices) == 0 {
		return models.Price{}, false
	}
	best := prices[0]
	for _, p := range prices[1:] {
		if p.HasHigherPriorityThan(best) || (p.Priority == best.Priority && p.ID < best.ID) {
			best = p
		}
	}
	return best, true
}
