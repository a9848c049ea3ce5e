package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/pricefinder/internal/domain/dto"
	"github.com/guttosm/pricefinder/internal/domain/models"
	"github.com/guttosm/pricefinder/internal/middleware"
	"github.com/guttosm/pricefinder/internal/service"
)

// Query parameter names accepted by GET /api/v1/prices.
const (
	paramApplicationDate = "applicationDate"
	paramProductID       = "productId"
	paramBrandID         = "brandId"
)

// Handler provides HTTP handlers for price lookup endpoints.
//
// Responsibilities:
//   - Parse incoming HTTP query parameters into a models.PriceQuery
//   - Delegate resolution to the service layer
//   - Translate the resolved price into a response DTO
//
// Domain errors are attached with c.Error and mapped to status codes by
// middleware.ErrorHandler.
type Handler struct {
	svc service.PriceService
}

// NewHandler constructs a new Handler instance.
//
// Parameters:
//   - svc (service.PriceService): resolver used to pick the applicable price.
//
// Returns:
//   - *Handler: A handler ready to be registered with the router.
func NewHandler(svc service.PriceService) *Handler {
	return &Handler{svc: svc}
}

// GetPrice handles GET /api/v1/prices requests.
//
// Query Parameters:
//   - applicationDate (string, required): instant to price, "yyyy-MM-ddTHH:mm:ss" (UTC).
//   - productId (int64, required): product identifier, positive.
//   - brandId (int64, required): brand identifier, positive.
//
// Responses:
//   - 200 OK: the applicable price.
//   - 400 Bad Request: missing, malformed or non-positive parameters.
//   - 404 Not Found: no price covers the product/brand at that instant.
//   - 500 Internal Server Error: storage failure.
//
// GetPrice godoc
// @Summary      Get applicable price
// @Description  Returns the highest-priority price of a product for a brand at the given instant
// @Tags         prices
// @Accept       json
// @Produce      json
// @Param        applicationDate  query     string  true  "Application date (yyyy-MM-ddTHH:mm:ss)" example(2020-06-14T10:00:00)
// @Param        productId        query     int     true  "Product identifier" example(35455)
// @Param        brandId          query     int     true  "Brand identifier" example(1)
// @Success      200              {object}  dto.PriceResponse  "Success"
// @Failure      400              {object}  dto.ErrorResponse  "Bad Request"
// @Failure      404              {object}  dto.ErrorResponse  "Not Found"
// @Failure      429              {object}  dto.ErrorResponse  "Too Many Requests"
// @Failure      500              {object}  dto.ErrorResponse  "Internal Error"
// @Router       /api/v1/prices [get]
func (h *Handler) GetPrice(c *gin.Context) {
	var query models.PriceQuery

	// ─── Parse params (absent stays nil) ──────────
	if raw, ok := queryParam(c, paramApplicationDate); ok {
		at, err := time.ParseInLocation(models.DateTimeLayout, raw, time.UTC)
		if err != nil {
			invalidParam(c, paramApplicationDate, raw, err)
			return
		}
		query.ApplicationDate = &at
	}
	if raw, ok := queryParam(c, paramProductID); ok {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			invalidParam(c, paramProductID, raw, err)
			return
		}
		query.ProductID = &id
	}
	if raw, ok := queryParam(c, paramBrandID); ok {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			invalidParam(c, paramBrandID, raw, err)
			return
		}
		query.BrandID = &id
	}

	// ─── Resolve (with request context) ───────────
	price, err := h.svc.GetApplicablePrice(c.Request.Context(), &query)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewPriceResponse(*price))
}

// queryParam returns the trimmed value of name; blank values count as absent.
func queryParam(c *gin.Context, name string) (string, bool) {
	raw := strings.TrimSpace(c.Query(name))
	return raw, raw != ""
}

func invalidParam(c *gin.Context, name, raw string, err error) {
	msg := fmt.Sprintf("invalid value for parameter '%s': '%s'", name, raw)
	middleware.AbortWithError(c, http.StatusBadRequest, msg, err)
}
