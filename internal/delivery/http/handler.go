package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/databunker/price-checker/config"
	"github.com/databunker/price-checker/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const serviceName = "price-checker"

// kindRateLimited is reported by the rate limiter; it never leaves the HTTP layer
const kindRateLimited domain.ErrorKind = "RateLimited"

// PriceChecker runs a price lookup
type PriceChecker interface {
	CheckPrice(ctx context.Context, query domain.Query) (*domain.Response, error)
}

const healthPingTimeout = 2 * time.Second

// CachePinger reports whether the response cache backend is reachable
type CachePinger interface {
	Ping(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	prices  PriceChecker
	cache   CachePinger
	cfg     *config.Config
	version string
}

// NewHandler creates a new HTTP handler. prices may be nil, in which case
// lookups fail with NotConfigured.
func NewHandler(prices PriceChecker, cfg *config.Config, version string) *Handler {
	if cfg == nil {
		cfg = &config.Config{}
	}
	return &Handler{prices: prices, cfg: cfg, version: version}
}

// WithCache makes /health report the cache backend's connectivity
func (h *Handler) WithCache(cache CachePinger) *Handler {
	h.cache = cache
	return h
}

// CheckPriceRequest is the lookup request sent by the extension
type CheckPriceRequest struct {
	Query      string `json:"query" binding:"required"`
	UPC        string `json:"upc"`
	SearchType string `json:"search_type" binding:"omitempty,oneof=shopping organic"`
}

// OfferResponse is one offer on the wire. Absent values are JSON null.
type OfferResponse struct {
	Title    string   `json:"title"`
	Price    *float64 `json:"price"`
	Currency string   `json:"currency"`
	Seller   *string  `json:"seller"`
	Link     *string  `json:"link"`
	Source   string   `json:"source"`
}

// PriceRangeResponse is the min and max of priced offers
type PriceRangeResponse struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// CheckPriceResponse is the lookup result
type CheckPriceResponse struct {
	Offers      []OfferResponse     `json:"offers"`
	Summary     string              `json:"summary"`
	TotalOffers int                 `json:"total_offers"`
	PriceRange  *PriceRangeResponse `json:"price_range,omitempty"`
	PoweredBy   string              `json:"powered_by"`
}

// ErrorBody describes a failed request
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ErrorResponse wraps ErrorBody
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// HealthCheck returns the health status of the API. An unreachable cache
// degrades the status but lookups keep working without it.
func (h *Handler) HealthCheck(c *gin.Context) {
	body := gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": h.version,
		"endpoints": []string{
			"POST /api/check_price",
			"GET /health",
			"GET /debug",
			"GET /metrics",
		},
	}

	if h.cache != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
		defer cancel()

		cacheStatus := "ok"
		if err := h.cache.Ping(ctx); err != nil {
			_ = c.Error(err)
			cacheStatus = "unavailable"
			body["status"] = "degraded"
		}
		body["cache"] = gin.H{"type": h.cfg.Cache.Type, "status": cacheStatus}
	}

	c.JSON(http.StatusOK, body)
}

// Debug reports which credentials are configured without revealing them
func (h *Handler) Debug(c *gin.Context) {
	credentials := make(gin.H)
	for name, status := range h.cfg.Credentials() {
		state := "NOT SET"
		if status.Set {
			state = "SET"
		}
		credentials[name] = gin.H{"status": state, "length": status.Length}
	}

	c.JSON(http.StatusOK, gin.H{
		"service":     serviceName,
		"version":     h.version,
		"environment": h.cfg.Server.Environment,
		"credentials": credentials,
		"oxylabs": gin.H{
			"configured": h.cfg.Oxylabs.Configured(),
			"domain":     h.cfg.Oxylabs.Domain,
			"locale":     h.cfg.Oxylabs.Locale,
		},
		"gemini": gin.H{
			"configured": h.cfg.Gemini.APIKey != "",
			"model":      h.cfg.Gemini.Model,
		},
		"cache": h.cfg.Cache.Type,
	})
}

// CheckPrice handles price lookup requests
func (h *Handler) CheckPrice(c *gin.Context) {
	var req CheckPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, domain.NewError(domain.KindInvalidRequest, bindingMessage(err)))
		return
	}

	query, err := domain.NewQuery(req.Query, req.UPC, req.SearchType)
	if err != nil {
		writeError(c, err)
		return
	}

	if h.prices == nil {
		writeError(c, domain.NewError(domain.KindNotConfigured, "price service is not configured"))
		return
	}

	resp, err := h.prices.CheckPrice(c.Request.Context(), query)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toCheckPriceResponse(resp))
}

func toCheckPriceResponse(resp *domain.Response) CheckPriceResponse {
	out := CheckPriceResponse{
		Offers:      make([]OfferResponse, 0, len(resp.Offers)),
		Summary:     resp.Summary,
		TotalOffers: resp.TotalOffers,
		PoweredBy:   resp.PoweredBy,
	}
	for _, o := range resp.Offers {
		offer := OfferResponse{
			Title:    o.Title,
			Currency: o.Currency,
			Seller:   o.Seller,
			Link:     o.Link,
			Source:   o.Source,
		}
		if o.HasPrice() {
			price := o.Price.Decimal.InexactFloat64()
			offer.Price = &price
		}
		out.Offers = append(out.Offers, offer)
	}
	if resp.PriceRange != nil {
		out.PriceRange = &PriceRangeResponse{
			Min: resp.PriceRange.Min.InexactFloat64(),
			Max: resp.PriceRange.Max.InexactFloat64(),
		}
	}
	return out
}

// statusFor maps an error onto an HTTP status and a client-facing kind
func statusFor(err error) (int, domain.ErrorKind) {
	var derr *domain.Error
	if !errors.As(err, &derr) {
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout, domain.KindUpstreamUnavailable
		}
		return http.StatusInternalServerError, "Internal"
	}

	switch derr.Kind {
	case domain.KindInvalidRequest:
		return http.StatusBadRequest, derr.Kind
	case domain.KindNotConfigured:
		return http.StatusInternalServerError, derr.Kind
	case domain.KindUpstreamUnavailable:
		if derr.Timeout || errors.Is(derr.Err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout, derr.Kind
		}
		return http.StatusBadGateway, derr.Kind
	case kindRateLimited:
		return http.StatusTooManyRequests, derr.Kind
	default:
		return http.StatusBadGateway, derr.Kind
	}
}

// clientMessage hides wrapped causes, which can carry upstream bodies
func clientMessage(err error) string {
	var derr *domain.Error
	if errors.As(err, &derr) {
		if derr.Message != "" {
			return derr.Message
		}
		return string(derr.Kind)
	}
	return "internal error"
}

func writeError(c *gin.Context, err error) {
	status, kind := statusFor(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorResponse{Error: ErrorBody{
		Kind:    string(kind),
		Message: clientMessage(err),
	}})
}

// bindingMessage turns binding failures into one readable sentence
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "request body must be a JSON object"
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Field() {
		case "Query":
			msgs = append(msgs, "query is required")
		case "SearchType":
			msgs = append(msgs, "search_type must be 'shopping' or 'organic'")
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", strings.ToLower(fe.Field())))
		}
	}
	return strings.Join(msgs, "; ")
}
