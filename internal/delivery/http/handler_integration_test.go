package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/databunker/price-checker/config"
	"github.com/databunker/price-checker/internal/domain"
	"github.com/databunker/price-checker/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// mockSearchProvider is a mock implementation of domain.SearchProvider
type mockSearchProvider struct {
	results    []domain.RawResult
	err        error
	configured bool
	calls      int
}

func (m *mockSearchProvider) Search(ctx context.Context, query string, mode domain.SearchMode) ([]domain.RawResult, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

func (m *mockSearchProvider) Configured() bool { return m.configured }

// mockLanguageModel is a mock implementation of domain.LanguageModel
type mockLanguageModel struct {
	response string
	err      error
}

func (m *mockLanguageModel) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	return m.response, m.err
}

func (m *mockLanguageModel) Configured() bool { return true }

func (m *mockLanguageModel) Name() string { return "mock" }

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"chrome-extension://*", "http://localhost:3000"},
			RequestTimeout: 5 * time.Second,
		},
		Oxylabs: config.OxylabsConfig{Username: "user", Password: "secret", Domain: "com.mx"},
		Gemini:  config.GeminiConfig{Model: "gemini-2.0-flash"},
		Cache:   config.CacheConfig{Type: "none"},
	}
}

func cocaColaResults() []domain.RawResult {
	return []domain.RawResult{
		domain.NewShoppingRaw(domain.ShoppingResult{
			Title:    "Coca Cola 600 ml",
			Price:    "15.50",
			Merchant: domain.Merchant{Name: "Walmart"},
			URL:      "https://www.walmart.com.mx/ip/1",
		}),
		domain.NewShoppingRaw(domain.ShoppingResult{
			Title: "Coca Cola 600ml Botella",
			Price: "$18.90",
			URL:   "https://www.soriana.com/p/2",
		}),
		domain.NewShoppingRaw(domain.ShoppingResult{
			Title:    "Coca-Cola Sin Azúcar 600 ml",
			Price:    "N/A",
			Merchant: domain.Merchant{Name: "Chedraui"},
		}),
	}
}

// setupTestRouter wires the real pipeline around mock upstreams
func setupTestRouter(provider domain.SearchProvider, model domain.LanguageModel) *gin.Engine {
	cfg := testConfig()
	aggregator := usecase.NewAggregator()
	service := usecase.NewPriceService(
		provider,
		usecase.NewNormalizer("MXN"),
		aggregator,
		usecase.NewMatchingService(usecase.MatchConfig{}, zerolog.Nop()),
		usecase.NewRefiner(model, aggregator, usecase.RefinerConfig{Timeout: time.Second}, zerolog.Nop()),
		nil,
		usecase.PriceServiceConfig{},
		zerolog.Nop(),
	)
	return SetupRouter(cfg, NewHandler(service, cfg, "test"), zerolog.Nop())
}

func postJSON(router *gin.Engine, path, payload string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("POST", path, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealthCheckEndpoint(t *testing.T) {
	router := setupTestRouter(&mockSearchProvider{configured: true}, nil)

	for _, path := range []string{"/health", "/api/health"} {
		t.Run(path, func(t *testing.T) {
			req, _ := http.NewRequest("GET", path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code)

			var response map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, "healthy", response["status"])
			assert.Equal(t, "price-checker", response["service"])
			assert.Equal(t, "test", response["version"])
			assert.NotEmpty(t, response["endpoints"])
		})
	}

	t.Run("accepts GET requests only", func(t *testing.T) {
		for _, method := range []string{"POST", "PUT", "DELETE"} {
			req, _ := http.NewRequest(method, "/health", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusNotFound, w.Code, "method %s", method)
		}
	})
}

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(ctx context.Context) error {
	return p.err
}

func TestHealthCheckEndpoint_Cache(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus string
		wantCache  string
	}{
		{name: "reachable", wantStatus: "healthy", wantCache: "ok"},
		{name: "unreachable", err: domain.ErrCacheUnavailable, wantStatus: "degraded", wantCache: "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Cache.Type = "redis"
			handler := NewHandler(nil, cfg, "test").WithCache(stubPinger{err: tt.err})
			router := SetupRouter(cfg, handler, zerolog.Nop())

			req, _ := http.NewRequest("GET", "/health", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code)
			var response struct {
				Status string            `json:"status"`
				Cache  map[string]string `json:"cache"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, tt.wantStatus, response.Status)
			assert.Equal(t, map[string]string{"type": "redis", "status": tt.wantCache}, response.Cache)
		})
	}
}

func TestDebugEndpoint(t *testing.T) {
	router := setupTestRouter(&mockSearchProvider{configured: true}, nil)

	req, _ := http.NewRequest("GET", "/api/debug", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.NotContains(t, body, "secret")

	var response struct {
		Credentials map[string]struct {
			Status string `json:"status"`
			Length int    `json:"length"`
		} `json:"credentials"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "SET", response.Credentials["oxylabs_password"].Status)
	assert.Equal(t, 6, response.Credentials["oxylabs_password"].Length)
	assert.Equal(t, "NOT SET", response.Credentials["gemini_api_key"].Status)
}

func TestCheckPriceEndpoint(t *testing.T) {
	t.Run("returns offers for the Coca Cola query", func(t *testing.T) {
		provider := &mockSearchProvider{configured: true, results: cocaColaResults()}
		router := setupTestRouter(provider, nil)

		w := postJSON(router, "/api/check_price", `{"query":"Coca Cola 600ml"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp CheckPriceResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 3, resp.TotalOffers)
		assert.Len(t, resp.Offers, 3)
		require.NotNil(t, resp.PriceRange)
		assert.Equal(t, 15.5, resp.PriceRange.Min)
		assert.Equal(t, 18.9, resp.PriceRange.Max)
		assert.Equal(t, domain.PoweredByUnrefined, resp.PoweredBy)
		assert.Equal(t, "Found 3 offers", resp.Summary)
	})

	t.Run("absent values are JSON null", func(t *testing.T) {
		provider := &mockSearchProvider{configured: true, results: cocaColaResults()}
		router := setupTestRouter(provider, nil)

		w := postJSON(router, "/check_price", `{"query":"Coca Cola 600ml","search_type":"shopping"}`)
		require.Equal(t, http.StatusOK, w.Code)

		var raw struct {
			Offers []map[string]interface{} `json:"offers"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
		third := raw.Offers[2]
		for _, field := range []string{"price", "link"} {
			value, present := third[field]
			assert.True(t, present, "field %s missing", field)
			assert.Nil(t, value, "field %s", field)
		}
		assert.Equal(t, 15.5, raw.Offers[0]["price"])
	})

	t.Run("marks refined responses", func(t *testing.T) {
		provider := &mockSearchProvider{configured: true, results: cocaColaResults()}
		model := &mockLanguageModel{response: `{"offers":[{"index":0,"seller":"Walmart Mexico"}]}`}
		router := setupTestRouter(provider, model)

		w := postJSON(router, "/api/check_price", `{"query":"Coca Cola 600ml"}`)
		require.Equal(t, http.StatusOK, w.Code)

		var resp CheckPriceResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, domain.PoweredByRefined, resp.PoweredBy)
		assert.Equal(t, 1, resp.TotalOffers)
		require.NotNil(t, resp.Offers[0].Seller)
		assert.Equal(t, "Walmart Mexico", *resp.Offers[0].Seller)
	})

	t.Run("unreachable refinement still succeeds", func(t *testing.T) {
		provider := &mockSearchProvider{configured: true, results: cocaColaResults()}
		model := &mockLanguageModel{err: errors.New("dial tcp: connection refused")}
		router := setupTestRouter(provider, model)

		w := postJSON(router, "/api/check_price", `{"query":"Coca Cola 600ml"}`)
		require.Equal(t, http.StatusOK, w.Code)

		var resp CheckPriceResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, domain.PoweredByUnrefined, resp.PoweredBy)
		assert.Equal(t, 3, resp.TotalOffers)
	})

	t.Run("empty result omits price range", func(t *testing.T) {
		provider := &mockSearchProvider{configured: true}
		router := setupTestRouter(provider, nil)

		w := postJSON(router, "/api/check_price", `{"query":"producto inexistente"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, w.Body.String(), "price_range")
		assert.Contains(t, w.Body.String(), `"offers":[]`)
	})

	invalid := []struct {
		name    string
		payload string
	}{
		{"missing query", `{"upc":"123"}`},
		{"blank query", `{"query":"   "}`},
		{"unknown search type", `{"query":"Coca Cola","search_type":"images"}`},
		{"invalid JSON", `{"query":`},
		{"empty body", ``},
	}
	for _, tc := range invalid {
		t.Run("returns 400 for "+tc.name, func(t *testing.T) {
			provider := &mockSearchProvider{configured: true}
			router := setupTestRouter(provider, nil)

			w := postJSON(router, "/api/check_price", tc.payload)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, string(domain.KindInvalidRequest), decodeError(t, w).Kind)
			assert.Zero(t, provider.calls)
		})
	}

	t.Run("returns 500 when provider is not configured", func(t *testing.T) {
		provider := &mockSearchProvider{configured: false}
		router := setupTestRouter(provider, nil)

		w := postJSON(router, "/api/check_price", `{"query":"Coca Cola"}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, string(domain.KindNotConfigured), decodeError(t, w).Kind)
		assert.Zero(t, provider.calls)
	})

	t.Run("returns 504 when provider timed out", func(t *testing.T) {
		provider := &mockSearchProvider{configured: true, err: &domain.Error{
			Kind:    domain.KindUpstreamUnavailable,
			Message: "scraping provider did not respond",
			Mode:    domain.ModeShopping,
			Timeout: true,
		}}
		router := setupTestRouter(provider, nil)

		w := postJSON(router, "/api/check_price", `{"query":"Coca Cola"}`)
		assert.Equal(t, http.StatusGatewayTimeout, w.Code)
		assert.Equal(t, string(domain.KindUpstreamUnavailable), decodeError(t, w).Kind)
	})

	t.Run("returns 502 when provider failed", func(t *testing.T) {
		provider := &mockSearchProvider{configured: true, err: &domain.Error{
			Kind: domain.KindUpstreamUnavailable,
			Err:  errors.New("status 503: upstream body with internals"),
		}}
		router := setupTestRouter(provider, nil)

		w := postJSON(router, "/api/check_price", `{"query":"Coca Cola"}`)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.NotContains(t, w.Body.String(), "internals")
	})

	t.Run("returns 500 without a price service", func(t *testing.T) {
		cfg := testConfig()
		router := SetupRouter(cfg, NewHandler(nil, cfg, "test"), zerolog.Nop())

		w := postJSON(router, "/api/check_price", `{"query":"Coca Cola"}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestCORSIntegration(t *testing.T) {
	router := setupTestRouter(&mockSearchProvider{configured: true}, nil)

	t.Run("health endpoint has CORS for Chrome extension", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/health", nil)
		req.Header.Set("Origin", "chrome-extension://abcdefg12345")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "chrome-extension://abcdefg12345", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight on check_price returns 204", func(t *testing.T) {
		req, _ := http.NewRequest("OPTIONS", "/api/check_price", nil)
		req.Header.Set("Origin", "chrome-extension://abcdefg12345")
		req.Header.Set("Access-Control-Request-Method", "POST")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "chrome-extension://abcdefg12345", w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestMetricsEndpoint(t *testing.T) {
	provider := &mockSearchProvider{configured: true, results: cocaColaResults()}
	router := setupTestRouter(provider, nil)
	postJSON(router, "/api/check_price", `{"query":"Coca Cola"}`)

	req, _ := http.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "price_checks_total")
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestJSONResponses(t *testing.T) {
	router := setupTestRouter(&mockSearchProvider{configured: true}, nil)

	endpoints := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/debug"},
		{"POST", "/api/check_price"},
	}

	for _, endpoint := range endpoints {
		t.Run(endpoint.method+" "+endpoint.path, func(t *testing.T) {
			req, _ := http.NewRequest(endpoint.method, endpoint.path, nil)
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
		})
	}
}
