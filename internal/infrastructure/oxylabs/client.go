package oxylabs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/databunker/price-checker/internal/domain"
	"github.com/databunker/price-checker/internal/infrastructure/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"resty.dev/v3"
)

const maxAttempts = 2

// Config holds the provider settings the client is constructed with
type Config struct {
	Username          string
	Password          string
	BaseURL           string
	Domain            string
	Locale            string
	GeoLocation       string
	Timeout           time.Duration
	RetryBackoff      time.Duration
	MaxResults        int
	RequestsPerSecond float64
	Burst             int
}

// Client handles communication with the Oxylabs realtime API
type Client struct {
	http        *resty.Client
	cfg         Config
	rateLimiter *rate.Limiter
	log         zerolog.Logger
}

// NewClient creates a new Oxylabs API client
func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	httpClient := resty.New()
	httpClient.SetHeader("User-Agent", "PriceChecker/1.0")

	return &Client{
		http:        httpClient,
		cfg:         cfg,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		log:         log.With().Str("component", "oxylabs").Logger(),
	}
}

// Configured reports whether both credentials are present
func (c *Client) Configured() bool {
	return c.cfg.Username != "" && c.cfg.Password != ""
}

// Search runs one provider search. Timeouts, transport errors, 429 and 5xx
// responses are retried once after a fixed backoff.
func (c *Client) Search(ctx context.Context, query string, mode domain.SearchMode) ([]domain.RawResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.NewError(domain.KindInvalidRequest, "query is required")
	}
	if !mode.Valid() {
		return nil, domain.NewError(domain.KindInvalidRequest, fmt.Sprintf("unsupported search mode %q", mode))
	}
	if !c.Configured() {
		return nil, domain.NewError(domain.KindNotConfigured, "Oxylabs credentials are not configured")
	}

	payload := queryRequest{
		Source:      sourceFor(mode),
		Query:       query,
		Domain:      c.cfg.Domain,
		Locale:      c.cfg.Locale,
		GeoLocation: c.cfg.GeoLocation,
		Parse:       true,
	}

	start := time.Now()
	var lastErr error
	var timedOut bool

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			lastErr = fmt.Errorf("rate limiter: %w", err)
			break
		}

		body, retryable, err := c.doAttempt(ctx, payload)
		if err == nil {
			results, skipped, decodeErr := decodeResults(body, mode, c.cfg.MaxResults)
			elapsed := time.Since(start)
			if decodeErr != nil {
				c.log.Warn().Err(decodeErr).Str("mode", string(mode)).Msg("malformed provider payload")
				metrics.ProviderRequestDuration.WithLabelValues(string(mode), "malformed").Observe(elapsed.Seconds())
				return nil, &domain.Error{
					Kind:    domain.KindMalformedUpstreamResponse,
					Message: "provider payload could not be parsed",
					Mode:    mode,
					Elapsed: elapsed,
					Err:     decodeErr,
				}
			}
			if skipped > 0 {
				c.log.Debug().Int("skipped", skipped).Str("mode", string(mode)).Msg("skipped undecodable records")
			}
			c.log.Info().
				Str("mode", string(mode)).
				Int("results", len(results)).
				Int("attempt", attempt).
				Dur("elapsed", elapsed).
				Msg("provider search completed")
			metrics.ProviderRequestDuration.WithLabelValues(string(mode), "success").Observe(elapsed.Seconds())
			return results, nil
		}

		lastErr = err
		timedOut = errors.Is(err, context.DeadlineExceeded)
		c.log.Warn().Err(err).Int("attempt", attempt).Str("mode", string(mode)).Msg("provider request failed")

		if !retryable || attempt == maxAttempts || ctx.Err() != nil {
			break
		}

		metrics.ProviderRetriesTotal.WithLabelValues(string(mode)).Inc()
		if err := sleepCtx(ctx, c.cfg.RetryBackoff); err != nil {
			lastErr = err
			break
		}
	}

	elapsed := time.Since(start)
	metrics.ProviderRequestDuration.WithLabelValues(string(mode), "failure").Observe(elapsed.Seconds())
	return nil, &domain.Error{
		Kind:    domain.KindUpstreamUnavailable,
		Message: "scraping provider unavailable",
		Mode:    mode,
		Elapsed: elapsed,
		Timeout: timedOut,
		Err:     lastErr,
	}
}

// doAttempt performs one bounded request and classifies failures
func (c *Client) doAttempt(ctx context.Context, payload queryRequest) (body []byte, retryable bool, err error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.http.R().
		SetContext(attemptCtx).
		SetBasicAuth(c.cfg.Username, c.cfg.Password).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(c.cfg.BaseURL + "/v1/queries")
	if err != nil {
		if attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, true, fmt.Errorf("attempt timed out after %s: %w", c.cfg.Timeout, context.DeadlineExceeded)
		}
		return nil, ctx.Err() == nil, fmt.Errorf("request failed: %w", err)
	}

	status := resp.StatusCode()
	if status != http.StatusOK {
		snippet := resp.String()
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, status == http.StatusTooManyRequests || status >= 500,
			fmt.Errorf("unexpected status %d: %s", status, snippet)
	}

	return resp.Bytes(), false, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
