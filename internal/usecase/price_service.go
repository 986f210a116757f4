package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/databunker/price-checker/internal/domain"
	"github.com/databunker/price-checker/internal/infrastructure/metrics"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Stage is a pipeline state
type Stage string

const (
	StageReceived    Stage = "received"
	StageSearching   Stage = "searching"
	StageNormalizing Stage = "normalizing"
	StageAggregating Stage = "aggregating"
	StageRefining    Stage = "refining"
	StageCompleted   Stage = "completed"
	StageFailed      Stage = "failed"
)

const tracerName = "github.com/databunker/price-checker/internal/usecase"

// PriceServiceConfig holds configuration for the price service
type PriceServiceConfig struct {
	CacheTTL time.Duration
}

// PriceService runs the search → normalize → aggregate → refine pipeline for
// one query at a time
type PriceService struct {
	provider   domain.SearchProvider
	normalizer *Normalizer
	aggregator *Aggregator
	matcher    *MatchingService
	refiner    *Refiner
	cache      domain.CacheRepository
	cacheTTL   time.Duration
	tracer     trace.Tracer
	log        zerolog.Logger
}

// NewPriceService wires the pipeline. cache may be nil, which disables caching.
func NewPriceService(
	provider domain.SearchProvider,
	normalizer *Normalizer,
	aggregator *Aggregator,
	matcher *MatchingService,
	refiner *Refiner,
	cache domain.CacheRepository,
	config PriceServiceConfig,
	log zerolog.Logger,
) *PriceService {
	return &PriceService{
		provider:   provider,
		normalizer: normalizer,
		aggregator: aggregator,
		matcher:    matcher,
		refiner:    refiner,
		cache:      cache,
		cacheTTL:   config.CacheTTL,
		tracer:     otel.Tracer(tracerName),
		log:        log.With().Str("component", "price_service").Logger(),
	}
}

// pipelineRun tracks the state of a single request
type pipelineRun struct {
	stage Stage
	query domain.Query
	start time.Time
	log   zerolog.Logger
}

func (r *pipelineRun) transition(next Stage) {
	r.log.Debug().Str("from", string(r.stage)).Str("to", string(next)).Msg("pipeline transition")
	r.stage = next
}

// CheckPrice produces a complete Response or a *domain.Error, never both.
func (s *PriceService) CheckPrice(ctx context.Context, query domain.Query) (*domain.Response, error) {
	ctx, span := s.tracer.Start(ctx, "pricecheck.check_price", trace.WithAttributes(
		attribute.String("query.mode", string(query.Mode)),
		attribute.Bool("query.has_upc", query.UPC != ""),
	))
	defer span.End()

	run := &pipelineRun{
		stage: StageReceived,
		query: query,
		start: time.Now(),
		log:   s.log.With().Str("mode", string(query.Mode)).Str("query", query.Text).Logger(),
	}

	if cached, ok := s.fromCache(ctx, query); ok {
		run.log.Debug().Msg("served from cache")
		metrics.PriceChecksTotal.WithLabelValues(string(query.Mode), "cached").Inc()
		return cached, nil
	}

	resp, err := s.run(ctx, run)
	if err != nil {
		run.transition(StageFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(domain.KindOf(err)))
		metrics.PriceChecksTotal.WithLabelValues(string(query.Mode), "failed").Inc()
		run.log.Warn().Err(err).Dur("elapsed", time.Since(run.start)).Msg("price check failed")
		return nil, err
	}

	run.transition(StageCompleted)
	span.SetAttributes(
		attribute.Int("offers.total", resp.TotalOffers),
		attribute.String("powered_by", resp.PoweredBy),
	)
	metrics.PriceChecksTotal.WithLabelValues(string(query.Mode), "completed").Inc()
	run.log.Info().
		Int("offers", resp.TotalOffers).
		Str("powered_by", resp.PoweredBy).
		Dur("elapsed", time.Since(run.start)).
		Msg("price check completed")

	s.toCache(ctx, query, resp)
	return resp, nil
}

func (s *PriceService) run(ctx context.Context, run *pipelineRun) (*domain.Response, error) {
	query := run.query

	run.transition(StageSearching)
	raw, err := s.search(ctx, query)
	if err != nil {
		if !errors.Is(err, domain.ErrMalformedUpstreamResponse) {
			return nil, err
		}
		// No results is a valid outcome, distinct from being unable to search
		run.log.Warn().Err(err).Msg("continuing with no results")
		raw = nil
	}

	run.transition(StageNormalizing)
	offers := s.normalizer.Normalize(raw, query.Mode)
	if s.matcher != nil {
		offers = s.matcher.Filter(query.Text, offers)
	}
	metrics.NormalizedOffers.WithLabelValues(string(query.Mode)).Observe(float64(len(offers)))

	run.transition(StageAggregating)
	aggregate := s.aggregator.Aggregate(offers)

	run.transition(StageRefining)
	outcome := s.refine(ctx, query, aggregate)

	poweredBy := domain.PoweredByUnrefined
	if outcome.Applied {
		poweredBy = domain.PoweredByRefined
	}

	return &domain.Response{
		AggregateResult: outcome.Result,
		PoweredBy:       poweredBy,
	}, nil
}

func (s *PriceService) search(ctx context.Context, query domain.Query) ([]domain.RawResult, error) {
	ctx, span := s.tracer.Start(ctx, "pricecheck.search")
	defer span.End()

	if s.provider == nil || !s.provider.Configured() {
		return nil, domain.NewError(domain.KindNotConfigured, "scraping provider credentials are not configured")
	}

	raw, err := s.provider.Search(ctx, query.SearchText(), query.Mode)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(domain.KindOf(err)))
		if domain.KindOf(err) == "" {
			return nil, &domain.Error{
				Kind:    domain.KindUpstreamUnavailable,
				Message: "scraping provider failed",
				Mode:    query.Mode,
				Err:     err,
			}
		}
		return nil, err
	}
	span.SetAttributes(attribute.Int("results", len(raw)))
	return raw, nil
}

func (s *PriceService) refine(ctx context.Context, query domain.Query, aggregate domain.AggregateResult) RefinementOutcome {
	if s.refiner == nil {
		return degraded(aggregate, ReasonNotConfigured, nil)
	}

	ctx, span := s.tracer.Start(ctx, "pricecheck.refine")
	defer span.End()

	outcome := s.refiner.Refine(ctx, query, aggregate)
	if outcome.Applied {
		metrics.RefinementsTotal.WithLabelValues("applied").Inc()
		return outcome
	}

	metrics.RefinementsTotal.WithLabelValues(outcome.Reason).Inc()
	span.SetAttributes(attribute.String("degraded_reason", outcome.Reason))
	var event *zerolog.Event
	if outcome.Err != nil {
		event = s.log.Warn().Err(outcome.Err)
	} else {
		event = s.log.Debug()
	}
	event.
		Str("kind", string(domain.KindRefinementDegraded)).
		Str("reason", outcome.Reason).
		Msg("refinement skipped")
	return outcome
}

// generateCacheKey creates a normalized cache key for a query.
// Format: "pricecheck:{mode}:{normalized_text}:{upc}"
func generateCacheKey(query domain.Query) string {
	text := strings.Join(strings.Fields(strings.ToLower(query.Text)), " ")
	return fmt.Sprintf("pricecheck:%s:%s:%s", query.Mode, text, query.UPC)
}

func (s *PriceService) cacheEnabled() bool {
	return s.cache != nil && s.cacheTTL > 0
}

func (s *PriceService) fromCache(ctx context.Context, query domain.Query) (*domain.Response, bool) {
	if !s.cacheEnabled() {
		return nil, false
	}
	key := generateCacheKey(query)
	value, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.log.Warn().Err(err).Msg("cache read failed")
		}
		return nil, false
	}
	resp, err := decodeCachedResponse(value)
	if err != nil {
		s.log.Warn().Err(err).Msg("discarding unreadable cache entry")
		if err := s.cache.Delete(ctx, key); err != nil {
			s.log.Warn().Err(err).Msg("cache delete failed")
		}
		return nil, false
	}
	return resp, true
}

func (s *PriceService) toCache(ctx context.Context, query domain.Query, resp *domain.Response) {
	if !s.cacheEnabled() {
		return
	}
	if err := s.cache.Set(ctx, generateCacheKey(query), resp, s.cacheTTL); err != nil {
		// Caching is best-effort
		s.log.Warn().Err(err).Msg("cache write failed")
	}
}

// decodeCachedResponse accepts the shapes cache backends hand back: the
// original pointer, a JSON string or bytes, or a generic decoded map
func decodeCachedResponse(value interface{}) (*domain.Response, error) {
	var data []byte
	switch v := value.(type) {
	case *domain.Response:
		return v, nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		var err error
		data, err = json.Marshal(v)
		if err != nil {
			return nil, err
		}
	}

	var resp domain.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
