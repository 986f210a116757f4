package usecase

import (
	"github.com/databunker/price-checker/internal/domain"
	"github.com/rs/zerolog"
)

// Scoring constants
const (
	brandMatchBonus      = 0.2 // First query keyword (usually the brand) found in the title
	keywordlessBaseScore = 0.5 // Query had no usable keywords
)

// MatchConfig holds configuration for the matching service
type MatchConfig struct {
	MinRelevance      float64
	ExcludeMultipacks bool
}

// MatchingService scores how well offer titles match the searched product and
// filters out unrelated listings
type MatchingService struct {
	preprocessor      *QueryPreprocessor
	minRelevance      float64
	excludeMultipacks bool
	log               zerolog.Logger
}

// NewMatchingService creates a new matching service with the given configuration.
// A zero MinRelevance disables relevance filtering.
func NewMatchingService(config MatchConfig, log zerolog.Logger) *MatchingService {
	return &MatchingService{
		preprocessor:      NewQueryPreprocessor(),
		minRelevance:      config.MinRelevance,
		excludeMultipacks: config.ExcludeMultipacks,
		log:               log.With().Str("component", "matching").Logger(),
	}
}

// Enabled reports whether Filter can drop anything
func (s *MatchingService) Enabled() bool {
	return s.minRelevance > 0 || s.excludeMultipacks
}

// Score returns a 0-1 Jaccard similarity between the query and a title, with
// a bonus when the leading query keyword appears in the title
func (s *MatchingService) Score(query, title string) float64 {
	queryKeywords := s.preprocessor.Keywords(query)
	titleKeywords := s.preprocessor.Keywords(title)

	if len(queryKeywords) == 0 {
		return keywordlessBaseScore
	}
	if len(titleKeywords) == 0 {
		return 0
	}

	titleSet := make(map[string]bool, len(titleKeywords))
	for _, k := range titleKeywords {
		titleSet[k] = true
	}

	intersection := 0
	for _, k := range queryKeywords {
		if titleSet[k] {
			intersection++
		}
	}
	union := len(queryKeywords) + len(titleKeywords) - intersection
	score := float64(intersection) / float64(union)

	if titleSet[queryKeywords[0]] {
		score += brandMatchBonus
	}
	if score > 1 {
		score = 1
	}
	return score
}

// Filter drops offers scoring below the threshold and, when configured,
// multipacks the query did not ask for. Order is preserved.
func (s *MatchingService) Filter(query string, offers []domain.Offer) []domain.Offer {
	if !s.Enabled() {
		return offers
	}

	queryIsMultipack := s.preprocessor.IsMultipack(query)
	kept := make([]domain.Offer, 0, len(offers))
	for _, offer := range offers {
		if s.excludeMultipacks && !queryIsMultipack && s.preprocessor.IsMultipack(offer.Title) {
			s.log.Debug().Str("title", offer.Title).Msg("dropping multipack")
			continue
		}
		if s.minRelevance > 0 {
			score := s.Score(query, offer.Title)
			if score < s.minRelevance {
				s.log.Debug().Str("title", offer.Title).Float64("score", score).Msg("dropping low relevance offer")
				continue
			}
		}
		kept = append(kept, offer)
	}
	return kept
}
