package usecase

import (
	"fmt"
	"strings"

	"github.com/databunker/price-checker/internal/domain"
)

// Aggregator deduplicates offers and computes summary statistics
type Aggregator struct{}

// NewAggregator creates a new aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Aggregate keeps the first occurrence of every dedup key, in input order.
// The price range covers priced offers only and is nil when there are none.
func (a *Aggregator) Aggregate(offers []domain.Offer) domain.AggregateResult {
	seen := make(map[string]struct{}, len(offers))
	unique := make([]domain.Offer, 0, len(offers))

	var priceRange *domain.PriceRange
	for _, offer := range offers {
		key := dedupKey(offer)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, offer)

		if !offer.HasPrice() {
			continue
		}
		price := offer.Price.Decimal
		if priceRange == nil {
			priceRange = &domain.PriceRange{Min: price, Max: price}
			continue
		}
		if price.LessThan(priceRange.Min) {
			priceRange.Min = price
		}
		if price.GreaterThan(priceRange.Max) {
			priceRange.Max = price
		}
	}

	return domain.AggregateResult{
		Offers:      unique,
		TotalOffers: len(unique),
		PriceRange:  priceRange,
		Summary:     summarize(len(unique)),
	}
}

// dedupKey is the normalized title, seller and link
func dedupKey(o domain.Offer) string {
	return normalizeKeyPart(o.Title) + "\x00" +
		normalizeKeyPart(o.SellerName()) + "\x00" +
		strings.TrimSpace(o.LinkURL())
}

func normalizeKeyPart(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func summarize(count int) string {
	switch count {
	case 0:
		return "No offers found"
	case 1:
		return "Found 1 offer"
	default:
		return fmt.Sprintf("Found %d offers", count)
	}
}
