package usecase

import (
	"strings"

	"github.com/databunker/price-checker/internal/domain"
)

// Source tags identifying which provider mode produced an offer
const (
	SourceOxylabsShopping = "oxylabs_shopping"
	SourceOxylabsGoogle   = "oxylabs_google"
)

// Normalizer maps provider records onto the canonical Offer
type Normalizer struct {
	defaultCurrency string
}

// NewNormalizer creates a normalizer. Offers without an explicit currency get
// defaultCurrency (MXN when empty).
func NewNormalizer(defaultCurrency string) *Normalizer {
	defaultCurrency = strings.ToUpper(strings.TrimSpace(defaultCurrency))
	if defaultCurrency == "" {
		defaultCurrency = "MXN"
	}
	return &Normalizer{defaultCurrency: defaultCurrency}
}

// Normalize converts raw records in input order. Records without a usable
// title, or whose payload does not match mode, are dropped; every other
// missing field degrades to null.
func (n *Normalizer) Normalize(raw []domain.RawResult, mode domain.SearchMode) []domain.Offer {
	offers := make([]domain.Offer, 0, len(raw))

	for _, r := range raw {
		var (
			offer domain.Offer
			ok    bool
		)
		switch mode {
		case domain.ModeShopping:
			offer, ok = n.fromShopping(r.Shopping)
		case domain.ModeOrganic:
			offer, ok = n.fromOrganic(r.Organic)
		}
		if ok {
			offers = append(offers, offer)
		}
	}

	return offers
}

func (n *Normalizer) fromShopping(r *domain.ShoppingResult) (domain.Offer, bool) {
	if r == nil {
		return domain.Offer{}, false
	}
	title := cleanTitle(r.Title)
	if title == "" {
		return domain.Offer{}, false
	}

	link := normalizeLink(r.URL)
	seller := strings.TrimSpace(r.Merchant.Name)
	if seller == "" {
		seller = ResolveStore(r.URL)
	}

	currency := strings.ToUpper(strings.TrimSpace(r.Currency))
	if currency == "" {
		currency = n.defaultCurrency
	}

	return domain.Offer{
		Title:    title,
		Price:    ParsePrice(string(r.Price)),
		Currency: currency,
		Seller:   domain.StringPtr(seller),
		Link:     domain.StringPtr(link),
		Source:   SourceOxylabsShopping,
	}, true
}

func (n *Normalizer) fromOrganic(r *domain.OrganicResult) (domain.Offer, bool) {
	if r == nil {
		return domain.Offer{}, false
	}
	title := cleanTitle(r.Title)
	if title == "" {
		return domain.Offer{}, false
	}

	link := normalizeLink(r.URL)
	return domain.Offer{
		Title:    title,
		Price:    ExtractPriceFromText(r.Description),
		Currency: n.defaultCurrency,
		Seller:   domain.StringPtr(ResolveStore(link)),
		Link:     domain.StringPtr(link),
		Source:   SourceOxylabsGoogle,
	}, true
}

// cleanTitle trims and collapses internal whitespace
func cleanTitle(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// normalizeLink keeps only absolute http(s) links
func normalizeLink(raw string) string {
	u, ok := parseLink(raw)
	if !ok {
		return ""
	}
	return u.String()
}
