package domain

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// SearchMode selects which provider result layout a search returns
type SearchMode string

const (
	ModeShopping SearchMode = "shopping"
	ModeOrganic  SearchMode = "organic"
)

// Valid reports whether the mode is one the provider understands
func (m SearchMode) Valid() bool {
	return m == ModeShopping || m == ModeOrganic
}

// Provenance tags returned in Response.PoweredBy
const (
	PoweredByRefined   = "oxylabs+gemini"
	PoweredByUnrefined = "oxylabs-only"
)

var nonDigitRegex = regexp.MustCompile(`\D+`)

// Query is the immutable per-request search input
type Query struct {
	Text string
	UPC  string
	Mode SearchMode
}

// NewQuery trims the text, strips non-digits from the UPC and applies the
// default mode. It fails with InvalidRequest for blank text or unknown mode.
func NewQuery(text, upc, mode string) (Query, error) {
	q := Query{
		Text: strings.TrimSpace(text),
		UPC:  CleanUPC(upc),
		Mode: SearchMode(strings.ToLower(strings.TrimSpace(mode))),
	}
	if q.Mode == "" {
		q.Mode = ModeShopping
	}
	if q.Text == "" {
		return Query{}, NewError(KindInvalidRequest, "query is required")
	}
	if !q.Mode.Valid() {
		return Query{}, NewError(KindInvalidRequest, "search_type must be 'shopping' or 'organic'")
	}
	return q, nil
}

// SearchText is the text sent to the provider
func (q Query) SearchText() string {
	if q.UPC == "" {
		return q.Text
	}
	return q.Text + " UPC " + q.UPC
}

// CleanUPC keeps only the digits of a UPC code
func CleanUPC(s string) string {
	return nonDigitRegex.ReplaceAllString(s, "")
}

// Offer is one normalized product listing
type Offer struct {
	Title    string              `json:"title"`
	Price    decimal.NullDecimal `json:"price"`
	Currency string              `json:"currency"`
	Seller   *string             `json:"seller"`
	Link     *string             `json:"link"`
	Source   string              `json:"source"`
}

// HasPrice reports whether the offer participates in price statistics
func (o Offer) HasPrice() bool {
	return o.Price.Valid
}

// SellerName returns the seller or an empty string
func (o Offer) SellerName() string {
	if o.Seller == nil {
		return ""
	}
	return *o.Seller
}

// LinkURL returns the link or an empty string
func (o Offer) LinkURL() string {
	if o.Link == nil {
		return ""
	}
	return *o.Link
}

// PriceRange is computed over priced offers only
type PriceRange struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

// AggregateResult is the deduplicated offer list plus summary statistics
type AggregateResult struct {
	Offers      []Offer     `json:"offers"`
	TotalOffers int         `json:"total_offers"`
	PriceRange  *PriceRange `json:"price_range,omitempty"`
	Summary     string      `json:"summary"`
}

// Response is the final payload returned to the extension
type Response struct {
	AggregateResult
	PoweredBy string `json:"powered_by"`
}

// Refined reports whether the language model pass was applied
func (r *Response) Refined() bool {
	return r.PoweredBy == PoweredByRefined
}

// StringPtr returns nil for empty strings
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
