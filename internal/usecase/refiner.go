package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/databunker/price-checker/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/xeipuuv/gojsonschema"
)

// Degradation reasons reported in RefinementOutcome.Reason
const (
	ReasonNotConfigured   = "not_configured"
	ReasonEmptyInput      = "empty_input"
	ReasonNoTimeLeft      = "no_time_left"
	ReasonTimeout         = "timeout"
	ReasonCallFailed      = "call_failed"
	ReasonMalformedOutput = "malformed_output"
	ReasonEmptyOutput     = "empty_output"
)

// deadlineReserve is kept free for assembling the response after refinement
const deadlineReserve = 500 * time.Millisecond

var codeFenceRegex = regexp.MustCompile("(?m)^```(?:json)?\\s*$")

const refinementSchemaJSON = `{
  "type": "object",
  "required": ["offers"],
  "properties": {
    "offers": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["index"],
        "properties": {
          "index":    {"type": "integer", "minimum": 0},
          "title":    {"type": ["string", "null"]},
          "price":    {"type": ["number", "null"]},
          "currency": {"type": ["string", "null"]},
          "seller":   {"type": ["string", "null"]}
        }
      }
    }
  }
}`

var refinementSchema = mustCompileSchema(refinementSchemaJSON)

func mustCompileSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("invalid refinement schema: %v", err))
	}
	return schema
}

// RefinementOutcome is either a refined result (Applied) or the unchanged
// input with the reason the pass degraded
type RefinementOutcome struct {
	Result  domain.AggregateResult
	Applied bool
	Reason  string
	Err     error
}

// RefinerConfig holds configuration for the refinement adapter
type RefinerConfig struct {
	Timeout   time.Duration
	MaxOffers int
}

// Refiner asks a language model to filter, re-rank and tidy the offer list
type Refiner struct {
	model      domain.LanguageModel
	aggregator *Aggregator
	timeout    time.Duration
	maxOffers  int
	log        zerolog.Logger
}

// NewRefiner creates a refinement adapter. A nil model is treated as not configured.
func NewRefiner(model domain.LanguageModel, aggregator *Aggregator, config RefinerConfig, log zerolog.Logger) *Refiner {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	maxOffers := config.MaxOffers
	if maxOffers <= 0 {
		maxOffers = 20
	}
	return &Refiner{
		model:      model,
		aggregator: aggregator,
		timeout:    timeout,
		maxOffers:  maxOffers,
		log:        log.With().Str("component", "refiner").Logger(),
	}
}

// Configured reports whether a language model is available
func (r *Refiner) Configured() bool {
	return r.model != nil && r.model.Configured()
}

// Refine never fails: any problem returns the input unchanged with a reason
func (r *Refiner) Refine(ctx context.Context, query domain.Query, input domain.AggregateResult) RefinementOutcome {
	if !r.Configured() {
		return degraded(input, ReasonNotConfigured, nil)
	}
	if len(input.Offers) == 0 {
		return degraded(input, ReasonEmptyInput, nil)
	}

	timeout := r.timeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline) - deadlineReserve
		if remaining <= 0 {
			return degraded(input, ReasonNoTimeLeft, nil)
		}
		if remaining < timeout {
			timeout = remaining
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	candidates := input.Offers
	if len(candidates) > r.maxOffers {
		candidates = candidates[:r.maxOffers]
	}

	text, err := r.model.GenerateJSON(callCtx, buildRefinementPrompt(query, candidates))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			return degraded(input, ReasonTimeout, err)
		}
		return degraded(input, ReasonCallFailed, err)
	}

	refined, err := parseRefinement(text, candidates)
	if err != nil {
		return degraded(input, ReasonMalformedOutput, err)
	}
	if len(refined) == 0 {
		return degraded(input, ReasonEmptyOutput, nil)
	}

	// Offers past the cap were never judged, so they pass through unchanged
	refined = append(refined, input.Offers[len(candidates):]...)

	result := r.aggregator.Aggregate(refined)
	r.log.Debug().
		Int("input_offers", len(input.Offers)).
		Int("refined_offers", result.TotalOffers).
		Msg("refinement applied")

	return RefinementOutcome{Result: result, Applied: true}
}

func degraded(input domain.AggregateResult, reason string, err error) RefinementOutcome {
	return RefinementOutcome{Result: input, Reason: reason, Err: err}
}

// refinementOffer is one offer as exchanged with the model
type refinementOffer struct {
	Index    int      `json:"index"`
	Title    string   `json:"title,omitempty"`
	Price    *float64 `json:"price"`
	Currency string   `json:"currency,omitempty"`
	Seller   string   `json:"seller,omitempty"`
	Link     string   `json:"link,omitempty"`
	Source   string   `json:"source,omitempty"`
}

type refinementDocument struct {
	Offers []refinementOffer `json:"offers"`
}

func buildRefinementPrompt(query domain.Query, offers []domain.Offer) string {
	items := make([]refinementOffer, len(offers))
	for i, o := range offers {
		items[i] = refinementOffer{
			Index:    i,
			Title:    o.Title,
			Currency: o.Currency,
			Seller:   o.SellerName(),
			Link:     o.LinkURL(),
			Source:   o.Source,
		}
		if o.HasPrice() {
			f := o.Price.Decimal.InexactFloat64()
			items[i].Price = &f
		}
	}
	data, _ := json.Marshal(items)

	upc := query.UPC
	if upc == "" {
		upc = "n/a"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are reviewing product price search results.\n")
	fmt.Fprintf(&b, "Product query: %s\nUPC: %s\n\n", query.Text, upc)
	fmt.Fprintf(&b, "OFFERS:\n%s\n\n", data)
	b.WriteString(`INSTRUCTIONS:
1. Keep only offers that are the searched product. Drop accessories and unrelated items.
2. Keep at most one offer per store.
3. Standardize store names (amazon.com.mx -> Amazon Mexico).
4. Order by relevance, then by price ascending.
5. Refer to every kept offer by its "index". Never invent offers.

Return ONLY JSON in this shape:
{"offers": [{"index": 0, "title": "Product name", "price": 100.00, "currency": "MXN", "seller": "Store"}]}`)
	return b.String()
}

// parseRefinement validates the model output and maps it back onto the input
// offers. Entries pointing at unknown or repeated indexes are discarded.
func parseRefinement(text string, input []domain.Offer) ([]domain.Offer, error) {
	text = strings.TrimSpace(codeFenceRegex.ReplaceAllString(text, ""))
	if text == "" {
		return nil, errors.New("empty model output")
	}

	result, err := refinementSchema.Validate(gojsonschema.NewStringLoader(text))
	if err != nil {
		return nil, fmt.Errorf("model output is not JSON: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return nil, fmt.Errorf("model output failed validation: %v", errs)
	}

	var doc refinementDocument
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("decode model output: %w", err)
	}

	used := make(map[int]bool, len(doc.Offers))
	offers := make([]domain.Offer, 0, len(doc.Offers))
	for _, item := range doc.Offers {
		if item.Index < 0 || item.Index >= len(input) || used[item.Index] {
			continue
		}
		used[item.Index] = true
		offers = append(offers, applyAnnotations(input[item.Index], item))
	}
	return offers, nil
}

// applyAnnotations merges model edits into the original offer. Link and source
// always come from the provider; a model price only fills a missing one.
func applyAnnotations(original domain.Offer, item refinementOffer) domain.Offer {
	offer := original
	if title := cleanTitle(item.Title); title != "" {
		offer.Title = title
	}
	if seller := strings.TrimSpace(item.Seller); seller != "" {
		offer.Seller = &seller
	}
	if currency := strings.ToUpper(strings.TrimSpace(item.Currency)); currency != "" {
		offer.Currency = currency
	}
	if !offer.HasPrice() && item.Price != nil && *item.Price > 0 {
		offer.Price = decimal.NewNullDecimal(decimal.NewFromFloat(*item.Price))
	}
	return offer
}
