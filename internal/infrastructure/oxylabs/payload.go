package oxylabs

import (
	"encoding/json"
	"fmt"

	"github.com/databunker/price-checker/internal/domain"
)

// Oxylabs source names per search mode
const (
	SourceGoogleSearch   = "google_search"
	SourceGoogleShopping = "google_shopping_search"
)

// queryRequest is the realtime API request body
type queryRequest struct {
	Source      string `json:"source"`
	Query       string `json:"query"`
	Domain      string `json:"domain,omitempty"`
	Locale      string `json:"locale,omitempty"`
	GeoLocation string `json:"geo_location,omitempty"`
	Parse       bool   `json:"parse"`
}

// queryResponse is the realtime API response envelope
type queryResponse struct {
	Results []struct {
		Content    json.RawMessage `json:"content"`
		StatusCode int             `json:"status_code"`
	} `json:"results"`
}

// parsedContent is the parsed SERP inside results[0].content
type parsedContent struct {
	Results struct {
		Organic []json.RawMessage `json:"organic"`
	} `json:"results"`
}

func sourceFor(mode domain.SearchMode) string {
	if mode == domain.ModeOrganic {
		return SourceGoogleSearch
	}
	return SourceGoogleShopping
}

// decodeResults turns a response body into raw results for the mode. Records
// that fail to decode are skipped; skipped reports how many.
func decodeResults(body []byte, mode domain.SearchMode, limit int) (results []domain.RawResult, skipped int, err error) {
	var envelope queryResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, 0, fmt.Errorf("decode envelope: %w", err)
	}
	if len(envelope.Results) == 0 || len(envelope.Results[0].Content) == 0 {
		return []domain.RawResult{}, 0, nil
	}

	var content parsedContent
	if err := json.Unmarshal(envelope.Results[0].Content, &content); err != nil {
		return nil, 0, fmt.Errorf("decode parsed content: %w", err)
	}

	records := content.Results.Organic
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	results = make([]domain.RawResult, 0, len(records))
	for _, record := range records {
		raw, err := decodeRecord(record, mode)
		if err != nil {
			skipped++
			continue
		}
		results = append(results, raw)
	}

	if len(records) > 0 && len(results) == 0 {
		return nil, skipped, fmt.Errorf("none of %d records could be decoded", len(records))
	}
	return results, skipped, nil
}

func decodeRecord(record json.RawMessage, mode domain.SearchMode) (domain.RawResult, error) {
	switch mode {
	case domain.ModeOrganic:
		var r domain.OrganicResult
		if err := json.Unmarshal(record, &r); err != nil {
			return domain.RawResult{}, err
		}
		return domain.NewOrganicRaw(r), nil
	case domain.ModeShopping:
		var r domain.ShoppingResult
		if err := json.Unmarshal(record, &r); err != nil {
			return domain.RawResult{}, err
		}
		return domain.NewShoppingRaw(r), nil
	default:
		return domain.RawResult{}, fmt.Errorf("unknown search mode %q", mode)
	}
}
