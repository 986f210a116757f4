package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

// RawResult is one provider record. Exactly one of Organic or Shopping is
// set and it always matches Mode.
type RawResult struct {
	Mode     SearchMode
	Organic  *OrganicResult
	Shopping *ShoppingResult
}

// OrganicResult is a web search hit
type OrganicResult struct {
	Position    int    `json:"pos"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"desc"`
}

// ShoppingResult is a shopping carousel listing
type ShoppingResult struct {
	Position int      `json:"pos"`
	Title    string   `json:"title"`
	Price    RawPrice `json:"price"`
	Currency string   `json:"currency"`
	Merchant Merchant `json:"merchant"`
	URL      string   `json:"url"`
}

// Merchant is the seller block of a shopping listing
type Merchant struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// RawPrice keeps the provider's price verbatim. The provider sends either a
// JSON number or a formatted string such as "$1,299.00".
type RawPrice string

// UnmarshalJSON accepts strings, numbers and null
func (p *RawPrice) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = RawPrice(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = RawPrice(n.String())
	return nil
}

// NewOrganicRaw wraps an organic record
func NewOrganicRaw(r OrganicResult) RawResult {
	return RawResult{Mode: ModeOrganic, Organic: &r}
}

// NewShoppingRaw wraps a shopping record
func NewShoppingRaw(r ShoppingResult) RawResult {
	return RawResult{Mode: ModeShopping, Shopping: &r}
}
