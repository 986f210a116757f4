package usecase

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// numberPattern matches a price token. Digit groups separated by a space or
// NBSP are only joined when every following group has exactly three digits,
// e.g. "1 299,00".
const numberPattern = `\d{1,3}(?:[ \x{00a0}]\d{3})+(?:[.,]\d+)?\b|\d[\d.,]*`

var (
	// First number-like token, e.g. "1,299.00" out of "MXN $1,299.00 c/u"
	numberTokenRegex = regexp.MustCompile(numberPattern)

	groupSpaceReplacer = strings.NewReplacer(" ", "", "\u00a0", "")

	// Price mentions with an explicit currency marker inside free text
	textPricePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\$\s*(` + numberPattern + `)`),
		regexp.MustCompile(`(?i)\bMXN\s*(` + numberPattern + `)`),
		regexp.MustCompile(`(?i)(` + numberPattern + `)\s*(?:MXN|pesos)\b`),
	}

	minTextPrice = decimal.NewFromInt(1)
	maxTextPrice = decimal.NewFromInt(100000)
)

// ParsePrice tolerantly parses a provider price. Currency symbols and letters
// are ignored, as are spaces grouping thousands. Unparseable, ambiguous or non-positive input yields
// a null price.
func ParsePrice(raw string) decimal.NullDecimal {
	token := groupSpaceReplacer.Replace(numberTokenRegex.FindString(raw))
	token = strings.TrimRight(token, ".,")
	if token == "" {
		return decimal.NullDecimal{}
	}

	normalized, ok := normalizeSeparators(token)
	if !ok {
		return decimal.NullDecimal{}
	}

	d, err := decimal.NewFromString(normalized)
	if err != nil || !d.IsPositive() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// normalizeSeparators rewrites a digit token to use '.' as the only decimal
// separator and no thousands separators.
func normalizeSeparators(token string) (string, bool) {
	dots := strings.Count(token, ".")
	commas := strings.Count(token, ",")

	switch {
	case dots == 0 && commas == 0:
		return token, true

	case dots > 0 && commas > 0:
		// The rightmost separator is the decimal one and must be unique
		lastDot := strings.LastIndex(token, ".")
		lastComma := strings.LastIndex(token, ",")
		if lastDot > lastComma {
			if dots > 1 {
				return "", false
			}
			return strings.ReplaceAll(token, ",", ""), true
		}
		if commas > 1 {
			return "", false
		}
		return strings.Replace(strings.ReplaceAll(token, ".", ""), ",", ".", 1), true

	case commas == 1:
		decimals := len(token) - strings.Index(token, ",") - 1
		switch {
		case decimals <= 2:
			return strings.Replace(token, ",", ".", 1), true
		case decimals == 3:
			return strings.Replace(token, ",", "", 1), true
		default:
			return "", false
		}

	case dots == 1:
		// A lone separator before exactly three digits groups thousands
		if len(token)-strings.Index(token, ".")-1 == 3 {
			return strings.Replace(token, ".", "", 1), true
		}
		return token, true

	case commas > 1:
		return strings.ReplaceAll(token, ",", ""), true

	case dots > 1:
		return strings.ReplaceAll(token, ".", ""), true
	}
	return token, true
}

// ExtractPriceFromText finds a currency-marked price in free text such as a
// search snippet. Values outside a plausible retail range are ignored.
func ExtractPriceFromText(text string) decimal.NullDecimal {
	if strings.TrimSpace(text) == "" {
		return decimal.NullDecimal{}
	}

	for _, pattern := range textPricePatterns {
		match := pattern.FindStringSubmatch(text)
		if len(match) < 2 {
			continue
		}
		price := ParsePrice(match[1])
		if !price.Valid {
			continue
		}
		if price.Decimal.LessThan(minTextPrice) || price.Decimal.GreaterThan(maxTextPrice) {
			continue
		}
		return price
	}

	return decimal.NullDecimal{}
}
