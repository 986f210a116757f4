package usecase

import (
	"net/url"
	"strings"
)

// knownStores maps retailer domains to display names
var knownStores = map[string]string{
	"amazon.com.mx":             "Amazon Mexico",
	"walmart.com.mx":            "Walmart Mexico",
	"soriana.com":               "Soriana",
	"chedraui.com.mx":           "Chedraui",
	"heb.com.mx":                "HEB",
	"fahorro.com":               "Farmacias del Ahorro",
	"farmaciasdelahorro.com.mx": "Farmacias del Ahorro",
	"farmaciasguadalajara.com":  "Farmacias Guadalajara",
	"benavides.com.mx":          "Farmacias Benavides",
	"lacomer.com.mx":            "La Comer",
	"sams.com.mx":               "Sam's Club",
	"costco.com.mx":             "Costco",
	"superama.com.mx":           "Superama",
	"bodegaaurrera.com.mx":      "Bodega Aurrera",
	"liverpool.com.mx":          "Liverpool",
	"coppel.com":                "Coppel",
	"mercadolibre.com.mx":       "Mercado Libre",
	"sanborns.com.mx":           "Sanborns",
	"farmaciasanpablo.com.mx":   "Farmacias San Pablo",
}

// parseLink returns the link when it is an absolute http(s) URL
func parseLink(raw string) (*url.URL, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	return u, true
}

// ResolveStore names the retailer behind a link. Unknown domains fall back to
// the bare host; an unusable link yields "".
func ResolveStore(link string) string {
	u, ok := parseLink(link)
	if !ok {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")

	if name, ok := knownStores[host]; ok {
		return name
	}
	// Subdomains such as super.walmart.com.mx
	for domain, name := range knownStores {
		if strings.HasSuffix(host, "."+domain) {
			return name
		}
	}
	return host
}
