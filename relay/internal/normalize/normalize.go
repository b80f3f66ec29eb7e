// Package normalize canonicalizes raw matching values before they are hashed.
// Every function reports ok=false for empty input instead of producing an
// empty value.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/language"
)

// DefaultCountry is used when a country value cannot be mapped to a code.
const DefaultCountry = "br"

// City lowercases, trims and removes all internal spaces.
func City(v string) (string, bool) {
	s := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(v)), " ", "")
	return s, s != ""
}

// State lowercases and trims.
func State(v string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(v))
	return s, s != ""
}

// Country returns a lowercase ISO 3166-1 alpha-2 code. Values of up to two
// characters are kept as given. Longer values are resolved as alpha-3 or
// numeric codes, then as a known country name, before falling back.
// An empty fallback means DefaultCountry.
func Country(v, fallback string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(v))
	if s == "" {
		return "", false
	}
	if len(s) <= 2 {
		return s, true
	}

	if code, ok := regionCode(s); ok {
		return code, true
	}
	if code, ok := countryNames[s]; ok {
		return code, true
	}

	if fallback = strings.ToLower(strings.TrimSpace(fallback)); fallback == "" {
		fallback = DefaultCountry
	}
	return fallback, true
}

func regionCode(s string) (string, bool) {
	if len(s) != 3 {
		return "", false
	}
	region, err := language.ParseRegion(strings.ToUpper(s))
	if err != nil || !region.IsCountry() {
		return "", false
	}
	return strings.ToLower(region.String()), true
}

// countryNames covers the names the upstream platform is known to send.
var countryNames = map[string]string{
	"brasil":         "br",
	"brazil":         "br",
	"argentina":      "ar",
	"chile":          "cl",
	"colombia":       "co",
	"colômbia":       "co",
	"mexico":         "mx",
	"méxico":         "mx",
	"paraguai":       "py",
	"paraguay":       "py",
	"peru":           "pe",
	"uruguai":        "uy",
	"uruguay":        "uy",
	"portugal":       "pt",
	"espanha":        "es",
	"spain":          "es",
	"españa":         "es",
	"estados unidos": "us",
	"united states":  "us",
	"canada":         "ca",
	"canadá":         "ca",
	"reino unido":    "gb",
	"united kingdom": "gb",
	"alemanha":       "de",
	"germany":        "de",
	"frança":         "fr",
	"france":         "fr",
	"itália":         "it",
	"italia":         "it",
	"italy":          "it",
}

// DigitsOnly keeps decimal digits.
func DigitsOnly(v string) (string, bool) {
	var b strings.Builder
	b.Grow(len(v))
	for _, r := range v {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	s := b.String()
	return s, s != ""
}

// DateToYYYYMMDD reorders DD/MM/YYYY into YYYYMMDD. Anything else has its
// dashes removed and is used as is.
func DateToYYYYMMDD(v string) (string, bool) {
	s := strings.TrimSpace(v)
	if s == "" {
		return "", false
	}

	if parts := strings.Split(s, "/"); len(parts) == 3 {
		out := parts[2] + parts[1] + parts[0]
		return out, out != ""
	}

	out := strings.ReplaceAll(s, "-", "")
	return out, out != ""
}

// Zip removes dashes and whitespace.
func Zip(v string) (string, bool) {
	s := strings.Map(func(r rune) rune {
		if r == '-' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, v)
	return s, s != ""
}
