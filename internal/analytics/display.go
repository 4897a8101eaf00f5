package analytics

import (
	"strings"
	"sync"

	"github.com/pariz/gountries"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"blogstats/internal/events"
)

var (
	countryQuery     *gountries.Query
	countryQueryOnce sync.Once
)

func countries() *gountries.Query {
	countryQueryOnce.Do(func() {
		countryQuery = gountries.New()
	})
	return countryQuery
}

// CountryName returns the common English name for an ISO alpha-2 code.
// Unrecognized codes are returned upper-cased.
func CountryName(code string) string {
	if code == "" || code == events.UnknownCountry {
		return events.UnknownCountry
	}
	country, err := countries().FindCountryByAlpha(code)
	if err != nil {
		return cases.Upper(language.AmericanEnglish).String(code)
	}
	return country.Name.Common
}

func deviceLabel(device string) string {
	if device == "" {
		return "Unknown"
	}
	return cases.Title(language.AmericanEnglish).String(strings.ToLower(device))
}
