package events

import (
	"strings"

	"golang.org/x/text/language"

	"blogstats/internal/pkg/geoip"
	ua "blogstats/internal/pkg/user_agent"
)

// ClientHeaders holds the request values the classifier reads.
type ClientHeaders struct {
	UserAgent      string
	CDNCountry     string // CF-IPCountry
	Country        string // X-Country
	AcceptLanguage string
	IPAddress      string
}

// ClassifyClient derives device, browser, OS and a coarse country for a request.
// Missing or unrecognized inputs fall back to desktop, Unknown and defaultCountry.
func ClassifyClient(headers ClientHeaders, defaultCountry string) ClientInfo {
	parsed := ua.ParseUserAgent(headers.UserAgent)

	return ClientInfo{
		DeviceType: getDeviceTypeFromParsedUA(parsed),
		Browser:    parsed.Browser,
		OS:         parsed.OS,
		Country:    ResolveCountry(headers, defaultCountry),
	}
}

func getDeviceTypeFromParsedUA(parsed ua.UserAgent) string {
	switch parsed.Device {
	case ua.DeviceTablet:
		return DeviceTablet
	case ua.DeviceMobile:
		return DeviceMobile
	default:
		return DeviceDesktop
	}
}

type countrySource func(ClientHeaders) (string, bool)

// countrySources are tried in order; the first one that yields a code wins.
var countrySources = []countrySource{
	func(h ClientHeaders) (string, bool) { return countryCode(h.CDNCountry) },
	func(h ClientHeaders) (string, bool) { return countryCode(h.Country) },
	func(h ClientHeaders) (string, bool) { return countryFromAcceptLanguage(h.AcceptLanguage) },
	func(h ClientHeaders) (string, bool) { return geoip.LookupCountry(h.IPAddress) },
}

// ResolveCountry returns an upper-case ISO 3166 alpha-2 code or defaultCountry.
func ResolveCountry(headers ClientHeaders, defaultCountry string) string {
	for _, source := range countrySources {
		if code, ok := source(headers); ok {
			return code
		}
	}
	if defaultCountry == "" {
		return UnknownCountry
	}
	return defaultCountry
}

// countryCode accepts a two-letter code. CDN sentinels for unknown or Tor
// traffic are rejected.
func countryCode(value string) (string, bool) {
	code := strings.ToUpper(strings.TrimSpace(value))
	switch code {
	case "", "XX", "T1", "UNKNOWN":
		return "", false
	}
	if len(code) != 2 || code[0] < 'A' || code[0] > 'Z' || code[1] < 'A' || code[1] > 'Z' {
		return "", false
	}
	return code, true
}

// countryFromAcceptLanguage uses the first language tag that names a country
// explicitly, such as "en-GB". Bare languages are not mapped to a country.
func countryFromAcceptLanguage(header string) (string, bool) {
	if strings.TrimSpace(header) == "" {
		return "", false
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil {
		return "", false
	}
	for _, tag := range tags {
		region, confidence := tag.Region()
		if confidence != language.Exact || !region.IsCountry() {
			continue
		}
		if code, ok := countryCode(region.String()); ok {
			return code, true
		}
	}
	return "", false
}
