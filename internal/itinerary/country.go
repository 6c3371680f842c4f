package itinerary

import (
	"regexp"
	"strings"
)

// countryAliases maps common country names and non-standard codes to
// ISO 3166-1 alpha-2. Keys are upper-case.
var countryAliases = map[string]string{
	"UK":             "GB",
	"UNITED KINGDOM": "GB",
	"BRITAIN":        "GB",
	"ENGLAND":        "GB",
	"SCOTLAND":       "GB",
	"WALES":          "GB",
	"USA":            "US",
	"UNITED STATES":  "US",
	"AMERICA":        "US",
	"DEUTSCHLAND":    "DE",
	"GERMANY":        "DE",
	"FRANCE":         "FR",
	"ESPANA":         "ES",
	"SPAIN":          "ES",
	"ITALIA":         "IT",
	"ITALY":          "IT",
	"NEDERLAND":      "NL",
	"NETHERLANDS":    "NL",
	"HOLLAND":        "NL",
	"BELGIUM":        "BE",
	"SWITZERLAND":    "CH",
	"AUSTRIA":        "AT",
	"DENMARK":        "DK",
	"SWEDEN":         "SE",
	"NORWAY":         "NO",
	"FINLAND":        "FI",
	"ICELAND":        "IS",
	"IRELAND":        "IE",
	"POLAND":         "PL",
	"CZECH REPUBLIC": "CZ",
	"CZECHIA":        "CZ",
	"HUNGARY":        "HU",
	"SLOVAKIA":       "SK",
	"SLOVENIA":       "SI",
	"CROATIA":        "HR",
	"SERBIA":         "RS",
	"BULGARIA":       "BG",
	"ROMANIA":        "RO",
	"GREECE":         "GR",
	"TURKEY":         "TR",
	"RUSSIA":         "RU",
	"UKRAINE":        "UA",
	"PORTUGAL":       "PT",
	"LUXEMBOURG":     "LU",
	"MALTA":          "MT",
	"CYPRUS":         "CY",
	"JAPAN":          "JP",
	"SOUTH KOREA":    "KR",
	"KOREA":          "KR",
	"CHINA":          "CN",
	"TAIWAN":         "TW",
	"HONG KONG":      "HK",
	"MACAU":          "MO",
	"INDIA":          "IN",
	"SRI LANKA":      "LK",
	"NEPAL":          "NP",
	"THAILAND":       "TH",
	"MALAYSIA":       "MY",
	"SINGAPORE":      "SG",
	"INDONESIA":      "ID",
	"PHILIPPINES":    "PH",
	"VIETNAM":        "VN",
	"CAMBODIA":       "KH",
	"LAOS":           "LA",
	"MYANMAR":        "MM",
	"BURMA":          "MM",
	"BRUNEI":         "BN",
	"ISRAEL":         "IL",
	"SAUDI ARABIA":   "SA",
	"UAE":            "AE",
	"UNITED ARAB EMIRATES": "AE",
	"QATAR":        "QA",
	"EGYPT":        "EG",
	"MOROCCO":      "MA",
	"KENYA":        "KE",
	"SOUTH AFRICA": "ZA",
	"CANADA":       "CA",
	"MEXICO":       "MX",
	"BRAZIL":       "BR",
	"ARGENTINA":    "AR",
	"CHILE":        "CL",
	"COLOMBIA":     "CO",
	"PERU":         "PE",
	"AUSTRALIA":    "AU",
	"NEW ZEALAND":  "NZ",
	"FIJI":         "FJ",
}

// countryVariants maps ISO alpha-2 codes to the colloquial names a
// booking email is likely to use. Consumed by the keyword filter when
// injecting gap location terms.
var countryVariants = map[string][]string{
	"GB": {"united kingdom", "uk", "britain", "england", "scotland", "wales"},
	"US": {"united states", "usa", "america"},
	"TH": {"thailand"},
	"MY": {"malaysia"},
	"SG": {"singapore"},
	"ID": {"indonesia"},
	"PH": {"philippines"},
	"VN": {"vietnam"},
	"KH": {"cambodia"},
	"LA": {"laos"},
	"MM": {"myanmar", "burma"},
	"FR": {"france"},
	"DE": {"germany"},
	"IT": {"italy"},
	"ES": {"spain"},
	"NL": {"netherlands", "holland"},
	"BE": {"belgium"},
	"CH": {"switzerland"},
	"AT": {"austria"},
	"DK": {"denmark"},
	"SE": {"sweden"},
	"NO": {"norway"},
	"FI": {"finland"},
	"IE": {"ireland"},
	"PT": {"portugal"},
	"GR": {"greece"},
	"TR": {"turkey"},
	"PL": {"poland"},
	"CZ": {"czech republic", "czechia"},
	"HU": {"hungary"},
	"JP": {"japan"},
	"KR": {"south korea", "korea"},
	"CN": {"china"},
	"TW": {"taiwan"},
	"HK": {"hong kong"},
	"IN": {"india"},
	"LK": {"sri lanka"},
	"NP": {"nepal"},
	"AE": {"united arab emirates", "uae"},
	"QA": {"qatar"},
	"EG": {"egypt"},
	"MA": {"morocco"},
	"ZA": {"south africa"},
	"CA": {"canada"},
	"MX": {"mexico"},
	"BR": {"brazil"},
	"AR": {"argentina"},
	"AU": {"australia"},
	"NZ": {"new zealand"},
}

var isoCodeRE = regexp.MustCompile(`^[A-Z]{2}$`)

// NormalizeCountry maps a raw country string to ISO 3166-1 alpha-2.
// The second return value is false when the input could not be
// recognized; the raw value is passed through so data-quality problems
// stay visible downstream. Normalization is idempotent.
func NormalizeCountry(raw string) (string, bool) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return "", false
	}
	if mapped, ok := countryAliases[code]; ok {
		return mapped, true
	}
	if isoCodeRE.MatchString(code) {
		return code, true
	}
	return raw, false
}

// CountryVariants returns colloquial names for an ISO code, or nil when
// none are known.
func CountryVariants(code string) []string {
	return countryVariants[strings.ToUpper(strings.TrimSpace(code))]
}

var (
	parenRE = regexp.MustCompile(`\s*\([^)]*\)`)
)

// ExtractCityName strips airport codes and embedded country info from a
// city field, e.g. "Kuala Lumpur (KUL) - Malaysia" -> "Kuala Lumpur".
func ExtractCityName(raw string) string {
	city := parenRE.ReplaceAllString(raw, "")
	if idx := strings.Index(city, " - "); idx >= 0 {
		city = city[:idx]
	}
	if idx := strings.Index(city, ","); idx >= 0 {
		city = city[:idx]
	}
	return strings.TrimSpace(city)
}

// SameCity compares two raw city fields after airport-code stripping,
// case-insensitively.
func SameCity(a, b string) bool {
	return strings.EqualFold(ExtractCityName(a), ExtractCityName(b))
}
