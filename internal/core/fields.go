package core

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// PlaceholderEmail is used when neither an address nor a name is usable.
const PlaceholderEmail = "unknown@example.com"

// UnknownCountry is the country recorded when none was given.
const UnknownCountry = "Unknown"

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

var countrySynonyms = map[string]string{
	"USA":                      "United States",
	"U.S.A":                    "United States",
	"U.S.A.":                   "United States",
	"U.S.":                     "United States",
	"U.S":                      "United States",
	"US":                       "United States",
	"America":                  "United States",
	"United States of America": "United States",
	"UK":                       "United Kingdom",
	"U.K.":                     "United Kingdom",
	"UAE":                      "United Arab Emirates",
}

// NormalizeEmail lowercases a syntactically valid address. Otherwise it
// derives first.last@example.com from the outer tokens of fullName, which
// needs at least two usable tokens.
func NormalizeEmail(email, fullName any) string {
	if s, ok := scalarString(email); ok {
		s = strings.TrimSpace(s)
		if emailPattern.MatchString(s) {
			return strings.ToLower(s)
		}
	}

	tokens := strings.Fields(trimmedText(fullName))
	if len(tokens) < 2 {
		return PlaceholderEmail
	}
	first := foldNamePart(tokens[0])
	last := foldNamePart(tokens[len(tokens)-1])
	if first == "" || last == "" {
		return PlaceholderEmail
	}
	return first + "." + last + "@example.com"
}

// foldNamePart lowercases s, strips accents and drops anything that is not
// an ASCII letter or digit.
func foldNamePart(s string) string {
	// Transformers carry state, so each call builds its own chain.
	stripAccents := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripAccents, strings.ToLower(s))
	if err != nil {
		folded = strings.ToLower(s)
	}
	return keepRunes(folded, func(r rune) bool {
		return (r >= 'a' && r <= 'z') || isASCIIDigit(r)
	})
}

// NormalizeCountry maps common abbreviations to a full country name.
func NormalizeCountry(v any) string {
	s, ok := scalarString(v)
	if !ok {
		return UnknownCountry
	}
	s = strings.TrimSpace(s)
	if full, ok := countrySynonyms[s]; ok {
		return full
	}
	return s
}

// NormalizeDate converts v to a YYYYMMDD integer. Any time component is
// ignored. The second return is false when v is absent or unparseable.
func NormalizeDate(v any) (int64, bool) {
	s, ok := scalarString(v)
	if !ok {
		return 0, false
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, false
	}
	s = fields[0]

	var layout string
	switch {
	case strings.Contains(s, "/"):
		layout = "2006/1/2"
	case strings.Contains(s, "-"):
		layout = "2006-1-2"
	default:
		// Already YYYYMMDD; still has to be a real calendar date.
		if len(s) != 8 {
			return 0, false
		}
		layout = "20060102"
	}

	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, false
	}
	return int64(t.Year()*10000 + int(t.Month())*100 + t.Day()), true
}

// NormalizeAmount parses a monetary amount, dropping currency symbols and
// thousands separators. It never fails: unusable input is 0.
func NormalizeAmount(v any) float64 {
	s, ok := scalarString(v)
	if !ok {
		return 0
	}
	cleaned := keepRunes(s, func(r rune) bool { return r == '.' || isASCIIDigit(r) })
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return f
}
