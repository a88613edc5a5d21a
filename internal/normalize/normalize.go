// Package normalize maps raw scraped strings to canonical vocabulary.
// Every function here is pure and total: unrecognized input is preserved
// verbatim rather than discarded, and unparseable prices degrade to nil
// instead of failing.
package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/gemfetch/jewelcrawler/internal/pipeline"
)

// Product maps a RawProduct into canonical form. Fields it cannot normalize
// carry forward unchanged.
func Product(raw pipeline.RawProduct) pipeline.NormalizedProduct {
	amount, currency := Price(raw.PriceText)
	name := raw.Name
	if name == "" {
		name = "Unknown Product"
	}
	return pipeline.NormalizedProduct{
		SourceURL:     raw.SourceURL,
		Name:          name,
		Metal:         Metal(raw.Metal),
		Gemstone:      Gemstone(raw.Gemstone),
		JewelType:     JewelType(raw.JewelType),
		Color:         Color(raw.Color),
		PriceAmount:   amount,
		PriceCurrency: currency,
		Description:   raw.Description,
		Images:        raw.Images,
		Metadata:      raw.Metadata,
	}
}

var karatPattern = regexp.MustCompile(`(\d+)\s*(?:k|kt|karat)\b`)

var metalTable = []struct{ match, canonical string }{
	{"sterling silver", "sterling silver"},
	{"stainless steel", "stainless steel"},
	{"white gold", "white gold"},
	{"yellow gold", "yellow gold"},
	{"rose gold", "rose gold"},
	{"pink gold", "rose gold"},
	{"platinum", "platinum"},
	{"palladium", "palladium"},
	{"titanium", "titanium"},
	{"silver", "silver"},
	{"gold", "gold"},
}

// Metal canonicalizes karat notation and material synonyms. "18K", "18kt" and
// "18 kt" all collapse to the same token; unknown metals pass through verbatim.
func Metal(metal string) string {
	if metal == "" {
		return ""
	}
	lower := strings.ToLower(strings.TrimSpace(metal))

	if m := karatPattern.FindStringSubmatch(lower); m != nil {
		karat := m[1]
		switch {
		case strings.Contains(lower, "white"):
			return karat + "kt white gold"
		case strings.Contains(lower, "rose"), strings.Contains(lower, "pink"):
			return karat + "kt rose gold"
		case strings.Contains(lower, "yellow"):
			return karat + "kt yellow gold"
		default:
			return karat + "kt gold"
		}
	}

	for _, entry := range metalTable {
		if strings.Contains(lower, entry.match) {
			return entry.canonical
		}
	}
	return metal
}

var gemstoneTable = []struct{ match, canonical string }{
	{"cubic zirconia", "cubic zirconia"},
	{"moissanite", "moissanite"},
	{"aquamarine", "aquamarine"},
	{"tanzanite", "tanzanite"},
	{"turquoise", "turquoise"},
	{"amethyst", "amethyst"},
	{"sapphire", "sapphire"},
	{"citrine", "citrine"},
	{"diamond", "diamond"},
	{"emerald", "emerald"},
	{"peridot", "peridot"},
	{"garnet", "garnet"},
	{"topaz", "topaz"},
	{"pearl", "pearl"},
	{"ruby", "ruby"},
	{"opal", "opal"},
	{"cz", "cubic zirconia"},
}

// Gemstone canonicalizes common gemstone names; unknown values pass through.
func Gemstone(gemstone string) string {
	if gemstone == "" {
		return ""
	}
	lower := strings.ToLower(strings.TrimSpace(gemstone))
	for _, entry := range gemstoneTable {
		if strings.Contains(lower, entry.match) {
			return entry.canonical
		}
	}
	return gemstone
}

var jewelTypeTable = []struct{ match, canonical string }{
	{"necklace", "necklace"},
	{"pendant", "necklace"},
	{"bracelet", "bracelet"},
	{"earring", "earring"},
	{"anklet", "anklet"},
	{"bangle", "bracelet"},
	{"brooch", "brooch"},
	{"chain", "necklace"},
	{"watch", "watch"},
	{"stud", "earring"},
	{"hoop", "earring"},
	{"cuff", "bracelet"},
	{"band", "ring"},
	{"ring", "ring"},
	{"pin", "brooch"},
}

// JewelType canonicalizes jewelry type synonyms (band→ring, pendant→necklace).
func JewelType(jewelType string) string {
	if jewelType == "" {
		return ""
	}
	lower := strings.ToLower(strings.TrimSpace(jewelType))
	for _, entry := range jewelTypeTable {
		if strings.Contains(lower, entry.match) {
			return entry.canonical
		}
	}
	return jewelType
}

var colorTable = []struct{ match, canonical string }{
	{"yellow", "yellow"},
	{"purple", "purple"},
	{"silver", "silver"},
	{"white", "white"},
	{"black", "black"},
	{"green", "green"},
	{"rose", "rose"},
	{"pink", "rose"},
	{"blue", "blue"},
	{"gold", "gold"},
	{"red", "red"},
}

// Color canonicalizes color names; pink folds into rose.
func Color(color string) string {
	if color == "" {
		return ""
	}
	lower := strings.ToLower(strings.TrimSpace(color))
	for _, entry := range colorTable {
		if strings.Contains(lower, entry.match) {
			return entry.canonical
		}
	}
	return color
}

var currencySymbols = []struct{ symbol, code string }{
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"₹", "INR"},
	{"¥", "JPY"},
}

var currencyWords = map[string]string{
	"USD": "USD", "EUR": "EUR", "GBP": "GBP", "INR": "INR",
	"JPY": "JPY", "AUD": "AUD", "CAD": "CAD", "CHF": "CHF",
	"DOLLAR": "USD", "DOLLARS": "USD",
	"EURO": "EUR", "EUROS": "EUR",
	"POUND": "GBP", "POUNDS": "GBP",
	"RUPEE": "INR", "RUPEES": "INR",
	"YEN": "JPY",
}

var numberPattern = regexp.MustCompile(`\d+(?:[.,]\d+)*`)

// Price parses a raw price string into a decimal amount and an ISO-style
// currency code. Both degrade to zero values on unparseable input; this
// function never fails.
func Price(text string) (*float64, string) {
	if strings.TrimSpace(text) == "" {
		return nil, ""
	}

	currency := Currency(text)

	match := numberPattern.FindString(text)
	if match == "" {
		return nil, currency
	}

	cleaned := normalizeSeparators(match)
	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil, currency
	}
	return &amount, currency
}

// Currency detects a currency symbol or code embedded in text.
func Currency(text string) string {
	for _, entry := range currencySymbols {
		if strings.Contains(text, entry.symbol) {
			return entry.code
		}
	}
	upper := strings.ToUpper(text)
	for word, code := range currencyWords {
		if containsWord(upper, word) {
			return code
		}
	}
	return ""
}

// normalizeSeparators resolves thousands vs decimal separators. "1,299.50"
// and "1.299,50" both become "1299.50".
func normalizeSeparators(s string) string {
	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")

	switch {
	case hasComma && hasDot:
		// The later separator is the decimal point.
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasComma:
		idx := strings.LastIndex(s, ",")
		if strings.Count(s, ",") == 1 && len(s)-idx-1 == 2 {
			// Single comma with two trailing digits: decimal separator.
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasDot:
		idx := strings.LastIndex(s, ".")
		if strings.Count(s, ".") > 1 || len(s)-idx-1 == 3 {
			// Dots grouping thousands (1.299 or 1.299.000).
			s = strings.ReplaceAll(s, ".", "")
		}
	}
	return s
}

func containsWord(s, word string) bool {
	idx := strings.Index(s, word)
	for idx >= 0 {
		before := idx == 0 || !isAlpha(s[idx-1])
		afterIdx := idx + len(word)
		after := afterIdx >= len(s) || !isAlpha(s[afterIdx])
		if before && after {
			return true
		}
		next := strings.Index(s[idx+1:], word)
		if next < 0 {
			return false
		}
		idx += 1 + next
	}
	return false
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
