// Package query interprets raw user query text before vectorization.
package query

import (
	"regexp"
	"strconv"
	"strings"
)

// priceLimitPattern matches the one supported price phrasing: "до N руб",
// with optional kopecks after a dot or comma. The currency word is captured
// greedily and validated against rubleForms afterwards, because RE2 word
// boundaries are ASCII-only and cannot delimit Cyrillic words. Matching is
// case-insensitive.
var priceLimitPattern = regexp.MustCompile(`(?i)(^|\s)до\s*(\d+(?:[.,]\d+)?)\s*(руб\p{L}*)\.?`)

// rubleForms lists the declensions accepted as a currency marker. Other words
// that merely start with "руб" (рубашка, рубин) are product terms, not prices.
var rubleForms = map[string]struct{}{
	"руб":     {},
	"рубль":   {},
	"рубля":   {},
	"рублей":  {},
	"рублям":  {},
	"рублями": {},
	"рублях":  {},
}

// ExtractPriceLimit scans text for an "up to N rubles" phrase. When found, it
// returns the parsed limit and the residual query with the phrase removed and
// whitespace normalized; otherwise it returns the text unchanged.
//
// Only the first occurrence is honored. Any further price phrases stay in the
// residual text and simply weaken the similarity signal.
func ExtractPriceLimit(text string) (limit float64, ok bool, residual string) {
	for _, m := range priceLimitPattern.FindAllStringSubmatchIndex(text, -1) {
		if _, isRuble := rubleForms[strings.ToLower(text[m[6]:m[7]])]; !isRuble {
			continue
		}
		number := strings.ReplaceAll(text[m[4]:m[5]], ",", ".")
		limit, err := strconv.ParseFloat(number, 64)
		if err != nil {
			return 0, false, text
		}
		residual = strings.Join(strings.Fields(text[:m[0]]+" "+text[m[1]:]), " ")
		return limit, true, residual
	}
	return 0, false, text
}
