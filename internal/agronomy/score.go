package agronomy

import (
	"math"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var currencyPrinter = message.NewPrinter(language.English)

// ClampScore rounds v half away from zero and clamps it to [0,100].
// NaN maps to 0.
func ClampScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	r := math.Round(v)
	switch {
	case r < 0:
		return 0
	case r > 100:
		return 100
	default:
		return int(r)
	}
}

// ScoreFromProbability converts a 0..1 model score to a clamped percentage.
func ScoreFromProbability(p float64) int {
	return ClampScore(p * 100)
}

// FormatYield renders a tons-per-hectare point estimate, e.g. "55.5 tons/ha".
func FormatYield(tonsPerHectare float64) string {
	return strconv.FormatFloat(tonsPerHectare, 'f', -1, 64) + " tons/ha"
}

// FormatProfit synthesizes a per-hectare profit figure from a yield estimate
// as round(yield*1000) dollars with thousands separators, e.g. "$55,500/ha".
func FormatProfit(tonsPerHectare float64) string {
	dollars := int64(math.Round(tonsPerHectare * 1000))
	return currencyPrinter.Sprintf("$%d/ha", dollars)
}
