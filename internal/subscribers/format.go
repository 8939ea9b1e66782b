package subscribers

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Compact number suffixes for English, smallest first.
var compactUnits = []struct {
	div    float64
	suffix string
}{
	{1e3, "K"},
	{1e6, "M"},
	{1e9, "B"},
	{1e12, "T"},
}

const significantDigits = 3

// FormatCompact renders n in US English compact notation with at most three
// significant digits: 81600 is "81.6K", 1234567 is "1.23M".
func FormatCompact(n int) string {
	return formatCompact(language.AmericanEnglish, n)
}

func formatCompact(tag language.Tag, n int) string {
	v := math.Abs(float64(n))

	unit := -1
	for i, u := range compactUnits {
		if v >= u.div {
			unit = i
		}
	}
	scaled, frac := scale(v, unit)
	if scaled >= 1000 && unit+1 < len(compactUnits) {
		// rounding carried into the next unit: 999999 is "1M", not "1000K"
		unit++
		scaled, frac = scale(v, unit)
	}
	if n < 0 {
		scaled = -scaled
	}

	suffix := ""
	if unit >= 0 {
		suffix = compactUnits[unit].suffix
	}
	p := message.NewPrinter(tag)
	return p.Sprint(number.Decimal(scaled, number.MaxFractionDigits(frac), number.NoSeparator())) + suffix
}

func scale(v float64, unit int) (float64, int) {
	if unit >= 0 {
		v /= compactUnits[unit].div
	}
	return roundSignificant(v)
}

// roundSignificant rounds v half away from zero to significantDigits and
// returns how many fraction digits remain.
func roundSignificant(v float64) (float64, int) {
	if v == 0 {
		return 0, 0
	}
	frac := significantDigits - (int(math.Floor(math.Log10(v))) + 1)
	if frac <= 0 {
		return math.Round(v), 0
	}
	pow := math.Pow(10, float64(frac))
	return math.Round(v*pow) / pow, frac
}
