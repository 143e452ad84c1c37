package model

import (
	"strconv"
	"strings"
)

// Currency is the currency of every amount in the system.
const Currency = "SGD"

// FormatSGD formats an amount with thousands separators: "SGD 1,234.50".
func FormatSGD(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := strconv.FormatFloat(v, 'f', 2, 64)
	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := Currency + " " + b.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}
