package notification

import (
	"regexp"
	"strconv"
	"strings"
)

// amountPattern matches the rupiah marker, optional space/period noise and a
// run of digits with thousands separators, e.g. "Rp 1.234.567", "Rp. 150.000,00".
var amountPattern = regexp.MustCompile(`(?i)\brp[\s.]*(\d[\d.,]*)`)

// ExtractAmount pulls the first rupiah amount out of free-form notification
// text. A trailing ",00" / ".00" is treated as a zero fraction and dropped;
// every other separator is a thousands separator. Non-zero fractions are not
// supported.
func ExtractAmount(text string) (int64, bool) {
	m := amountPattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0, false
	}
	run := strings.TrimRight(m[1], ".,")
	if strings.HasSuffix(run, ",00") || strings.HasSuffix(run, ".00") {
		run = run[:len(run)-3]
	}

	var b strings.Builder
	b.Grow(len(run))
	for _, r := range run {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return 0, false
	}
	amount, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || amount <= 0 {
		return 0, false
	}
	return amount, true
}

// RawAmount returns the matched marker and run as it appeared in the text, for
// operator messages. Empty when nothing matched.
func RawAmount(text string) string {
	return amountPattern.FindString(text)
}
