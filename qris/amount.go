package qris

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var idPrinter = message.NewPrinter(language.Indonesian)

// FormatRupiah renders 100007 as "Rp 100.007".
func FormatRupiah(amount int64) string {
	return "Rp " + idPrinter.Sprintf("%d", amount)
}
