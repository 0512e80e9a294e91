package reconcile

import (
	"fmt"
	"strings"

	"github.com/mmdatafocus/qris_backend/notification"
	"github.com/mmdatafocus/qris_backend/qris"
)

const missPreviewLength = 50

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return escapeMarkdown(s)
}

func FormatReceipt(r Receipt) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ *PAYMENT RECEIVED: %s*\n", qris.FormatRupiah(r.Order.TotalPay))
	b.WriteString("-----------------------------\n")
	fmt.Fprintf(&b, "%s Source: %s\n", r.Source.Icon, orDash(r.Source.Label))
	fmt.Fprintf(&b, "📦 Product: %s\n", orDash(r.Order.ProductName))
	fmt.Fprintf(&b, "👤 Buyer: %s\n", orDash(r.Order.CustomerContact))
	fmt.Fprintf(&b, "🧾 Order ID: %s\n", orDash(r.Order.OrderId))
	b.WriteString("📝 Status: PAID")
	return b.String()
}

func FormatMiss(m Miss) string {
	var b strings.Builder
	if m.Amount > 0 {
		fmt.Fprintf(&b, "💰 *MONEY IN: %s*\n", qris.FormatRupiah(m.Amount))
	} else {
		b.WriteString("💰 *MONEY IN: amount not found*\n")
	}
	b.WriteString("-----------------------------\n")
	fmt.Fprintf(&b, "%s Source: %s\n", m.Source.Icon, orDash(m.Source.Label))
	b.WriteString("📝 Status: ❌ no matching order\n")
	b.WriteString("-----------------------------\n")
	fmt.Fprintf(&b, "_Original: %s_", escapeMarkdown(notification.Preview(m.Text, missPreviewLength)))
	return b.String()
}
