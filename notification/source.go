package notification

import "strings"

// Source is the human-readable origin of a notification.
type Source struct {
	Label string
	Icon  string
}

type sourceRule struct {
	packages []string
	// keywords, when set, must also appear in the notification text.
	keywords []string
	source   Source
}

// Evaluated top to bottom; first match wins.
var sourceRules = []sourceRule{
	{packages: []string{"orderquota"}, source: Source{Label: "OrderQuota QRIS", Icon: "🏪"}},
	{packages: []string{"gobiz"}, source: Source{Label: "GoPay Merchant (GoBiz)", Icon: "🏪"}},
	{packages: []string{"gojek", "gopay"}, keywords: []string{"qris", "merchant"}, source: Source{Label: "GoPay QRIS", Icon: "🏪"}},
	{packages: []string{"gojek", "gopay"}, source: Source{Label: "GoPay Personal", Icon: "🟢"}},
	{packages: []string{"dana"}, source: Source{Label: "DANA", Icon: "🔵"}},
	{packages: []string{"ovo"}, source: Source{Label: "OVO", Icon: "🟣"}},
	{packages: []string{"bca"}, source: Source{Label: "BCA Mobile", Icon: "🏦"}},
	{packages: []string{"livin", "mandiri"}, source: Source{Label: "Livin Mandiri", Icon: "🏦"}},
	{packages: []string{"brimo"}, source: Source{Label: "BRImo", Icon: "🏦"}},
	{packages: []string{"seabank"}, source: Source{Label: "SeaBank", Icon: "🟧"}},
}

const unknownSourceIcon = "💵"

// ClassifySource maps an Android package name (and, for some wallets, the
// notification text) to a label. Unknown packages are labelled with the raw
// package name.
func ClassifySource(packageName, text string) Source {
	pkg := strings.ToLower(packageName)
	msg := strings.ToLower(text)
	for _, rule := range sourceRules {
		if !containsAny(pkg, rule.packages) {
			continue
		}
		if len(rule.keywords) > 0 && !containsAny(msg, rule.keywords) {
			continue
		}
		return rule.source
	}
	label := packageName
	if label == "" {
		label = "Unknown App"
	}
	return Source{Label: label, Icon: unknownSourceIcon}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
