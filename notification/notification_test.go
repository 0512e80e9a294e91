package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractAmount(t *testing.T) {
	cases := []struct {
		in       string
		expected int64
		ok       bool
	}{
		{"Dana masuk Rp 150.000,00 dari BUDI", 150000, true},
		{"Transfer Rp 1,234,567 berhasil", 1234567, true},
		{"Rp1.234.567", 1234567, true},
		{"Pembayaran QRIS Rp 100.007 di WAGO telah diterima.", 100007, true},
		{"Anda menerima Rp. 50.123", 50123, true},
		{"RP 10.005.", 10005, true},
		{"Rp 25.000.00", 25000, true},
		{"first Rp 1.000 then Rp 2.000", 1000, true},
		{"no currency here", 0, false},
		{"Rp ", 0, false},
		{"Corp 12345 ltd", 0, false},
		{"Rp 0", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := ExtractAmount(tc.in)
		assert.Equal(t, tc.ok, ok, "ExtractAmount(%q) ok", tc.in)
		assert.Equal(t, tc.expected, got, "ExtractAmount(%q)", tc.in)
	}
}

func TestClassifySource(t *testing.T) {
	cases := []struct {
		pkg, text, expected string
	}{
		{"com.orderquota.app", "", "OrderQuota QRIS"},
		{"com.gojek.gobiz", "", "GoPay Merchant (GoBiz)"},
		{"com.gojek.app", "Pembayaran QRIS diterima", "GoPay QRIS"},
		{"com.gojek.app", "Kamu terima saldo", "GoPay Personal"},
		{"id.dana", "", "DANA"},
		{"ovo.id", "", "OVO"},
		{"com.bca", "", "BCA Mobile"},
		{"id.bmri.livin", "", "Livin Mandiri"},
		{"id.co.bri.brimo", "", "BRImo"},
		{"id.co.seabank", "", "SeaBank"},
		{"com.example.bank", "", "com.example.bank"},
		{"", "", "Unknown App"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expected, ClassifySource(tc.pkg, tc.text).Label, "pkg %q", tc.pkg)
	}
}

func TestEvent_FullTextAndFingerprint(t *testing.T) {
	e := Event{PackageName: "id.dana", Title: "Dana masuk", Text: " Rp 10.005 ", BigText: ""}
	assert.Equal(t, "Dana masuk Rp 10.005", e.FullText())

	same := Event{PackageName: "ID.DANA", Title: "Dana masuk", Text: "Rp 10.005"}
	assert.Equal(t, e.Fingerprint(), same.Fingerprint())

	other := Event{PackageName: "id.dana", Title: "Dana masuk", Text: "Rp 10.006"}
	assert.NotEqual(t, e.Fingerprint(), other.Fingerprint())
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", Preview("short", 50))
	assert.Equal(t, "abc...", Preview("abcdef", 3))
}
