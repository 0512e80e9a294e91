package qris

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	TagAmount   = "54"
	TagChecksum = "63"

	// checksumHeader is tag 63 with its fixed value length.
	checksumHeader = TagChecksum + "04"
	checksumLength = 4
)

// EncodeDynamicAmount injects a transaction amount (tag 54) in front of the
// checksum field of a static payload and recomputes the checksum.
//
// A payload without a checksum header is returned unchanged so checkout can
// still hand out something scannable.
func EncodeDynamicAmount(raw string, amount int64) string {
	if len(raw) < checksumLength {
		return raw
	}
	amountStr := strconv.FormatInt(amount, 10)
	tag54 := TagAmount + fmt.Sprintf("%02d", len(amountStr)) + amountStr

	clean := raw[:len(raw)-checksumLength]
	splitIndex := strings.LastIndex(clean, checksumHeader)
	if splitIndex == -1 {
		return raw
	}

	var b strings.Builder
	b.Grow(splitIndex + len(tag54) + len(checksumHeader) + checksumLength)
	b.WriteString(clean[:splitIndex])
	b.WriteString(tag54)
	b.WriteString(checksumHeader)
	body := b.String()
	return body + CRC16(body)
}

// VerifyChecksum reports whether the trailing tag 63 value matches the
// checksum of everything before it.
func VerifyChecksum(payload string) bool {
	if len(payload) < len(checksumHeader)+checksumLength {
		return false
	}
	body := payload[:len(payload)-checksumLength]
	if !strings.HasSuffix(body, checksumHeader) {
		return false
	}
	return strings.EqualFold(CRC16(body), payload[len(payload)-checksumLength:])
}

// ExtractAmountField returns the value of the top-level tag 54 field.
func ExtractAmountField(payload string) (string, bool) {
	fields, err := ParseTLV(payload)
	if err != nil {
		return "", false
	}
	for _, f := range fields {
		if f.Tag == TagAmount {
			return f.Value, true
		}
	}
	return "", false
}
