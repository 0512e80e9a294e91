package qris

import (
	"errors"
	"fmt"
	"strconv"
)

var ErrMalformedPayload = errors.New("malformed tlv payload")

// Field is one top-level tag-length-value entry. Nested templates (tags 26-51,
// 62) are left as raw values.
type Field struct {
	Tag   string
	Value string
}

// ParseTLV walks the top level of a payload. Lengths count characters.
func ParseTLV(payload string) ([]Field, error) {
	var fields []Field
	i := 0
	for i < len(payload) {
		if i+4 > len(payload) {
			return nil, fmt.Errorf("%w: truncated header at %d", ErrMalformedPayload, i)
		}
		tag := payload[i : i+2]
		n, err := strconv.Atoi(payload[i+2 : i+4])
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: bad length for tag %s at %d", ErrMalformedPayload, tag, i)
		}
		start := i + 4
		end := start + n
		if end > len(payload) {
			return nil, fmt.Errorf("%w: tag %s overruns payload", ErrMalformedPayload, tag)
		}
		fields = append(fields, Field{Tag: tag, Value: payload[start:end]})
		i = end
	}
	return fields, nil
}
