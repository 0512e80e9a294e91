package notification

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Event is a relayed push notification. Relays send either the split
// title/text/big_text fields or a single message field.
type Event struct {
	PackageName string `json:"package_name"`
	Title       string `json:"title"`
	Text        string `json:"text"`
	BigText     string `json:"big_text"`
	Message     string `json:"message"`
}

// FullText joins every text field so the amount can be found wherever the
// app put it.
func (e Event) FullText() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{e.Title, e.Text, e.BigText, e.Message} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Fingerprint identifies the content of the event for duplicate suppression.
func (e Event) Fingerprint() string {
	sum := sha256.Sum256([]byte(strings.ToLower(e.PackageName) + "|" + e.FullText()))
	return hex.EncodeToString(sum[:])
}

// Preview truncates text for operator messages.
func Preview(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}
