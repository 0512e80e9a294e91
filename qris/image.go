package qris

import (
	"encoding/base64"

	qrcode "github.com/skip2/go-qrcode"
)

const DefaultImageSize = 300

// QRCodeDataURL renders the payload as a PNG data URL for checkout responses.
func QRCodeDataURL(payload string, size int) (string, error) {
	if size <= 0 {
		size = DefaultImageSize
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
