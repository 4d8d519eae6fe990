// Package qr locates and decodes a single QR code in a raster image.
package qr

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"strings"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	_ "golang.org/x/image/webp" // register WebP decoder
)

// vector and icon formats have no registered raster decoder
var undecodable = map[string]struct{}{
	"image/svg+xml": {},
	"image/x-icon":  {},
}

// Decode returns the text of the first QR code found in the base64-encoded
// image. Undecodable images and images without a code both yield ok=false.
// Inverted-polarity codes are not attempted.
func Decode(encodedPayload, mimeHint string) (text string, ok bool) {
	if encodedPayload == "" {
		return "", false
	}
	if _, skip := undecodable[strings.ToLower(mimeHint)]; skip {
		return "", false
	}

	defer func() {
		if r := recover(); r != nil {
			text, ok = "", false
		}
	}()

	raw, err := base64.StdEncoding.DecodeString(encodedPayload)
	if err != nil {
		return "", false
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", false
	}
	return DecodeImage(img)
}

// DecodeImage runs the locate-and-decode pass on an already decoded image.
func DecodeImage(img image.Image) (string, bool) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", false
	}
	res, err := qrcode.NewQRCodeReader().Decode(bmp, nil)
	if err != nil || res == nil {
		return "", false
	}
	text := res.GetText()
	if text == "" {
		return "", false
	}
	return text, true
}
