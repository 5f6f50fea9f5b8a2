// Package qr renders redemption token payloads as scannable PNG images.
// The image is purely presentational; the token text is the source of truth.
package qr

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const defaultSize = 256

func Render(payload string) ([]byte, error) {
	if payload == "" {
		return nil, fmt.Errorf("empty payload")
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, defaultSize)
	if err != nil {
		return nil, fmt.Errorf("failed to render qr code: %w", err)
	}
	return png, nil
}
