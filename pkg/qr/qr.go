// Package qr renders reservation passes as PNG QR codes.
package qr

import (
	"errors"

	qrcode "github.com/skip2/go-qrcode"
)

const DefaultSize = 256

type Renderer struct {
	size  int
	level qrcode.RecoveryLevel
}

func NewRenderer(size int) *Renderer {
	if size <= 0 {
		size = DefaultSize
	}
	return &Renderer{size: size, level: qrcode.Medium}
}

// Render encodes text as a PNG.
func (r *Renderer) Render(text string) ([]byte, error) {
	if text == "" {
		return nil, errors.New("qr: empty content")
	}
	return qrcode.Encode(text, r.level, r.size)
}
