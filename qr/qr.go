// Package qr renders payment descriptors as scannable PNG images.
package qr

import (
	"github.com/skip2/go-qrcode"

	"github.com/TrippyLeaf/solana-pay/types"
)

// DefaultSize is the edge length in pixels used when size is not positive.
const DefaultSize = 512

// Encode renders content as a PNG QR code size pixels wide.
func Encode(content string, size int) ([]byte, error) {
	if content == "" {
		return nil, types.Errorf(types.ErrCodeValidation, "qr content is empty")
	}
	if size <= 0 {
		size = DefaultSize
	}
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeValidation, err, "failed to render qr code")
	}
	return png, nil
}

// WriteFile renders content to a PNG file at path.
func WriteFile(content string, size int, path string) error {
	if size <= 0 {
		size = DefaultSize
	}
	if err := qrcode.WriteFile(content, qrcode.Medium, size, path); err != nil {
		return types.WrapError(types.ErrCodeValidation, err, "failed to write qr code")
	}
	return nil
}
