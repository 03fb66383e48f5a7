package qr

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TrippyLeaf/solana-pay/types"
)

const descriptor = "solana:mvines9iiHiQTysrwkJjGf2gb9Ex9jXJX8ns3qwf2kN?amount=1&label=Shop"

func TestEncode(t *testing.T) {
	data, err := Encode(descriptor, 256)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())
}

func TestEncodeDefaultSize(t *testing.T) {
	data, err := Encode(descriptor, 0)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, DefaultSize, img.Bounds().Dx())
}

func TestEncodeEmpty(t *testing.T) {
	_, err := Encode("", 256)
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pay.png")
	require.NoError(t, WriteFile(descriptor, 128, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
