package qr

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func TestRender(t *testing.T) {
	png, err := Render(`{"orderNumber":"ORD-1714060800000-K3F9A2B7C","issuedAt":1714060800}`)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngSignature), "expected a PNG image")
}

func TestRender_EmptyPayload(t *testing.T) {
	_, err := Render("")
	assert.Error(t, err)
}
