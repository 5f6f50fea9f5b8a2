package token

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateOrderNumber_Format(t *testing.T) {
	now := time.Date(2024, 4, 25, 16, 0, 0, 0, time.UTC)
	number := generateOrderNumberAt(now)

	parts := strings.Split(number, "-")
	require.Len(t, parts, 3)
	assert.Equal(t, "ORD", parts[0])
	assert.Equal(t, "1714060800000", parts[1])
	assert.Len(t, parts[2], 9)
	assert.Equal(t, number, strings.ToUpper(number))
}

func TestGenerateOrderNumber_Distinct(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		n := GenerateOrderNumber()
		assert.False(t, seen[n], "duplicate order number %s", n)
		seen[n] = true
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	payload := Encode("ORD-1714060800000-K3F9A2B7C")

	orderNumber, err := Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, "ORD-1714060800000-K3F9A2B7C", orderNumber)
}

func TestDecode_Malformed(t *testing.T) {
	cases := []string{
		"",
		"not json",
		"{}",
		`{"orderNumber":""}`,
		`{"issuedAt":123}`,
		`[1,2,3]`,
	}
	for _, raw := range cases {
		_, err := Decode(raw)
		assert.Error(t, err, "payload %q", raw)
	}
}
