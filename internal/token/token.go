// Package token mints order numbers and the QR payloads customers present
// at pickup. Order numbers are a uniqueness heuristic only; the database
// constraint on orders.order_number is authoritative.
package token

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const (
	orderNumberPrefix = "ORD"
	suffixLength      = 9
	base36Alphabet    = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// GenerateOrderNumber returns ORD-<unix millis>-<9 random base36 chars>,
// upper-cased, e.g. ORD-1714060800000-K3F9A2B7C.
func GenerateOrderNumber() string {
	return generateOrderNumberAt(time.Now())
}

func generateOrderNumberAt(now time.Time) string {
	suffix := make([]byte, suffixLength)
	max := big.NewInt(int64(len(base36Alphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken;
			// fall back to a time-derived digit rather than panicking.
			suffix[i] = base36Alphabet[time.Now().UnixNano()%int64(len(base36Alphabet))]
			continue
		}
		suffix[i] = base36Alphabet[n.Int64()]
	}
	return strings.ToUpper(fmt.Sprintf("%s-%d-%s", orderNumberPrefix, now.UnixMilli(), suffix))
}

// Payload is the JSON document encoded into the QR code. IssuedAt keeps two
// tokens minted in the same millisecond visually distinct.
type Payload struct {
	OrderNumber string `json:"orderNumber"`
	IssuedAt    int64  `json:"issuedAt"`
}

func Encode(orderNumber string) string {
	raw, _ := json.Marshal(Payload{
		OrderNumber: orderNumber,
		IssuedAt:    time.Now().Unix(),
	})
	return string(raw)
}

// Decode parses a scanned payload back into its order number. Anything that
// is not the JSON shape produced by Encode is rejected.
func Decode(raw string) (string, error) {
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return "", fmt.Errorf("malformed redemption code: %w", err)
	}
	if p.OrderNumber == "" {
		return "", fmt.Errorf("redemption code carries no order number")
	}
	return p.OrderNumber, nil
}
