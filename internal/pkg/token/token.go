package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // no 0/O/1/I

// NewCouponCode returns a short human-presentable identifier, e.g. "CP-7KQ2M9XF".
// Uniqueness is enforced by the storage layer; the keyspace (32^8) keeps
// collisions rare enough that insert-retry never happens in practice.
func NewCouponCode() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate coupon code: %w", err)
	}
	out := make([]byte, 8)
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return "CP-" + string(out), nil
}

// NewQRPayload returns the opaque token embedded in the coupon QR image.
// Not parsed anywhere; the scanner posts it back verbatim.
func NewQRPayload() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate qr payload: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
