package util

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
)

func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

// TicketLabel returns the 6-digit numeric label shown on board cards.
// Uniqueness is only probabilistic here; the store enforces it with a unique
// constraint and a bounded retry.
func TicketLabel() string {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "100000"
	}
	value := n.Int64() + 100000
	digits := make([]byte, 6)
	for i := 5; i >= 0; i-- {
		digits[i] = byte('0' + value%10)
		value /= 10
	}
	return string(digits)
}
