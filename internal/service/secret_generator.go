package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

// SecretGenerator produces single-use secrets and the digest stored in their
// place. Two shapes: an opaque high-entropy token for reset links, where the
// value is the sole bearer credential, and a short numeric code for OTP
// delivery to a pre-verified channel. Both come from crypto/rand.
type SecretGenerator struct{}

func NewSecretGenerator() *SecretGenerator {
	return &SecretGenerator{}
}

// GenerateToken returns a 256-bit random token as 64 hex characters together
// with its SHA-256 digest.
func (g *SecretGenerator) GenerateToken() (plaintext, digest string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("failed to generate token: %w", err)
	}
	plaintext = hex.EncodeToString(b)
	return plaintext, DigestSecret(plaintext), nil
}

// GenerateOtp returns a zero-padded 6-digit decimal code together with its
// SHA-256 digest. Digesting the code is still mandatory so a database read
// does not reveal a live code.
func (g *SecretGenerator) GenerateOtp() (plaintext, digest string, err error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", "", fmt.Errorf("failed to generate otp: %w", err)
	}
	plaintext = fmt.Sprintf("%06d", n.Int64())
	return plaintext, DigestSecret(plaintext), nil
}

// DigestSecret is the one-way digest used for challenge storage and lookup.
func DigestSecret(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
