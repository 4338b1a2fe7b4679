// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// ViewTokenTTL is how long a view-only token stays valid after issuance
const ViewTokenTTL = 300 * time.Second

// signatureBytes is the truncated HMAC length (128 bits)
const signatureBytes = 16

var tokenEncoding = base64.RawURLEncoding.Strict()

// TokenSigner issues and verifies view-only tokens of the form
// base64url(pollID|issuedAt|hex(hmac[:16])).
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenSigner(secret string) *TokenSigner {
	return &TokenSigner{
		secret: []byte(secret),
		ttl:    ViewTokenTTL,
		now:    time.Now,
	}
}

// WithClock returns a copy of the signer that reads time from now
func (s *TokenSigner) WithClock(now func() time.Time) *TokenSigner {
	c := *s
	c.now = now
	return &c
}

// Issue creates a token binding pollID to the current time
func (s *TokenSigner) Issue(pollID string) string {
	payload := pollID + "|" + strconv.FormatInt(s.now().Unix(), 10)
	return tokenEncoding.EncodeToString([]byte(payload + "|" + s.sign(payload)))
}

// Verify reports whether token is a valid, unexpired token for pollID.
// Malformed input yields false.
func (s *TokenSigner) Verify(token, pollID string) bool {
	if token == "" {
		return false
	}
	decoded, err := tokenEncoding.DecodeString(token)
	if err != nil {
		return false
	}

	parts := strings.Split(string(decoded), "|")
	if len(parts) != 3 {
		return false
	}
	tokenPollID, issuedRaw, signature := parts[0], parts[1], parts[2]

	if tokenPollID != pollID {
		return false
	}

	issuedAt, err := strconv.ParseInt(issuedRaw, 10, 64)
	if err != nil {
		return false
	}
	if s.now().Unix()-issuedAt > int64(s.ttl/time.Second) {
		return false
	}

	expected := s.sign(tokenPollID + "|" + issuedRaw)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (s *TokenSigner) sign(payload string) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil)[:signatureBytes])
}
