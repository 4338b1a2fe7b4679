// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmptyPassword     = errors.New("empty password")
	ErrIncorrectPassword = errors.New("incorrect password")
)

// UniqueIDLength is the length of public poll identifiers
const UniqueIDLength = 8

// base62 alphabet (0-9, a-z, A-Z)
const base62Chars = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GenerateUniqueID creates a random base62 identifier of UniqueIDLength chars.
// 62^8 is roughly 2.18e14; the unique index on polls.unique_id catches collisions.
func GenerateUniqueID() (string, error) {
	return randomBase62(UniqueIDLength)
}

func randomBase62(n int) (string, error) {
	result := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(result) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate random ID: %w", err)
		}
		for _, b := range buf {
			// 248 = 62*4, reject the tail to keep the distribution uniform
			if b >= 248 {
				continue
			}
			result = append(result, base62Chars[b%62])
			if len(result) == n {
				break
			}
		}
	}
	return string(result), nil
}

// IsUniqueID reports whether s looks like a public poll identifier
func IsUniqueID(s string) bool {
	if len(s) != UniqueIDLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !strings.ContainsRune(base62Chars, rune(s[i])) {
			return false
		}
	}
	return true
}

// HashPassword trims the password and returns its bcrypt hash
func HashPassword(password string) (string, error) {
	password = strings.TrimSpace(password)
	if password == "" {
		return "", ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a supplied password against a stored bcrypt hash
func CheckPassword(hash, password string) error {
	password = strings.TrimSpace(password)
	if password == "" {
		return ErrEmptyPassword
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrIncorrectPassword
	}
	return nil
}
