package login

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RFC 6238 standard parameters: 6-digit codes over 30-second windows
const (
	totpDigits = 6
	totpPeriod = 30
)

// ErrInvalidTOTPSecret means the secret is not usable Base32
var ErrInvalidTOTPSecret = errors.New("login: invalid totp secret")

// GenerateTOTP computes the RFC 6238 code for the window containing t.
// The secret is Base32; spacing, case and padding from authenticator
// exports are tolerated.
func GenerateTOTP(secret string, t time.Time) (string, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(secret), " ", ""))
	normalized = strings.TrimRight(normalized, "=")
	if normalized == "" {
		return "", ErrInvalidTOTPSecret
	}

	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(normalized)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTOTPSecret, err)
	}

	counter := t.Unix() / totpPeriod
	return fmt.Sprintf("%0*d", totpDigits, generateHOTP(key, counter)), nil
}

// generateHOTP implements RFC 4226 HMAC-SHA1 with dynamic truncation
func generateHOTP(key []byte, counter int64) int {
	var counterBytes [8]byte
	for i := 7; i >= 0; i-- {
		counterBytes[i] = byte(counter & 0xff)
		counter >>= 8
	}

	mac := hmac.New(sha1.New, key)
	mac.Write(counterBytes[:])
	hash := mac.Sum(nil)

	offset := hash[len(hash)-1] & 0x0f
	code := (int(hash[offset]&0x7f) << 24) |
		(int(hash[offset+1]) << 16) |
		(int(hash[offset+2]) << 8) |
		int(hash[offset+3])

	mod := 1
	for i := 0; i < totpDigits; i++ {
		mod *= 10
	}
	return code % mod
}
