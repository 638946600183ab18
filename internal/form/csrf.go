// internal/form/csrf.go
//
// Forms subsystem: stateless CSRF tokens and form-instance identity.
//
// Context
//   Every rendered form embeds a hidden `csrf_token`.  The token is
//   stateless:
//
//      base64url( nonce | unixMicro | HMAC_SHA256(secret, nonce+unixMicro) )
//
//   •  nonce – 16 random bytes.  Its base64url form doubles as the form
//      instance ID that keys the server-side Session.
//   •  unixMicro – microseconds since Unix epoch, 8 bytes, big-endian.
//   •  HMAC – keyed by the process secret (config `security.csrf_key`).
//
//   CheckEnvelope verifies the token before any field is looked at, and
//   measures fill time from the signed issue time.  Its failures are
//   form-level entries in a ValidationResult.
//
//------------------------------------------------------------------------------

package form

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	nonceBytes = 16
	tokenBytes = nonceBytes + 8 + sha256.Size
	maxAge     = 2 * time.Hour

	// MinFillTime rejects posts faster than a human can type.
	MinFillTime = 2 * time.Second
	// MaxFormAge rejects pages left open too long.
	MaxFormAge = 30 * time.Minute
)

var (
	secretMu  sync.RWMutex
	secretKey []byte
)

// SetSecret installs the HMAC key.  Keys shorter than 32 bytes are rejected
// and a random key is used instead.
func SetSecret(key []byte) {
	secretMu.Lock()
	defer secretMu.Unlock()
	if len(key) >= 32 {
		secretKey = append([]byte(nil), key...)
		return
	}
	secretKey = randomKey()
	zap.S().Warnw("csrf key missing or shorter than 32 bytes, using random key",
		"len", len(key))
}

func fetchSecret() []byte {
	secretMu.RLock()
	k := secretKey
	secretMu.RUnlock()
	if k != nil {
		return k
	}

	secretMu.Lock()
	defer secretMu.Unlock()
	if secretKey == nil {
		secretKey = randomKey() // ephemeral, resets on restart
	}
	return secretKey
}

func randomKey() []byte {
	k := make([]byte, 32)
	_, _ = rand.Read(k)
	return k
}

// GenerateToken creates a new token.  Call once per form render.
func GenerateToken() (string, error) {
	return GenerateTokenAt(time.Now())
}

// GenerateTokenAt creates a token that reports now as its render time.
func GenerateTokenAt(now time.Time) (string, error) {
	nonce := make([]byte, nonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	ts := make([]byte, 8)
	binary.BigEndian.PutUint64(ts, uint64(now.UnixMicro()))

	buf := make([]byte, 0, tokenBytes)
	buf = append(buf, nonce...)
	buf = append(buf, ts...)
	buf = append(buf, sign(nonce, ts)...)
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func sign(nonce, ts []byte) []byte {
	mac := hmac.New(sha256.New, fetchSecret())
	mac.Write(nonce)
	mac.Write(ts)
	return mac.Sum(nil)
}

// VerifyToken checks signature and age.  On success it returns the form
// instance ID and the time the token was issued.
func VerifyToken(tok string) (instance string, issued time.Time, ok bool) {
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil || len(raw) != tokenBytes {
		return "", time.Time{}, false
	}

	nonce := raw[:nonceBytes]
	tsBytes := raw[nonceBytes : nonceBytes+8]
	sig := raw[nonceBytes+8:]

	if !hmac.Equal(sig, sign(nonce, tsBytes)) {
		return "", time.Time{}, false
	}

	issued = time.UnixMicro(int64(binary.BigEndian.Uint64(tsBytes)))
	if time.Since(issued) > maxAge || time.Until(issued) > time.Minute {
		return "", time.Time{}, false
	}
	return base64.RawURLEncoding.EncodeToString(nonce), issued, true
}

// CheckEnvelope verifies the token of a post.  It returns the form instance
// ID, or a form-level ValidationResult describing the problem.
func CheckEnvelope(token string) (string, ValidationResult) {
	instance, issued, ok := VerifyToken(token)
	if !ok {
		return "", ValidationResult{FormLevel: "Security token invalid.  Please refresh and try again."}
	}
	if msg := checkTiming(issued, time.Now()); msg != "" {
		return "", ValidationResult{FormLevel: msg}
	}
	return instance, nil
}

// checkTiming ensures the form was not submitted suspiciously fast or late.
func checkTiming(issued, now time.Time) string {
	delta := now.Sub(issued)
	switch {
	case delta < MinFillTime:
		return "Form submitted too quickly.  Please enter the fields manually."
	case delta > MaxFormAge:
		return "Form expired.  Please reload and submit again."
	default:
		return ""
	}
}
