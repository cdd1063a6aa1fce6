package attendance

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	tokenSalt = []byte("mahudhurio.core.attendance.token")
	nowFunc   = time.Now // mockable

	// errors
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// TokenClaims are the verified contents of an attendance token.
type TokenClaims struct {
	SessionID string
	IssuedAt  time.Time
}

// TokenCodec issues and verifies signed attendance tokens. A token binds a
// session ID to its issuance time; verification enforces a freshness window
// so that a leaked or screenshotted code stops working quickly, even before
// the session itself is marked expired.
//
// The signing secret is process-wide configuration; rotating it invalidates
// all outstanding tokens.
type TokenCodec struct {
	key []byte
	ttl time.Duration
}

func NewTokenCodec(secret string, ttl time.Duration) *TokenCodec {
	key := sha256.Sum256(append(tokenSalt, secret...))
	return &TokenCodec{key: key[:], ttl: ttl}
}

// Issue generates a signed token for the given session, anchored at the
// current time. The result is transport-encoded for embedding in a QR code.
func (c *TokenCodec) Issue(sessionID string) string {
	payload := sessionID + ":" + strconv.FormatInt(nowFunc().UTC().Unix(), 10)
	return base64.RawURLEncoding.EncodeToString([]byte(payload + ":" + c.sign(payload)))
}

// Verify decodes a token, recomputes its signature and compares in constant
// time, then enforces the freshness window.
func (c *TokenCodec) Verify(token string) (TokenClaims, error) {
	if token == "" {
		return TokenClaims{}, ErrInvalidToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return TokenClaims{}, ErrInvalidToken
	}
	parts := strings.SplitN(string(raw), ":", 3)
	if len(parts) < 3 {
		return TokenClaims{}, ErrInvalidToken
	}
	sessID, tsStr, sig := parts[0], parts[1], parts[2]
	ts, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return TokenClaims{}, ErrInvalidToken
	}

	// check that the token has not been tampered with
	if subtle.ConstantTimeCompare([]byte(c.sign(sessID+":"+tsStr)), []byte(sig)) == 0 {
		return TokenClaims{}, ErrInvalidToken
	}

	// check that the issuance time is within the freshness window
	iat := time.Unix(ts, 0).UTC()
	if nowFunc().UTC().Sub(iat) > c.ttl {
		return TokenClaims{}, ErrTokenExpired
	}
	return TokenClaims{SessionID: sessID, IssuedAt: iat}, nil
}

func (c *TokenCodec) sign(payload string) string {
	h := hmac.New(sha256.New, c.key)
	h.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
