// Package auth implements the Auth Gate: HMAC-signed bearer tokens
// presented as a query parameter at connect time, adapted from the
// teacher's auth_token.go token layout (fixed-width fields + trailing
// signature) but keyed on a UUID subject instead of a 64-bit Uid.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Reason distinguishes why a connect-time credential was rejected, so
// the session can close with the right wire-level detail (§4.2, §6
// close code 4001 covers both, but handlers log them separately).
type Reason int

const (
	ReasonMissing Reason = iota
	ReasonInvalid
	ReasonExpired
)

func (r Reason) String() string {
	switch r {
	case ReasonMissing:
		return "missing credential"
	case ReasonExpired:
		return "expired credential"
	default:
		return "invalid credential"
	}
}

// ErrMissingToken is returned when the connect request carried no
// bearer credential at all.
var ErrMissingToken = errors.New("auth: missing credential")

// ErrInvalidToken covers bad signature, bad length, and expiry.
var ErrInvalidToken = errors.New("auth: invalid credential")

const (
	uidLen     = 16 // uuid.UUID is 16 bytes
	expiresLen = 8  // unix seconds, int64
	headerLen  = uidLen + expiresLen
	sigLen     = sha256.Size
	tokenLen   = headerLen + sigLen
)

// Gate verifies and issues bearer tokens. A single Gate instance is
// shared by every session on the instance; it holds only the signing
// key, never per-session state.
type Gate struct {
	key []byte
}

// NewGate returns a Gate signing/verifying with key. key must be at
// least 32 bytes, matching the teacher's minimum HMAC salt length.
func NewGate(key []byte) (*Gate, error) {
	if len(key) < 32 {
		return nil, errors.New("auth: signing key too short")
	}
	return &Gate{key: key}, nil
}

// Issue mints a bearer token for uid, valid for lifetime.
func (g *Gate) Issue(uid uuid.UUID, lifetime time.Duration) string {
	buf := make([]byte, headerLen)
	copy(buf[:uidLen], uid[:])
	binary.BigEndian.PutUint64(buf[uidLen:headerLen], uint64(time.Now().Add(lifetime).Unix()))

	mac := hmac.New(sha256.New, g.key)
	mac.Write(buf)
	sig := mac.Sum(nil)

	return base64.RawURLEncoding.EncodeToString(append(buf, sig...))
}

// Verify checks signature and expiry, returning the bound user id.
func (g *Gate) Verify(token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, ErrMissingToken
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != tokenLen {
		return uuid.Nil, ErrInvalidToken
	}

	header, gotSig := raw[:headerLen], raw[headerLen:]
	mac := hmac.New(sha256.New, g.key)
	mac.Write(header)
	wantSig := mac.Sum(nil)
	if !hmac.Equal(gotSig, wantSig) {
		return uuid.Nil, ErrInvalidToken
	}

	expires := int64(binary.BigEndian.Uint64(header[uidLen:headerLen]))
	if time.Now().Unix() >= expires {
		return uuid.Nil, ErrInvalidToken
	}

	var uid uuid.UUID
	copy(uid[:], header[:uidLen])
	return uid, nil
}

// Reasons for the two connect-time failure modes §4.2/§6 distinguish.
func ClassifyConnectError(err error) Reason {
	switch {
	case errors.Is(err, ErrMissingToken):
		return ReasonMissing
	default:
		return ReasonInvalid
	}
}

// Access and refresh token lifetimes per spec.md §5.
const (
	AccessTokenLifetime  = 15 * time.Minute
	RefreshTokenLifetime = 30 * 24 * time.Hour
)
