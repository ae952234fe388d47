package challenges

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// Verification errors shared by both challenge kinds
var (
	ErrMalformed = errors.New("challenge is malformed")
	ErrForged    = errors.New("challenge signature is invalid")
	ErrExpired   = errors.New("challenge has expired")
	ErrReplayed  = errors.New("challenge was already used")
)

const macLength = 32

// Challenge kinds, mixed into every tag so one kind never verifies as another
const (
	kindProofOfWork = "pow"
	kindTime        = "time"
)

// signer produces truncated HMAC-SHA256 tags over dot-joined fields
type signer struct {
	secret []byte
	kind   string
}

func (s signer) tag(parts ...string) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(s.kind + "|" + strings.Join(parts, "|")))
	return hex.EncodeToString(h.Sum(nil))[:macLength]
}

// seal appends the tag to the fields: a.b.c.tag
func (s signer) seal(parts ...string) string {
	return strings.Join(append(parts, s.tag(parts...)), ".")
}

// open splits a sealed value into its n fields and checks the tag
func (s signer) open(sealed string, n int) ([]string, error) {
	parts := strings.Split(sealed, ".")
	if len(parts) != n+1 {
		return nil, ErrMalformed
	}
	fields, mac := parts[:n], parts[n]
	if !hmac.Equal([]byte(mac), []byte(s.tag(fields...))) {
		return nil, ErrForged
	}
	return fields, nil
}

func randomNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
