package pagination

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/go-jsonapi/server/pkg/planner"
)

// Signer optionally wraps opaque cursor tokens with an HMAC-SHA256 tag so a
// client cannot forge an arbitrary sort-key position (§9 "optional HMAC
// wrapper"). Disabled by default: plain cursors are still opaque, just
// unauthenticated.
type Signer struct {
	key []byte
}

// NewSigner builds a Signer from a shared secret. A nil/empty key disables
// signing; Sign becomes a no-op and Verify accepts any token.
func NewSigner(key []byte) *Signer {
	return &Signer{key: key}
}

func (s *Signer) enabled() bool { return s != nil && len(s.key) > 0 }

// Sign appends a base64url HMAC tag to an already-encoded cursor token,
// separated by a period, matching the common "payload.signature" shape.
func (s *Signer) Sign(token string) string {
	if !s.enabled() {
		return token
	}
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(token))
	tag := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return token + "." + tag
}

// Verify splits a signed token and checks its tag in constant time,
// returning the bare payload to pass to DecodeCursor. Returns
// planner.ErrInvalidCursor on a missing/mismatched signature.
func (s *Signer) Verify(signed string) (string, error) {
	if !s.enabled() {
		return signed, nil
	}
	idx := strings.LastIndexByte(signed, '.')
	if idx < 0 {
		return "", fmt.Errorf("cursor missing signature: %w", planner.ErrInvalidCursor)
	}
	payload, tag := signed[:idx], signed[idx+1:]
	want, err := base64.RawURLEncoding.DecodeString(tag)
	if err != nil {
		return "", fmt.Errorf("cursor signature malformed: %w", planner.ErrInvalidCursor)
	}
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(payload))
	got := mac.Sum(nil)
	if subtle.ConstantTimeCompare(want, got) != 1 {
		return "", fmt.Errorf("cursor signature mismatch: %w", planner.ErrInvalidCursor)
	}
	return payload, nil
}
