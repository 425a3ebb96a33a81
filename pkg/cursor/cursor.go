package cursor

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// Internal cursors are resource ids; anything else is rejected before signing.
var internalPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]+$`)

// TokenPattern is the wire shape of an encoded cursor.
var TokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+$`)

// ErrInvalid covers every decode failure: bad format, unknown signature,
// or malformed payload. Callers map it to the invalid_cursor error kind.
var ErrInvalid = errors.New("invalid cursor")

type payload struct {
	V int    `json:"v"`
	C string `json:"c"`
}

// Codec signs and verifies opaque pagination tokens. The first secret
// signs new tokens; every listed secret verifies, which allows rotation
// by prepending a fresh secret and keeping the old one until expiry.
type Codec struct {
	secrets [][]byte
}

// New creates a Codec from one or more secrets. At least one is required.
func New(secrets ...string) (*Codec, error) {
	if len(secrets) == 0 {
		return nil, errors.New("cursor: at least one signing secret required")
	}
	c := &Codec{}
	for _, s := range secrets {
		if s == "" {
			return nil, errors.New("cursor: empty signing secret")
		}
		c.secrets = append(c.secrets, []byte(s))
	}
	return c, nil
}

// Encode wraps an internal cursor as base64url(payload).base64url(hmac).
func (c *Codec) Encode(internal string) (string, error) {
	if !internalPattern.MatchString(internal) {
		return "", ErrInvalid
	}
	body, err := json.Marshal(payload{V: 1, C: internal})
	if err != nil {
		return "", err
	}
	enc := base64.RawURLEncoding.EncodeToString(body)
	sig := base64.RawURLEncoding.EncodeToString(c.sign(body, c.secrets[0]))
	return enc + "." + sig, nil
}

// Decode verifies the token against every known secret and returns the
// internal cursor. All failures collapse to ErrInvalid.
func (c *Codec) Decode(token string) (string, error) {
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 || !TokenPattern.MatchString(token) {
		return "", ErrInvalid
	}
	body, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", ErrInvalid
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", ErrInvalid
	}

	verified := false
	for _, secret := range c.secrets {
		if hmac.Equal(sig, c.sign(body, secret)) {
			verified = true
			break
		}
	}
	if !verified {
		return "", ErrInvalid
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return "", ErrInvalid
	}
	if p.V != 1 || !internalPattern.MatchString(p.C) {
		return "", ErrInvalid
	}
	return p.C, nil
}

func (c *Codec) sign(body, secret []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}
