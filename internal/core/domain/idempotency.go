package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"time"
)

// IdempotencyKeyPattern constrains caller-provided idempotency keys.
var IdempotencyKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]+$`)

// IdempotencyRecord is the stored result of a completed write, keyed by
// (scope, key). A replay with a matching fingerprint returns the stored
// response; a differing fingerprint is a key-reuse conflict.
type IdempotencyRecord struct {
	Scope              string          `json:"scope"`
	Key                string          `json:"key"`
	PayloadFingerprint string          `json:"payload_fingerprint"`
	StatusCode         int             `json:"status_code"`
	ResponseBody       json.RawMessage `json:"response_body"`
	CreatedAt          time.Time       `json:"created_at"`
}

// Expired reports whether the record is past its TTL at time now.
func (r *IdempotencyRecord) Expired(ttl time.Duration, now time.Time) bool {
	return now.After(r.CreatedAt.Add(ttl))
}

// Fingerprint computes sha256(canonicalize(body)) as lowercase hex.
// Canonicalization round-trips the JSON through a generic decode so that
// object keys are serialized in sorted order at every depth.
func Fingerprint(body []byte) string {
	canonical := body
	if len(body) > 0 {
		var v any
		if err := json.Unmarshal(body, &v); err == nil {
			if b, err := json.Marshal(v); err == nil {
				canonical = b
			}
		}
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}
