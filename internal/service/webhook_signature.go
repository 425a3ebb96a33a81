package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// SignWebhook computes the delivery signature: lowercase hex of
// HMAC-SHA256(secret, "<timestamp>.<body>"). Receivers rebuild the same
// string from the X-PMC-Timestamp header and the raw body.
func SignWebhook(secret string, timestamp int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookSignature checks a signature in constant time.
func VerifyWebhookSignature(secret string, timestamp int64, body []byte, signature string) bool {
	expected := SignWebhook(secret, timestamp, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// WebhookKeyID identifies which secret signed a delivery without exposing
// it: "whk_" plus the first 12 hex chars of SHA-256(secret).
func WebhookKeyID(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return "whk_" + hex.EncodeToString(sum[:])[:12]
}
