package domain

import (
	"strings"

	"github.com/google/uuid"
)

// ID prefixes for externally-visible resources.
const (
	PrefixPaymentIntent  = "pi"
	PrefixRefund         = "re"
	PrefixChargeback     = "cb"
	PrefixLedgerEntry    = "le"
	PrefixEvent          = "evt"
	PrefixWebhookEndpoint = "we"
	PrefixDelivery       = "wd"
	PrefixDeadLetter     = "dl"
)

// NewID generates a prefixed identifier, e.g. "pi_9f1c2d...".
// The body is a dashless UUIDv4, which keeps ids cursor-safe
// (matching [A-Za-z0-9._:-]+) and lexicographically comparable.
func NewID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
