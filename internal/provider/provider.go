package provider

// Failure codes returned by provider adapters. The transient set drives
// both authorization failover and breaker bookkeeping; any other code is a
// terminal decline.
const (
	FailureProviderUnavailable   = "provider_unavailable"
	FailureTransientNetworkError = "transient_network_error"
	FailureTimeout               = "timeout"
	FailureCardDeclined          = "card_declined"
	FailureInsufficientFunds     = "insufficient_funds"
)

var transientCodes = map[string]struct{}{
	FailureProviderUnavailable:   {},
	FailureTransientNetworkError: {},
	FailureTimeout:               {},
}

// IsTransient reports whether a failure code warrants trying the next
// candidate (and counts against the provider's breaker).
func IsTransient(code string) bool {
	_, ok := transientCodes[code]
	return ok
}
