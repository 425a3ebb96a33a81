package dto

import (
	"fmt"
	"net/url"
	"regexp"

	"pmc-orchestrator/internal/core/domain"
	"pmc-orchestrator/pkg/apperror"
)

var (
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
	idPattern       = regexp.MustCompile(`^[A-Za-z0-9._:-]+$`)
)

// knownEventTypes mirrors the event discriminants for subscription
// validation.
var knownEventTypes = map[string]struct{}{
	string(domain.EventIntentCreated):        {},
	string(domain.EventIntentProcessing):     {},
	string(domain.EventIntentRequiresAction): {},
	string(domain.EventIntentSucceeded):      {},
	string(domain.EventIntentFailed):         {},
	string(domain.EventIntentCanceled):       {},
	string(domain.EventRefundSucceeded):      {},
	string(domain.EventRefundFailed):         {},
	string(domain.EventChargebackOpened):     {},
	string(domain.EventChargebackWon):        {},
	string(domain.EventChargebackLost):       {},
}

// ValidID reports whether s is shaped like a resource id or caller token.
func ValidID(s string) bool {
	return idPattern.MatchString(s)
}

// Validate checks field constraints; each violation surfaces as its own
// invalid_<field> error.
func (r *CreateIntentRequest) Validate() error {
	if r.Amount <= 0 {
		return apperror.ErrInvalidField("amount", "amount must be a positive integer in minor units")
	}
	if !currencyPattern.MatchString(r.Currency) {
		return apperror.ErrInvalidField("currency", "currency must be a three-letter uppercase code")
	}
	if r.Customer.ID == "" || !ValidID(r.Customer.ID) {
		return apperror.ErrInvalidField("customer", "customer.id is required")
	}
	if !domain.ValidMethod(r.PaymentMethod.Type) {
		return apperror.ErrInvalidField("payment_method", fmt.Sprintf("payment_method.type %q is not supported", r.PaymentMethod.Type))
	}
	if r.PaymentMethod.Token == "" || !ValidID(r.PaymentMethod.Token) {
		return apperror.ErrInvalidField("payment_method", "payment_method.token is required")
	}
	switch domain.CaptureMethod(r.CaptureMethod) {
	case domain.CaptureAutomatic, domain.CaptureManual:
	default:
		return apperror.ErrInvalidField("capture_method", "capture_method must be automatic or manual")
	}
	return nil
}

func (r *CaptureRequest) Validate() error {
	if r.Amount <= 0 {
		return apperror.ErrInvalidField("amount", "amount must be a positive integer in minor units")
	}
	return nil
}

func (r *CreateRefundRequest) Validate() error {
	if r.PaymentIntentID == "" || !ValidID(r.PaymentIntentID) {
		return apperror.ErrInvalidField("payment_intent_id", "payment_intent_id is required")
	}
	if r.Amount <= 0 {
		return apperror.ErrInvalidField("amount", "amount must be a positive integer in minor units")
	}
	if r.Reason != nil && !domain.ValidRefundReason(*r.Reason) {
		return apperror.ErrInvalidField("reason", fmt.Sprintf("refund reason %q is not recognized", *r.Reason))
	}
	return nil
}

func (r *CreateChargebackRequest) Validate() error {
	if r.PaymentIntentID == "" || !ValidID(r.PaymentIntentID) {
		return apperror.ErrInvalidField("payment_intent_id", "payment_intent_id is required")
	}
	if r.Amount <= 0 {
		return apperror.ErrInvalidField("amount", "amount must be a positive integer in minor units")
	}
	if !domain.ValidChargebackReason(r.Reason) {
		return apperror.ErrInvalidField("reason", fmt.Sprintf("chargeback reason %q is not recognized", r.Reason))
	}
	if r.EvidenceURL != nil && !validHTTPURL(*r.EvidenceURL) {
		return apperror.ErrInvalidField("evidence_url", "evidence_url must be an http(s) URL")
	}
	return nil
}

func (r *ResolveChargebackRequest) Validate() error {
	if !domain.ValidChargebackResolution(r.Status) {
		return apperror.ErrInvalidField("status", "status must be under_review, won or lost")
	}
	return nil
}

func (r *CreateEndpointRequest) Validate() error {
	if !validHTTPURL(r.URL) {
		return apperror.ErrInvalidField("url", "url must be an http(s) URL")
	}
	return validateEventList(r.Events)
}

func (r *UpdateEndpointRequest) Validate() error {
	if r.URL == nil && r.Events == nil && r.Enabled == nil {
		return apperror.ErrInvalidRequestBody("at least one field must be provided")
	}
	if r.URL != nil && !validHTTPURL(*r.URL) {
		return apperror.ErrInvalidField("url", "url must be an http(s) URL")
	}
	if r.Events != nil {
		return validateEventList(*r.Events)
	}
	return nil
}

func (r *ReplayBatchRequest) Validate() error {
	if r.Limit < 1 || r.Limit > 5000 {
		return apperror.ErrInvalidReplayBatch("limit must be between 1 and 5000")
	}
	if r.Status != nil {
		switch domain.DeadLetterStatus(*r.Status) {
		case domain.DeadLetterPending, domain.DeadLetterReplayed:
		default:
			return apperror.ErrInvalidReplayBatch(fmt.Sprintf("status %q is not a dead-letter status", *r.Status))
		}
	}
	if r.EventType != nil {
		if _, ok := knownEventTypes[*r.EventType]; !ok {
			return apperror.ErrInvalidReplayBatch(fmt.Sprintf("event type %q is not recognized", *r.EventType))
		}
	}
	return nil
}

func validateEventList(events []string) error {
	for _, e := range events {
		if _, ok := knownEventTypes[e]; !ok {
			return apperror.ErrInvalidField("events", fmt.Sprintf("event type %q is not recognized", e))
		}
	}
	return nil
}

func validHTTPURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
