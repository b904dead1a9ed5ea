package payfast

import (
	"crypto/subtle"
	"net/netip"
	"net/url"
	"strings"
)

// Gateway payment_status values seen on notifications.
const (
	StatusComplete  = "COMPLETE"
	StatusFailed    = "FAILED"
	StatusCancelled = "CANCELLED"
)

// Notification field names this service reads. The gateway adds fields
// over time, so unknown names are kept for signing but never trusted for
// anything else.
const (
	fieldSignature        = "signature"
	fieldPaymentStatus    = "payment_status"
	fieldMPaymentID       = "m_payment_id"
	fieldGatewayPaymentID = "pf_payment_id"
	fieldAmountGross      = "amount_gross"
	fieldOrderID          = "custom_str1"
	fieldUserID           = "custom_str2"
)

// trustedSourceRanges are the gateway's published notification egress
// ranges. Address rotation upstream silently defeats this check, so it
// is advisory only: the signature is the authoritative control and this
// list must never become the sole gate.
var trustedSourceRanges = []netip.Prefix{
	netip.MustParsePrefix("197.97.145.144/28"),
	netip.MustParsePrefix("41.74.179.192/27"),
	netip.MustParsePrefix("102.216.36.0/28"),
	netip.MustParsePrefix("102.216.36.128/28"),
	netip.MustParsePrefix("144.126.193.139/32"),
}

// Notification is an untrusted callback field set. It keeps every
// received field, known or not, because the inbound signature is
// computed over exactly what arrived.
type Notification struct {
	fields map[string]string
}

// ParseNotification builds a Notification from decoded form values.
// Multi-valued keys keep their first value, matching how the gateway
// submits the form.
func ParseNotification(values url.Values) Notification {
	fields := make(map[string]string, len(values))
	for name := range values {
		fields[name] = values.Get(name)
	}
	return Notification{fields: fields}
}

// NotificationFromMap is a convenience for callers that already hold a
// flat field map.
func NotificationFromMap(fields map[string]string) Notification {
	copied := make(map[string]string, len(fields))
	for name, value := range fields {
		copied[name] = value
	}
	return Notification{fields: copied}
}

// Get returns the raw received value for a field name.
func (n Notification) Get(name string) string {
	return n.fields[name]
}

// Fields returns a copy of every received field.
func (n Notification) Fields() map[string]string {
	copied := make(map[string]string, len(n.fields))
	for name, value := range n.fields {
		copied[name] = value
	}
	return copied
}

// VerificationResult is the structured outcome of verifying one
// notification. It never mutates anything; the reconciler decides what
// to do with it.
type VerificationResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`

	// Round-tripped identifiers from the reserved custom slots,
	// populated only when Valid.
	OrderID string `json:"order_id,omitempty"`
	UserID  string `json:"user_id,omitempty"`

	PaymentStatus    string `json:"payment_status,omitempty"`
	MPaymentID       string `json:"m_payment_id,omitempty"`
	GatewayPaymentID string `json:"pf_payment_id,omitempty"`
	AmountGross      string `json:"amount_gross,omitempty"`
}

// VerifyNotification authenticates an inbound notification. The
// signature is removed from the field set, a fresh one is computed in
// Lexicographic mode with the configured passphrase, and the two are
// compared in constant time. When sourceIP is non-empty it is also
// checked against the gateway's published ranges; a miss rejects the
// notification even if the signature matched.
//
// Failures are returned, never raised: the HTTP handler needs a
// structured reject it can acknowledge without leaking why.
func (s *Service) VerifyNotification(n Notification, sourceIP string) VerificationResult {
	received := strings.TrimSpace(n.Get(fieldSignature))
	if received == "" {
		return VerificationResult{Valid: false, Reason: "missing signature"}
	}

	fields := n.Fields()
	delete(fields, fieldSignature)

	computed := Sign(fields, Lexicographic, s.cfg.Passphrase)

	if subtle.ConstantTimeCompare([]byte(received), []byte(computed)) != 1 {
		s.logger.Warn("notification signature mismatch",
			"m_payment_id", n.Get(fieldMPaymentID),
			"merchant_key", s.cfg.MaskedKey(),
			"field_count", len(fields))
		return VerificationResult{Valid: false, Reason: "signature mismatch"}
	}

	if sourceIP != "" && !TrustedSourceIP(sourceIP) {
		s.logger.Warn("notification from untrusted source address",
			"source_ip", sourceIP,
			"m_payment_id", n.Get(fieldMPaymentID))
		return VerificationResult{Valid: false, Reason: "untrusted source"}
	}

	return VerificationResult{
		Valid:            true,
		OrderID:          strings.TrimSpace(n.Get(fieldOrderID)),
		UserID:           strings.TrimSpace(n.Get(fieldUserID)),
		PaymentStatus:    strings.TrimSpace(n.Get(fieldPaymentStatus)),
		MPaymentID:       strings.TrimSpace(n.Get(fieldMPaymentID)),
		GatewayPaymentID: strings.TrimSpace(n.Get(fieldGatewayPaymentID)),
		AmountGross:      strings.TrimSpace(n.Get(fieldAmountGross)),
	}
}

// TrustedSourceIP reports whether the address belongs to one of the
// gateway's published notification ranges.
func TrustedSourceIP(ip string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	for _, prefix := range trustedSourceRanges {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
