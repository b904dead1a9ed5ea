package payfast

import (
	errors "github.com/lalunalounge/restaurant-ordering/internal"
)

const (
	sandboxProcessURL = "https://sandbox.payfast.co.za/eng/process"
	liveProcessURL    = "https://www.payfast.co.za/eng/process"
)

// Config holds the merchant credentials for one gateway account. It is
// built once at startup and injected into every component that needs it;
// there is deliberately no package-level instance.
type Config struct {
	MerchantID  string
	MerchantKey string
	Passphrase  string
	Sandbox     bool
	Debug       bool
}

// Validate checks the credentials eagerly so a misconfigured service
// refuses to start instead of producing unverifiable signatures.
func (c Config) Validate() error {
	if c.MerchantID == "" {
		return errors.NewConfigError("payfast merchant id is required")
	}
	if c.MerchantKey == "" {
		return errors.NewConfigError("payfast merchant key is required")
	}
	return nil
}

// ProcessURL returns the hosted checkout endpoint for the configured
// environment.
func (c Config) ProcessURL() string {
	if c.Sandbox {
		return sandboxProcessURL
	}
	return liveProcessURL
}

// MaskedKey is the only form of the merchant key that may appear in logs.
func (c Config) MaskedKey() string {
	return maskSecret(c.MerchantKey)
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + "****" + s[len(s)-2:]
}
