package payfast

import (
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	errors "github.com/lalunalounge/restaurant-ordering/internal"
)

// MaxAmount is the largest total the gateway accepts, in rand.
const MaxAmount = 999999.99

// paymentIDPrefix namespaces m_payment_id values so gateway-side records
// are traceable back to this service.
const paymentIDPrefix = "llo"

// Service builds signed checkout requests and verifies notifications for
// one configured merchant account. All methods are safe for concurrent
// use; the only state is the immutable config.
type Service struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

func NewService(cfg Config, logger *slog.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Service{cfg: cfg, logger: logger, now: time.Now}, nil
}

// ProcessURL returns the hosted checkout endpoint for the configured
// environment.
func (s *Service) ProcessURL() string {
	return s.cfg.ProcessURL()
}

// CheckoutParams carries everything the caller knows about a payment
// about to be initiated. Only OrderID, Amount and ItemName are required;
// empty optionals are omitted from the request entirely.
type CheckoutParams struct {
	OrderID string
	UserID  string

	Amount   float64
	ItemName string

	ItemDescription string

	CustomerFirstName string
	CustomerLastName  string
	CustomerEmail     string
	CustomerPhone     string

	ReturnURL string
	CancelURL string
	NotifyURL string
}

// PaymentData enumerates every legal checkout field by name. It replaces
// the loose string map the gateway protocol suggests so that a field can
// only be set if the protocol defines it.
type PaymentData struct {
	MerchantID  string `json:"merchant_id"`
	MerchantKey string `json:"merchant_key"`

	ReturnURL string `json:"return_url,omitempty"`
	CancelURL string `json:"cancel_url,omitempty"`
	NotifyURL string `json:"notify_url,omitempty"`

	NameFirst    string `json:"name_first,omitempty"`
	NameLast     string `json:"name_last,omitempty"`
	EmailAddress string `json:"email_address,omitempty"`
	CellNumber   string `json:"cell_number,omitempty"`

	MPaymentID      string `json:"m_payment_id,omitempty"`
	Amount          string `json:"amount"`
	ItemName        string `json:"item_name"`
	ItemDescription string `json:"item_description,omitempty"`

	CustomInt1 string `json:"custom_int1,omitempty"`
	CustomStr1 string `json:"custom_str1,omitempty"`
	CustomStr2 string `json:"custom_str2,omitempty"`

	Signature string `json:"signature"`
}

// Fields returns the non-empty fields as a name/value map, excluding the
// signature. This is the exact set the signature is computed over.
func (d *PaymentData) Fields() map[string]string {
	fields := map[string]string{
		"merchant_id":      d.MerchantID,
		"merchant_key":     d.MerchantKey,
		"return_url":       d.ReturnURL,
		"cancel_url":       d.CancelURL,
		"notify_url":       d.NotifyURL,
		"name_first":       d.NameFirst,
		"name_last":        d.NameLast,
		"email_address":    d.EmailAddress,
		"cell_number":      d.CellNumber,
		"m_payment_id":     d.MPaymentID,
		"amount":           d.Amount,
		"item_name":        d.ItemName,
		"item_description": d.ItemDescription,
		"custom_int1":      d.CustomInt1,
		"custom_str1":      d.CustomStr1,
		"custom_str2":      d.CustomStr2,
	}
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			delete(fields, name)
		}
	}
	return fields
}

// FormValues renders the complete request, signature included, ready for
// the checkout form the presentation layer submits.
func (d *PaymentData) FormValues() url.Values {
	values := url.Values{}
	for name, value := range d.Fields() {
		values.Set(name, value)
	}
	if d.Signature != "" {
		values.Set("signature", d.Signature)
	}
	return values
}

// BuildPaymentData assembles and signs a checkout request. The raw order
// and user identifiers ride in custom_str1/custom_str2 so the
// notification handler can do an exact lookup when they come back; the
// generated m_payment_id is a separate, gateway-facing identifier and
// must never be used for that lookup.
func (s *Service) BuildPaymentData(p CheckoutParams) (*PaymentData, error) {
	if strings.TrimSpace(p.OrderID) == "" {
		return nil, errors.NewValidationFieldError("order_id", "order_id is required", errors.ErrCodeValidationFailed)
	}
	if strings.TrimSpace(p.ItemName) == "" {
		return nil, errors.NewValidationFieldError("item_name", "item_name is required", errors.ErrCodeValidationFailed)
	}

	amount, err := FormatAmount(p.Amount)
	if err != nil {
		return nil, err
	}

	if err := checkEncodable(map[string]string{
		"item_name":        p.ItemName,
		"item_description": p.ItemDescription,
		"name_first":       p.CustomerFirstName,
		"name_last":        p.CustomerLastName,
	}); err != nil {
		return nil, err
	}

	now := s.now()
	data := &PaymentData{
		MerchantID:  s.cfg.MerchantID,
		MerchantKey: s.cfg.MerchantKey,
		ReturnURL:   strings.TrimSpace(p.ReturnURL),
		CancelURL:   strings.TrimSpace(p.CancelURL),
		NotifyURL:   strings.TrimSpace(p.NotifyURL),
		NameFirst:   strings.TrimSpace(p.CustomerFirstName),
		NameLast:    strings.TrimSpace(p.CustomerLastName),

		MPaymentID:      fmt.Sprintf("%s-%s-%d", paymentIDPrefix, strings.TrimSpace(p.OrderID), now.UnixMilli()),
		Amount:          amount,
		ItemName:        strings.TrimSpace(p.ItemName),
		ItemDescription: strings.TrimSpace(p.ItemDescription),

		// The int slot must hold a numeric value, so it carries a
		// timestamp id; the raw identifiers go in the string slots.
		CustomInt1: strconv.FormatInt(now.UnixMilli(), 10),
		CustomStr1: strings.TrimSpace(p.OrderID),
		CustomStr2: strings.TrimSpace(p.UserID),
	}

	if email := strings.TrimSpace(p.CustomerEmail); strings.Contains(email, "@") {
		data.EmailAddress = email
	}
	if phone := cleanPhone(p.CustomerPhone); len(phone) >= 10 {
		data.CellNumber = phone
	}

	data.Signature = Sign(data.Fields(), FixedOrder, s.cfg.Passphrase)

	if s.cfg.Debug {
		s.logger.Debug("built checkout request",
			"order_id", data.CustomStr1,
			"m_payment_id", data.MPaymentID,
			"amount", data.Amount,
			"merchant_id", data.MerchantID,
			"merchant_key", s.cfg.MaskedKey(),
			"field_count", len(data.Fields()),
			"signature", data.Signature)
	}

	return data, nil
}

// FormatAmount validates a payment total and renders it as the
// fixed-point decimal string the gateway expects: exactly two fractional
// digits, rounded half-up. Rounding happens on the decimal string form
// so a half-cent input like 10.005 rounds up even though its nearest
// binary float is fractionally below the tie.
func FormatAmount(v float64) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", errors.NewValidationError("amount must be a finite number", errors.ErrCodeInvalidAmount)
	}
	if v <= 0 {
		return "", errors.NewValidationError("amount must be positive", errors.ErrCodeInvalidAmount)
	}
	if v > MaxAmount {
		return "", errors.NewValidationError(
			fmt.Sprintf("amount exceeds gateway maximum of %.2f", MaxAmount), errors.ErrCodeInvalidAmount)
	}

	milli := strings.Replace(strconv.FormatFloat(v, 'f', 3, 64), ".", "", 1)
	tenths, err := strconv.ParseInt(milli, 10, 64)
	if err != nil {
		return "", errors.NewValidationError("amount is out of range", errors.ErrCodeInvalidAmount)
	}
	cents := (tenths + 5) / 10

	return fmt.Sprintf("%d.%02d", cents/100, cents%100), nil
}

// checkEncodable rejects caller-supplied text that is not valid UTF-8.
// The encoder works on raw bytes, so malformed input would be guessed at
// rather than canonicalized; the contract says reject instead.
func checkEncodable(fields map[string]string) error {
	for name, value := range fields {
		if !utf8.ValidString(value) {
			return errors.NewValidationFieldError(name,
				fmt.Sprintf("%s contains invalid text encoding", name), errors.ErrCodeInvalidEncoding)
		}
	}
	return nil
}

// cleanPhone strips the separators people type into phone numbers; the
// gateway wants bare digits.
func cleanPhone(phone string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(phone))
}
