package payfast_test

import (
	"log/slog"
	"math"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apperrors "github.com/lalunalounge/restaurant-ordering/internal"
	"github.com/lalunalounge/restaurant-ordering/internal/payfast"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testService(passphrase string) *payfast.Service {
	svc, err := payfast.NewService(payfast.Config{
		MerchantID:  "10000100",
		MerchantKey: "46f0cd694581a",
		Passphrase:  passphrase,
		Sandbox:     true,
	}, testLogger())
	Expect(err).ToNot(HaveOccurred())
	return svc
}

var _ = Describe("FormatAmount", func() {
	Context("with valid amounts", func() {
		It("should render exactly two fractional digits", func() {
			Expect(payfast.FormatAmount(10)).To(Equal("10.00"))
			Expect(payfast.FormatAmount(145.0)).To(Equal("145.00"))
			Expect(payfast.FormatAmount(173.5)).To(Equal("173.50"))
			Expect(payfast.FormatAmount(0.01)).To(Equal("0.01"))
		})

		It("should round half up on the decimal representation", func() {
			Expect(payfast.FormatAmount(10.005)).To(Equal("10.01"))
			Expect(payfast.FormatAmount(2.675)).To(Equal("2.68"))
			Expect(payfast.FormatAmount(10.004)).To(Equal("10.00"))
			Expect(payfast.FormatAmount(99.999)).To(Equal("100.00"))
		})

		It("should accept the gateway maximum", func() {
			Expect(payfast.FormatAmount(payfast.MaxAmount)).To(Equal("999999.99"))
		})
	})

	Context("with invalid amounts", func() {
		It("should reject zero and negative amounts", func() {
			_, err := payfast.FormatAmount(0)
			Expect(err).To(HaveOccurred())
			_, err = payfast.FormatAmount(-1)
			Expect(err).To(HaveOccurred())
		})

		It("should reject amounts above the gateway maximum", func() {
			_, err := payfast.FormatAmount(1000000)
			Expect(err).To(HaveOccurred())
		})

		It("should reject NaN and infinities", func() {
			for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
				_, err := payfast.FormatAmount(v)
				Expect(err).To(HaveOccurred())
			}
		})

		It("should return a typed validation error", func() {
			_, err := payfast.FormatAmount(-5)
			appErr, ok := apperrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(apperrors.ErrCodeInvalidAmount))
		})
	})
})

var _ = Describe("BuildPaymentData", func() {
	var svc *payfast.Service

	BeforeEach(func() {
		svc = testService("jt7NOE43FZPn")
	})

	params := func() payfast.CheckoutParams {
		return payfast.CheckoutParams{
			OrderID:   "ORD-42",
			UserID:    "U-7",
			Amount:    149.9,
			ItemName:  "La Luna Lounge Order",
			ReturnURL: "https://lalunalounge.example/payment/success",
			CancelURL: "https://lalunalounge.example/payment/cancelled",
			NotifyURL: "https://lalunalounge.example/api/v1/payments/notify",
		}
	}

	Context("when building a checkout request", func() {
		It("should round-trip the raw identifiers in the custom slots", func() {
			data, err := svc.BuildPaymentData(params())
			Expect(err).ToNot(HaveOccurred())
			Expect(data.CustomStr1).To(Equal("ORD-42"))
			Expect(data.CustomStr2).To(Equal("U-7"))
			Expect(data.CustomInt1).To(MatchRegexp(`^\d+$`))
		})

		It("should issue a namespaced m_payment_id distinct from the order id", func() {
			data, err := svc.BuildPaymentData(params())
			Expect(err).ToNot(HaveOccurred())
			Expect(data.MPaymentID).To(MatchRegexp(`^llo-ORD-42-\d+$`))
			Expect(data.MPaymentID).ToNot(Equal(data.CustomStr1))
		})

		It("should carry the formatted amount and merchant credentials", func() {
			data, err := svc.BuildPaymentData(params())
			Expect(err).ToNot(HaveOccurred())
			Expect(data.Amount).To(Equal("149.90"))
			Expect(data.MerchantID).To(Equal("10000100"))
			Expect(data.MerchantKey).To(Equal("46f0cd694581a"))
		})

		It("should sign over exactly the non-empty fields", func() {
			data, err := svc.BuildPaymentData(params())
			Expect(err).ToNot(HaveOccurred())
			Expect(data.Signature).To(Equal(payfast.Sign(data.Fields(), payfast.FixedOrder, "jt7NOE43FZPn")))
		})

		It("should exclude the signature itself from the signed field set", func() {
			data, err := svc.BuildPaymentData(params())
			Expect(err).ToNot(HaveOccurred())
			Expect(data.Fields()).ToNot(HaveKey("signature"))
		})

		It("should include the signature in the rendered form", func() {
			data, err := svc.BuildPaymentData(params())
			Expect(err).ToNot(HaveOccurred())
			values := data.FormValues()
			Expect(values.Get("signature")).To(Equal(data.Signature))
			Expect(values.Get("custom_str1")).To(Equal("ORD-42"))
		})
	})

	Context("with customer contact details", func() {
		It("should keep an email containing @ and drop anything else", func() {
			p := params()
			p.CustomerEmail = "guest@example.com"
			data, err := svc.BuildPaymentData(p)
			Expect(err).ToNot(HaveOccurred())
			Expect(data.EmailAddress).To(Equal("guest@example.com"))

			p.CustomerEmail = "not-an-email"
			data, err = svc.BuildPaymentData(p)
			Expect(err).ToNot(HaveOccurred())
			Expect(data.EmailAddress).To(BeEmpty())
		})

		It("should strip separators from phone numbers and drop short ones", func() {
			p := params()
			p.CustomerPhone = "(082) 555-1234"
			data, err := svc.BuildPaymentData(p)
			Expect(err).ToNot(HaveOccurred())
			Expect(data.CellNumber).To(Equal("0825551234"))

			p.CustomerPhone = "555-1234"
			data, err = svc.BuildPaymentData(p)
			Expect(err).ToNot(HaveOccurred())
			Expect(data.CellNumber).To(BeEmpty())
		})
	})

	Context("with invalid input", func() {
		It("should require order_id and item_name", func() {
			p := params()
			p.OrderID = "  "
			_, err := svc.BuildPaymentData(p)
			Expect(err).To(HaveOccurred())

			p = params()
			p.ItemName = ""
			_, err = svc.BuildPaymentData(p)
			Expect(err).To(HaveOccurred())
		})

		It("should reject an invalid amount before signing", func() {
			p := params()
			p.Amount = -10
			_, err := svc.BuildPaymentData(p)
			Expect(err).To(HaveOccurred())
		})

		It("should reject text that is not valid UTF-8", func() {
			p := params()
			p.ItemName = "broken " + string([]byte{0xff, 0xfe})
			_, err := svc.BuildPaymentData(p)
			appErr, ok := apperrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(apperrors.ErrCodeInvalidEncoding))
		})
	})

	Context("configuration", func() {
		It("should refuse to build a service with missing credentials", func() {
			_, err := payfast.NewService(payfast.Config{MerchantID: "10000100"}, testLogger())
			Expect(err).To(HaveOccurred())
		})

		It("should point at the sandbox host in sandbox mode", func() {
			Expect(svc.ProcessURL()).To(Equal("https://sandbox.payfast.co.za/eng/process"))
		})

		It("should point at the live host otherwise", func() {
			live, err := payfast.NewService(payfast.Config{
				MerchantID:  "10000100",
				MerchantKey: "46f0cd694581a",
			}, testLogger())
			Expect(err).ToNot(HaveOccurred())
			Expect(live.ProcessURL()).To(Equal("https://www.payfast.co.za/eng/process"))
		})
	})
})
