package payfast_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/lalunalounge/restaurant-ordering/internal/payfast"
)

var _ = Describe("Encode", func() {
	Context("when encoding plain values", func() {
		It("should pass letters, digits, dash, underscore and dot through", func() {
			Expect(payfast.Encode("abc-XYZ_0.9")).To(Equal("abc-XYZ_0.9"))
			Expect(payfast.Encode("100.00")).To(Equal("100.00"))
		})

		It("should return empty string for empty input", func() {
			Expect(payfast.Encode("")).To(Equal(""))
		})
	})

	Context("when encoding spaces", func() {
		It("should encode spaces as plus, never %20", func() {
			Expect(payfast.Encode("hello world")).To(Equal("hello+world"))
			Expect(payfast.Encode("  a  ")).To(Equal("++a++"))
		})
	})

	Context("when encoding reserved characters", func() {
		It("should use uppercase hex escapes", func() {
			Expect(payfast.Encode("50% off")).To(Equal("50%25+off"))
			Expect(payfast.Encode("a&b=c")).To(Equal("a%26b%3Dc"))
			Expect(payfast.Encode("x/y?z")).To(Equal("x%2Fy%3Fz"))
		})

		It("should escape plus so it is distinguishable from space", func() {
			Expect(payfast.Encode("1+1")).To(Equal("1%2B1"))
		})

		It("should escape tilde, unlike RFC 3986 encoders", func() {
			Expect(payfast.Encode("~home")).To(Equal("%7Ehome"))
		})
	})

	Context("when encoding non-ASCII text", func() {
		It("should encode each UTF-8 byte separately", func() {
			Expect(payfast.Encode("déal")).To(Equal("d%C3%A9al"))
			Expect(payfast.Encode("ラーメン")).To(Equal("%E3%83%A9%E3%83%BC%E3%83%A1%E3%83%B3"))
		})
	})
})
