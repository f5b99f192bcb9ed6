package conversation

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var _ = Describe("ParseAmount", func() {
	It("parses a plain decimal", func() {
		d, err := ParseAmount("12.50")
		Expect(err).NotTo(HaveOccurred())
		Expect(d.StringFixed(2)).To(Equal("12.50"))
	})

	It("strips a currency symbol and thousands separators", func() {
		d, err := ParseAmount("$1,234.56")
		Expect(err).NotTo(HaveOccurred())
		Expect(d.StringFixed(2)).To(Equal("1234.56"))
	})

	It("tolerates a space after the symbol", func() {
		d, err := ParseAmount("€ 99")
		Expect(err).NotTo(HaveOccurred())
		Expect(d.StringFixed(2)).To(Equal("99.00"))
	})

	It("rejects non-numeric input", func() {
		_, err := ParseAmount("abc")
		Expect(err).To(HaveOccurred())
	})

	It("rejects zero", func() {
		_, err := ParseAmount("0")
		Expect(err).To(HaveOccurred())
	})

	It("rejects negative amounts", func() {
		_, err := ParseAmount("-12")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("ParseDate", func() {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	It("resolves the literal token today", func() {
		d, err := ParseDate("today", now)
		Expect(err).NotTo(HaveOccurred())
		Expect(d).To(Equal("2025-06-15"))
	})

	It("accepts an ISO date", func() {
		d, err := ParseDate("2025-03-01", now)
		Expect(err).NotTo(HaveOccurred())
		Expect(d).To(Equal("2025-03-01"))
	})

	It("rejects an impossible calendar date", func() {
		_, err := ParseDate("2025-13-40", now)
		Expect(err).To(HaveOccurred())
	})

	It("rejects free-form text", func() {
		_, err := ParseDate("next tuesday", now)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Record", func() {
	valid := func() Record {
		return Record{
			Timestamp: time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC),
			UserID:    42,
			Name:      "Jo",
			Amount:    decimal.RequireFromString("15"),
			Date:      "2025-06-15",
			Category:  "Food",
		}
	}

	It("validates when the mandatory fields are present", func() {
		Expect(valid().Validate()).To(Succeed())
	})

	It("rejects each missing mandatory field", func() {
		r := valid()
		r.Name = ""
		Expect(r.Validate()).To(MatchError(ErrMissingRequiredField))

		r = valid()
		r.Amount = decimal.Zero
		Expect(r.Validate()).To(MatchError(ErrMissingRequiredField))

		r = valid()
		r.Date = ""
		Expect(r.Validate()).To(MatchError(ErrMissingRequiredField))

		r = valid()
		r.Category = ""
		Expect(r.Validate()).To(MatchError(ErrMissingRequiredField))
	})

	It("serializes in header-row order with two-decimal amounts", func() {
		r := valid()
		r.Description = "lunch"
		r.Store = "Cafe X"
		r.AIAnalyzed = true
		r.HasImage = true
		Expect(r.Row()).To(Equal([]string{
			"2025-06-15 10:00:00", "42", "Jo", "15.00", "2025-06-15",
			"Food", "lunch", "Cafe X", "Yes", "Yes",
		}))
		Expect(r.Row()).To(HaveLen(len(HeaderRow())))
	})
})
