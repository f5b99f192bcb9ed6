package scanning

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var _ = Describe("findAmount", func() {
	It("finds a labeled total", func() {
		amt := findAmount("ITEM A 3.00\nTOTAL: 12.75\n")
		Expect(amt).NotTo(BeNil())
		Expect(amt.StringFixed(2)).To(Equal("12.75"))
	})

	It("prefers the largest candidate when several totals appear", func() {
		amt := findAmount("SUBTOTAL 10.00\nTOTAL 11.20\nGRAND TOTAL 12.99\n")
		Expect(amt.StringFixed(2)).To(Equal("12.99"))
	})

	It("handles thousands separators", func() {
		amt := findAmount("AMOUNT DUE: 1,234.56")
		Expect(amt.StringFixed(2)).To(Equal("1234.56"))
	})

	It("falls back to a currency-prefixed number", func() {
		amt := findAmount("Coffee $4.50\nMuffin $3.25")
		Expect(amt.StringFixed(2)).To(Equal("4.50"))
	})

	It("prefers a labeled phrase over a bare currency number", func() {
		amt := findAmount("$99.99 coupon value\nPAID 12.00")
		Expect(amt.StringFixed(2)).To(Equal("12.00"))
	})

	It("returns nil when no amount is present", func() {
		Expect(findAmount("thank you for shopping")).To(BeNil())
	})
})

var _ = Describe("findDate", func() {
	It("normalizes a US slash date", func() {
		Expect(findDate("Date: 03/01/2025")).To(Equal("2025-03-01"))
	})

	It("falls back to day-first when the month is impossible", func() {
		Expect(findDate("25/03/2025")).To(Equal("2025-03-25"))
	})

	It("accepts an ISO date", func() {
		Expect(findDate("visited 2025-03-01 10:15")).To(Equal("2025-03-01"))
	})

	It("prefers the slash shape over a later ISO date", func() {
		Expect(findDate("printed 2025-12-31\npurchase 03/01/2025")).To(Equal("2025-03-01"))
	})

	It("reads a textual month-day form", func() {
		Expect(findDate("March 1, 2025")).To(Equal("2025-03-01"))
	})

	It("reads a textual day-month form", func() {
		Expect(findDate("1 March 2025")).To(Equal("2025-03-01"))
	})

	It("rejects an impossible textual date", func() {
		Expect(findDate("February 30, 2025")).To(Equal(""))
	})

	It("returns empty when no date is present", func() {
		Expect(findDate("no dates here")).To(Equal(""))
	})
})

var _ = Describe("findStore", func() {
	It("takes the first clean line", func() {
		text := "ACME MARKET\n123 Main St\nRECEIPT #42\n"
		Expect(findStore(text)).To(Equal("ACME MARKET"))
	})

	It("skips blank and boilerplate lines", func() {
		text := "\n  \nRECEIPT\nInvoice 42\nCorner Cafe\n"
		Expect(findStore(text)).To(Equal("Corner Cafe"))
	})

	It("only scans the first ten lines", func() {
		text := "receipt\nreceipt\nreceipt\nreceipt\nreceipt\nreceipt\nreceipt\nreceipt\nreceipt\nreceipt\nAcme\n"
		Expect(findStore(text)).To(Equal(""))
	})
})

var _ = Describe("extractFromText", func() {
	It("combines the heuristics", func() {
		text := "CORNER CAFE\n01/15/2025\nCoffee 4.50\nTOTAL 4.50\n"
		ext := extractFromText(text)
		Expect(ext.Store).To(Equal("CORNER CAFE"))
		Expect(ext.Amount.StringFixed(2)).To(Equal("4.50"))
		Expect(ext.Date).To(Equal("2025-01-15"))
		Expect(ext.Currency).To(Equal("USD"))
	})

	It("hints the currency from a symbol", func() {
		Expect(extractFromText("TOTAL €9.99").Currency).To(Equal("EUR"))
	})
})
