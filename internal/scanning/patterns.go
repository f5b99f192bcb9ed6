package scanning

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const numberPattern = `([0-9][0-9,]*(?:\.[0-9]{1,2})?)`

// amountPatterns are tried in priority order. The first pattern that yields
// any positive decimal wins; among that pattern's candidates the numerically
// largest is taken, since line items never exceed the total they sum to.
var amountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)total[^0-9\n]{0,20}` + numberPattern),
	regexp.MustCompile(`(?i)amount[^0-9\n]{0,20}` + numberPattern),
	regexp.MustCompile(`(?i)balance[^0-9\n]{0,20}` + numberPattern),
	regexp.MustCompile(`(?i)grand\s+total[^0-9\n]{0,20}` + numberPattern),
	regexp.MustCompile(`(?i)subtotal[^0-9\n]{0,20}` + numberPattern),
	regexp.MustCompile(`(?i)paid[^0-9\n]{0,20}` + numberPattern),
	regexp.MustCompile(`[$€£₹]\s*` + numberPattern),
}

// findAmount returns the best total candidate in OCR text, or nil.
func findAmount(text string) *decimal.Decimal {
	for _, re := range amountPatterns {
		var best *decimal.Decimal
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
			if err != nil || !d.IsPositive() {
				continue
			}
			if best == nil || d.GreaterThan(*best) {
				v := d
				best = &v
			}
		}
		if best != nil {
			return best
		}
	}
	return nil
}

var monthNumbers = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

const monthPattern = `(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`

var (
	slashDateRe  = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	isoDateRe    = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	monthDayRe   = regexp.MustCompile(`(?i)\b` + monthPattern + `\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)
	dayMonthRe   = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+` + monthPattern + `\.?,?\s+(\d{4})\b`)
	slashLayouts = []string{"1/2/2006", "2/1/2006"}
)

// findDate searches the fixed list of date shapes in order — slash numeric,
// ISO numeric, then the two textual month forms — and returns the first
// match normalized to YYYY-MM-DD, or "".
func findDate(text string) string {
	if m := slashDateRe.FindString(text); m != "" {
		// MM/DD/YYYY is tried first; DD/MM/YYYY catches days over 12.
		for _, layout := range slashLayouts {
			if t, err := time.Parse(layout, m); err == nil {
				return t.Format("2006-01-02")
			}
		}
	}
	if m := isoDateRe.FindStringSubmatch(text); m != nil {
		if t, err := time.Parse("2006-01-02", m[1]); err == nil {
			return t.Format("2006-01-02")
		}
	}
	if m := monthDayRe.FindStringSubmatch(text); m != nil {
		if date, ok := textualDate(m[1], m[2], m[3]); ok {
			return date
		}
	}
	if m := dayMonthRe.FindStringSubmatch(text); m != nil {
		if date, ok := textualDate(m[2], m[1], m[3]); ok {
			return date
		}
	}
	return ""
}

func textualDate(month, day, year string) (string, bool) {
	key := strings.ToLower(month)
	if len(key) > 3 {
		key = key[:3]
	}
	mon, ok := monthNumbers[key]
	if !ok {
		return "", false
	}
	d := atoi(day)
	y := atoi(year)
	t := time.Date(y, mon, d, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow, e.g. Feb 30 becomes Mar 2.
	if t.Day() != d || t.Month() != mon || t.Year() != y {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

// boilerplateKeywords disqualify a line from being the store name.
var boilerplateKeywords = []string{
	"receipt", "invoice", "total", "amount", "date", "time", "item", "qty",
}

// findStore guesses the store name: the first of the first ten lines that is
// non-empty, under 100 characters, and free of receipt boilerplate.
func findStore(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) > 10 {
		lines = lines[:10]
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || len(line) >= 100 {
			continue
		}
		lower := strings.ToLower(line)
		boilerplate := false
		for _, kw := range boilerplateKeywords {
			if strings.Contains(lower, kw) {
				boilerplate = true
				break
			}
		}
		if !boilerplate {
			return line
		}
	}
	return ""
}

// currencyHint maps a currency symbol in the text to an ISO code.
func currencyHint(text string) string {
	switch {
	case strings.Contains(text, "€"):
		return "EUR"
	case strings.Contains(text, "£"):
		return "GBP"
	case strings.Contains(text, "₹"):
		return "INR"
	default:
		return DefaultCurrency
	}
}

// extractFromText applies the rule-based heuristics to recognized text.
func extractFromText(text string) Extraction {
	return Extraction{
		Amount:   findAmount(text),
		Date:     findDate(text),
		Store:    findStore(text),
		Currency: currencyHint(text),
	}
}
