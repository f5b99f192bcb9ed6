package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

var currencySymbols = []string{"$", "€", "£", "₹"}

// ParseAmount parses user-supplied amount text. A single leading currency
// symbol and comma thousands separators are tolerated; the result must be a
// positive decimal.
func ParseAmount(input string) (decimal.Decimal, error) {
	s := strings.TrimSpace(input)
	for _, sym := range currencySymbols {
		if strings.HasPrefix(s, sym) {
			s = strings.TrimSpace(strings.TrimPrefix(s, sym))
			break
		}
	}
	s = strings.ReplaceAll(s, ",", "")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("not a number: %q", input)
	}
	if !d.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("amount must be positive: %q", input)
	}
	return d, nil
}

// ParseDate parses user-supplied date text: YYYY-MM-DD or the literal token
// "today". The result is always calendar-validated.
func ParseDate(input string, now time.Time) (string, error) {
	s := strings.TrimSpace(input)
	if strings.EqualFold(s, "today") {
		return now.Format(dateLayout), nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return "", fmt.Errorf("not a valid date: %q", input)
	}
	return t.Format(dateLayout), nil
}
