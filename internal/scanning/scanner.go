package scanning

import (
	"context"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is assumed whenever a receipt does not state one.
const DefaultCurrency = "USD"

// Extraction is the best-effort structured reading of a receipt image.
// A non-empty Err means every other field is advisory and must not be
// trusted; the conversation layer falls back to manual entry for all fields.
type Extraction struct {
	Amount   *decimal.Decimal
	Date     string // YYYY-MM-DD when the strategy could normalize it
	Store    string
	Currency string
	Summary  string
	Err      string
}

// Usable reports whether the extraction succeeded with a positive amount,
// which is the bar for offering its fields to the user as defaults.
func (e Extraction) Usable() bool {
	return e.Err == "" && e.Amount != nil && e.Amount.IsPositive()
}

// Extractor derives receipt fields from image bytes. Implementations never
// return a Go error: network, parse, and credential failures are all folded
// into Extraction.Err, so the conversation layer is the only place that
// decides how to react to a failed extraction.
type Extractor interface {
	Extract(ctx context.Context, image []byte, contentType string) Extraction
	Close() error
}

func failed(err error) Extraction {
	return Extraction{Currency: DefaultCurrency, Err: err.Error()}
}
