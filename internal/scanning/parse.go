package scanning

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// modelReceipt mirrors the JSON object the vision models are prompted to return.
type modelReceipt struct {
	StoreName     string     `json:"store_name"`
	TotalAmount   flexNumber `json:"total_amount"`
	Date          string     `json:"date"`
	Currency      string     `json:"currency"`
	Summary       string     `json:"summary"`
	Items         []string   `json:"items"`
	TaxAmount     flexNumber `json:"tax_amount"`
	PaymentMethod string     `json:"payment_method"`
}

// flexNumber accepts a JSON number, a quoted number, or null. Vision models
// occasionally quote numeric fields despite being told not to.
type flexNumber struct {
	value *decimal.Decimal
}

func (f *flexNumber) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		return nil
	}
	s = strings.Trim(s, `"`)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("parsing number %q: %w", s, err)
	}
	f.value = &d
	return nil
}

// parseModelOutput extracts the first {...} substring from a model reply and
// maps it onto an Extraction. Markdown code fences are tolerated.
func parseModelOutput(text string) (Extraction, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end < start {
		return Extraction{}, fmt.Errorf("no JSON object found in response")
	}
	text = text[start : end+1]

	var raw modelReceipt
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return Extraction{}, fmt.Errorf("unmarshaling receipt JSON: %w", err)
	}

	ext := Extraction{
		Amount:   raw.TotalAmount.value,
		Date:     strings.TrimSpace(raw.Date),
		Store:    strings.TrimSpace(raw.StoreName),
		Currency: strings.ToUpper(strings.TrimSpace(raw.Currency)),
		Summary:  strings.TrimSpace(raw.Summary),
	}
	if ext.Currency == "" {
		ext.Currency = DefaultCurrency
	}
	return ext, nil
}
