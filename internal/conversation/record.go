package conversation

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Categories is the fixed set offered at the category step.
var Categories = []string{
	"Food", "Transport", "Shopping", "Entertainment",
	"Utilities", "Medical", "Income", "Other",
}

// ValidCategory reports whether name is one of the fixed categories.
func ValidCategory(name string) bool {
	for _, c := range Categories {
		if c == name {
			return true
		}
	}
	return false
}

// ErrMissingRequiredField is returned when a record is assembled without all
// four mandatory fields. It guards the invariant that nothing incomplete is
// ever appended to the sheet.
var ErrMissingRequiredField = errors.New("missing required field")

// Record is the finalized transaction appended to the spreadsheet.
type Record struct {
	Timestamp   time.Time
	UserID      int64
	Name        string
	Amount      decimal.Decimal
	Date        string // YYYY-MM-DD
	Category    string
	Description string
	Store       string
	AIAnalyzed  bool
	HasImage    bool
}

// Validate checks the mandatory fields: name, amount, date, category.
func (r Record) Validate() error {
	switch {
	case r.Name == "":
		return fmt.Errorf("%w: name", ErrMissingRequiredField)
	case !r.Amount.IsPositive():
		return fmt.Errorf("%w: amount", ErrMissingRequiredField)
	case r.Date == "":
		return fmt.Errorf("%w: date", ErrMissingRequiredField)
	case r.Category == "":
		return fmt.Errorf("%w: category", ErrMissingRequiredField)
	}
	return nil
}

// HeaderRow is the column header row the sheet must carry before any data.
func HeaderRow() []string {
	return []string{
		"Timestamp", "User ID", "Name", "Amount", "Date",
		"Category", "Description", "Store", "AI Analysis", "Image Available",
	}
}

// Row serializes the record in header-row column order.
func (r Record) Row() []string {
	return []string{
		r.Timestamp.Format("2006-01-02 15:04:05"),
		strconv.FormatInt(r.UserID, 10),
		r.Name,
		r.Amount.StringFixed(2),
		r.Date,
		r.Category,
		r.Description,
		r.Store,
		yesNo(r.AIAnalyzed),
		yesNo(r.HasImage),
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
