package conversation

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dodey917/nomarddeskassist-bot/internal/scanning"
)

const welcomeText = `👋 I record your expenses into a spreadsheet.

Commands:
/add — record a transaction step by step
/list — names that have recorded transactions
/search <name> — transactions for a name, with the total
/cancel — abandon the current entry

You can also just send me a photo of a receipt and I will try to read the amount, date, and store from it.`

const (
	promptNameText        = "What is the name for this transaction?"
	promptCategoryText    = "Pick a category:"
	promptDescriptionText = `Add a description, or send "skip" to leave it empty.`

	invalidNameText     = "The name cannot be empty. Please send a name."
	invalidCategoryText = "Please pick a category by tapping one of the buttons."

	cancelledText       = "❌ Entry cancelled."
	nothingToCancelText = "There is no entry in progress."
	idleHintText        = "Send /add to record a transaction, or send a receipt photo."

	extractionBusyText = "Still reading your receipt, one moment..."

	writeFailedText   = "⚠️ I couldn't save your transaction right now. Please try again with /add."
	restartText       = "Something went wrong with this entry. Please start over with /add."
	genericErrorText  = "😔 Sorry, something went wrong. Please try again."
	extractFailedText = "I couldn't read that receipt, so let's enter it manually."
)

func promptAmountText(def *decimal.Decimal, currency string) string {
	if def == nil {
		return "How much was it? (e.g. 12.50)"
	}
	return fmt.Sprintf("How much was it? Send an amount, or send nothing to use the detected %s %s.",
		def.StringFixed(2), currency)
}

func promptDateText(def string) string {
	if def == "" {
		return `What date? Send YYYY-MM-DD or "today".`
	}
	return fmt.Sprintf(`What date? Send YYYY-MM-DD, "today", or nothing to use the detected %s.`, def)
}

func invalidAmountText(input string) string {
	return fmt.Sprintf("I couldn't read %q as a positive amount. Try something like 12.50.", input)
}

func invalidDateText(input string) string {
	return fmt.Sprintf(`%q is not a valid date. Send YYYY-MM-DD or "today".`, input)
}

// extractionSummaryText presents what was read off the receipt before the
// user decides whether to use it.
func extractionSummaryText(ext scanning.Extraction) string {
	var b strings.Builder
	b.WriteString("🧾 Here is what I read from your receipt:\n")
	if ext.Store != "" {
		fmt.Fprintf(&b, "Store: %s\n", ext.Store)
	}
	if ext.Amount != nil {
		fmt.Fprintf(&b, "Amount: %s %s\n", ext.Amount.StringFixed(2), ext.Currency)
	}
	if ext.Date != "" {
		fmt.Fprintf(&b, "Date: %s\n", ext.Date)
	}
	if ext.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", ext.Summary)
	}
	b.WriteString("\nUse this data, or enter everything manually?")
	return b.String()
}

// confirmationText summarizes every populated field of a written record.
func confirmationText(rec Record) string {
	var b strings.Builder
	b.WriteString("✅ Transaction recorded!\n\n")
	fmt.Fprintf(&b, "Name: %s\n", rec.Name)
	fmt.Fprintf(&b, "Amount: %s\n", rec.Amount.StringFixed(2))
	fmt.Fprintf(&b, "Date: %s\n", rec.Date)
	fmt.Fprintf(&b, "Category: %s\n", rec.Category)
	if rec.Store != "" {
		fmt.Fprintf(&b, "Store: %s\n", rec.Store)
	}
	if rec.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", rec.Description)
	}
	if rec.AIAnalyzed {
		b.WriteString("🤖 AI analyzed\n")
	}
	if rec.HasImage {
		b.WriteString("📎 Receipt photo attached\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
