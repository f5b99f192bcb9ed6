package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dodey917/nomarddeskassist-bot/internal/scanning"
)

// DefaultIdleTimeout is how long an abandoned mid-flow session survives
// before the next event discards it.
const DefaultIdleTimeout = 30 * time.Minute

// Choice is one tappable option attached to an outbound message.
type Choice struct {
	Label string
	Data  string
}

// Transport delivers outbound messages to the chat platform.
type Transport interface {
	SendText(chatID int64, text string) error
	SendChoices(chatID int64, text string, choices []Choice) error
}

// Ledger persists finished records and answers the query commands.
type Ledger interface {
	AppendRow(ctx context.Context, row []string) error
	ListNames(ctx context.Context) ([]string, error)
	SearchByName(ctx context.Context, name string) (rows [][]string, total decimal.Decimal, err error)
}

// Archive keeps receipt photos after their transaction is written. It is
// best-effort: failures are logged, never surfaced to the user.
type Archive interface {
	Store(chatID int64, image []byte, contentType string, rec Record) (string, error)
}

// Event is one inbound chat event.
type Event struct {
	ChatID int64
	UserID int64
	Text   string
}

// Callback data values for the tappable choices.
const (
	choiceSaveExtracted = "save_extracted"
	choiceEnterManually = "enter_manually"
	choiceCancel        = "cancel"
	categoryPrefix      = "category:"
)

// Controller is the per-process conversation state machine. It reacts to one
// inbound event at a time and sequences the collection of transaction fields.
type Controller struct {
	transport Transport
	extractor scanning.Extractor
	ledger    Ledger
	archive   Archive // optional
	sessions  *sessionManager
	clock     Clock
}

// New creates a Controller with the system clock and default idle timeout.
func New(transport Transport, extractor scanning.Extractor, ledger Ledger, archive Archive) *Controller {
	return NewWithDeps(transport, extractor, ledger, archive, systemClock{}, DefaultIdleTimeout)
}

// NewWithDeps creates a Controller with a custom clock and idle timeout. A
// nil clock means the system clock; a non-positive idle timeout disables
// session expiry.
func NewWithDeps(transport Transport, extractor scanning.Extractor, ledger Ledger, archive Archive, clock Clock, idle time.Duration) *Controller {
	if clock == nil {
		clock = systemClock{}
	}
	return &Controller{
		transport: transport,
		extractor: extractor,
		ledger:    ledger,
		archive:   archive,
		sessions:  newSessionManager(idle, clock),
		clock:     clock,
	}
}

// Reset discards the session for a chat. The transport adapter calls it after
// an unexpected error so the user can start clean.
func (c *Controller) Reset(chatID int64) {
	c.sessions.clear(chatID)
}

// HandleCommand reacts to a slash command.
func (c *Controller) HandleCommand(ctx context.Context, ev Event, command, args string) error {
	switch command {
	case "start", "help":
		return c.transport.SendText(ev.ChatID, welcomeText)
	case "add":
		return c.startManualEntry(ev)
	case "cancel":
		return c.cancel(ev)
	case "list":
		return c.listNames(ctx, ev)
	case "search":
		return c.searchByName(ctx, ev, args)
	default:
		return c.transport.SendText(ev.ChatID, idleHintText)
	}
}

// startManualEntry begins the manual flow, discarding any stale session.
func (c *Controller) startManualEntry(ev Event) error {
	sess := c.sessions.reset(ev.ChatID, ev.UserID)
	sess.State = StateAwaitingName
	return c.transport.SendText(ev.ChatID, promptNameText)
}

// cancel is accepted from every state except idle.
func (c *Controller) cancel(ev Event) error {
	sess := c.sessions.get(ev.ChatID)
	if sess == nil || sess.State == StateIdle {
		c.sessions.clear(ev.ChatID)
		return c.transport.SendText(ev.ChatID, nothingToCancelText)
	}
	c.sessions.clear(ev.ChatID)
	return c.transport.SendText(ev.ChatID, cancelledText)
}

// HandlePhoto starts a photo flow: extract fields from the receipt, then
// either offer the extracted data or fall back to manual entry.
func (c *Controller) HandlePhoto(ctx context.Context, ev Event, image []byte, contentType string) error {
	if sess := c.sessions.get(ev.ChatID); sess != nil && sess.Extracting {
		return c.transport.SendText(ev.ChatID, extractionBusyText)
	}

	// Last command wins: a new photo discards any partial entry.
	sess := c.sessions.reset(ev.ChatID, ev.UserID)
	sess.HasImage = true
	sess.Image = image
	sess.ImageType = contentType
	sess.Extracting = true

	ext := c.extractor.Extract(ctx, image, contentType)
	sess.Extracting = false

	if ext.Err != "" || !ext.Usable() {
		if ext.Err != "" {
			slog.Warn("receipt extraction failed", "chat_id", ev.ChatID, "error", ext.Err)
		}
		sess.Extraction = nil
		sess.State = StateAwaitingName
		if err := c.transport.SendText(ev.ChatID, extractFailedText); err != nil {
			return err
		}
		return c.transport.SendText(ev.ChatID, promptNameText)
	}

	sess.Extraction = &ext
	sess.State = StateAwaitingSaveConfirmation
	return c.transport.SendChoices(ev.ChatID, extractionSummaryText(ext), []Choice{
		{Label: "💾 Use extracted data", Data: choiceSaveExtracted},
		{Label: "✏️ Enter manually", Data: choiceEnterManually},
		{Label: "❌ Cancel", Data: choiceCancel},
	})
}

// HandleChoice reacts to a tapped button.
func (c *Controller) HandleChoice(ctx context.Context, ev Event, data string) error {
	if data == choiceCancel {
		return c.cancel(ev)
	}

	sess := c.sessions.get(ev.ChatID)
	if sess == nil {
		return c.transport.SendText(ev.ChatID, idleHintText)
	}

	switch {
	case data == choiceSaveExtracted && sess.State == StateAwaitingSaveConfirmation:
		return c.acceptExtraction(ev, sess)
	case data == choiceEnterManually && sess.State == StateAwaitingSaveConfirmation:
		sess.Extraction = nil // manual path trusts nothing from the extraction
		sess.State = StateAwaitingName
		return c.transport.SendText(ev.ChatID, promptNameText)
	case strings.HasPrefix(data, categoryPrefix) && sess.State == StateAwaitingCategory:
		return c.acceptCategory(ctx, ev, sess, strings.TrimPrefix(data, categoryPrefix))
	default:
		// A stale button from an earlier message; re-prompt for the current state.
		return c.reprompt(ev, sess)
	}
}

// acceptExtraction copies the extracted fields in as pre-filled values. The
// name is never inferable and is always asked next.
func (c *Controller) acceptExtraction(ev Event, sess *Session) error {
	ext := sess.Extraction
	if ext == nil {
		sess.State = StateAwaitingName
		return c.transport.SendText(ev.ChatID, promptNameText)
	}
	sess.Amount = ext.Amount
	sess.Date = ext.Date
	sess.Store = ext.Store
	if ext.Summary != "" {
		summary := ext.Summary
		sess.Description = &summary
	}
	sess.Prefilled = true
	sess.State = StateAwaitingName
	return c.transport.SendText(ev.ChatID, promptNameText)
}

// HandleText advances the state machine on free-text input.
func (c *Controller) HandleText(ctx context.Context, ev Event) error {
	sess := c.sessions.get(ev.ChatID)
	if sess == nil || sess.State == StateIdle {
		return c.transport.SendText(ev.ChatID, idleHintText)
	}
	if sess.Extracting {
		return c.transport.SendText(ev.ChatID, extractionBusyText)
	}

	switch sess.State {
	case StateAwaitingSaveConfirmation:
		return c.reprompt(ev, sess)
	case StateAwaitingName:
		return c.collectName(ev, sess)
	case StateAwaitingAmount:
		return c.collectAmount(ev, sess)
	case StateAwaitingDate:
		return c.collectDate(ev, sess)
	case StateAwaitingCategory:
		return c.transport.SendText(ev.ChatID, invalidCategoryText)
	case StateAwaitingDescription:
		return c.collectDescription(ctx, ev, sess)
	default:
		return c.reprompt(ev, sess)
	}
}

func (c *Controller) collectName(ev Event, sess *Session) error {
	name := strings.TrimSpace(ev.Text)
	if name == "" {
		return c.transport.SendText(ev.ChatID, invalidNameText)
	}
	sess.Name = name

	// Confirmed extracted data is never re-asked: jump straight to the
	// category step when amount, store, and date all came pre-filled.
	if sess.Prefilled && sess.Amount != nil && sess.Store != "" && sess.Date != "" {
		sess.State = StateAwaitingCategory
		return c.sendCategoryChoices(ev.ChatID)
	}

	sess.State = StateAwaitingAmount
	return c.transport.SendText(ev.ChatID, promptAmountText(sess.extractedAmount(), c.extractionCurrency(sess)))
}

func (c *Controller) collectAmount(ev Event, sess *Session) error {
	input := strings.TrimSpace(ev.Text)

	var amount decimal.Decimal
	if input == "" && sess.extractedAmount() != nil {
		amount = *sess.extractedAmount()
	} else {
		parsed, err := ParseAmount(input)
		if err != nil {
			return c.transport.SendText(ev.ChatID, invalidAmountText(input))
		}
		amount = parsed
	}

	sess.Amount = &amount
	sess.State = StateAwaitingDate
	return c.transport.SendText(ev.ChatID, promptDateText(sess.extractedDate()))
}

func (c *Controller) collectDate(ev Event, sess *Session) error {
	input := strings.TrimSpace(ev.Text)
	if input == "" && sess.extractedDate() != "" {
		input = sess.extractedDate()
	}

	date, err := ParseDate(input, c.clock.Now())
	if err != nil {
		return c.transport.SendText(ev.ChatID, invalidDateText(input))
	}
	sess.Date = date

	if sess.Store == "" {
		sess.Store = "Unknown"
	}
	sess.State = StateAwaitingCategory
	return c.sendCategoryChoices(ev.ChatID)
}

func (c *Controller) acceptCategory(ctx context.Context, ev Event, sess *Session, category string) error {
	if !ValidCategory(category) {
		return c.transport.SendText(ev.ChatID, invalidCategoryText)
	}
	sess.Category = category

	// A description pre-filled from the extraction summary skips the
	// description step entirely.
	if sess.Description != nil {
		return c.finish(ctx, ev, sess)
	}
	sess.State = StateAwaitingDescription
	return c.transport.SendText(ev.ChatID, promptDescriptionText)
}

func (c *Controller) collectDescription(ctx context.Context, ev Event, sess *Session) error {
	text := strings.TrimSpace(ev.Text)
	if strings.EqualFold(text, "skip") {
		text = ""
	}
	sess.Description = &text
	return c.finish(ctx, ev, sess)
}

// finish assembles the record, writes it, and reports the outcome. The
// session is cleared unconditionally: a failed write is not retryable by the
// bot beyond the ledger's own bounded retries, so the user must start over.
func (c *Controller) finish(ctx context.Context, ev Event, sess *Session) error {
	defer c.sessions.clear(ev.ChatID)

	rec := c.assembleRecord(sess)
	if err := rec.Validate(); err != nil {
		slog.Error("record assembly failed", "chat_id", ev.ChatID, "state", sess.State.String(), "error", err)
		return c.transport.SendText(ev.ChatID, restartText)
	}

	if err := c.ledger.AppendRow(ctx, rec.Row()); err != nil {
		slog.Error("appending record to sheet", "chat_id", ev.ChatID, "error", err)
		return c.transport.SendText(ev.ChatID, writeFailedText)
	}

	if c.archive != nil && sess.HasImage && len(sess.Image) > 0 {
		if _, err := c.archive.Store(ev.ChatID, sess.Image, sess.ImageType, rec); err != nil {
			slog.Warn("archiving receipt photo", "chat_id", ev.ChatID, "error", err)
		}
	}

	return c.transport.SendText(ev.ChatID, confirmationText(rec))
}

func (c *Controller) assembleRecord(sess *Session) Record {
	rec := Record{
		Timestamp:  c.clock.Now(),
		UserID:     sess.UserID,
		Name:       sess.Name,
		Date:       sess.Date,
		Category:   sess.Category,
		Store:      sess.Store,
		AIAnalyzed: sess.Prefilled,
		HasImage:   sess.HasImage,
	}
	if sess.Amount != nil {
		rec.Amount = *sess.Amount
	}
	if sess.Description != nil {
		rec.Description = *sess.Description
	}
	return rec
}

func (c *Controller) sendCategoryChoices(chatID int64) error {
	choices := make([]Choice, 0, len(Categories))
	for _, cat := range Categories {
		choices = append(choices, Choice{Label: cat, Data: categoryPrefix + cat})
	}
	return c.transport.SendChoices(chatID, promptCategoryText, choices)
}

// reprompt repeats the question for the session's current state.
func (c *Controller) reprompt(ev Event, sess *Session) error {
	switch sess.State {
	case StateAwaitingSaveConfirmation:
		if sess.Extraction != nil {
			return c.transport.SendChoices(ev.ChatID, extractionSummaryText(*sess.Extraction), []Choice{
				{Label: "💾 Use extracted data", Data: choiceSaveExtracted},
				{Label: "✏️ Enter manually", Data: choiceEnterManually},
				{Label: "❌ Cancel", Data: choiceCancel},
			})
		}
		return c.transport.SendText(ev.ChatID, promptNameText)
	case StateAwaitingName:
		return c.transport.SendText(ev.ChatID, promptNameText)
	case StateAwaitingAmount:
		return c.transport.SendText(ev.ChatID, promptAmountText(sess.extractedAmount(), c.extractionCurrency(sess)))
	case StateAwaitingDate:
		return c.transport.SendText(ev.ChatID, promptDateText(sess.extractedDate()))
	case StateAwaitingCategory:
		return c.sendCategoryChoices(ev.ChatID)
	case StateAwaitingDescription:
		return c.transport.SendText(ev.ChatID, promptDescriptionText)
	default:
		return c.transport.SendText(ev.ChatID, idleHintText)
	}
}

func (c *Controller) extractionCurrency(sess *Session) string {
	if sess.Extraction != nil && sess.Extraction.Currency != "" {
		return sess.Extraction.Currency
	}
	return scanning.DefaultCurrency
}

// listNames answers /list with the distinct names on the sheet.
func (c *Controller) listNames(ctx context.Context, ev Event) error {
	names, err := c.ledger.ListNames(ctx)
	if err != nil {
		slog.Error("listing names", "chat_id", ev.ChatID, "error", err)
		return c.transport.SendText(ev.ChatID, genericErrorText)
	}
	if len(names) == 0 {
		return c.transport.SendText(ev.ChatID, "No transactions recorded yet.")
	}
	return c.transport.SendText(ev.ChatID, "Recorded names:\n"+strings.Join(names, "\n"))
}

// searchByName answers /search <name> with matching rows and their total.
func (c *Controller) searchByName(ctx context.Context, ev Event, args string) error {
	name := strings.TrimSpace(args)
	if name == "" {
		return c.transport.SendText(ev.ChatID, "Usage: /search <name>")
	}

	rows, total, err := c.ledger.SearchByName(ctx, name)
	if err != nil {
		slog.Error("searching by name", "chat_id", ev.ChatID, "name", name, "error", err)
		return c.transport.SendText(ev.ChatID, genericErrorText)
	}
	if len(rows) == 0 {
		return c.transport.SendText(ev.ChatID, fmt.Sprintf("No transactions found for %q.", name))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Transactions for %q:\n", name)
	for _, row := range rows {
		b.WriteString(formatRow(row))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nTotal: %s", total.StringFixed(2))
	return c.transport.SendText(ev.ChatID, b.String())
}

// formatRow renders one sheet row for the search output. Column order
// follows HeaderRow.
func formatRow(row []string) string {
	get := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	line := fmt.Sprintf("%s — %s (%s)", get(4), get(3), get(5))
	if store := get(7); store != "" && store != "Unknown" {
		line += " @ " + store
	}
	return line
}
