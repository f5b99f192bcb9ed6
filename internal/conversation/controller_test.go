package conversation

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/dodey917/nomarddeskassist-bot/internal/scanning"
)

func TestConversation(t *testing.T) {
	// Disable logging during tests
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	RegisterFailHandler(Fail)
	RunSpecs(t, "Conversation Suite")
}

// mockTransport records outbound messages.
type mockTransport struct {
	texts   []string
	choices []sentChoices
	sendErr error
}

type sentChoices struct {
	text    string
	choices []Choice
}

func (m *mockTransport) SendText(chatID int64, text string) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.texts = append(m.texts, text)
	return nil
}

func (m *mockTransport) SendChoices(chatID int64, text string, choices []Choice) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.choices = append(m.choices, sentChoices{text: text, choices: choices})
	return nil
}

func (m *mockTransport) lastText() string {
	if len(m.texts) == 0 {
		return ""
	}
	return m.texts[len(m.texts)-1]
}

// mockExtractor returns a canned extraction. onExtract, when set, runs while
// the extraction is considered in flight.
type mockExtractor struct {
	ext       scanning.Extraction
	calls     int
	onExtract func()
}

func (m *mockExtractor) Extract(ctx context.Context, image []byte, contentType string) scanning.Extraction {
	m.calls++
	if m.onExtract != nil {
		m.onExtract()
	}
	return m.ext
}

func (m *mockExtractor) Close() error { return nil }

// mockLedger records appended rows and serves canned query results.
type mockLedger struct {
	rows        [][]string
	appendErr   error
	names       []string
	namesErr    error
	searchRows  [][]string
	searchTotal decimal.Decimal
	searchErr   error
}

func (m *mockLedger) AppendRow(ctx context.Context, row []string) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.rows = append(m.rows, row)
	return nil
}

func (m *mockLedger) ListNames(ctx context.Context) ([]string, error) {
	return m.names, m.namesErr
}

func (m *mockLedger) SearchByName(ctx context.Context, name string) ([][]string, decimal.Decimal, error) {
	return m.searchRows, m.searchTotal, m.searchErr
}

// mockArchive records stored photos.
type mockArchive struct {
	stored []storedPhoto
	err    error
}

type storedPhoto struct {
	chatID int64
	image  []byte
	rec    Record
}

func (m *mockArchive) Store(chatID int64, image []byte, contentType string, rec Record) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.stored = append(m.stored, storedPhoto{chatID: chatID, image: image, rec: rec})
	return "id", nil
}

// fixedClock is a settable clock.
type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

var _ = Describe("Controller", func() {
	var (
		ctx       context.Context
		transport *mockTransport
		extractor *mockExtractor
		ledger    *mockLedger
		arch      *mockArchive
		clock     *fixedClock
		ctrl      *Controller
		ev        Event
	)

	BeforeEach(func() {
		ctx = context.Background()
		transport = &mockTransport{}
		extractor = &mockExtractor{}
		ledger = &mockLedger{}
		arch = &mockArchive{}
		clock = &fixedClock{now: time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)}
		ctrl = NewWithDeps(transport, extractor, ledger, arch, clock, 30*time.Minute)
		ev = Event{ChatID: 7, UserID: 42}
	})

	text := func(s string) {
		e := ev
		e.Text = s
		Expect(ctrl.HandleText(ctx, e)).To(Succeed())
	}
	choice := func(data string) {
		Expect(ctrl.HandleChoice(ctx, ev, data)).To(Succeed())
	}
	command := func(cmd, args string) {
		Expect(ctrl.HandleCommand(ctx, ev, cmd, args)).To(Succeed())
	}
	photo := func() {
		Expect(ctrl.HandlePhoto(ctx, ev, []byte("img"), "image/jpeg")).To(Succeed())
	}

	When("completing the manual flow", func() {
		BeforeEach(func() {
			command("add", "")
			text("Jo")
			text("15")
			text("today")
			choice("category:Food")
			text("skip")
		})

		It("appends exactly one record", func() {
			Expect(ledger.rows).To(HaveLen(1))
		})

		It("fills the row in header order", func() {
			row := ledger.rows[0]
			Expect(row).To(Equal([]string{
				"2025-06-15 10:00:00", "42", "Jo", "15.00", "2025-06-15",
				"Food", "", "Unknown", "No", "No",
			}))
		})

		It("confirms with every populated field", func() {
			Expect(transport.lastText()).To(ContainSubstring("Transaction recorded"))
			Expect(transport.lastText()).To(ContainSubstring("Name: Jo"))
			Expect(transport.lastText()).To(ContainSubstring("Amount: 15.00"))
			Expect(transport.lastText()).NotTo(ContainSubstring("AI analyzed"))
		})

		It("clears the session", func() {
			text("anything")
			Expect(transport.lastText()).To(Equal(idleHintText))
		})

		It("does not archive without a photo", func() {
			Expect(arch.stored).To(BeEmpty())
		})
	})

	When("input is invalid", func() {
		BeforeEach(func() {
			command("add", "")
		})

		It("re-prompts on an empty name and stays in place", func() {
			text("   ")
			Expect(transport.lastText()).To(Equal(invalidNameText))
			text("Jo")
			Expect(transport.lastText()).To(ContainSubstring("How much"))
		})

		It("re-prompts on a non-numeric amount and stays in place", func() {
			text("Jo")
			text("abc")
			Expect(transport.lastText()).To(ContainSubstring("couldn't read"))
			text("12.50")
			Expect(transport.lastText()).To(ContainSubstring("What date"))
		})

		It("re-prompts on a non-positive amount", func() {
			text("Jo")
			text("-5")
			Expect(transport.lastText()).To(ContainSubstring("couldn't read"))
		})

		It("accepts an amount with currency symbol and separators", func() {
			text("Jo")
			text("$1,234.56")
			choiceLess := ledger.rows
			Expect(choiceLess).To(BeEmpty())
			text("today")
			choice("category:Shopping")
			text("skip")
			Expect(ledger.rows[0][3]).To(Equal("1234.56"))
		})

		It("re-prompts on an impossible calendar date", func() {
			text("Jo")
			text("15")
			text("2025-13-40")
			Expect(transport.lastText()).To(ContainSubstring("not a valid date"))
			text("2025-03-01")
			Expect(ledger.rows).To(BeEmpty())
			choice("category:Food")
			text("skip")
			Expect(ledger.rows[0][4]).To(Equal("2025-03-01"))
		})

		It("ignores free text at the category step", func() {
			text("Jo")
			text("15")
			text("today")
			text("Food")
			Expect(transport.lastText()).To(Equal(invalidCategoryText))
			Expect(ledger.rows).To(BeEmpty())
		})
	})

	When("extraction fails", func() {
		BeforeEach(func() {
			extractor.ext = scanning.Extraction{Currency: "USD", Err: "model unavailable"}
			photo()
		})

		It("falls back directly to the name prompt", func() {
			Expect(transport.texts).To(ContainElement(extractFailedText))
			Expect(transport.lastText()).To(Equal(promptNameText))
			Expect(transport.choices).To(BeEmpty())
		})

		It("produces a record without the AI marker", func() {
			text("Jo")
			text("15")
			text("today")
			choice("category:Food")
			text("skip")
			row := ledger.rows[0]
			Expect(row[8]).To(Equal("No"))  // AI Analysis
			Expect(row[9]).To(Equal("Yes")) // Image Available
		})

		It("never accepts erroring extraction fields as defaults", func() {
			text("Jo")
			text("")
			Expect(transport.lastText()).To(ContainSubstring("couldn't read"))
		})
	})

	When("the user saves extracted data", func() {
		BeforeEach(func() {
			extractor.ext = scanning.Extraction{
				Amount:   dec("42.50"),
				Date:     "2025-03-01",
				Store:    "Acme",
				Currency: "USD",
			}
			photo()
		})

		It("offers the save/manual/cancel choices first", func() {
			Expect(transport.choices).To(HaveLen(1))
			Expect(transport.choices[0].text).To(ContainSubstring("Acme"))
			Expect(transport.choices[0].text).To(ContainSubstring("42.50"))
			Expect(transport.choices[0].choices).To(HaveLen(3))
		})

		It("skips the amount and date prompts entirely", func() {
			choice("save_extracted")
			text("Lunch")
			for _, sent := range transport.texts {
				Expect(sent).NotTo(ContainSubstring("How much"))
				Expect(sent).NotTo(ContainSubstring("What date"))
			}
			// The category choices are the next thing sent.
			Expect(transport.choices).To(HaveLen(2))
		})

		It("writes the extracted values with the AI marker", func() {
			choice("save_extracted")
			text("Lunch")
			choice("category:Food")
			text("skip")
			row := ledger.rows[0]
			Expect(row[2]).To(Equal("Lunch"))
			Expect(row[3]).To(Equal("42.50"))
			Expect(row[4]).To(Equal("2025-03-01"))
			Expect(row[7]).To(Equal("Acme"))
			Expect(row[8]).To(Equal("Yes"))
			Expect(row[9]).To(Equal("Yes"))
		})

		It("archives the photo once the record is written", func() {
			choice("save_extracted")
			text("Lunch")
			choice("category:Food")
			text("skip")
			Expect(arch.stored).To(HaveLen(1))
			Expect(arch.stored[0].image).To(Equal([]byte("img")))
			Expect(arch.stored[0].rec.Store).To(Equal("Acme"))
		})
	})

	When("the extraction summary pre-fills the description", func() {
		BeforeEach(func() {
			extractor.ext = scanning.Extraction{
				Amount:   dec("42.50"),
				Date:     "2025-03-01",
				Store:    "Acme",
				Currency: "USD",
				Summary:  "Office supplies",
			}
			photo()
			choice("save_extracted")
			text("Supplies")
			choice("category:Shopping")
		})

		It("skips the description step and writes immediately", func() {
			Expect(ledger.rows).To(HaveLen(1))
			Expect(ledger.rows[0][6]).To(Equal("Office supplies"))
		})
	})

	When("the extraction has no store name", func() {
		BeforeEach(func() {
			extractor.ext = scanning.Extraction{
				Amount:   dec("42.50"),
				Date:     "2025-03-01",
				Currency: "USD",
			}
			photo()
			choice("save_extracted")
			text("Lunch")
		})

		It("asks for the amount with the extracted default", func() {
			Expect(transport.lastText()).To(ContainSubstring("42.50"))
		})

		It("accepts empty input as the extracted amount and date", func() {
			text("")
			Expect(transport.lastText()).To(ContainSubstring("2025-03-01"))
			text("")
			choice("category:Food")
			text("skip")
			row := ledger.rows[0]
			Expect(row[3]).To(Equal("42.50"))
			Expect(row[4]).To(Equal("2025-03-01"))
			Expect(row[7]).To(Equal("Unknown"))
		})
	})

	When("the user enters manually after a successful extraction", func() {
		BeforeEach(func() {
			extractor.ext = scanning.Extraction{
				Amount:   dec("15.00"),
				Date:     "2025-01-10",
				Store:    "Cafe X",
				Currency: "USD",
			}
			photo()
			choice("enter_manually")
		})

		It("discards the extraction defaults entirely", func() {
			text("Jo")
			text("")
			Expect(transport.lastText()).To(ContainSubstring("couldn't read"))
		})

		It("produces the fully manual record with the image marker", func() {
			text("Jo")
			text("15")
			text("today")
			choice("category:Food")
			text("skip")
			Expect(ledger.rows).To(HaveLen(1))
			Expect(ledger.rows[0]).To(Equal([]string{
				"2025-06-15 10:00:00", "42", "Jo", "15.00", "2025-06-15",
				"Food", "", "Unknown", "No", "Yes",
			}))
		})
	})

	When("cancelling", func() {
		It("reports when there is nothing to cancel", func() {
			command("cancel", "")
			Expect(transport.lastText()).To(Equal(nothingToCancelText))
		})

		It("returns to idle from every collection state", func() {
			reach := []func(){
				func() { command("add", "") },
				func() { command("add", ""); text("Jo") },
				func() { command("add", ""); text("Jo"); text("15") },
				func() { command("add", ""); text("Jo"); text("15"); text("today") },
				func() {
					extractor.ext = scanning.Extraction{Amount: dec("5"), Currency: "USD"}
					photo()
				},
			}
			for _, enter := range reach {
				enter()
				command("cancel", "")
				Expect(transport.lastText()).To(Equal(cancelledText))
				text("hello")
				Expect(transport.lastText()).To(Equal(idleHintText))
			}
			Expect(ledger.rows).To(BeEmpty())
		})

		It("cancels from the save-confirmation buttons", func() {
			extractor.ext = scanning.Extraction{Amount: dec("5"), Currency: "USD"}
			photo()
			choice("cancel")
			Expect(transport.lastText()).To(Equal(cancelledText))
			text("hello")
			Expect(transport.lastText()).To(Equal(idleHintText))
		})
	})

	When("a new flow starts mid-flight", func() {
		It("discards the previous partial data", func() {
			command("add", "")
			text("First")
			command("add", "")
			text("Second")
			text("9")
			text("today")
			choice("category:Other")
			text("skip")
			Expect(ledger.rows).To(HaveLen(1))
			Expect(ledger.rows[0][2]).To(Equal("Second"))
		})

		It("lets a photo replace a manual entry in progress", func() {
			command("add", "")
			text("First")
			extractor.ext = scanning.Extraction{Amount: dec("5"), Currency: "USD"}
			photo()
			Expect(transport.choices).To(HaveLen(1))
		})
	})

	When("the session sits idle past the timeout", func() {
		It("is discarded on the next event", func() {
			command("add", "")
			text("Jo")
			clock.now = clock.now.Add(31 * time.Minute)
			text("15")
			Expect(transport.lastText()).To(Equal(idleHintText))
		})
	})

	When("a message arrives while extraction is in flight", func() {
		It("is answered with a busy notice and ignored", func() {
			extractor.ext = scanning.Extraction{Amount: dec("5"), Currency: "USD"}
			extractor.onExtract = func() {
				e := ev
				e.Text = "impatient"
				Expect(ctrl.HandleText(ctx, e)).To(Succeed())
			}
			photo()
			Expect(transport.texts).To(ContainElement(extractionBusyText))
			Expect(transport.choices).To(HaveLen(1))
		})
	})

	When("the sheet append fails", func() {
		BeforeEach(func() {
			ledger.appendErr = context.DeadlineExceeded
			command("add", "")
			text("Jo")
			text("15")
			text("today")
			choice("category:Food")
			text("skip")
		})

		It("reports a generic failure without internals", func() {
			Expect(transport.lastText()).To(Equal(writeFailedText))
		})

		It("discards the session so the user starts fresh", func() {
			text("hello")
			Expect(transport.lastText()).To(Equal(idleHintText))
		})

		It("does not archive the photo", func() {
			Expect(arch.stored).To(BeEmpty())
		})
	})

	When("querying", func() {
		It("lists recorded names", func() {
			ledger.names = []string{"Groceries", "Rent"}
			command("list", "")
			Expect(transport.lastText()).To(ContainSubstring("Groceries"))
			Expect(transport.lastText()).To(ContainSubstring("Rent"))
		})

		It("reports an empty sheet", func() {
			command("list", "")
			Expect(transport.lastText()).To(Equal("No transactions recorded yet."))
		})

		It("requires a search argument", func() {
			command("search", "")
			Expect(transport.lastText()).To(ContainSubstring("Usage"))
		})

		It("sums the matches", func() {
			ledger.searchRows = [][]string{
				{"2025-06-01 09:00:00", "42", "Jo", "15.00", "2025-06-01", "Food", "", "Unknown", "No", "No"},
				{"2025-06-02 09:00:00", "42", "Jo", "5.50", "2025-06-02", "Food", "", "Cafe X", "No", "No"},
			}
			ledger.searchTotal = decimal.RequireFromString("20.50")
			command("search", "Jo")
			Expect(transport.lastText()).To(ContainSubstring("2025-06-01 — 15.00 (Food)"))
			Expect(transport.lastText()).To(ContainSubstring("@ Cafe X"))
			Expect(transport.lastText()).To(ContainSubstring("Total: 20.50"))
		})
	})
})
