package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/dodey917/nomarddeskassist-bot/internal/archive"
	"github.com/dodey917/nomarddeskassist-bot/internal/conversation"
	"github.com/dodey917/nomarddeskassist-bot/internal/scanning"
	"github.com/dodey917/nomarddeskassist-bot/internal/sheets"
	"github.com/dodey917/nomarddeskassist-bot/internal/telegram"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	fs := ff.NewFlagSet("expense-bot")
	var (
		telegramToken  = fs.StringLong("telegram-token", "", "Telegram bot token (or set EXPENSE_BOT_TELEGRAM_TOKEN)")
		spreadsheetID  = fs.StringLong("spreadsheet-id", "", "Google Spreadsheet ID to append transactions to")
		googleCreds    = fs.StringLong("google-creds", "", "Service-account credentials: a file path or the inline JSON")
		extractorType  = fs.StringLong("extractor", "gemini", "Receipt extractor: 'gemini', 'ollama' or 'ocr'")
		geminiKey      = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel    = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL      = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel    = fs.StringLong("ollama-model", "llava", "Ollama vision model name")
		ocrLanguage    = fs.StringLong("ocr-language", "eng", "Tesseract language for the 'ocr' extractor")
		archiveDB      = fs.StringLong("archive-db", "receipts.db", "Receipt archive index file path")
		archiveDir     = fs.StringLong("archive-dir", "./receipts", "Receipt archive storage directory")
		requestTimeout = fs.DurationLong("request-timeout", 30*time.Second, "Timeout for extractor and sheet calls")
		sessionTimeout = fs.DurationLong("session-timeout", conversation.DefaultIdleTimeout, "Idle timeout for abandoned entries (0 disables)")
		appendRetries  = fs.UintLong("append-retries", 3, "Bounded retries for a failed sheet append")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("EXPENSE_BOT"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// Configuration errors are fatal at startup; the process must never get
	// to a conversation and then crash mid-flow on a missing credential.
	if *telegramToken == "" {
		slog.Error("Telegram token is required. Set --telegram-token or EXPENSE_BOT_TELEGRAM_TOKEN")
		os.Exit(1)
	}
	if *spreadsheetID == "" {
		slog.Error("Spreadsheet ID is required. Set --spreadsheet-id or EXPENSE_BOT_SPREADSHEET_ID")
		os.Exit(1)
	}
	creds, err := loadCredentials(*googleCreds)
	if err != nil {
		slog.Error("Failed to load Google credentials", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Initializing sheet client...", "spreadsheet_id", *spreadsheetID)
	ledger, err := sheets.NewClient(ctx, *spreadsheetID, creds, conversation.HeaderRow())
	if err != nil {
		slog.Error("Failed to initialize sheet client", "error", err)
		os.Exit(1)
	}
	ledger.SetTimeout(*requestTimeout)
	ledger.SetMaxRetries(uint64(*appendRetries))

	var extractor scanning.Extractor
	switch *extractorType {
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini extractor...", "model", *geminiModel)
		extractor, err = scanning.NewGemini(ctx, apiKey, *geminiModel, *requestTimeout)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama extractor...", "url", *ollamaURL, "model", *ollamaModel)
		extractor, err = scanning.NewOllama(*ollamaURL, *ollamaModel, *requestTimeout)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	case "ocr":
		slog.Info("Initializing OCR extractor...", "language", *ocrLanguage)
		extractor = scanning.NewOCR(*ocrLanguage)
	default:
		slog.Error("Invalid extractor type", "type", *extractorType, "valid", "gemini, ollama or ocr")
		os.Exit(1)
	}
	defer extractor.Close()

	slog.Info("Initializing receipt archive...", "db", *archiveDB, "dir", *archiveDir)
	arch, err := archive.New(*archiveDB, *archiveDir)
	if err != nil {
		slog.Error("Failed to initialize archive", "error", err)
		os.Exit(1)
	}
	defer arch.Close()

	bot, err := telegram.New(*telegramToken)
	if err != nil {
		slog.Error("Failed to connect to Telegram", "error", err)
		os.Exit(1)
	}

	controller := conversation.NewWithDeps(bot, extractor, ledger, arch, nil, *sessionTimeout)

	if err := bot.Run(ctx, controller); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Bot stopped", "error", err)
		os.Exit(1)
	}

	slog.Info("Shutting down...")
}

// loadCredentials accepts either inline service-account JSON or a path to a
// file containing it.
func loadCredentials(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("credentials are required. Set --google-creds or EXPENSE_BOT_GOOGLE_CREDS")
	}
	if strings.HasPrefix(value, "{") {
		return []byte(value), nil
	}
	data, err := os.ReadFile(value)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}
	return data, nil
}
