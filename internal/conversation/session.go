package conversation

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dodey917/nomarddeskassist-bot/internal/scanning"
)

// State is a position in the field-collection sequence.
type State int

const (
	StateIdle State = iota
	StateAwaitingSaveConfirmation
	StateAwaitingName
	StateAwaitingAmount
	StateAwaitingDate
	StateAwaitingCategory
	StateAwaitingDescription
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingSaveConfirmation:
		return "awaiting_save_confirmation"
	case StateAwaitingName:
		return "awaiting_name"
	case StateAwaitingAmount:
		return "awaiting_amount"
	case StateAwaitingDate:
		return "awaiting_date"
	case StateAwaitingCategory:
		return "awaiting_category"
	case StateAwaitingDescription:
		return "awaiting_description"
	default:
		return "unknown"
	}
}

// Session tracks one in-progress transaction entry for a single chat.
// Optional fields are pointers so that "not collected yet" is distinguishable
// from a collected empty value.
type Session struct {
	State  State
	UserID int64

	Name        string
	Amount      *decimal.Decimal
	Date        string
	Category    string
	Description *string
	Store       string

	HasImage bool
	// Prefilled marks that the user accepted the extracted amount/date/store,
	// which enables the name-to-category shortcut edge.
	Prefilled bool

	// Extraction is held only while its fields may still serve as defaults.
	// It is dropped on the enter-manually branch and never stored when the
	// extractor reported an error.
	Extraction *scanning.Extraction
	Image      []byte
	ImageType  string

	// Extracting is set while an extractor call is in flight; inbound
	// messages are ignored during that window instead of racing it.
	Extracting bool

	LastActivity time.Time
}

// extractedAmount returns the extracted amount usable as a default, or nil.
func (s *Session) extractedAmount() *decimal.Decimal {
	if s.Extraction == nil || s.Extraction.Err != "" {
		return nil
	}
	return s.Extraction.Amount
}

// extractedDate returns the extracted date usable as a default, or "".
func (s *Session) extractedDate() string {
	if s.Extraction == nil || s.Extraction.Err != "" {
		return ""
	}
	return s.Extraction.Date
}

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// sessionManager owns the per-chat sessions. Sessions are transient and live
// only in memory; abandoned ones are expired lazily on the next access.
type sessionManager struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	idle     time.Duration
	clock    Clock
}

func newSessionManager(idle time.Duration, clock Clock) *sessionManager {
	return &sessionManager{
		sessions: make(map[int64]*Session),
		idle:     idle,
		clock:    clock,
	}
}

// get returns the active session for a chat, or nil. A session whose idle
// timeout elapsed is discarded as if the user had never started it.
func (m *sessionManager) get(chatID int64) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[chatID]
	if !ok {
		return nil
	}
	if m.idle > 0 && m.clock.Now().Sub(sess.LastActivity) > m.idle {
		delete(m.sessions, chatID)
		return nil
	}
	sess.LastActivity = m.clock.Now()
	return sess
}

// reset discards any previous session for the chat and installs a fresh one.
// Last command wins: starting a new flow mid-flight drops partial data.
func (m *sessionManager) reset(chatID, userID int64) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := &Session{
		State:        StateIdle,
		UserID:       userID,
		LastActivity: m.clock.Now(),
	}
	m.sessions[chatID] = sess
	return sess
}

// clear removes the session for a chat.
func (m *sessionManager) clear(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, chatID)
}
