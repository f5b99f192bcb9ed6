// Package archive keeps the original receipt photos after their transaction
// has been written: bytes on disk, metadata indexed in bbolt.
package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/dodey917/nomarddeskassist-bot/internal/conversation"
)

const bucketName = "receipts"

// Entry is one archived receipt photo and the transaction it backed.
type Entry struct {
	ID        string    `json:"id"`
	ChatID    int64     `json:"chat_id"`
	Name      string    `json:"name"`
	Store     string    `json:"store"`
	Amount    string    `json:"amount"`
	Date      string    `json:"date"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"created_at"`
}

// Archive implements conversation.Archive over a bbolt index and a local
// storage directory.
type Archive struct {
	db  *bbolt.DB
	dir string
}

// New opens (or creates) the archive database and storage directory.
func New(dbPath, dir string) (*Archive, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening archive db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &Archive{db: db, dir: dir}, nil
}

// Store writes the photo bytes to disk and indexes an entry for them.
func (a *Archive) Store(chatID int64, image []byte, contentType string, rec conversation.Record) (string, error) {
	id := uuid.NewString()
	filename := id + extensionFor(contentType)

	path := filepath.Join(a.dir, filename)
	if err := os.WriteFile(path, image, 0644); err != nil {
		return "", fmt.Errorf("writing photo: %w", err)
	}

	entry := Entry{
		ID:        id,
		ChatID:    chatID,
		Name:      rec.Name,
		Store:     rec.Store,
		Amount:    rec.Amount.StringFixed(2),
		Date:      rec.Date,
		Filename:  filename,
		CreatedAt: rec.Timestamp,
	}

	err := a.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshaling entry: %w", err)
		}
		return tx.Bucket([]byte(bucketName)).Put([]byte(id), data)
	})
	if err != nil {
		// The photo file without an index entry is useless.
		os.Remove(path)
		return "", fmt.Errorf("indexing entry: %w", err)
	}

	return id, nil
}

// Get retrieves an archived entry and its photo bytes.
func (a *Archive) Get(id string) (*Entry, []byte, error) {
	var entry *Entry
	err := a.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("entry not found: %s", id)
		}
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return nil, nil, err
	}

	image, err := os.ReadFile(filepath.Join(a.dir, entry.Filename))
	if err != nil {
		return nil, nil, fmt.Errorf("reading photo: %w", err)
	}
	return entry, image, nil
}

// List returns all archived entries.
func (a *Archive) List() ([]*Entry, error) {
	entries := make([]*Entry, 0)
	err := a.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("unmarshaling entry: %w", err)
			}
			entries = append(entries, &entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Close closes the archive database.
func (a *Archive) Close() error {
	return a.db.Close()
}

func extensionFor(contentType string) string {
	switch contentType {
	case "application/pdf":
		return ".pdf"
	case "image/png":
		return ".png"
	case "image/heic", "image/heif":
		return ".heic"
	default:
		return ".jpg"
	}
}
