package assistant

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"calassist/internal/models"

	"github.com/google/uuid"
)

// HistoryStore keeps chat history per account in JSON files under dir.
type HistoryStore struct {
	dir string
	now func() time.Time
}

// NewHistoryStore creates a store writing into dir.
func NewHistoryStore(dir string) *HistoryStore {
	return &HistoryStore{dir: dir, now: time.Now}
}

func (h *HistoryStore) path(account string) string {
	return filepath.Join(h.dir, "chat-history-"+account+".json")
}

// Load returns the history for account, empty when none was saved yet.
func (h *HistoryStore) Load(account string) ([]models.ChatEntry, error) {
	data, err := os.ReadFile(h.path(account))
	if err != nil {
		if os.IsNotExist(err) {
			return []models.ChatEntry{}, nil
		}
		return nil, fmt.Errorf("failed to read chat history: %w", err)
	}
	var entries []models.ChatEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse chat history: %w", err)
	}
	return entries, nil
}

// Append records one exchange and returns the stored entry.
func (h *HistoryStore) Append(account, userMessage, aiResponse string) (models.ChatEntry, error) {
	entries, err := h.Load(account)
	if err != nil {
		return models.ChatEntry{}, err
	}
	entry := models.ChatEntry{
		ID:          uuid.New().String(),
		UserMessage: userMessage,
		AIResponse:  aiResponse,
		Timestamp:   h.now().UTC(),
	}
	if err := h.save(account, append(entries, entry)); err != nil {
		return models.ChatEntry{}, err
	}
	return entry, nil
}

// Clear removes the history for account.
func (h *HistoryStore) Clear(account string) error {
	if err := os.Remove(h.path(account)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear chat history: %w", err)
	}
	return nil
}

func (h *HistoryStore) save(account string, entries []models.ChatEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal chat history: %w", err)
	}
	return os.WriteFile(h.path(account), data, 0600)
}
