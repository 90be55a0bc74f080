package chat

import (
	"sync"
	"time"

	"github.com/dotsetgreg/hoshibot/pkg/logger"
)

// MemoryEntry is one past exchange with a user.
type MemoryEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	UserMessage string    `json:"user_message"`
	BotResponse string    `json:"bot_response"`
}

// Snapshot is the full serialized state of conversation memory:
// identity key mapped to its ordered exchange log.
type Snapshot map[string][]MemoryEntry

// HistoryStore persists memory snapshots to durable storage.
type HistoryStore interface {
	Save(snapshot Snapshot) error
	Load() (Snapshot, error)
}

// Memory is the bounded per-identity conversation log. Every append
// evicts the oldest entry once max_history is reached and pushes a
// whole-state snapshot to the store. Store failures never propagate:
// the in-memory log stays authoritative and the error is only logged.
type Memory struct {
	maxHistory int
	store      HistoryStore
	now        func() time.Time

	mu   sync.RWMutex
	logs map[string][]MemoryEntry
}

func NewMemory(maxHistory int, store HistoryStore) *Memory {
	return &Memory{
		maxHistory: maxHistory,
		store:      store,
		now:        time.Now,
		logs:       make(map[string][]MemoryEntry),
	}
}

// SetClock replaces the memory's time source. Test hook.
func (m *Memory) SetClock(now func() time.Time) {
	m.now = now
}

// Hydrate loads the persisted snapshot into memory. Called once at
// startup; a load failure leaves memory empty and is only logged.
func (m *Memory) Hydrate() {
	if m.store == nil {
		return
	}
	snapshot, err := m.store.Load()
	if err != nil {
		logger.WarnCF("chat", "Failed to load conversation history", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	m.Load(snapshot)
	logger.InfoCF("chat", "Loaded conversation history", map[string]interface{}{
		"identities": len(snapshot),
	})
}

func (m *Memory) Append(identity, userMessage, botResponse string) {
	m.mu.Lock()
	entries := append(m.logs[identity], MemoryEntry{
		Timestamp:   m.now(),
		UserMessage: userMessage,
		BotResponse: botResponse,
	})
	if len(entries) > m.maxHistory {
		entries = entries[len(entries)-m.maxHistory:]
	}
	m.logs[identity] = entries
	m.mu.Unlock()

	m.persist()
}

func (m *Memory) persist() {
	if m.store == nil {
		return
	}
	if err := m.store.Save(m.Snapshot()); err != nil {
		logger.WarnCF("chat", "Failed to save conversation history", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// Recent returns up to n latest entries for an identity, oldest first.
func (m *Memory) Recent(identity string, n int) []MemoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.logs[identity]
	if len(entries) > n {
		entries = entries[len(entries)-n:]
	}

	out := make([]MemoryEntry, len(entries))
	copy(out, entries)
	return out
}

// Snapshot returns a deep copy of the full mapping.
func (m *Memory) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := make(Snapshot, len(m.logs))
	for identity, entries := range m.logs {
		copied := make([]MemoryEntry, len(entries))
		copy(copied, entries)
		snapshot[identity] = copied
	}
	return snapshot
}

// Load replaces the in-memory state with a snapshot, re-applying the
// history cap per identity.
func (m *Memory) Load(snapshot Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logs = make(map[string][]MemoryEntry, len(snapshot))
	for identity, entries := range snapshot {
		if len(entries) > m.maxHistory {
			entries = entries[len(entries)-m.maxHistory:]
		}
		copied := make([]MemoryEntry, len(entries))
		copy(copied, entries)
		m.logs[identity] = copied
	}
}

// ActiveIdentities reports how many identities have at least one entry.
func (m *Memory) ActiveIdentities() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.logs)
}

// TotalExchanges reports the total entry count across identities.
func (m *Memory) TotalExchanges() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0
	for _, entries := range m.logs {
		total += len(entries)
	}
	return total
}
