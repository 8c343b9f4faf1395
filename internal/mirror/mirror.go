// Package mirror holds the client-side quest status cache. A Mirror is a
// disposable projection of server state: created on connect, thrown away on
// disconnect, and never consulted for anything authoritative.
package mirror

import (
	"sync"

	"questline.gg/internal/quest"
)

type Mirror struct {
	mu     sync.Mutex
	known  map[string]bool
	status map[string]quest.Status
}

// New builds an empty mirror over the quest ids the client's catalog copy
// knows about. Everything starts implicitly INCOMPLETE.
func New(questIDs []string) *Mirror {
	known := make(map[string]bool, len(questIDs))
	for _, id := range questIDs {
		known[id] = true
	}
	return &Mirror{
		known:  known,
		status: map[string]quest.Status{},
	}
}

// Apply overwrites the local entry with the server's status: server wins,
// no merge. Returns true when the entry actually changed, so applying the
// same sync twice is observably a no-op. Unknown quest ids and unknown
// status strings are ignored; the catalog may differ momentarily during a
// server-side reload.
func (m *Mirror) Apply(questID string, status quest.Status) bool {
	if !quest.ValidStatus(status) {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.known[questID] {
		return false
	}
	if m.status[questID] == status || (status == quest.StatusIncomplete && m.status[questID] == "") {
		return false
	}
	m.status[questID] = status
	return true
}

// Status reads the cached status; absence reads as INCOMPLETE.
func (m *Mirror) Status(questID string) quest.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.status[questID]; ok {
		return st
	}
	return quest.StatusIncomplete
}

// Snapshot copies the non-default entries for display.
func (m *Mirror) Snapshot() map[string]quest.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]quest.Status, len(m.status))
	for id, st := range m.status {
		out[id] = st
	}
	return out
}
