package track

import (
	"fmt"
	"sync"
	"time"

	"questline.gg/internal/persistence/progressfile"
	"questline.gg/internal/quest"
)

// Store holds per-player objective progress and quest status. Numeric
// progress only moves through RecordProgress, which ratchets: a later, lower
// live observation never erases banked progress.
//
// The tracker goroutine is the only writer during normal operation; the
// coarse mutex exists for the flush path and admin reads, which run on other
// goroutines.
type Store struct {
	mu       sync.Mutex
	worldID  string
	progress map[string]map[string]int          // player -> objectiveKey -> n
	status   map[string]map[string]quest.Status // player -> questID -> status
	dirty    bool
}

func NewStore(worldID string) *Store {
	return &Store{
		worldID:  worldID,
		progress: map[string]map[string]int{},
		status:   map[string]map[string]quest.Status{},
	}
}

func (s *Store) Progress(playerID, objectiveKey string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress[playerID][objectiveKey]
}

// RecordProgress stores max(previous, clamp(live, 0, required)) and returns
// the stored value. Marks the store dirty only when the value actually moved.
func (s *Store) RecordProgress(playerID, objectiveKey string, live, required int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := quest.Clamp(live, 0, required)
	prev := s.progress[playerID][objectiveKey]
	if next <= prev {
		return prev
	}
	m, ok := s.progress[playerID]
	if !ok {
		m = map[string]int{}
		s.progress[playerID] = m
	}
	m[objectiveKey] = next
	s.dirty = true
	return next
}

// Status reads the quest status; absence means incomplete.
func (s *Store) Status(playerID, questID string) quest.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.status[playerID][questID]; ok {
		return st
	}
	return quest.StatusIncomplete
}

func (s *Store) SetStatus(playerID, questID string, st quest.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.status[playerID]
	if !ok {
		m = map[string]quest.Status{}
		s.status[playerID] = m
	}
	if m[questID] == st {
		return
	}
	m[questID] = st
	s.dirty = true
}

// StatusSnapshot copies a player's status map for read-only reporting.
func (s *Store) StatusSnapshot(playerID string) map[string]quest.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]quest.Status, len(s.status[playerID]))
	for id, st := range s.status[playerID] {
		out[id] = st
	}
	return out
}

// ProgressSnapshot copies a player's numeric progress map.
func (s *Store) ProgressSnapshot(playerID string) map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.progress[playerID]))
	for k, v := range s.progress[playerID] {
		out[k] = v
	}
	return out
}

// ResetPlayer drops every numeric and status record for the player. Atomic
// from the point of view of subsequent reads.
func (s *Store) ResetPlayer(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, hadP := s.progress[playerID]
	_, hadS := s.status[playerID]
	delete(s.progress, playerID)
	delete(s.status, playerID)
	if hadP || hadS {
		s.dirty = true
	}
}

func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Flush writes the document to path when dirty. On I/O failure the dirty
// flag stays set and the in-memory state remains authoritative.
func (s *Store) Flush(path string) error {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	doc := s.exportLocked()
	s.mu.Unlock()

	if err := progressfile.Write(path, doc); err != nil {
		return fmt.Errorf("flush progress store: %w", err)
	}

	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
	return nil
}

// LoadFrom replaces store contents with the document at path. Unknown status
// strings are dropped rather than imported.
func (s *Store) LoadFrom(path string) error {
	doc, err := progressfile.Read(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = map[string]map[string]int{}
	s.status = map[string]map[string]quest.Status{}
	for _, rec := range doc.Players {
		if len(rec.Progress) > 0 {
			m := make(map[string]int, len(rec.Progress))
			for k, v := range rec.Progress {
				m[k] = v
			}
			s.progress[rec.PlayerID] = m
		}
		if len(rec.Status) > 0 {
			m := make(map[string]quest.Status, len(rec.Status))
			for id, raw := range rec.Status {
				st := quest.Status(raw)
				if quest.ValidStatus(st) {
					m[id] = st
				}
			}
			if len(m) > 0 {
				s.status[rec.PlayerID] = m
			}
		}
	}
	s.dirty = false
	return nil
}

func (s *Store) exportLocked() progressfile.DocumentV1 {
	doc := progressfile.DocumentV1{
		Header: progressfile.Header{
			Version: 1,
			WorldID: s.worldID,
			SavedAt: time.Now().UTC().Format(time.RFC3339),
		},
	}
	seen := map[string]bool{}
	var players []string
	for p := range s.progress {
		if !seen[p] {
			seen[p] = true
			players = append(players, p)
		}
	}
	for p := range s.status {
		if !seen[p] {
			seen[p] = true
			players = append(players, p)
		}
	}
	for _, p := range players {
		rec := progressfile.PlayerRecordV1{PlayerID: p}
		if m := s.progress[p]; len(m) > 0 {
			rec.Progress = make(map[string]int, len(m))
			for k, v := range m {
				rec.Progress[k] = v
			}
		}
		if m := s.status[p]; len(m) > 0 {
			rec.Status = make(map[string]string, len(m))
			for id, st := range m {
				rec.Status[id] = string(st)
			}
		}
		doc.Players = append(doc.Players, rec)
	}
	return doc
}
