// Package auditdb keeps a queryable index of quest status transitions in
// sqlite. It is a secondary record for operators; the progress document is
// the durable source of truth.
package auditdb

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"questline.gg/internal/track"
)

type DB struct {
	db *sql.DB

	ch   chan track.TransitionEvent
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	d := &DB{
		db: db,
		// Transitions are rare (1 Hz ticks plus redemptions); a modest
		// buffer absorbs bursts without stalling the tracker.
		ch: make(chan track.TransitionEvent, 4096),
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.loop()
	}()
	return d, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS transitions (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			at TEXT NOT NULL,
			player_id TEXT NOT NULL,
			quest_id TEXT NOT NULL,
			from_status TEXT NOT NULL,
			to_status TEXT NOT NULL,
			reason TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_transitions_player ON transitions(player_id, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_transitions_quest ON transitions(quest_id, seq);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// RecordTransition enqueues without blocking the tracker loop; entries are
// dropped if the writer falls behind (the JSONL audit log still has them).
func (d *DB) RecordTransition(ev track.TransitionEvent) {
	if d == nil || d.closed.Load() {
		return
	}
	select {
	case d.ch <- ev:
	default:
	}
}

func (d *DB) loop() {
	for ev := range d.ch {
		_, _ = d.db.Exec(
			`INSERT INTO transitions (at, player_id, quest_id, from_status, to_status, reason)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			ev.At.Format("2006-01-02T15:04:05.000Z07:00"),
			ev.PlayerID, ev.QuestID, string(ev.From), string(ev.To), ev.Reason,
		)
	}
}

type Transition struct {
	Seq      int64  `json:"seq"`
	At       string `json:"at"`
	PlayerID string `json:"player_id"`
	QuestID  string `json:"quest_id"`
	From     string `json:"from"`
	To       string `json:"to"`
	Reason   string `json:"reason"`
}

// Recent returns the newest transitions, optionally filtered by player.
func (d *DB) Recent(ctx context.Context, playerID string, limit int) ([]Transition, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var (
		rows *sql.Rows
		err  error
	)
	if playerID == "" {
		rows, err = d.db.QueryContext(ctx,
			`SELECT seq, at, player_id, quest_id, from_status, to_status, reason
			 FROM transitions ORDER BY seq DESC LIMIT ?`, limit)
	} else {
		rows, err = d.db.QueryContext(ctx,
			`SELECT seq, at, player_id, quest_id, from_status, to_status, reason
			 FROM transitions WHERE player_id = ? ORDER BY seq DESC LIMIT ?`, playerID, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var t Transition
		if err := rows.Scan(&t.Seq, &t.At, &t.PlayerID, &t.QuestID, &t.From, &t.To, &t.Reason); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (d *DB) Close() error {
	var err error
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.ch)
		d.wg.Wait()
		err = d.db.Close()
	})
	return err
}
