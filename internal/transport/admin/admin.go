// Package admin exposes the operator surface over HTTP: player resets,
// force-complete (through the normal ready/redeem path, no bypass), player
// state mutation for the in-process sim, and the transition audit index.
package admin

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"questline.gg/internal/persistence/auditdb"
	"questline.gg/internal/protocol"
	"questline.gg/internal/sim/playerstate"
	"questline.gg/internal/track"
)

type Server struct {
	tracker *track.Tracker
	players *playerstate.Registry
	audit   *auditdb.DB // may be nil
	log     *log.Logger
}

func NewServer(t *track.Tracker, players *playerstate.Registry, audit *auditdb.DB, logger *log.Logger) *Server {
	return &Server{tracker: t, players: players, audit: audit, log: logger}
}

func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/admin/v1/players/", s.handlePlayers)
	mux.HandleFunc("/admin/v1/audit", s.handleAudit)
}

// handlePlayers routes:
//
//	GET  /admin/v1/players/{id}                       quest report
//	POST /admin/v1/players/{id}/reset                 clear all records
//	GET  /admin/v1/players/{id}/state                 sim state dump
//	POST /admin/v1/players/{id}/state                 mutate sim state
//	POST /admin/v1/players/{id}/quests/{qid}/complete force-complete
//	POST /admin/v1/players/{id}/quests/{qid}/reject   reject
func (s *Server) handlePlayers(rw http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/admin/v1/players/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(rw, "missing player id", http.StatusBadRequest)
		return
	}
	playerID := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		rep, err := s.tracker.Report(r.Context(), playerID)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		writeJSON(rw, http.StatusOK, rep)

	case len(parts) == 2 && parts[1] == "reset" && r.Method == http.MethodPost:
		if err := s.tracker.ResetPlayer(r.Context(), playerID); err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		s.log.Printf("admin reset player=%s", playerID)
		writeJSON(rw, http.StatusOK, map[string]any{"ok": true})

	case len(parts) == 2 && parts[1] == "state" && r.Method == http.MethodGet:
		writeJSON(rw, http.StatusOK, s.players.Player(playerID).Dump())

	case len(parts) == 2 && parts[1] == "state" && r.Method == http.MethodPost:
		s.mutateState(rw, r, playerID)

	case len(parts) == 4 && parts[1] == "quests" && r.Method == http.MethodPost:
		questID := parts[2]
		switch parts[3] {
		case "complete":
			ok, code, err := s.tracker.ForceComplete(r.Context(), playerID, questID)
			if err != nil {
				http.Error(rw, err.Error(), http.StatusServiceUnavailable)
				return
			}
			if !ok {
				writeJSON(rw, statusFor(code), map[string]any{"ok": false, "code": code})
				return
			}
			s.log.Printf("admin force-complete player=%s quest=%s", playerID, questID)
			writeJSON(rw, http.StatusOK, map[string]any{"ok": true})
		case "reject":
			ok, code, err := s.tracker.RejectQuest(r.Context(), playerID, questID)
			if err != nil {
				http.Error(rw, err.Error(), http.StatusServiceUnavailable)
				return
			}
			if !ok {
				writeJSON(rw, statusFor(code), map[string]any{"ok": false, "code": code})
				return
			}
			writeJSON(rw, http.StatusOK, map[string]any{"ok": true})
		default:
			http.NotFound(rw, r)
		}

	default:
		http.NotFound(rw, r)
	}
}

// StateMutation adjusts the simulated player context. Inventory deltas may
// be negative (players drop items); kills and stats only grow.
type StateMutation struct {
	AddItems     map[string]int  `json:"add_items,omitempty"`
	SetItems     map[string]int  `json:"set_items,omitempty"`
	Kills        map[string]int  `json:"kills,omitempty"`
	Effects      map[string]bool `json:"effects,omitempty"`
	Advancements []string        `json:"advancements,omitempty"`
	Stats        map[string]int  `json:"stats,omitempty"`
}

func (s *Server) mutateState(rw http.ResponseWriter, r *http.Request, playerID string) {
	var mut StateMutation
	if err := json.NewDecoder(r.Body).Decode(&mut); err != nil {
		http.Error(rw, "bad body: "+err.Error(), http.StatusBadRequest)
		return
	}
	p := s.players.Player(playerID)
	for id, n := range mut.AddItems {
		p.AddItems(id, n)
	}
	for id, n := range mut.SetItems {
		p.SetInventory(id, n)
	}
	for id, n := range mut.Kills {
		p.RecordKills(id, n)
	}
	for id, on := range mut.Effects {
		p.SetEffect(id, on)
	}
	for _, id := range mut.Advancements {
		p.GrantAdvancement(id)
	}
	for id, n := range mut.Stats {
		p.AddStat(id, n)
	}
	writeJSON(rw, http.StatusOK, p.Dump())
}

func (s *Server) handleAudit(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.audit == nil {
		http.Error(rw, "audit index disabled", http.StatusNotImplemented)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := s.audit.Recent(r.Context(), r.URL.Query().Get("player"), limit)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(rw, http.StatusOK, rows)
}

func statusFor(code string) int {
	switch code {
	case protocol.ErrUnknownQuest:
		return http.StatusNotFound
	case protocol.ErrNotReady, protocol.ErrTerminal:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}
