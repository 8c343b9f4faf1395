package admin

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"questline.gg/internal/quest"
	"questline.gg/internal/sim/playerstate"
	"questline.gg/internal/track"
)

func startServer(t *testing.T) (*httptest.Server, *playerstate.Registry) {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "quests"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	doc := `{"id":"Q_ORE","name":"Miner","completion":{"kind":"item","target":"ore","count":5},"reward":{"item":"pickaxe","count":1}}`
	if err := os.WriteFile(filepath.Join(dir, "quests", "ore.json"), []byte(doc), 0o644); err != nil {
		t.Fatalf("write quest: %v", err)
	}
	cat, err := quest.Load(dir, nil)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	logger := log.New(os.Stderr, "[admin-test] ", 0)
	players := playerstate.NewRegistry()
	tr := track.New(track.Config{WorldID: "w"}, cat, track.NewStore("w"), players, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = tr.Run(ctx) }()
	t.Cleanup(cancel)

	mux := http.NewServeMux()
	NewServer(tr, players, nil, logger).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, players
}

func post(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestForceComplete_SameGateAsRedeem(t *testing.T) {
	srv, _ := startServer(t)
	base := srv.URL + "/admin/v1/players/P1"

	// 3 of 5: not ready, force-complete must refuse.
	post(t, base+"/state", `{"add_items":{"ore":3}}`)
	resp, body := post(t, base+"/quests/Q_ORE/complete", "")
	if resp.StatusCode != http.StatusConflict || body["code"] != "E_NOT_READY" {
		t.Fatalf("expected E_NOT_READY conflict, got %d %v", resp.StatusCode, body)
	}

	// Top up to 5 and complete.
	post(t, base+"/state", `{"add_items":{"ore":2}}`)
	resp, body = post(t, base+"/quests/Q_ORE/complete", "")
	if resp.StatusCode != http.StatusOK || body["ok"] != true {
		t.Fatalf("expected completion, got %d %v", resp.StatusCode, body)
	}

	// Terminal now; a second attempt refuses.
	resp, body = post(t, base+"/quests/Q_ORE/complete", "")
	if resp.StatusCode != http.StatusConflict || body["code"] != "E_TERMINAL" {
		t.Fatalf("expected E_TERMINAL conflict, got %d %v", resp.StatusCode, body)
	}
}

func TestForceComplete_UnknownQuest(t *testing.T) {
	srv, _ := startServer(t)
	resp, body := post(t, srv.URL+"/admin/v1/players/P1/quests/Q_NOPE/complete", "")
	if resp.StatusCode != http.StatusNotFound || body["code"] != "E_UNKNOWN_QUEST" {
		t.Fatalf("expected not found, got %d %v", resp.StatusCode, body)
	}
}

func TestReportAndReset(t *testing.T) {
	srv, _ := startServer(t)
	base := srv.URL + "/admin/v1/players/P1"

	post(t, base+"/state", `{"add_items":{"ore":5}}`)
	post(t, base+"/quests/Q_ORE/complete", "")

	resp, err := http.Get(base)
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	var rep track.PlayerReport
	if err := json.NewDecoder(resp.Body).Decode(&rep); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	resp.Body.Close()
	if len(rep.Quests) != 1 || rep.Quests[0].Status != quest.StatusRedeemed {
		t.Fatalf("report: %+v", rep)
	}
	if rep.Quests[0].Objectives[0].Stored != 5 {
		t.Fatalf("stored progress: %+v", rep.Quests[0].Objectives)
	}

	post(t, base+"/reset", "")
	resp, err = http.Get(base)
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	rep = track.PlayerReport{}
	if err := json.NewDecoder(resp.Body).Decode(&rep); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	resp.Body.Close()
	if rep.Quests[0].Status != quest.StatusIncomplete || rep.Quests[0].Objectives[0].Stored != 0 {
		t.Fatalf("report after reset: %+v", rep)
	}
}

func TestStateDump(t *testing.T) {
	srv, players := startServer(t)
	base := srv.URL + "/admin/v1/players/P9"

	post(t, base+"/state", `{"kills":{"zombie":2},"effects":{"haste":true},"advancements":["story/mine"],"stats":{"walked_cm":40}}`)
	p := players.Player("P9")
	if p.KillCount("zombie") != 2 || !p.HasEffect("haste") || !p.HasAdvancement("story/mine") || p.StatCount("walked_cm") != 40 {
		t.Fatalf("mutation not applied: %+v", p.Dump())
	}

	resp, err := http.Get(base + "/state")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	defer resp.Body.Close()
	var dump playerstate.Dumped
	if err := json.NewDecoder(resp.Body).Decode(&dump); err != nil {
		t.Fatalf("decode dump: %v", err)
	}
	if dump.Kills["zombie"] != 2 {
		t.Fatalf("dump: %+v", dump)
	}
}
