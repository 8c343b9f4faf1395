package playerstate

import "testing"

func TestRegistry_LazyAndStable(t *testing.T) {
	r := NewRegistry()
	p1 := r.Player("P1")
	if p1 == nil {
		t.Fatalf("expected lazily created player")
	}
	if r.Player("P1") != p1 {
		t.Fatalf("expected stable player instance per id")
	}
	if r.Player("P2") == p1 {
		t.Fatalf("expected distinct players per id")
	}
}

func TestPlayer_InventoryAndGrants(t *testing.T) {
	p := newPlayer()
	p.SetInventory("ore", 3)
	if got := p.InventoryCount("ore"); got != 3 {
		t.Fatalf("inventory: got %d", got)
	}
	p.GrantItem("ore", 2)
	if got := p.InventoryCount("ore"); got != 5 {
		t.Fatalf("after grant: got %d", got)
	}
	p.AddItems("ore", -10)
	if got := p.InventoryCount("ore"); got != 0 {
		t.Fatalf("floor at zero: got %d", got)
	}
}

func TestPlayer_MonotonicCounters(t *testing.T) {
	p := newPlayer()
	p.RecordKills("zombie", 2)
	p.RecordKills("zombie", -5)
	if got := p.KillCount("zombie"); got != 2 {
		t.Fatalf("kills must not decrease: got %d", got)
	}
	p.AddStat("walked_cm", 100)
	p.AddStat("walked_cm", 0)
	if got := p.StatCount("walked_cm"); got != 100 {
		t.Fatalf("stat: got %d", got)
	}
}

func TestPlayer_Flags(t *testing.T) {
	p := newPlayer()
	p.SetEffect("haste", true)
	if !p.HasEffect("haste") {
		t.Fatalf("expected effect present")
	}
	p.SetEffect("haste", false)
	if p.HasEffect("haste") {
		t.Fatalf("expected effect cleared")
	}
	p.GrantAdvancement("story/mine")
	if !p.HasAdvancement("story/mine") {
		t.Fatalf("expected advancement kept")
	}
	if !p.ServerAuthoritative() {
		t.Fatalf("server context must be authoritative")
	}
}
