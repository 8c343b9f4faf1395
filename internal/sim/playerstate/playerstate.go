// Package playerstate is the server's in-process player capability:
// inventories, kill counters, effects, advancements and statistics, keyed
// by player id. The tracker evaluates objectives against it and grants item
// rewards back into it. Kill and stat counters are monotonic; inventory is
// not, which is exactly why the progress store ratchets.
package playerstate

import (
	"sync"

	"questline.gg/internal/quest"
)

type Player struct {
	mu           sync.Mutex
	inventory    map[string]int
	kills        map[string]int
	effects      map[string]bool
	advancements map[string]bool
	stats        map[string]int
}

func newPlayer() *Player {
	return &Player{
		inventory:    map[string]int{},
		kills:        map[string]int{},
		effects:      map[string]bool{},
		advancements: map[string]bool{},
		stats:        map[string]int{},
	}
}

func (p *Player) InventoryCount(itemID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inventory[itemID]
}

func (p *Player) KillCount(entityID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.kills[entityID]
}

func (p *Player) HasEffect(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.effects[id]
}

func (p *Player) HasAdvancement(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.advancements[id]
}

func (p *Player) StatCount(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats[id]
}

func (p *Player) GrantItem(id string, count int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inventory[id] += count
	if p.inventory[id] < 0 {
		p.inventory[id] = 0
	}
}

func (p *Player) ServerAuthoritative() bool { return true }

// SetInventory overwrites one slot; inventories may shrink.
func (p *Player) SetInventory(id string, count int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if count <= 0 {
		delete(p.inventory, id)
		return
	}
	p.inventory[id] = count
}

// AddItems adjusts a slot by delta, floored at zero.
func (p *Player) AddItems(id string, delta int) {
	p.GrantItem(id, delta)
}

// RecordKills bumps the monotonic per-entity kill counter.
func (p *Player) RecordKills(entityID string, n int) {
	if n <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.kills[entityID] += n
}

func (p *Player) SetEffect(id string, active bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if active {
		p.effects[id] = true
	} else {
		delete(p.effects, id)
	}
}

func (p *Player) GrantAdvancement(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advancements[id] = true
}

// AddStat bumps the monotonic statistic counter.
func (p *Player) AddStat(id string, n int) {
	if n <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats[id] += n
}

// Dump copies the full state for the admin surface.
func (p *Player) Dump() Dumped {
	p.mu.Lock()
	defer p.mu.Unlock()
	d := Dumped{
		Inventory:    make(map[string]int, len(p.inventory)),
		Kills:        make(map[string]int, len(p.kills)),
		Effects:      make([]string, 0, len(p.effects)),
		Advancements: make([]string, 0, len(p.advancements)),
		Stats:        make(map[string]int, len(p.stats)),
	}
	for k, v := range p.inventory {
		d.Inventory[k] = v
	}
	for k, v := range p.kills {
		d.Kills[k] = v
	}
	for k := range p.effects {
		d.Effects = append(d.Effects, k)
	}
	for k := range p.advancements {
		d.Advancements = append(d.Advancements, k)
	}
	for k, v := range p.stats {
		d.Stats[k] = v
	}
	return d
}

type Dumped struct {
	Inventory    map[string]int `json:"inventory"`
	Kills        map[string]int `json:"kills"`
	Effects      []string       `json:"effects"`
	Advancements []string       `json:"advancements"`
	Stats        map[string]int `json:"stats"`
}

// Registry creates and hands out players lazily.
type Registry struct {
	mu      sync.Mutex
	players map[string]*Player
}

func NewRegistry() *Registry {
	return &Registry{players: map[string]*Player{}}
}

func (r *Registry) Player(id string) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[id]
	if !ok {
		p = newPlayer()
		r.players[id] = p
	}
	return p
}

// PlayerContext satisfies the tracker's provider interface.
func (r *Registry) PlayerContext(id string) quest.PlayerContext { return r.Player(id) }
