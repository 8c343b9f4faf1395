package quest

// PlayerContext is the capability surface the evaluator interrogates. The
// server owns the authoritative implementation; evaluation never mutates it
// except through GrantItem on redemption.
type PlayerContext interface {
	InventoryCount(itemID string) int
	KillCount(entityID string) int
	HasEffect(id string) bool
	HasAdvancement(id string) bool
	StatCount(id string) int
	GrantItem(id string, count int)
	ServerAuthoritative() bool
}

// Evaluator computes live progress of an objective against a player
// context. Tag resolution comes from the catalog it was built with.
type Evaluator struct {
	catalog *Catalog
}

func NewEvaluator(c *Catalog) *Evaluator {
	return &Evaluator{catalog: c}
}

// Evaluate returns the live count clamped to [0, obj.Count] and whether the
// objective is satisfied by that live count. Collection-style regressions
// (the player dropping items) show up here as a lower live count; the
// ratchet in the progress store is what keeps banked progress.
func (e *Evaluator) Evaluate(obj Objective, pc PlayerContext) (live int, done bool) {
	switch obj.Kind {
	case KindItem:
		if members := e.catalog.TagMembers(obj.Target); len(members) > 0 {
			for _, id := range members {
				live += pc.InventoryCount(id)
			}
		} else {
			live = pc.InventoryCount(obj.Target)
		}
	case KindEntityKill:
		live = pc.KillCount(obj.Target)
	case KindEffect:
		if pc.HasEffect(obj.Target) {
			live = 1
		}
	case KindAdvancement:
		if pc.HasAdvancement(obj.Target) {
			live = 1
		}
	case KindStat:
		live = pc.StatCount(obj.Target)
	}
	live = Clamp(live, 0, obj.Count)
	return live, live >= obj.Count
}

func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
