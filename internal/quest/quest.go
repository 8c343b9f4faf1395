package quest

import (
	"encoding/json"
	"fmt"
)

// Status is the per-(player, quest) redemption state. The zero state is
// implicit: a record that has never been written reads as StatusIncomplete.
type Status string

const (
	StatusIncomplete Status = "INCOMPLETE"
	StatusReady      Status = "READY"
	StatusRedeemed   Status = "REDEEMED"
	StatusRejected   Status = "REJECTED"
)

func ValidStatus(s Status) bool {
	switch s {
	case StatusIncomplete, StatusReady, StatusRedeemed, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether a status can never change again.
func (s Status) Terminal() bool {
	return s == StatusRedeemed || s == StatusRejected
}

// ObjectiveKind is the closed set of countable condition types.
type ObjectiveKind string

const (
	KindItem        ObjectiveKind = "item"
	KindEntityKill  ObjectiveKind = "entity-kill"
	KindEffect      ObjectiveKind = "effect"
	KindAdvancement ObjectiveKind = "advancement"
	KindStat        ObjectiveKind = "stat"
)

func validKind(k ObjectiveKind) bool {
	switch k {
	case KindItem, KindEntityKill, KindEffect, KindAdvancement, KindStat:
		return true
	}
	return false
}

// Objective is one typed condition with a required threshold. For boolean
// kinds (effect, advancement) Count is forced to 1 at load time.
type Objective struct {
	ID     string        `json:"id,omitempty"`
	Kind   ObjectiveKind `json:"kind"`
	Target string        `json:"target"`
	Count  int           `json:"count"`
}

// Reward is an optional grant on redemption: an item stack, a list of
// operator commands, or both.
type Reward struct {
	Item     string   `json:"item,omitempty"`
	Count    int      `json:"count,omitempty"`
	Commands []string `json:"commands,omitempty"`
}

func (r *Reward) Empty() bool {
	return r == nil || (r.Item == "" && len(r.Commands) == 0)
}

// Quest is an immutable definition loaded from one document. Reloading the
// catalog produces fresh Quest values; holders of old pointers keep a
// consistent (stale) view rather than seeing in-place mutation.
type Quest struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Icon        string      `json:"icon,omitempty"`
	Description string      `json:"description,omitempty"`
	Category    string      `json:"category,omitempty"`
	SubCategory string      `json:"sub_category,omitempty"`
	Deps        []string    `json:"dependencies,omitempty"`
	Optional    bool        `json:"optional,omitempty"`
	Completion  []Objective `json:"completion"`
	Reward      *Reward     `json:"reward,omitempty"`

	// DanglingDeps lists dependency ids absent from the catalog at index
	// time. The quest is kept; callers decide whether to offer it.
	DanglingDeps []string `json:"-"`
}

// ObjectiveKey is the persistence join key for one objective of one quest.
func ObjectiveKey(questID, objectiveID string) string {
	return questID + ":" + objectiveID
}

// questDoc mirrors the on-disk definition document. `completion` may be a
// single object or an array; both forms normalize to a slice.
type questDoc struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Icon        string          `json:"icon"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	SubCategory string          `json:"sub_category"`
	Deps        []string        `json:"dependencies"`
	Optional    bool            `json:"optional"`
	Completion  json.RawMessage `json:"completion"`
	Reward      *Reward         `json:"reward"`
}

func parseObjectives(raw json.RawMessage) ([]Objective, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("missing completion")
	}
	var objs []Objective
	if err := json.Unmarshal(raw, &objs); err != nil {
		var one Objective
		if err2 := json.Unmarshal(raw, &one); err2 != nil {
			return nil, fmt.Errorf("completion: %w", err2)
		}
		objs = []Objective{one}
	}
	if len(objs) == 0 {
		return nil, fmt.Errorf("empty completion")
	}
	for i := range objs {
		o := &objs[i]
		if !validKind(o.Kind) {
			return nil, fmt.Errorf("completion[%d]: unknown kind %q", i, o.Kind)
		}
		if o.Target == "" {
			return nil, fmt.Errorf("completion[%d]: missing target", i)
		}
		switch o.Kind {
		case KindEffect, KindAdvancement:
			o.Count = 1
		default:
			if o.Count <= 0 {
				return nil, fmt.Errorf("completion[%d]: count must be positive", i)
			}
		}
		if o.ID == "" {
			o.ID = fmt.Sprintf("%d", i)
		}
	}
	return objs, nil
}
