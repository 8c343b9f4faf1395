package quest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Catalog is an immutable id -> Quest index plus the item tag table.
// Load builds a fresh Catalog every time; there is no in-place reload.
type Catalog struct {
	byID  map[string]*Quest
	order []string

	tags map[string][]string

	digest string
}

// Load reads one JSON quest document per file from dir (sorted filename
// order fixes iteration order) and the optional tags.json table next to it.
// A malformed document is logged and skipped; it never aborts the rest of
// the load.
func Load(dir string, logger *log.Logger) (*Catalog, error) {
	c := &Catalog{
		byID: map[string]*Quest{},
		tags: map[string][]string{},
	}

	if err := loadTags(filepath.Join(dir, "tags.json"), c.tags); err != nil {
		return nil, err
	}

	questDir := filepath.Join(dir, "quests")
	entries, err := os.ReadDir(questDir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, filepath.Join(questDir, e.Name()))
	}
	sort.Strings(files)

	var concat bytes.Buffer
	for _, p := range files {
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		q, err := parseQuest(raw, questIDFromPath(p))
		if err != nil {
			if logger != nil {
				logger.Printf("skip quest %s: %v", filepath.Base(p), err)
			}
			continue
		}
		if prev, ok := c.byID[q.ID]; ok {
			if logger != nil {
				logger.Printf("skip quest %s: duplicate id %q (kept %s)", filepath.Base(p), q.ID, prev.Name)
			}
			continue
		}
		c.byID[q.ID] = q
		c.order = append(c.order, q.ID)
		concat.Write(raw)
		concat.WriteByte('\n')
	}
	c.digest = sha256Hex(concat.Bytes())

	// Flag dangling dependency ids. Graph shape beyond existence (cycles)
	// is left to the caller.
	for _, id := range c.order {
		q := c.byID[id]
		for _, dep := range q.Deps {
			if _, ok := c.byID[dep]; !ok {
				q.DanglingDeps = append(q.DanglingDeps, dep)
			}
		}
	}
	return c, nil
}

func parseQuest(raw []byte, fallbackID string) (*Quest, error) {
	var doc questDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	objs, err := parseObjectives(doc.Completion)
	if err != nil {
		return nil, err
	}
	id := doc.ID
	if id == "" {
		id = fallbackID
	}
	if id == "" {
		return nil, fmt.Errorf("missing id")
	}
	return &Quest{
		ID:          id,
		Name:        doc.Name,
		Icon:        doc.Icon,
		Description: doc.Description,
		Category:    doc.Category,
		SubCategory: doc.SubCategory,
		Deps:        doc.Deps,
		Optional:    doc.Optional,
		Completion:  objs,
		Reward:      doc.Reward,
	}, nil
}

func questIDFromPath(p string) string {
	return strings.TrimSuffix(filepath.Base(p), ".json")
}

func loadTags(path string, out map[string][]string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("tags.json: %w", err)
	}
	return nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (c *Catalog) ByID(id string) (*Quest, bool) {
	q, ok := c.byID[id]
	return q, ok
}

// All returns quests in insertion order.
func (c *Catalog) All() []*Quest {
	out := make([]*Quest, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

func (c *Catalog) Len() int { return len(c.order) }

func (c *Catalog) Digest() string { return c.digest }

// TagMembers resolves an item tag to its member ids, or nil if the id is
// not a tag.
func (c *Catalog) TagMembers(id string) []string { return c.tags[id] }

// IconFor returns the concrete item id used to draw an objective target:
// the first tag member for tags, the target itself otherwise. Display only;
// counting always matches every member.
func (c *Catalog) IconFor(target string) string {
	if members := c.tags[target]; len(members) > 0 {
		return members[0]
	}
	return target
}
