package analysis

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

//go:embed keywords.json
var defaultKeywordsJSON []byte

// KeywordSet is the trigger phrases of one risk level.
type KeywordSet struct {
	Level    Level    `json:"level"`
	Keywords []string `json:"keywords"`
}

// KeywordTable maps risk levels to trigger phrases. Sets are held in scan
// priority (High, Medium, Low). A table is immutable once built.
type KeywordTable struct {
	sets []KeywordSet
}

// DefaultKeywordTable returns the built-in table.
func DefaultKeywordTable() *KeywordTable {
	t, err := ParseKeywordTable(defaultKeywordsJSON)
	if err != nil {
		panic(fmt.Sprintf("analysis: embedded keyword table: %v", err))
	}
	return t
}

// LoadKeywordTable reads a table from a JSON file of the form
// {"High": [...], "Medium": [...], "Low": [...]}.
func LoadKeywordTable(path string) (*KeywordTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyword table: %w", err)
	}
	return ParseKeywordTable(data)
}

// ParseKeywordTable decodes a keyword table. Level names are case-insensitive
// and may appear once. Phrases are lower-cased and trimmed, blanks are dropped,
// and phrase order within a level is kept.
func ParseKeywordTable(data []byte) (*KeywordTable, error) {
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode keyword table: %w", err)
	}
	byLevel := make(map[Level][]string, len(raw))
	for name, phrases := range raw {
		level, err := ParseLevel(name)
		if err != nil {
			return nil, err
		}
		if _, dup := byLevel[level]; dup {
			return nil, fmt.Errorf("risk level %s listed more than once", level)
		}
		byLevel[level] = nil
		for _, p := range phrases {
			p = strings.ToLower(strings.TrimSpace(p))
			if p != "" {
				byLevel[level] = append(byLevel[level], p)
			}
		}
	}
	t := &KeywordTable{}
	for _, level := range priorityOrder {
		if len(byLevel[level]) > 0 {
			t.sets = append(t.sets, KeywordSet{Level: level, Keywords: byLevel[level]})
		}
	}
	return t, nil
}

// Match scans lower (an already lower-cased clause) level by level in
// priority order and returns the first level with any literal substring hit,
// together with the phrase that matched.
func (t *KeywordTable) Match(lower string) (Level, string, bool) {
	for _, set := range t.sets {
		for _, kw := range set.Keywords {
			if strings.Contains(lower, kw) {
				return set.Level, kw, true
			}
		}
	}
	return "", "", false
}

// Sets returns a copy of the table in priority order.
func (t *KeywordTable) Sets() []KeywordSet {
	out := make([]KeywordSet, len(t.sets))
	for i, s := range t.sets {
		out[i] = KeywordSet{Level: s.Level, Keywords: append([]string(nil), s.Keywords...)}
	}
	return out
}
