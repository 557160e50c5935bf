package models

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// Stat is one of the five core attributes allocated at the start of a life.
type Stat string

const (
	StatLooks        Stat = "CHR"
	StatIntelligence Stat = "INT"
	StatStrength     Stat = "STR"
	StatWealth       Stat = "MNY"
	StatHappiness    Stat = "SPR"
)

// Stats lists every stat in display order.
var Stats = []Stat{StatLooks, StatIntelligence, StatStrength, StatWealth, StatHappiness}

// Valid reports whether s is one of the known stats.
func (s Stat) Valid() bool {
	for _, k := range Stats {
		if s == k {
			return true
		}
	}
	return false
}

// ParseStat resolves a stat key case-insensitively.
func ParseStat(key string) (Stat, error) {
	s := Stat(strings.ToUpper(strings.TrimSpace(key)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown stat %q", key)
	}
	return s, nil
}

// Allocation maps each stat to its value.
type Allocation map[Stat]int

// Sum returns the total of all values.
func (a Allocation) Sum() int {
	total := 0
	for _, v := range a {
		total += v
	}
	return total
}

// Clone returns an independent copy. A nil allocation clones to nil.
func (a Allocation) Clone() Allocation {
	if a == nil {
		return nil
	}
	out := make(Allocation, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Trait is a special modifier drawn at the start of a life.
type Trait struct {
	ID          string     `yaml:"id"`
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Tier        int        `yaml:"tier"`
	Weight      float64    `yaml:"weight,omitempty"`  // item-level override of the tier share
	Points      int        `yaml:"points,omitempty"`  // adjusts the allocation budget
	Effects     Allocation `yaml:"effects,omitempty"` // applied when the life begins
}

// ContentKind tags a narrative item.
type ContentKind string

const (
	KindTrait ContentKind = "TLT"
	KindEvent ContentKind = "EVT"
	KindPlain ContentKind = "TXT"
)

// ContentItem is one line of a year's narrative.
type ContentItem struct {
	Kind        ContentKind `yaml:"type"`
	Name        string      `yaml:"name,omitempty"`
	Description string      `yaml:"description"`
	PostEvent   string      `yaml:"post_event,omitempty"`
}

// TraitTrigger builds the content item emitted when a trait takes effect.
func TraitTrigger(t Trait) ContentItem {
	return ContentItem{Kind: KindTrait, Name: t.Name, Description: t.Description}
}

// Event builds an event content item.
func Event(description, postEvent string) ContentItem {
	return ContentItem{Kind: KindEvent, Description: description, PostEvent: postEvent}
}

// Plain builds an untagged narrative line.
func Plain(text string) ContentItem {
	return ContentItem{Kind: KindPlain, Description: text}
}

// YearRecord is the generator output for a single simulated year.
type YearRecord struct {
	Age      int           `yaml:"age"`
	Content  []ContentItem `yaml:"content"`
	Stats    Allocation    `yaml:"stats"`
	Terminal bool          `yaml:"is_end"`
}

// Clone returns a deep copy of the record.
func (r YearRecord) Clone() YearRecord {
	out := r
	out.Content = append([]ContentItem(nil), r.Content...)
	out.Stats = r.Stats.Clone()
	return out
}

// LifeContext is the view of a session handed to the year generator.
// Rand is the session's own source; generators must not retain it.
type LifeContext struct {
	SessionID string
	Age       int // age of the last record, -1 before the first year
	Stats     Allocation
	Traits    []Trait
	Recent    []YearRecord
	Rand      *rand.Rand
}

// Grade is the graded value of one summary metric.
type Grade struct {
	Metric string  `yaml:"metric"`
	Value  float64 `yaml:"value"`
	Grade  int     `yaml:"grade"`
	Label  string  `yaml:"label"`
}

// Summary holds graded metrics in their configured order.
type Summary struct {
	Grades []Grade `yaml:"grades"`
}

// Get returns the grade for a metric key.
func (s Summary) Get(metric string) (Grade, bool) {
	for _, g := range s.Grades {
		if g.Metric == metric {
			return g, true
		}
	}
	return Grade{}, false
}

// Life aggregates a finished play-through for saving and archiving.
type Life struct {
	ID         string       `yaml:"id"`
	SessionID  string       `yaml:"session_id"`
	Traits     []Trait      `yaml:"traits"`
	Allocation Allocation   `yaml:"allocation"`
	Records    []YearRecord `yaml:"records"`
	Summary    Summary      `yaml:"summary"`
}

// FinalAge returns the age of the last record, or -1 for an empty life.
func (l Life) FinalAge() int {
	if len(l.Records) == 0 {
		return -1
	}
	return l.Records[len(l.Records)-1].Age
}
