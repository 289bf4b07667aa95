package sticky

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

// Frequency is how often an entry's post is replaced.
type Frequency string

const (
	FreqDaily      Frequency = "daily"
	FreqMondays    Frequency = "mondays"
	FreqTuesdays   Frequency = "tuesdays"
	FreqWednesdays Frequency = "wednesdays"
	FreqThursdays  Frequency = "thursdays"
	FreqFridays    Frequency = "fridays"
	FreqSaturdays  Frequency = "saturdays"
	FreqSundays    Frequency = "sundays"
)

var weekdayByFreq = map[Frequency]time.Weekday{
	FreqMondays:    time.Monday,
	FreqTuesdays:   time.Tuesday,
	FreqWednesdays: time.Wednesday,
	FreqThursdays:  time.Thursday,
	FreqFridays:    time.Friday,
	FreqSaturdays:  time.Saturday,
	FreqSundays:    time.Sunday,
}

func (f Frequency) valid() bool {
	if f == FreqDaily {
		return true
	}
	_, ok := weekdayByFreq[f]
	return ok
}

// Weekday returns the target weekday for weekly frequencies.
// Only meaningful when f is not FreqDaily.
func (f Frequency) Weekday() time.Weekday { return weekdayByFreq[f] }

// TimeOfDay is a wall-clock time in UTC.
type TimeOfDay struct {
	Hour   int
	Minute int
}

var postTimeRe = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// ParseTimeOfDay parses strict HH:mm (24h).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	m := postTimeRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return TimeOfDay{}, fmt.Errorf("invalid time %q, expected HH:mm", s)
	}
	var t TimeOfDay
	fmt.Sscanf(m[1], "%d", &t.Hour)
	fmt.Sscanf(m[2], "%d", &t.Minute)
	return t, nil
}

// Entry is one configured recurring post. YAML/JSON tags mirror the wiki
// config key names, which are also the persisted snapshot format.
type Entry struct {
	Name           string    `yaml:"name" json:"name"`
	Enabled        bool      `yaml:"enabled" json:"enabled"`
	Title          string    `yaml:"title" json:"title"`
	Frequency      Frequency `yaml:"frequency" json:"frequency"`
	PostTime       string    `yaml:"postTime" json:"postTime"`
	StickyPosition int       `yaml:"stickyPosition,omitempty" json:"stickyPosition,omitempty"` // 0 = unset
	MaxComments    int       `yaml:"maxComments" json:"maxComments"`
	Body           string    `yaml:"body" json:"body"`
	EndNote        string    `yaml:"endNote,omitempty" json:"endNote,omitempty"`
	LockOnRefresh  bool      `yaml:"lockOnRefresh,omitempty" json:"lockOnRefresh,omitempty"`
}

// At returns the configured time of day. Entries reaching this point have
// been validated, so parse failures degrade to midnight.
func (e Entry) At() TimeOfDay {
	t, _ := ParseTimeOfDay(e.PostTime)
	return t
}

var docSepRe = regexp.MustCompile(`(?m)^---\s*$`)

// SplitDocuments splits multi-document YAML source on document separators.
// Empty chunks are dropped; chunk content is otherwise untouched.
func SplitDocuments(content string) []string {
	parts := docSepRe.Split(content, -1)
	docs := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		docs = append(docs, p)
	}
	return docs
}

var requiredFields = []string{"name", "enabled", "title", "frequency", "postTime", "maxComments", "body"}

var knownFields = map[string]bool{
	"name": true, "enabled": true, "title": true, "frequency": true,
	"postTime": true, "maxComments": true, "body": true,
	"stickyPosition": true, "endNote": true, "lockOnRefresh": true,
}

// ValidateConfig turns raw YAML documents into a validated entry list.
//
// Documents that are not parseable YAML at all are dropped (a half-edited
// document must not take down its neighbours); comment-only documents are
// skipped. Everything else is held to the schema: any violation rejects the
// WHOLE list, reported via the returned problems. On success problems is
// empty and entries holds every configured entry in source order.
func ValidateConfig(docs []string) (entries []Entry, problems []string) {
	seen := map[string]int{}
	for i, doc := range docs {
		var raw map[string]any
		if err := yaml.Unmarshal([]byte(doc), &raw); err != nil {
			// Malformed document: drop, not fatal.
			continue
		}
		if raw == nil {
			continue
		}

		label := fmt.Sprintf("document %d", i+1)
		if name, ok := raw["name"].(string); ok && name != "" {
			label = fmt.Sprintf("entry %q", name)
		}

		for _, f := range requiredFields {
			if _, ok := raw[f]; !ok {
				problems = append(problems, fmt.Sprintf("%s: missing required field %q", label, f))
			}
		}
		for f := range raw {
			if !knownFields[f] {
				problems = append(problems, fmt.Sprintf("%s: unknown field %q", label, f))
			}
		}

		// Unknown fields were already reported above; the typed decode is
		// lenient about them so each violation surfaces once.
		var e Entry
		if err := yaml.Unmarshal([]byte(doc), &e); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", label, err))
			continue
		}

		if !e.Frequency.valid() {
			problems = append(problems, fmt.Sprintf("%s: frequency must be daily or a weekday plural, got %q", label, e.Frequency))
		}
		if !postTimeRe.MatchString(e.PostTime) {
			problems = append(problems, fmt.Sprintf("%s: postTime must match HH:mm, got %q", label, e.PostTime))
		}
		if e.StickyPosition != 0 && e.StickyPosition != 1 && e.StickyPosition != 2 {
			problems = append(problems, fmt.Sprintf("%s: stickyPosition must be 1 or 2, got %d", label, e.StickyPosition))
		}
		if e.MaxComments <= 0 {
			problems = append(problems, fmt.Sprintf("%s: maxComments must be a positive number, got %d", label, e.MaxComments))
		}
		if e.Name != "" {
			if prev, dup := seen[e.Name]; dup {
				problems = append(problems, fmt.Sprintf("%s: duplicate name (also document %d)", label, prev+1))
			} else {
				seen[e.Name] = i
			}
		}

		entries = append(entries, e)
	}

	if len(problems) > 0 {
		return nil, problems
	}
	return entries, nil
}
