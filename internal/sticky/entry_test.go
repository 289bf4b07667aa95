package sticky

import (
	"strings"
	"testing"
)

const validDoc = `name: world-megathread
enabled: true
title: World Megathread for {{date dd/MM/yyyy}}
frequency: daily
postTime: "01:00"
stickyPosition: 1
maxComments: 200
body: |
  Welcome to the megathread.
endNote: |
  This thread has ended.
lockOnRefresh: true
`

func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()

	good := map[string]TimeOfDay{
		"00:00": {},
		"09:30": {Hour: 9, Minute: 30},
		"23:59": {Hour: 23, Minute: 59},
	}
	for in, want := range good {
		got, err := ParseTimeOfDay(in)
		if err != nil {
			t.Fatalf("ParseTimeOfDay(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseTimeOfDay(%q) = %+v, want %+v", in, got, want)
		}
	}

	for _, in := range []string{"24:00", "9:30", "12:60", "noon", "12:5", ""} {
		if _, err := ParseTimeOfDay(in); err == nil {
			t.Fatalf("ParseTimeOfDay(%q) should fail", in)
		}
	}
}

func TestSplitDocuments(t *testing.T) {
	t.Parallel()

	content := "name: a\n---\nname: b\n---\n\n---\nname: c"
	docs := SplitDocuments(content)
	if len(docs) != 3 {
		t.Fatalf("expected 3 documents, got %d: %q", len(docs), docs)
	}

	if got := SplitDocuments("   \n---\n  "); len(got) != 0 {
		t.Fatalf("expected no documents, got %q", got)
	}
}

func TestValidateConfigAccepts(t *testing.T) {
	t.Parallel()

	second := strings.Replace(validDoc, "world-megathread", "weekly-thread", 1)
	second = strings.Replace(second, "frequency: daily", "frequency: mondays", 1)

	entries, problems := ValidateConfig([]string{validDoc, second})
	if len(problems) != 0 {
		t.Fatalf("unexpected problems: %v", problems)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	e := entries[0]
	if e.Name != "world-megathread" || !e.Enabled || e.Frequency != FreqDaily {
		t.Fatalf("entry fields wrong: %+v", e)
	}
	if e.StickyPosition != 1 || e.MaxComments != 200 || !e.LockOnRefresh {
		t.Fatalf("entry fields wrong: %+v", e)
	}
	if e.At() != (TimeOfDay{Hour: 1}) {
		t.Fatalf("At() = %+v", e.At())
	}
	if entries[1].Frequency.Weekday().String() != "Monday" {
		t.Fatalf("weekday = %s", entries[1].Frequency.Weekday())
	}
}

func TestValidateConfigRejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(string) string
		problem string
	}{
		{
			name:    "missing required field",
			mutate:  func(d string) string { return strings.Replace(d, "maxComments: 200\n", "", 1) },
			problem: "missing required field",
		},
		{
			name:    "unknown field",
			mutate:  func(d string) string { return d + "surprise: true\n" },
			problem: "unknown field",
		},
		{
			name:    "bad frequency",
			mutate:  func(d string) string { return strings.Replace(d, "frequency: daily", "frequency: fortnightly", 1) },
			problem: "frequency",
		},
		{
			name:    "bad post time",
			mutate:  func(d string) string { return strings.Replace(d, `postTime: "01:00"`, `postTime: "25:00"`, 1) },
			problem: "postTime",
		},
		{
			name:    "bad sticky position",
			mutate:  func(d string) string { return strings.Replace(d, "stickyPosition: 1", "stickyPosition: 3", 1) },
			problem: "stickyPosition",
		},
		{
			name:    "non-positive max comments",
			mutate:  func(d string) string { return strings.Replace(d, "maxComments: 200", "maxComments: 0", 1) },
			problem: "maxComments",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			entries, problems := ValidateConfig([]string{tc.mutate(validDoc)})
			if entries != nil {
				t.Fatalf("rejected config must return no entries, got %d", len(entries))
			}
			if len(problems) == 0 {
				t.Fatal("expected problems")
			}
			found := false
			for _, p := range problems {
				if strings.Contains(p, tc.problem) {
					found = true
				}
			}
			if !found {
				t.Fatalf("no problem mentioning %q in %v", tc.problem, problems)
			}
		})
	}
}

func TestValidateConfigReportsUnknownFieldOnce(t *testing.T) {
	t.Parallel()

	entries, problems := ValidateConfig([]string{validDoc + "surprise: true\n"})
	if entries != nil {
		t.Fatalf("rejected config must return no entries, got %d", len(entries))
	}
	if len(problems) != 1 {
		t.Fatalf("one violation must produce one problem, got %v", problems)
	}
	if !strings.Contains(problems[0], `unknown field "surprise"`) {
		t.Fatalf("problem = %q", problems[0])
	}
}

func TestValidateConfigDuplicateNames(t *testing.T) {
	t.Parallel()

	entries, problems := ValidateConfig([]string{validDoc, validDoc})
	if entries != nil || len(problems) == 0 {
		t.Fatalf("duplicate names should reject the list, got entries=%d problems=%v", len(entries), problems)
	}
}

func TestValidateConfigDropsMalformedDocs(t *testing.T) {
	t.Parallel()

	malformed := "name: [unclosed\n  bad yaml: ::"
	entries, problems := ValidateConfig([]string{malformed, validDoc})
	if len(problems) != 0 {
		t.Fatalf("malformed neighbour should not poison the list: %v", problems)
	}
	if len(entries) != 1 || entries[0].Name != "world-megathread" {
		t.Fatalf("expected the surviving entry, got %+v", entries)
	}
}

func TestValidateConfigSkipsCommentOnlyDocs(t *testing.T) {
	t.Parallel()

	entries, problems := ValidateConfig(SplitDocuments("# just comments\n# nothing else\n"))
	if len(entries) != 0 || len(problems) != 0 {
		t.Fatalf("comment-only config should be empty and valid, got %d/%v", len(entries), problems)
	}
}
