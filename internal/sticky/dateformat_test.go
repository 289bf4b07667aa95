package sticky

import (
	"testing"
	"time"
)

func TestTranslateFormat(t *testing.T) {
	t.Parallel()

	cases := []struct {
		pattern string
		want    string
		wantErr bool
	}{
		{pattern: "dd/MM/yyyy", want: "02/01/2006"},
		{pattern: "yyyy-MM-dd", want: "2006-01-02"},
		{pattern: "EEEE d MMMM", want: "Monday 2 January"},
		{pattern: "EEE, MMM d yy", want: "Mon, Jan 2 06"},
		{pattern: "HH:mm:ss", want: "15:04:05"},
		{pattern: "h:mm a", want: "3:04 PM"},
		{pattern: "'week of' dd MMM", want: "week of 02 Jan"},
		{pattern: "h 'o''clock'", want: "3 o'clock"},
		{pattern: "QQQ", wantErr: true},
		{pattern: "yyy", wantErr: true},
		{pattern: "H:mm", wantErr: true}, // no unpadded 24-hour layout in Go
		{pattern: "HHH", wantErr: true},
		{pattern: "'unterminated", wantErr: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.pattern, func(t *testing.T) {
			t.Parallel()
			got, err := TranslateFormat(tc.pattern)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("TranslateFormat(%q) = %q, want error", tc.pattern, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("TranslateFormat(%q): %v", tc.pattern, err)
			}
			if got != tc.want {
				t.Fatalf("TranslateFormat(%q) = %q, want %q", tc.pattern, got, tc.want)
			}
		})
	}
}

func TestFormatDate(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 3, 7, 14, 5, 9, 0, time.UTC) // a Thursday
	got, err := FormatDate(ts, "EEEE dd/MM/yyyy HH:mm")
	if err != nil {
		t.Fatalf("FormatDate: %v", err)
	}
	if want := "Thursday 07/03/2024 14:05"; got != want {
		t.Fatalf("FormatDate = %q, want %q", got, want)
	}
}

func TestResolveTitle(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)

	got, err := ResolveTitle("World Megathread for {{date dd/MM/yyyy}}", now)
	if err != nil {
		t.Fatalf("ResolveTitle: %v", err)
	}
	if want := "World Megathread for 07/03/2024"; got != want {
		t.Fatalf("ResolveTitle = %q, want %q", got, want)
	}

	plain, err := ResolveTitle("No token here", now)
	if err != nil || plain != "No token here" {
		t.Fatalf("ResolveTitle(plain) = %q, %v", plain, err)
	}

	if _, err := ResolveTitle("Bad {{date QQQ}}", now); err == nil {
		t.Fatal("ResolveTitle with unknown token should fail")
	}
}

func TestTitleDateFormat(t *testing.T) {
	t.Parallel()

	pattern, ok := TitleDateFormat("Daily {{date dd MMM}} thread")
	if !ok || pattern != "dd MMM" {
		t.Fatalf("TitleDateFormat = %q, %v", pattern, ok)
	}
	if _, ok := TitleDateFormat("no placeholder"); ok {
		t.Fatal("TitleDateFormat should report absence")
	}
}
