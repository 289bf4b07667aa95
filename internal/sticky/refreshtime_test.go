package sticky

import (
	"testing"
	"time"
)

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func TestNextRefreshDaily(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		ref  string
		tod  TimeOfDay
		want string
	}{
		{
			// Candidate is 12h after ref, comfortably past the minimum lead.
			name: "same day when far enough out",
			ref:  "2024-03-10T02:00:00Z",
			tod:  TimeOfDay{Hour: 14},
			want: "2024-03-10T14:00:00Z",
		},
		{
			// Candidate only 1h out: pushed to the next day.
			name: "next day when too close",
			ref:  "2024-03-10T13:00:00Z",
			tod:  TimeOfDay{Hour: 14},
			want: "2024-03-11T14:00:00Z",
		},
		{
			name: "next day when candidate already passed",
			ref:  "2024-03-10T20:00:00Z",
			tod:  TimeOfDay{Hour: 14},
			want: "2024-03-11T14:00:00Z",
		},
		{
			name: "exactly at the lead boundary stays same day",
			ref:  "2024-03-10T08:00:00Z",
			tod:  TimeOfDay{Hour: 14},
			want: "2024-03-10T14:00:00Z",
		},
		{
			name: "minutes are honored",
			ref:  "2024-03-10T02:00:00Z",
			tod:  TimeOfDay{Hour: 14, Minute: 30},
			want: "2024-03-10T14:30:00Z",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := NextRefresh(at(tc.ref), FreqDaily, tc.tod)
			if !got.Equal(at(tc.want)) {
				t.Fatalf("NextRefresh(%s) = %s, want %s", tc.ref, got, tc.want)
			}
		})
	}
}

func TestNextRefreshWeekly(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		ref  string
		freq Frequency
		tod  TimeOfDay
		want string
	}{
		{
			// 2024-03-07 is a Thursday; next Wednesday is six days out.
			name: "later weekday this week",
			ref:  "2024-03-07T10:00:00Z",
			freq: FreqWednesdays,
			tod:  TimeOfDay{Hour: 9},
			want: "2024-03-13T09:00:00Z",
		},
		{
			// Ref on the target weekday is never same-day, even before the
			// configured time.
			name: "same weekday pushes a full week",
			ref:  "2024-03-06T01:00:00Z", // a Wednesday
			freq: FreqWednesdays,
			tod:  TimeOfDay{Hour: 9},
			want: "2024-03-13T09:00:00Z",
		},
		{
			name: "weekday earlier in the week wraps",
			ref:  "2024-03-08T10:00:00Z", // a Friday
			freq: FreqMondays,
			tod:  TimeOfDay{Hour: 7, Minute: 15},
			want: "2024-03-11T07:15:00Z",
		},
		{
			name: "sunday target",
			ref:  "2024-03-04T23:59:00Z", // a Monday
			freq: FreqSundays,
			tod:  TimeOfDay{},
			want: "2024-03-10T00:00:00Z",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := NextRefresh(at(tc.ref), tc.freq, tc.tod)
			if !got.Equal(at(tc.want)) {
				t.Fatalf("NextRefresh(%s, %s) = %s, want %s", tc.ref, tc.freq, got, tc.want)
			}
		})
	}
}

func TestNextRefreshNormalizesToUTC(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("EST", -5*3600)
	ref := time.Date(2024, 3, 10, 21, 0, 0, 0, loc) // 2024-03-11T02:00Z
	got := NextRefresh(ref, FreqDaily, TimeOfDay{Hour: 14})
	want := at("2024-03-11T14:00:00Z")
	if !got.Equal(want) {
		t.Fatalf("NextRefresh(%s) = %s, want %s", ref, got, want)
	}
	if got.Location() != time.UTC {
		t.Fatalf("result not in UTC: %s", got.Location())
	}
}
