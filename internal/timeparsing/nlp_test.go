package timeparsing

import (
	"testing"
	"time"
)

// refNow (Wednesday, 2026-08-26) anchors the weekday expectations below.

func TestParseNaturalLanguage(t *testing.T) {
	tests := []struct {
		input     string
		wantMonth time.Month
		wantDay   int
		wantHour  int // -1 skips the hour check
		wantErr   bool
	}{
		{input: "yesterday", wantMonth: time.August, wantDay: 25, wantHour: -1},
		{input: "tomorrow", wantMonth: time.August, wantDay: 27, wantHour: -1},
		{input: "3 days ago", wantMonth: time.August, wantDay: 23, wantHour: -1},
		{input: "1 week ago", wantMonth: time.August, wantDay: 19, wantHour: -1},
		{input: "in 3 days", wantMonth: time.August, wantDay: 29, wantHour: -1},
		{input: "next monday", wantMonth: time.August, wantDay: 31, wantHour: -1},
		{input: "next friday", wantMonth: time.August, wantDay: 28, wantHour: -1},
		{input: "tomorrow at 9am", wantMonth: time.August, wantDay: 27, wantHour: 9},
		{input: "next monday at 2pm", wantMonth: time.August, wantDay: 31, wantHour: 14},
		{input: "", wantErr: true},
		{input: "gibberish window", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseNaturalLanguage(tt.input, refNow)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseNaturalLanguage(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Month() != tt.wantMonth || got.Day() != tt.wantDay {
				t.Errorf("ParseNaturalLanguage(%q) = %v, want %v %d", tt.input, got, tt.wantMonth, tt.wantDay)
			}
			if tt.wantHour >= 0 && got.Hour() != tt.wantHour {
				t.Errorf("ParseNaturalLanguage(%q) hour = %d, want %d", tt.input, got.Hour(), tt.wantHour)
			}
		})
	}
}

// The layers a --since value falls through, from the most specific
// syntax to natural language.
func TestParseRelativeTimeLayers(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{
			name:  "compact duration",
			input: "-1d",
			want:  time.Date(2026, 8, 25, 15, 30, 0, 0, time.UTC),
		},
		{
			name:  "rfc3339",
			input: "2026-08-01T06:00:00Z",
			want:  time.Date(2026, 8, 1, 6, 0, 0, 0, time.UTC),
		},
		{
			name:  "date only",
			input: "2026-08-01",
			want:  time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRelativeTime(tt.input, refNow)
			if err != nil {
				t.Fatalf("ParseRelativeTime(%q) failed: %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseRelativeTime(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}

	got, err := ParseRelativeTime("3 days ago", refNow)
	if err != nil {
		t.Fatalf("ParseRelativeTime(3 days ago) failed: %v", err)
	}
	if got.Month() != time.August || got.Day() != 23 {
		t.Errorf("ParseRelativeTime(3 days ago) = %v, want Aug 23", got)
	}

	if _, err := ParseRelativeTime("not-a-window", refNow); err == nil {
		t.Error("ParseRelativeTime accepted an unparseable expression")
	}
}

// "-1d" is both a valid compact duration and something the NLP layer
// could mangle; the compact layer must win so the changes commands get
// an exact 24-hour window.
func TestParseRelativeTimeCompactWins(t *testing.T) {
	got, err := ParseRelativeTime("-1d", refNow)
	if err != nil {
		t.Fatalf("ParseRelativeTime(-1d) failed: %v", err)
	}
	if !got.Equal(refNow.AddDate(0, 0, -1)) {
		t.Errorf("ParseRelativeTime(-1d) = %v, want exactly one day before %v", got, refNow)
	}

	// A bare date is absolute, never interpreted relative to now.
	got, err = ParseRelativeTime("2026-01-20", refNow)
	if err != nil {
		t.Fatalf("ParseRelativeTime(2026-01-20) failed: %v", err)
	}
	if got.Year() != 2026 || got.Month() != time.January || got.Day() != 20 {
		t.Errorf("ParseRelativeTime(2026-01-20) = %v, want Jan 20 2026", got)
	}
}
