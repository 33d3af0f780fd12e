package timeparsing

import (
	"testing"
	"time"
)

// Reference instant for the window tests: a daemon inspecting its
// journals mid-afternoon.
var refNow = time.Date(2026, 8, 26, 15, 30, 0, 0, time.UTC)

func TestParseCompactDuration(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		// The defaults the changes commands ship with.
		{input: "-1d", want: time.Date(2026, 8, 25, 15, 30, 0, 0, time.UTC)},
		{input: "-6h", want: time.Date(2026, 8, 26, 9, 30, 0, 0, time.UTC)},

		// Wider journal windows.
		{input: "-2w", want: time.Date(2026, 8, 12, 15, 30, 0, 0, time.UTC)},
		{input: "-3m", want: time.Date(2026, 5, 26, 15, 30, 0, 0, time.UTC)},
		{input: "-1y", want: time.Date(2025, 8, 26, 15, 30, 0, 0, time.UTC)},

		// Forward shifts, with and without an explicit sign.
		{input: "+1d", want: time.Date(2026, 8, 27, 15, 30, 0, 0, time.UTC)},
		{input: "12h", want: time.Date(2026, 8, 27, 3, 30, 0, 0, time.UTC)},
		{input: "2w", want: time.Date(2026, 9, 9, 15, 30, 0, 0, time.UTC)},

		// Multi-digit amounts.
		{input: "-48h", want: time.Date(2026, 8, 24, 15, 30, 0, 0, time.UTC)},
		{input: "+365d", want: time.Date(2027, 8, 26, 15, 30, 0, 0, time.UTC)},

		// Rejected shapes.
		{input: "", wantErr: true},
		{input: "1", wantErr: true},
		{input: "d", wantErr: true},
		{input: "1x", wantErr: true},
		{input: "--1d", wantErr: true},
		{input: "1d-", wantErr: true},
		{input: "- 1d", wantErr: true},
		{input: "2026-08-01", wantErr: true},
		{input: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCompactDuration(tt.input, refNow)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCompactDuration(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("ParseCompactDuration(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsCompactDuration(t *testing.T) {
	for _, s := range []string{"-1d", "-6h", "+2w", "3m", "1y", "+48h"} {
		if !IsCompactDuration(s) {
			t.Errorf("IsCompactDuration(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"", "yesterday", "2026-08-01", "1d-", "--1d", "1x"} {
		if IsCompactDuration(s) {
			t.Errorf("IsCompactDuration(%q) = true, want false", s)
		}
	}
}

// Month arithmetic rides on AddDate, so a window anchored on the 31st
// normalizes past a short month instead of clamping.
func TestParseCompactDurationMonthOverflow(t *testing.T) {
	jan31 := time.Date(2026, 1, 31, 8, 0, 0, 0, time.UTC)
	got, err := ParseCompactDuration("+1m", jan31)
	if err != nil {
		t.Fatalf("ParseCompactDuration(+1m) failed: %v", err)
	}
	if got.Month() != time.March || got.Day() != 3 {
		t.Errorf("Jan 31 + 1m = %v, want the AddDate-normalized March 3", got)
	}
}

func TestParseCompactDurationKeepsLocation(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		t.Skip("timezone Europe/Rome not available")
	}

	now := time.Date(2026, 8, 26, 15, 30, 0, 0, rome)
	got, err := ParseCompactDuration("-1d", now)
	if err != nil {
		t.Fatalf("ParseCompactDuration(-1d) failed: %v", err)
	}
	if got.Location() != rome {
		t.Errorf("location = %v, want %v", got.Location(), rome)
	}
	if got.Day() != 25 || got.Hour() != 15 {
		t.Errorf("shifted time = %v, want Aug 25 15:30 local", got)
	}
}
