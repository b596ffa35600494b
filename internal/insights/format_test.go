package insights

import (
	"testing"
	"time"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{-5, "0 B"},
		{500, "500 B"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatLastAccessed(t *testing.T) {
	now := time.Date(2026, 2, 23, 12, 0, 0, 0, time.UTC)
	orig := timeNow
	timeNow = func() time.Time { return now }
	defer func() { timeNow = orig }()

	if got := FormatLastAccessed(nil); got != "Never" {
		t.Errorf("FormatLastAccessed(nil) = %q, want Never", got)
	}

	threeHours := now.Add(-3 * time.Hour)
	if got := FormatLastAccessed(&threeHours); got != "3 hours ago" {
		t.Errorf("FormatLastAccessed(-3h) = %q, want %q", got, "3 hours ago")
	}

	dayAndHalf := now.Add(-36 * time.Hour)
	if got := FormatLastAccessed(&dayAndHalf); got != "1 day ago" {
		t.Errorf("FormatLastAccessed(-36h) = %q, want %q", got, "1 day ago")
	}
}
