package types

import (
	"strings"
	"testing"
	"time"
)

func TestPreviewText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"short", "hello", "hello"},
		{"exactly fifty", strings.Repeat("a", 50), strings.Repeat("a", 50)},
		{"truncated", strings.Repeat("a", 51), strings.Repeat("a", 50) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PreviewText(tt.input); got != tt.expected {
				t.Errorf("PreviewText(%q) = %q; want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFormatDay(t *testing.T) {
	now := time.Now()

	if got := FormatDay(now.UnixMilli()); got != "Today" {
		t.Errorf("FormatDay(now) = %q; want Today", got)
	}
	if got := FormatDay(now.AddDate(0, 0, -1).UnixMilli()); got != "Yesterday" {
		t.Errorf("FormatDay(yesterday) = %q; want Yesterday", got)
	}

	old := time.Date(2024, 3, 9, 12, 0, 0, 0, time.Local)
	if got := FormatDay(old.UnixMilli()); got != "9/3/2024" {
		t.Errorf("FormatDay(old) = %q; want 9/3/2024", got)
	}
}

func TestFormatClock(t *testing.T) {
	ts := time.Date(2024, 3, 9, 21, 5, 0, 0, time.Local)
	if got := FormatClock(ts.UnixMilli()); got != "9:05 PM" {
		t.Errorf("FormatClock = %q; want 9:05 PM", got)
	}
}
