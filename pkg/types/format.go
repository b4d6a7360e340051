package types

import (
	"fmt"
	"time"
)

const previewLimit = 50

// PreviewText shortens a message body for session-list previews.
func PreviewText(text string) string {
	if text == "" {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= previewLimit {
		return text
	}
	return string(runes[:previewLimit]) + "..."
}

// FormatClock renders an epoch-millisecond timestamp as a 12-hour clock,
// e.g. "9:05 PM".
func FormatClock(millis int64) string {
	t := time.UnixMilli(millis)
	return t.Format("3:04 PM")
}

// FormatDay renders an epoch-millisecond timestamp as "Today", "Yesterday",
// or a short date.
func FormatDay(millis int64) string {
	t := time.UnixMilli(millis)
	now := time.Now()

	y1, m1, d1 := t.Date()
	y2, m2, d2 := now.Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return "Today"
	}

	y2, m2, d2 = now.AddDate(0, 0, -1).Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return "Yesterday"
	}

	return fmt.Sprintf("%d/%d/%d", t.Day(), int(t.Month()), t.Year())
}
