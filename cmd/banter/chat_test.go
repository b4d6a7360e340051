package main

import (
	"strings"
	"testing"
	"time"

	"github.com/banterlabs/banter/pkg/types"
)

func TestRenderMessage(t *testing.T) {
	ts := time.Date(2024, 3, 9, 21, 5, 0, 0, time.Local).UnixMilli()

	user := &types.Message{Text: "hello there", IsUser: true, Timestamp: ts}
	got := renderMessage(user)
	if !strings.Contains(got, "You:") || !strings.Contains(got, "hello there") {
		t.Errorf("user render = %q", got)
	}
	if !strings.Contains(got, "9:05 PM") {
		t.Errorf("user render missing clock stamp: %q", got)
	}

	persona := &types.Message{
		Text:       "right on time",
		SenderName: "Priya",
		Timestamp:  ts,
	}
	got = renderMessage(persona)
	if !strings.Contains(got, "Priya:") || !strings.Contains(got, "right on time") {
		t.Errorf("persona render = %q", got)
	}
	if !strings.Contains(got, "9:05 PM") {
		t.Errorf("persona render missing clock stamp: %q", got)
	}
}
