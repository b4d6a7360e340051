package generate

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/banterlabs/banter/pkg/types"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		persona  string
		expected string
	}{
		{"plain", "Hello there", "Rohan", "Hello there"},
		{"surrounding quotes", "\"Hello there\"", "Rohan", "Hello there"},
		{"whitespace and newlines", "\n  Hello there \n", "Rohan", "Hello there"},
		{"bold markers", "**Hello** there", "Rohan", "Hello there"},
		{"name prefix echo", "Rohan: arre yaar", "Rohan", "arre yaar"},
		{"other name kept", "Priya: listen up", "Rohan", "Priya: listen up"},
		{"everything at once", "\"Rohan: **chill** bro\"\n", "Rohan", "chill bro"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.input, tt.persona); got != tt.expected {
				t.Errorf("Clean(%q) = %q; want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFallbackSets(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 50; i++ {
		g := Fallback(true, rng)
		if !IsFallback(g, true) {
			t.Fatalf("group fallback %q not in group set", g)
		}
		d := Fallback(false, rng)
		if !IsFallback(d, false) {
			t.Fatalf("direct fallback %q not in direct set", d)
		}
	}

	// The two sets are disjoint.
	for _, s := range groupFallbacks {
		if IsFallback(s, false) {
			t.Errorf("%q appears in both fallback sets", s)
		}
	}
}

func TestBuildPromptGroup(t *testing.T) {
	p := types.Persona{Name: "Rohan", Personality: "The funny guy."}
	recent := []Message{
		{Text: "old news", SenderName: "Priya"},
		{Text: "who's in for Goa?", SenderName: "Arjun"},
		{Text: "I can do next weekend", SenderName: "You", IsUser: true},
		{Text: "book it", SenderName: "Priya"},
	}

	prompt := BuildPrompt(p, recent, true, "Topic: travel.", true)

	if !strings.HasPrefix(prompt, "You are Rohan. The funny guy.") {
		t.Errorf("prompt missing persona header:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Topic: travel.") {
		t.Error("prompt missing contextual topic")
	}
	if !strings.Contains(prompt, "CRITICAL:") {
		t.Error("prompt with user input must carry the CRITICAL instruction")
	}
	if !strings.Contains(prompt, "👤 You: I can do next weekend ← RECENT") {
		t.Error("user line must carry marker prefix and RECENT tag")
	}
	if strings.Contains(prompt, "Priya: old news ← RECENT") {
		t.Error("only the trailing lines may be tagged RECENT")
	}
	if !strings.HasSuffix(prompt, "Respond as Rohan naturally:") {
		t.Errorf("unexpected prompt closing:\n%s", prompt)
	}
}

func TestBuildPromptDirect(t *testing.T) {
	p := types.Persona{Name: "Priya", Personality: "The planner."}
	recent := []Message{
		{Text: "hey", SenderName: "You", IsUser: true},
	}

	prompt := BuildPrompt(p, recent, false, "", true)

	if strings.Contains(prompt, "group chat") {
		t.Error("one-to-one prompt must not mention the group framing")
	}
	if !strings.Contains(prompt, "chatting one-on-one") {
		t.Error("one-to-one prompt missing its framing")
	}
	if !strings.HasSuffix(prompt, "Respond as Priya:") {
		t.Errorf("unexpected prompt closing:\n%s", prompt)
	}
}

func TestBuildPromptNoUserInput(t *testing.T) {
	p := types.Persona{Name: "Rohan", Personality: "The funny guy."}
	prompt := BuildPrompt(p, nil, true, "The group topic is: cricket.", false)

	if strings.Contains(prompt, "CRITICAL:") {
		t.Error("prompt without user input must not carry the CRITICAL instruction")
	}
	if !strings.Contains(prompt, "Continue the group discussion naturally") {
		t.Error("prompt missing autonomous continuation instruction")
	}
}
