// Package generate defines the text-generation contract for persona replies:
// the prompt shape, response cleanup, and the canned fallbacks used when the
// upstream model fails.
package generate

import (
	"context"
	"math/rand"
	"regexp"
	"strings"

	"github.com/banterlabs/banter/pkg/types"
)

// Message is one line of the bounded conversation excerpt handed to a
// generator, oldest first.
type Message struct {
	Text       string `json:"text"`
	SenderName string `json:"sender_name"`
	IsUser     bool   `json:"is_user"`
}

// Generator produces one line of reply text for a persona. Implementations
// may fail; callers substitute a fallback phrase and never surface the error
// to the user.
type Generator interface {
	Generate(ctx context.Context, p types.Persona, recent []Message, isGroup bool, contextualTopic string, hasUserInput bool) (string, error)
}

// groupFallbacks and directFallbacks stand in for a generated reply when the
// upstream call fails. Short on purpose; they read like a distracted friend.
var groupFallbacks = []string{
	"Haha yeah",
	"True that",
	"Wait what",
	"Okay okay",
	"Fair point",
	"Lol",
	"Makes sense",
}

var directFallbacks = []string{
	"Hey, how have you been?",
	"Tell me more about that",
	"That sounds interesting",
	"What do you think?",
	"I see what you mean",
}

// Fallback returns a canned phrase for the given mode, chosen uniformly at
// random from the mode's fixed set.
func Fallback(isGroup bool, rng *rand.Rand) string {
	set := directFallbacks
	if isGroup {
		set = groupFallbacks
	}
	if rng == nil {
		return set[rand.Intn(len(set))]
	}
	return set[rng.Intn(len(set))]
}

// IsFallback reports whether text belongs to the fixed fallback set for the
// given mode.
func IsFallback(text string, isGroup bool) bool {
	set := directFallbacks
	if isGroup {
		set = groupFallbacks
	}
	for _, s := range set {
		if s == text {
			return true
		}
	}
	return false
}

var emphasisMarkers = regexp.MustCompile(`\*\*`)

// Clean normalizes raw model output into a single chat line: surrounding
// quotes, newlines and whitespace are trimmed, markdown bold markers are
// stripped, and a leading "<name>:" echo of the persona's own name is
// removed.
func Clean(text, personaName string) string {
	text = strings.Trim(text, "\"\n \t")
	text = emphasisMarkers.ReplaceAllString(text, "")
	if prefix := personaName + ":"; strings.HasPrefix(text, prefix) {
		text = strings.TrimSpace(text[len(prefix):])
	}
	return text
}
