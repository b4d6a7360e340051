package generate

import (
	"fmt"
	"strings"

	"github.com/banterlabs/banter/pkg/types"
)

// recentWindow marks how many trailing excerpt lines are flagged RECENT so
// the model weights the newest turns.
const recentWindow = 3

// BuildPrompt assembles the full prompt for one reply. The excerpt is
// rendered oldest to newest, user lines carry a marker prefix, and the last
// few lines are tagged RECENT.
func BuildPrompt(p types.Persona, recent []Message, isGroup bool, contextualTopic string, hasUserInput bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s. %s\n\n", p.Name, p.Personality)

	if isGroup {
		b.WriteString("This is a casual friends group chat.\n")
		b.WriteString(contextualTopic)
		b.WriteString("\n\n")

		if hasUserInput {
			b.WriteString("CRITICAL: Look at the MOST RECENT messages in the conversation below. If the user (real person) just spoke, respond directly to their LATEST message. Always focus on what was said most recently, not older messages.\n\n")
		} else {
			b.WriteString("Continue the group discussion naturally based on the topic. Be spontaneous and engaging.\n\n")
		}

		b.WriteString("RULES:\n")
		b.WriteString("- Keep responses 1-2 sentences max\n")
		b.WriteString("- Focus on the LATEST messages in the conversation\n")
		b.WriteString("- React to what was JUST said (most recent 2-3 messages)\n")
		fmt.Fprintf(&b, "- Show your personality as %s\n", p.Name)
		b.WriteString("- Use casual, natural language\n")
		b.WriteString("- Avoid excessive emojis\n\n")
	} else {
		b.WriteString("You're chatting one-on-one. Be friendly and engaging.\n")
		b.WriteString("Keep responses conversational and natural, 2-3 sentences usually.\n\n")
	}

	b.WriteString("Recent conversation (oldest to newest):\n")
	for i, msg := range recent {
		prefix := ""
		if msg.IsUser {
			prefix = "👤 "
		}
		marker := ""
		if i >= len(recent)-recentWindow {
			marker = " ← RECENT"
		}
		fmt.Fprintf(&b, "%s%s: %s%s\n", prefix, msg.SenderName, msg.Text, marker)
	}

	if isGroup {
		b.WriteString("\nPAY ATTENTION TO THE MESSAGES MARKED \"RECENT\" ABOVE.\n")
		if hasUserInput {
			b.WriteString("The user is a real person. If they spoke recently, you MUST respond to their latest message.\n")
		}
		fmt.Fprintf(&b, "\nRespond as %s naturally:", p.Name)
	} else {
		fmt.Fprintf(&b, "\nRespond as %s:", p.Name)
	}

	return b.String()
}
