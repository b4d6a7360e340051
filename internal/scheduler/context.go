package scheduler

import (
	"fmt"
	"strings"

	"github.com/banterlabs/banter/internal/generate"
	"github.com/banterlabs/banter/pkg/types"
)

// recentUserCutoff is how close to the end of the log a user message must be
// for the persona to answer it directly rather than treat it as background.
const recentUserCutoff = 3

// buildExcerpt maps the last window messages to generator input, oldest
// first.
func buildExcerpt(msgs []*types.Message, window int) []generate.Message {
	if len(msgs) > window {
		msgs = msgs[len(msgs)-window:]
	}
	out := make([]generate.Message, len(msgs))
	for i, msg := range msgs {
		out[i] = generate.Message{
			Text:       msg.Text,
			SenderName: msg.SenderName,
			IsUser:     msg.IsUser,
		}
	}
	return out
}

// contextualTopic derives the topic instruction for a group turn and reports
// whether the user has said anything at all. A user message within the last
// few turns is answered literally; older user messages become background; with
// no user input the session topic drives the conversation.
func contextualTopic(msgs []*types.Message, topic string) (string, bool) {
	if topic == "" {
		topic = "general chat"
	}

	var userMsgs []*types.Message
	lastUserIndex := -1
	for i, msg := range msgs {
		if msg.IsUser {
			userMsgs = append(userMsgs, msg)
			lastUserIndex = i
		}
	}

	if len(userMsgs) == 0 {
		return fmt.Sprintf("The group topic is: %s. Discuss this topic naturally with the group.", topic), false
	}

	sinceLastUser := len(msgs) - lastUserIndex - 1
	if sinceLastUser <= recentUserCutoff {
		last := userMsgs[len(userMsgs)-1]
		return fmt.Sprintf("Topic: %s. User's most recent message: %q. Respond to what the user JUST said while staying natural.", topic, last.Text), true
	}

	recent := userMsgs
	if len(recent) > 2 {
		recent = recent[len(recent)-2:]
	}
	texts := make([]string, len(recent))
	for i, msg := range recent {
		texts[i] = msg.Text
	}
	return fmt.Sprintf("Topic: %s. User previously mentioned: %q. Keep this in mind but follow the natural flow of conversation.", topic, strings.Join(texts, ". ")), true
}
