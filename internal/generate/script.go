package generate

import (
	"context"
	"fmt"
	"sync"

	"github.com/banterlabs/banter/pkg/types"
)

// ScriptedGenerator replays canned lines instead of calling a model. It backs
// offline/demo mode and deterministic tests.
type ScriptedGenerator struct {
	mu    sync.Mutex
	lines []string
	next  int
	err   error
}

// NewScriptedGenerator cycles through the given lines. With no lines it
// echoes a short acknowledgment of the latest message.
func NewScriptedGenerator(lines ...string) *ScriptedGenerator {
	return &ScriptedGenerator{lines: lines}
}

// Fail makes every subsequent Generate call return err (nil restores normal
// behavior).
func (s *ScriptedGenerator) Fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *ScriptedGenerator) Generate(ctx context.Context, p types.Persona, recent []Message, isGroup bool, contextualTopic string, hasUserInput bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return "", s.err
	}
	if len(s.lines) > 0 {
		line := s.lines[s.next%len(s.lines)]
		s.next++
		return line, nil
	}
	if len(recent) == 0 {
		return fmt.Sprintf("So, what's everyone up to? - %s", p.Name), nil
	}
	last := recent[len(recent)-1]
	return fmt.Sprintf("%s, I hear you on %q", last.SenderName, types.PreviewText(last.Text)), nil
}
