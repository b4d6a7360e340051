// Package scheduler drives a session's simulated conversation: it decides
// which persona speaks next, when, and with what conversational context.
package scheduler

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/banterlabs/banter/internal/events"
	"github.com/banterlabs/banter/internal/generate"
	"github.com/banterlabs/banter/pkg/types"
)

// Log is the slice of the session manager a scheduler needs: read the log,
// count it, and append turns.
type Log interface {
	Messages(sessionID string) []*types.Message
	MessageCount(sessionID string) int
	AppendMessage(ctx context.Context, sessionID, text, senderID, senderName, senderAvatar string) (*types.Message, error)
}

// State names the scheduler's position in its cycle.
type State int

const (
	// StateIdle means no pending timer.
	StateIdle State = iota
	// StatePriming is the one-time delay before a brand-new group's first cycle.
	StatePriming
	// StateScheduled means a timer is pending for the next autonomous turn.
	StateScheduled
	// StateGenerating means a speaker is chosen and a reply is in flight.
	StateGenerating
)

func (s State) String() string {
	switch s {
	case StatePriming:
		return "priming"
	case StateScheduled:
		return "scheduled"
	case StateGenerating:
		return "generating"
	default:
		return "idle"
	}
}

// Config holds the scheduler's timing and context-window knobs.
type Config struct {
	// PrimingDelay runs once before the first cycle of an empty new group.
	PrimingDelay time.Duration
	// GroupGapMin/Max bound the jittered gap between autonomous group turns.
	GroupGapMin time.Duration
	GroupGapMax time.Duration
	// TypingMin/Max bound how long the typing indicator shows before a
	// group reply lands.
	TypingMin time.Duration
	TypingMax time.Duration
	// ReplyMin/Max bound the one-to-one response delay.
	ReplyMin time.Duration
	ReplyMax time.Duration
	// GroupWindow and DirectWindow bound the context excerpt.
	GroupWindow  int
	DirectWindow int
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		PrimingDelay: 2 * time.Second,
		GroupGapMin:  3 * time.Second,
		GroupGapMax:  7 * time.Second,
		TypingMin:    2 * time.Second,
		TypingMax:    4 * time.Second,
		ReplyMin:     1500 * time.Millisecond,
		ReplyMax:     3 * time.Second,
		GroupWindow:  15,
		DirectWindow: 10,
	}
}

const (
	baseChance   = 0.6
	chanceGrowth = 0.05
	maxChance    = 0.9
)

// responseProbability is the per-participant trigger chance for one cycle.
// The scale factor is applied first and the cap after, so the chance grows
// with conversation length until it pins at maxChance.
func responseProbability(messageCount int) float64 {
	scaled := baseChance * (1 + chanceGrowth*float64(messageCount))
	return math.Min(scaled, maxChance)
}

// Options configures a Scheduler. Zero values fall back to production
// defaults.
type Options struct {
	Clock  Clock
	Rand   *rand.Rand
	Logger *slog.Logger
	Config Config
}

// Scheduler owns one session's autonomous turn loop: its pending timer, its
// process-lifetime message counter, and the typing indicator. Construct on
// session-open, Stop on session-close or delete.
type Scheduler struct {
	session *types.Session
	log     Log
	gen     generate.Generator
	bus     *events.Bus
	clock   Clock
	cfg     Config
	logger  *slog.Logger

	mu     sync.Mutex
	rng    *rand.Rand
	state  State
	timer  Timer
	seq    uint64
	count  int
	typing *types.TypingState
	closed bool
}

// New creates a scheduler for the session. The session's participant set and
// topic are read-only from the scheduler's point of view.
func New(session *types.Session, log Log, gen generate.Generator, bus *events.Bus, opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Config == (Config{}) {
		opts.Config = DefaultConfig()
	}

	return &Scheduler{
		session: session,
		log:     log,
		gen:     gen,
		bus:     bus,
		clock:   opts.Clock,
		cfg:     opts.Config,
		logger:  opts.Logger.With("session_id", session.ID),
		rng:     opts.Rand,
	}
}

// Start arms the loop. An empty new group gets one priming delay before its
// first cycle so creation doesn't flood the screen; a group with history goes
// straight to the jittered schedule. One-to-one sessions stay idle until the
// user speaks.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.count = s.log.MessageCount(s.session.ID)

	if !s.session.IsGroup {
		s.state = StateIdle
		return
	}

	if s.count == 0 {
		s.state = StatePriming
		s.armLocked(s.cfg.PrimingDelay, s.runCycle)
		s.logger.Debug("priming new group", "delay", s.cfg.PrimingDelay)
		return
	}
	s.scheduleLocked()
}

// Stop tears the scheduler down: the pending timer is cancelled and any
// in-flight generation result will be discarded. Stop is terminal.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	wasTyping := s.typing != nil
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.typing = nil
	s.state = StateIdle
	s.mu.Unlock()

	if wasTyping {
		s.publish(events.NewEvent(events.EventTypingStopped, s.session.ID))
	}
}

// State returns the scheduler's current position in its cycle.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Typing returns the persona currently shown as typing, or nil.
func (s *Scheduler) Typing() *types.TypingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.typing == nil {
		return nil
	}
	t := *s.typing
	return &t
}

// UserMessage appends the user's text and reacts to it: a group session's
// pending timer is replaced so the loop picks the new message up promptly; a
// one-to-one session arms the persona's reply.
func (s *Scheduler) UserMessage(ctx context.Context, text string) (*types.Message, error) {
	msg, err := s.log.AppendMessage(ctx, s.session.ID, text, types.UserSenderID, "You", "")
	if err != nil {
		return nil, err
	}
	ev := events.NewEvent(events.EventMessageAppended, s.session.ID)
	ev.Message = msg
	s.publish(ev)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return msg, nil
	}
	s.count++

	if s.session.IsGroup {
		s.scheduleLocked()
		s.mu.Unlock()
		return msg, nil
	}

	persona := *s.session.Persona
	s.state = StateGenerating
	s.typing = &types.TypingState{Name: persona.Name, Avatar: persona.Avatar}
	delay := s.between(s.cfg.ReplyMin, s.cfg.ReplyMax)
	s.armLocked(delay, func() { s.directReply(persona) })
	s.mu.Unlock()

	s.publishTypingStarted(persona)
	return msg, nil
}

// scheduleLocked arms the next autonomous cycle, replacing any pending timer.
// If a cycle was mid-typing its indicator is cleared; an in-flight generation
// is left alone and will re-arm on completion. Callers hold s.mu.
func (s *Scheduler) scheduleLocked() {
	if s.typing != nil && s.timer != nil {
		// A pending typing-phase timer is being replaced; the indicator
		// goes with it.
		s.typing = nil
		s.publish(events.NewEvent(events.EventTypingStopped, s.session.ID))
	}
	s.state = StateScheduled
	delay := s.between(s.cfg.GroupGapMin, s.cfg.GroupGapMax)
	s.armLocked(delay, s.runCycle)
}

// armLocked replaces the pending timer. The sequence number fences callbacks
// from timers that lost a Stop race: a fired callback whose seq is stale
// returns without doing anything. Callers hold s.mu.
func (s *Scheduler) armLocked(d time.Duration, f func()) {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.seq++
	seq := s.seq
	s.timer = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		if s.closed || seq != s.seq {
			s.mu.Unlock()
			return
		}
		s.timer = nil
		s.mu.Unlock()
		f()
	})
}

// between returns a uniform duration in [min, max]. Callers hold s.mu.
func (s *Scheduler) between(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(s.rng.Int63n(int64(max-min)+1))
}

// runCycle is one pass of the autonomous loop: gate each participant, pick a
// speaker, show typing, and hand off to the generation step.
func (s *Scheduler) runCycle() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	chance := responseProbability(s.count)
	var eligible []types.Persona
	for _, p := range s.session.Participants {
		if s.rng.Float64() < chance {
			eligible = append(eligible, p)
		}
	}

	if len(eligible) == 0 {
		// Nobody felt like talking. Silence is allowed; retry later.
		s.logger.Debug("no speaker gated in, rescheduling", "chance", chance)
		s.scheduleLocked()
		s.mu.Unlock()
		return
	}

	speaker := eligible[s.rng.Intn(len(eligible))]
	s.state = StateGenerating
	s.typing = &types.TypingState{Name: speaker.Name, Avatar: speaker.Avatar}
	typingDelay := s.between(s.cfg.TypingMin, s.cfg.TypingMax)

	// Snapshot the context before the typing delay so the reply answers
	// what was on screen when the speaker "started typing".
	msgs := s.log.Messages(s.session.ID)
	excerpt := buildExcerpt(msgs, s.cfg.GroupWindow)
	topic, hasUserInput := contextualTopic(msgs, s.session.Topic)

	s.armLocked(typingDelay, func() { s.finishTurn(speaker, excerpt, topic, hasUserInput) })
	s.mu.Unlock()

	s.publishTypingStarted(speaker)
}

// finishTurn runs the generator and lands the reply. Generation failure
// falls back to a canned phrase; a scheduler stopped mid-call discards the
// result instead of appending to a dead session.
func (s *Scheduler) finishTurn(speaker types.Persona, excerpt []generate.Message, topic string, hasUserInput bool) {
	text, err := s.gen.Generate(context.Background(), speaker, excerpt, true, topic, hasUserInput)
	if err != nil {
		s.logger.Warn("generation failed, using fallback", "persona", speaker.Name, "error", err)
		s.mu.Lock()
		text = generate.Fallback(true, s.rng)
		s.mu.Unlock()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.typing = nil
	s.mu.Unlock()
	s.publish(events.NewEvent(events.EventTypingStopped, s.session.ID))

	msg, err := s.log.AppendMessage(context.Background(), s.session.ID, text, speaker.ID, speaker.Name, speaker.Avatar)
	if err != nil {
		// Session died between the liveness check and the append.
		s.logger.Debug("discarding turn for dead session", "error", err)
		return
	}
	ev := events.NewEvent(events.EventMessageAppended, s.session.ID)
	ev.Message = msg
	s.publish(ev)

	s.mu.Lock()
	if !s.closed {
		s.count++
		s.scheduleLocked()
	}
	s.mu.Unlock()
}

// directReply produces the single persona's answer in a one-to-one session.
func (s *Scheduler) directReply(persona types.Persona) {
	msgs := s.log.Messages(s.session.ID)
	excerpt := buildExcerpt(msgs, s.cfg.DirectWindow)

	text, err := s.gen.Generate(context.Background(), persona, excerpt, false, "", true)
	if err != nil {
		s.logger.Warn("generation failed, using fallback", "persona", persona.Name, "error", err)
		s.mu.Lock()
		text = generate.Fallback(false, s.rng)
		s.mu.Unlock()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.typing = nil
	s.state = StateIdle
	s.mu.Unlock()
	s.publish(events.NewEvent(events.EventTypingStopped, s.session.ID))

	msg, err := s.log.AppendMessage(context.Background(), s.session.ID, text, persona.ID, persona.Name, persona.Avatar)
	if err != nil {
		s.logger.Debug("discarding reply for dead session", "error", err)
		return
	}
	s.mu.Lock()
	s.count++
	s.mu.Unlock()

	ev := events.NewEvent(events.EventMessageAppended, s.session.ID)
	ev.Message = msg
	s.publish(ev)
}

func (s *Scheduler) publishTypingStarted(p types.Persona) {
	ev := events.NewEvent(events.EventTypingStarted, s.session.ID)
	ev.Typing = &types.TypingState{Name: p.Name, Avatar: p.Avatar}
	s.publish(ev)
}

func (s *Scheduler) publish(ev *events.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(context.Background(), ev); err != nil {
		s.logger.Debug("event publish failed", "type", ev.Type, "error", err)
	}
}
