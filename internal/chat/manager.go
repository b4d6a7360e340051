// Package chat implements the conversation session model: session creation,
// the append-only message log, reactions, and write-behind persistence.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/banterlabs/banter/internal/store"
	"github.com/banterlabs/banter/pkg/types"
)

const (
	// MaxGroupNameLen caps group names, in runes.
	MaxGroupNameLen = 50

	// DefaultTopic is used when a group is created without a topic.
	DefaultTopic = "General chat"

	groupAvatar = "https://i.pravatar.cc/150?img=68"
)

var (
	// ErrSessionNotFound is returned for operations on unknown session IDs.
	ErrSessionNotFound = store.ErrSessionNotFound

	// ErrEmptyGroupName rejects group creation without a usable name.
	ErrEmptyGroupName = errors.New("group name is required")

	// ErrNoParticipants rejects group creation with zero personas.
	ErrNoParticipants = errors.New("at least one persona is required")
)

// Manager owns the in-memory session list and message logs. In-memory state
// is the source of truth; every mutation is applied synchronously and then
// persisted to the store in the background. Only Delete writes through
// synchronously, since a failed delete risks orphaned data.
type Manager struct {
	store  store.Store
	logger *slog.Logger

	// nowMillis is swapped out by tests.
	nowMillis func() int64

	mu       sync.Mutex
	sessions []*types.Session
	messages map[string][]*types.Message
	loaded   map[string]bool
	open     map[string]bool
	wg       sync.WaitGroup

	sessionSaves saveState
	messageSaves map[string]*saveState
}

// saveState orders one key's background writes. Snapshots are stamped under
// the manager lock, commits are serialized under the saveState lock, and a
// stamp at or below the last committed one is dropped so an old snapshot can
// never overwrite a newer committed write.
type saveState struct {
	mu sync.Mutex
	// issued is guarded by Manager.mu, applied by mu above.
	issued  uint64
	applied uint64
}

// NewManager creates a manager backed by the given store.
func NewManager(st store.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:        st,
		logger:       logger,
		nowMillis:    func() int64 { return time.Now().UnixMilli() },
		messages:     make(map[string][]*types.Message),
		loaded:       make(map[string]bool),
		open:         make(map[string]bool),
		messageSaves: make(map[string]*saveState),
	}
}

// Load reads the stored session list. Message logs are loaded lazily when a
// session is opened.
func (m *Manager) Load(ctx context.Context) error {
	sessions, err := m.store.GetSessions(ctx)
	if err != nil {
		return fmt.Errorf("loading sessions: %w", err)
	}

	m.mu.Lock()
	m.sessions = sessions
	m.mu.Unlock()
	return nil
}

// Sessions returns the session list ordered by most recent activity first.
func (m *Manager) Sessions() []*types.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*types.Session, len(m.sessions))
	for i, sess := range m.sessions {
		out[i] = cloneSession(sess)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return lastActivity(out[i]) > lastActivity(out[j])
	})
	return out
}

func lastActivity(sess *types.Session) int64 {
	if sess.LastMessage != nil {
		return sess.LastMessage.Timestamp
	}
	return 0
}

// Session returns the session with the given ID.
func (m *Manager) Session(id string) (*types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionLocked(id)
}

func (m *Manager) sessionLocked(id string) (*types.Session, error) {
	for _, sess := range m.sessions {
		if sess.ID == id {
			return sess, nil
		}
	}
	return nil, ErrSessionNotFound
}

// CreateOneToOne returns the session for a persona, creating it if none
// exists yet. The second result reports whether a new session was created;
// an existing one-to-one session with the same persona is reused, never
// duplicated.
func (m *Manager) CreateOneToOne(ctx context.Context, p types.Persona) (*types.Session, bool, error) {
	m.mu.Lock()
	for _, sess := range m.sessions {
		if !sess.IsGroup && sess.Persona != nil && sess.Persona.ID == p.ID {
			m.mu.Unlock()
			return sess, false, nil
		}
	}

	now := m.nowMillis()
	persona := p
	sess := &types.Session{
		ID:        newID(now),
		Name:      p.Name,
		Avatar:    p.Avatar,
		IsGroup:   false,
		Persona:   &persona,
		CreatedAt: now,
	}
	m.sessions = append(m.sessions, sess)
	m.persistSessionsLocked()
	m.mu.Unlock()

	m.logger.Debug("created one-to-one session", "session_id", sess.ID, "persona", p.Name)
	return sess, true, nil
}

// CreateGroup creates a group session. The name is trimmed and truncated at
// MaxGroupNameLen runes; participants are deduplicated by persona ID; an
// empty topic falls back to DefaultTopic.
func (m *Manager) CreateGroup(ctx context.Context, name string, personas []types.Persona, topic string) (*types.Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyGroupName
	}
	if runes := []rune(name); len(runes) > MaxGroupNameLen {
		name = string(runes[:MaxGroupNameLen])
	}

	participants := make([]types.Persona, 0, len(personas))
	seen := make(map[string]bool)
	for _, p := range personas {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		participants = append(participants, p)
	}
	if len(participants) == 0 {
		return nil, ErrNoParticipants
	}

	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = DefaultTopic
	}

	now := m.nowMillis()
	sess := &types.Session{
		ID:           newID(now),
		Name:         name,
		Avatar:       groupAvatar,
		IsGroup:      true,
		Participants: participants,
		Topic:        topic,
		CreatedAt:    now,
	}

	m.mu.Lock()
	m.sessions = append(m.sessions, sess)
	m.persistSessionsLocked()
	m.mu.Unlock()

	m.logger.Debug("created group session", "session_id", sess.ID, "name", name, "participants", len(participants))
	return sess, nil
}

// Open loads a session's message log, marks the session active, and clears
// its unread counter. The returned slice is a copy.
func (m *Manager) Open(ctx context.Context, id string) (*types.Session, []*types.Message, error) {
	m.mu.Lock()
	sess, err := m.sessionLocked(id)
	if err != nil {
		m.mu.Unlock()
		return nil, nil, err
	}

	if !m.loaded[id] {
		m.mu.Unlock()
		msgs, err := m.store.GetMessages(ctx, id)
		if err != nil {
			return nil, nil, fmt.Errorf("loading messages: %w", err)
		}
		m.mu.Lock()
		if !m.loaded[id] {
			m.messages[id] = msgs
			m.loaded[id] = true
		}
	}

	m.open[id] = true
	if sess.UnreadCount != 0 {
		sess.UnreadCount = 0
		m.persistSessionsLocked()
	}
	out := copyMessages(m.messages[id])
	view := cloneSession(sess)
	m.mu.Unlock()

	return view, out, nil
}

// Close marks a session inactive. Scheduling teardown is the caller's job.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	delete(m.open, id)
	m.mu.Unlock()
}

// AppendMessage constructs a message with a fresh ID and the current
// timestamp, appends it to the session log, and returns it synchronously.
// Timestamps are clamped so the log stays non-decreasing even if the wall
// clock steps backwards. Persistence happens in the background.
func (m *Manager) AppendMessage(ctx context.Context, sessionID, text, senderID, senderName, senderAvatar string) (*types.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.sessionLocked(sessionID)
	if err != nil {
		return nil, err
	}

	log := m.messages[sessionID]
	now := m.nowMillis()
	if n := len(log); n > 0 && log[n-1].Timestamp > now {
		now = log[n-1].Timestamp
	}

	msg := &types.Message{
		ID:           newID(now),
		Text:         text,
		SenderID:     senderID,
		SenderName:   senderName,
		SenderAvatar: senderAvatar,
		Timestamp:    now,
		IsUser:       senderID == types.UserSenderID,
	}

	m.messages[sessionID] = append(log, msg)
	m.loaded[sessionID] = true
	sess.LastMessage = msg
	if !m.open[sessionID] && !msg.IsUser {
		sess.UnreadCount++
	}

	m.persistMessagesLocked(sessionID)
	m.persistSessionsLocked()
	return msg, nil
}

// ToggleReaction toggles the user's emoji reaction on a message: the same
// emoji clears it, a different one replaces it. Unknown message IDs are a
// no-op.
func (m *Manager) ToggleReaction(sessionID, messageID, emoji string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.sessionLocked(sessionID); err != nil {
		return err
	}

	for _, msg := range m.messages[sessionID] {
		if msg.ID != messageID {
			continue
		}
		if msg.Reactions == nil {
			msg.Reactions = make(map[string]string)
		}
		if msg.Reactions[types.UserSenderID] == emoji {
			delete(msg.Reactions, types.UserSenderID)
		} else {
			msg.Reactions[types.UserSenderID] = emoji
		}
		m.persistMessagesLocked(sessionID)
		return nil
	}
	return nil
}

// Delete removes a session and its entire message log. The store delete is
// synchronous: a failure is surfaced to the caller since it would leave
// orphaned data behind. The caller must stop the session's scheduler first.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	if _, err := m.sessionLocked(id); err != nil {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	if err := m.store.DeleteSession(ctx, id); err != nil && !errors.Is(err, store.ErrSessionNotFound) {
		return fmt.Errorf("deleting session: %w", err)
	}

	m.mu.Lock()
	kept := m.sessions[:0]
	for _, sess := range m.sessions {
		if sess.ID != id {
			kept = append(kept, sess)
		}
	}
	m.sessions = kept
	delete(m.messages, id)
	delete(m.loaded, id)
	delete(m.open, id)
	delete(m.messageSaves, id)
	m.mu.Unlock()

	m.logger.Debug("deleted session", "session_id", id)
	return nil
}

// Messages returns a copy of a session's in-memory log.
func (m *Manager) Messages(sessionID string) []*types.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyMessages(m.messages[sessionID])
}

// MessageCount returns the length of a session's in-memory log.
func (m *Manager) MessageCount(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages[sessionID])
}

// Flush blocks until all background persistence has settled.
func (m *Manager) Flush() {
	m.wg.Wait()
}

// copyMessages clones a log so callers can read it without holding the lock.
func copyMessages(msgs []*types.Message) []*types.Message {
	out := make([]*types.Message, len(msgs))
	for i, msg := range msgs {
		out[i] = cloneMessage(msg)
	}
	return out
}

// cloneMessage copies a message deeply enough that the original's mutable
// reaction map can keep changing while the clone is serialized.
func cloneMessage(msg *types.Message) *types.Message {
	c := *msg
	if msg.Reactions != nil {
		c.Reactions = make(map[string]string, len(msg.Reactions))
		for k, v := range msg.Reactions {
			c.Reactions[k] = v
		}
	}
	return &c
}

func cloneSession(sess *types.Session) *types.Session {
	c := *sess
	if sess.LastMessage != nil {
		c.LastMessage = cloneMessage(sess.LastMessage)
	}
	return &c
}

// persistSessionsLocked snapshots the session list and writes it in the
// background. Callers hold m.mu.
func (m *Manager) persistSessionsLocked() {
	snapshot := make([]*types.Session, len(m.sessions))
	for i, sess := range m.sessions {
		snapshot[i] = cloneSession(sess)
	}

	st := &m.sessionSaves
	st.issued++
	seq := st.issued

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		st.mu.Lock()
		defer st.mu.Unlock()
		if seq <= st.applied {
			// A newer snapshot already committed.
			return
		}
		st.applied = seq
		if err := m.store.SaveSessions(context.Background(), snapshot); err != nil {
			m.logger.Error("persisting sessions failed", "error", err)
		}
	}()
}

// persistMessagesLocked snapshots one session's log and writes it in the
// background. Callers hold m.mu.
func (m *Manager) persistMessagesLocked(sessionID string) {
	msgs := m.messages[sessionID]
	snapshot := make([]*types.Message, len(msgs))
	for i, msg := range msgs {
		snapshot[i] = cloneMessage(msg)
	}

	st := m.messageSaves[sessionID]
	if st == nil {
		st = &saveState{}
		m.messageSaves[sessionID] = st
	}
	st.issued++
	seq := st.issued

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		st.mu.Lock()
		defer st.mu.Unlock()
		if seq <= st.applied {
			// A newer snapshot already committed.
			return
		}
		st.applied = seq
		if err := m.store.SaveMessages(context.Background(), sessionID, snapshot); err != nil {
			m.logger.Error("persisting messages failed", "session_id", sessionID, "error", err)
		}
	}()
}
