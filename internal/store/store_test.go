package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/banterlabs/banter/pkg/types"
)

// storeUnderTest exercises every Store implementation through one harness.
func storeUnderTest(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "banter.db"))
	if err != nil {
		t.Fatalf("opening sqlite store: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"sqlite": sqlite,
		"memory": NewMemoryStore(),
	}
}

func sampleSession(id, name string) *types.Session {
	return &types.Session{
		ID:      id,
		Name:    name,
		IsGroup: true,
		Topic:   "General chat",
		Participants: []types.Persona{
			{ID: "char_1", Name: "Rohan", Personality: "funny"},
		},
		CreatedAt: 1700000000000,
	}
}

func sampleMessage(id, text string, ts int64) *types.Message {
	return &types.Message{
		ID:         id,
		Text:       text,
		SenderID:   "char_1",
		SenderName: "Rohan",
		Timestamp:  ts,
	}
}

func TestSaveAndLoadSessions(t *testing.T) {
	for name, s := range storeUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			sessions := []*types.Session{
				sampleSession("s1", "Goa Trip"),
				sampleSession("s2", "IPL Banter"),
			}
			if err := s.SaveSessions(ctx, sessions); err != nil {
				t.Fatalf("SaveSessions: %v", err)
			}

			loaded, err := s.GetSessions(ctx)
			if err != nil {
				t.Fatalf("GetSessions: %v", err)
			}
			if len(loaded) != 2 {
				t.Fatalf("loaded %d sessions; want 2", len(loaded))
			}
			if loaded[0].ID != "s1" || loaded[1].ID != "s2" {
				t.Errorf("session order not preserved: %s, %s", loaded[0].ID, loaded[1].ID)
			}
			if loaded[0].Name != "Goa Trip" || !loaded[0].IsGroup {
				t.Errorf("session fields lost on round trip: %+v", loaded[0])
			}
			if len(loaded[0].Participants) != 1 || loaded[0].Participants[0].Name != "Rohan" {
				t.Errorf("participants lost on round trip: %+v", loaded[0].Participants)
			}

			// Replace-all semantics: saving a shorter list drops the rest.
			if err := s.SaveSessions(ctx, sessions[:1]); err != nil {
				t.Fatalf("SaveSessions: %v", err)
			}
			loaded, err = s.GetSessions(ctx)
			if err != nil {
				t.Fatalf("GetSessions: %v", err)
			}
			if len(loaded) != 1 {
				t.Errorf("loaded %d sessions after shrink; want 1", len(loaded))
			}
		})
	}
}

func TestSaveAndLoadMessages(t *testing.T) {
	for name, s := range storeUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			msgs := []*types.Message{
				sampleMessage("m1", "first", 1000),
				sampleMessage("m2", "second", 2000),
				sampleMessage("m3", "third", 3000),
			}
			if err := s.SaveMessages(ctx, "s1", msgs); err != nil {
				t.Fatalf("SaveMessages: %v", err)
			}

			loaded, err := s.GetMessages(ctx, "s1")
			if err != nil {
				t.Fatalf("GetMessages: %v", err)
			}
			if len(loaded) != 3 {
				t.Fatalf("loaded %d messages; want 3", len(loaded))
			}
			for i, want := range []string{"m1", "m2", "m3"} {
				if loaded[i].ID != want {
					t.Errorf("message %d = %s; want %s", i, loaded[i].ID, want)
				}
			}

			// Unknown session yields empty, not an error.
			empty, err := s.GetMessages(ctx, "missing")
			if err != nil {
				t.Fatalf("GetMessages(missing): %v", err)
			}
			if len(empty) != 0 {
				t.Errorf("expected empty log for unknown session, got %d", len(empty))
			}
		})
	}
}

func TestDeleteSessionRemovesMessages(t *testing.T) {
	for name, s := range storeUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if err := s.SaveSessions(ctx, []*types.Session{sampleSession("s1", "Goa Trip")}); err != nil {
				t.Fatalf("SaveSessions: %v", err)
			}
			if err := s.SaveMessages(ctx, "s1", []*types.Message{sampleMessage("m1", "hi", 1000)}); err != nil {
				t.Fatalf("SaveMessages: %v", err)
			}

			if err := s.DeleteSession(ctx, "s1"); err != nil {
				t.Fatalf("DeleteSession: %v", err)
			}

			sessions, err := s.GetSessions(ctx)
			if err != nil {
				t.Fatalf("GetSessions: %v", err)
			}
			for _, sess := range sessions {
				if sess.ID == "s1" {
					t.Error("deleted session still present")
				}
			}

			msgs, err := s.GetMessages(ctx, "s1")
			if err != nil {
				t.Fatalf("GetMessages: %v", err)
			}
			if len(msgs) != 0 {
				t.Errorf("deleted session still has %d messages", len(msgs))
			}

			if err := s.DeleteSession(ctx, "s1"); err != ErrSessionNotFound {
				t.Errorf("second delete = %v; want ErrSessionNotFound", err)
			}
		})
	}
}
