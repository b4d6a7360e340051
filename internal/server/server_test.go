package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banterlabs/banter/internal/chat"
	"github.com/banterlabs/banter/internal/config"
	"github.com/banterlabs/banter/internal/events"
	"github.com/banterlabs/banter/internal/generate"
	"github.com/banterlabs/banter/internal/persona"
	"github.com/banterlabs/banter/internal/scheduler"
	"github.com/banterlabs/banter/internal/store"
	"github.com/banterlabs/banter/pkg/types"
)

// slowConfig keeps timers far in the future so handler tests never race an
// autonomous turn.
func slowConfig() scheduler.Config {
	cfg := scheduler.DefaultConfig()
	cfg.PrimingDelay = time.Hour
	cfg.GroupGapMin = time.Hour
	cfg.GroupGapMax = 2 * time.Hour
	cfg.TypingMin = time.Hour
	cfg.TypingMax = 2 * time.Hour
	cfg.ReplyMin = time.Hour
	cfg.ReplyMax = 2 * time.Hour
	return cfg
}

func newTestServer(t *testing.T) (*Server, *events.Bus) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	mgr := chat.NewManager(store.NewMemoryStore(), logger)
	bus := events.NewBus()
	t.Cleanup(func() { bus.Close() })

	cfg := &config.Config{HTTPAddr: ":0"}
	srv := New(cfg, mgr, generate.NewScriptedGenerator("hello"), bus, logger, scheduler.Options{
		Config: slowConfig(),
	})
	t.Cleanup(func() {
		srv.mu.Lock()
		for id, sched := range srv.scheds {
			sched.Stop()
			delete(srv.scheds, id)
		}
		srv.mu.Unlock()
	})
	return srv, bus
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Router(), "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestListPersonas(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Router(), "GET", "/api/personas", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Personas []types.Persona `json:"personas"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Personas, len(persona.Catalog))
}

func TestCreateOneToOneDedup(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Router()

	rec := doJSON(t, handler, "POST", "/api/sessions", map[string]string{"persona_id": "char_1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var first struct {
		Session types.Session `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))

	rec = doJSON(t, handler, "POST", "/api/sessions", map[string]string{"persona_id": "char_1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var second struct {
		Session types.Session `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.Equal(t, first.Session.ID, second.Session.ID)
}

func TestCreateSessionUnknownPersona(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Router(), "POST", "/api/sessions", map[string]string{"persona_id": "char_999"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateGroupValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Router()

	rec := doJSON(t, handler, "POST", "/api/sessions", map[string]interface{}{
		"name":            "   ",
		"participant_ids": []string{"char_1"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, "POST", "/api/sessions", map[string]interface{}{
		"name": "Weekend Plans",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateGroupAndOpen(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Router()

	rec := doJSON(t, handler, "POST", "/api/sessions", map[string]interface{}{
		"name":            "Weekend Plans",
		"participant_ids": []string{"char_1", "char_2"},
		"topic":           "trip ideas",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Session types.Session `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.True(t, created.Session.IsGroup)
	assert.Equal(t, "trip ideas", created.Session.Topic)

	rec = doJSON(t, handler, "GET", "/api/sessions/"+created.Session.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Contains(t, body, "session")
	assert.Contains(t, body, "messages")
}

func TestOpenUnknownSession(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Router(), "GET", "/api/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendMessageAndList(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Router()

	rec := doJSON(t, handler, "POST", "/api/sessions", map[string]string{"persona_id": "char_3"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Session types.Session `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, handler, "POST", "/api/sessions/"+created.Session.ID+"/messages", map[string]string{"text": "hi there"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var sent struct {
		Message types.Message `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sent))
	assert.Equal(t, "hi there", sent.Message.Text)
	assert.True(t, sent.Message.IsUser)

	rec = doJSON(t, handler, "GET", "/api/sessions/"+created.Session.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hi there")
}

func TestSendMessageValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Router()

	rec := doJSON(t, handler, "POST", "/api/sessions/nope/messages", map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, handler, "POST", "/api/sessions", map[string]string{"persona_id": "char_4"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Session types.Session `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, handler, "POST", "/api/sessions/"+created.Session.ID+"/messages", map[string]string{"text": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestToggleReaction(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Router()

	rec := doJSON(t, handler, "POST", "/api/sessions", map[string]string{"persona_id": "char_5"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Session types.Session `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, handler, "POST", "/api/sessions/"+created.Session.ID+"/messages", map[string]string{"text": "react to me"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var sent struct {
		Message types.Message `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sent))

	path := fmt.Sprintf("/api/sessions/%s/messages/%s/reactions", created.Session.ID, sent.Message.ID)
	rec = doJSON(t, handler, "POST", path, map[string]string{"emoji": "❤️"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, "POST", path, map[string]string{"emoji": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteSession(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Router()

	rec := doJSON(t, handler, "POST", "/api/sessions", map[string]string{"persona_id": "char_6"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Session types.Session `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, handler, "DELETE", "/api/sessions/"+created.Session.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, "DELETE", "/api/sessions/"+created.Session.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebSocketStreamsEvents(t *testing.T) {
	srv, bus := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Subscription is registered inside the handler goroutine
	require.Eventually(t, func() bool {
		return bus.SubscriberCount() > 0
	}, 2*time.Second, 10*time.Millisecond)

	ev := events.NewEvent(events.EventSessionCreated, "sess-1")
	require.NoError(t, bus.Publish(context.Background(), ev))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got events.Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, events.EventSessionCreated, got.Type)
	assert.Equal(t, "sess-1", got.SessionID)
}

func TestWebSocketSessionFilter(t *testing.T) {
	srv, bus := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?session=sess-a"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return bus.SubscriberCount() > 0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, bus.Publish(context.Background(), events.NewEvent(events.EventMessageAppended, "sess-b")))
	require.NoError(t, bus.Publish(context.Background(), events.NewEvent(events.EventMessageAppended, "sess-a")))

	// The first frame delivered must be the scoped session's, the other
	// session's event never arrives.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got events.Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "sess-a", got.SessionID)
}
