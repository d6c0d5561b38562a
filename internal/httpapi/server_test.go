package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcolombo/ensemble/internal/agent"
	"github.com/mcolombo/ensemble/internal/config"
	"github.com/mcolombo/ensemble/internal/contextstore"
	"github.com/mcolombo/ensemble/internal/orchestrator"
	"github.com/mcolombo/ensemble/internal/protocol"
	"github.com/mcolombo/ensemble/internal/provider"
	"github.com/mcolombo/ensemble/internal/session"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Config{
		SessionIdleTimeout: 2 * time.Minute,
		AllowAnyOrigin:     true,
	}

	failover := provider.NewFailoverClient(
		provider.NewMockGenerator("mock-primary"),
		provider.NewMockGenerator("mock-secondary"),
		time.Second,
	)
	orch := orchestrator.New(
		session.NewManager(cfg.SessionIdleTimeout),
		agent.NewMemoryAgent(contextstore.New(100), nil),
		agent.NewMatchingAgent(nil),
		agent.NewConversationalAgent(failover, 5, 3, 200, nil),
		orchestrator.NewSystemMetrics(),
		nil,
		30*time.Second,
	)

	srv := New(cfg, orch, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func TestChatEndpoint(t *testing.T) {
	ts := newTestServer(t)

	body, _ := json.Marshal(map[string]string{
		"session_id": "s1",
		"user_id":    "user-1",
		"message":    "hello there",
	})
	res, err := http.Post(ts.URL+"/api/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("chat request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("chat status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var result orchestrator.ChatResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		t.Fatalf("decode chat response: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.Context.Intent != "greeting" {
		t.Fatalf("intent = %q, want greeting", result.Context.Intent)
	}
	if result.Metadata.ProviderUsed != "mock-primary" {
		t.Fatalf("provider = %q, want mock-primary", result.Metadata.ProviderUsed)
	}
}

func TestChatEndpointRejectsEmptyMessage(t *testing.T) {
	ts := newTestServer(t)

	body, _ := json.Marshal(map[string]string{"user_id": "u1", "message": ""})
	res, err := http.Post(ts.URL+"/api/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("chat request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestCreateGetAndEndSession(t *testing.T) {
	ts := newTestServer(t)

	body, _ := json.Marshal(map[string]string{"user_id": "user-1"})
	res, err := http.Post(ts.URL+"/api/session/new", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("create session request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", res.StatusCode, http.StatusCreated)
	}

	var created session.Session
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("missing session id in create response: %+v", created)
	}

	getRes, err := http.Get(ts.URL + "/api/session/" + created.ID)
	if err != nil {
		t.Fatalf("get session request error = %v", err)
	}
	defer getRes.Body.Close()
	if getRes.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want %d", getRes.StatusCode, http.StatusOK)
	}

	endRes, err := http.Post(ts.URL+"/api/session/"+created.ID+"/end", "application/json", bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("end session request error = %v", err)
	}
	defer endRes.Body.Close()
	if endRes.StatusCode != http.StatusOK {
		t.Fatalf("end status = %d, want %d", endRes.StatusCode, http.StatusOK)
	}
}

func TestGetUnknownSessionReturns404(t *testing.T) {
	ts := newTestServer(t)

	res, err := http.Get(ts.URL + "/api/session/nope")
	if err != nil {
		t.Fatalf("get session request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
}

func TestAgentsStatus(t *testing.T) {
	ts := newTestServer(t)

	res, err := http.Get(ts.URL + "/api/agents/status")
	if err != nil {
		t.Fatalf("status request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var snap orchestrator.StatusSnapshot
	if err := json.NewDecoder(res.Body).Decode(&snap); err != nil {
		t.Fatalf("decode status response: %v", err)
	}
	if len(snap.Agents) != 3 {
		t.Fatalf("agents = %d, want 3", len(snap.Agents))
	}
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/healthz", "/api/health"} {
		res, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status = %d, want %d", path, res.StatusCode, http.StatusOK)
		}
	}
}

func TestChatWebsocketRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	err = conn.WriteJSON(protocol.ClientChat{
		Type:      protocol.TypeClientChat,
		SessionID: "ws-s1",
		UserID:    "user-1",
		Message:   "hello over websocket",
	})
	if err != nil {
		t.Fatalf("write chat message: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var envelope struct {
		Type    protocol.MessageType `json:"type"`
		Payload json.RawMessage      `json:"payload"`
	}
	if err := conn.ReadJSON(&envelope); err != nil {
		t.Fatalf("read chat result: %v", err)
	}
	if envelope.Type != protocol.TypeChatResult {
		t.Fatalf("type = %q, want %q", envelope.Type, protocol.TypeChatResult)
	}

	var result orchestrator.ChatResult
	if err := json.Unmarshal(envelope.Payload, &result); err != nil {
		t.Fatalf("decode chat result payload: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.Metadata.SessionID != "ws-s1" {
		t.Fatalf("session id = %q, want ws-s1", result.Metadata.SessionID)
	}
}

func TestChatWebsocketRejectsMalformedMessage(t *testing.T) {
	ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"wat"}`)); err != nil {
		t.Fatalf("write malformed message: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var event protocol.ErrorEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read error event: %v", err)
	}
	if event.Code != "invalid_client_message" {
		t.Fatalf("code = %q, want invalid_client_message", event.Code)
	}
}
