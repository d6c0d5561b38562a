package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/mcolombo/ensemble/internal/config"
	"github.com/mcolombo/ensemble/internal/observability"
	"github.com/mcolombo/ensemble/internal/orchestrator"
	"github.com/mcolombo/ensemble/internal/protocol"
	"github.com/mcolombo/ensemble/internal/session"
)

// Orchestrator is the slice of the pipeline the transport depends on.
type Orchestrator interface {
	Handle(ctx context.Context, sessionID, userID, message string) orchestrator.ChatResult
	Status() orchestrator.StatusSnapshot
	SessionInfo(sessionID string) (orchestrator.SessionInfo, error)
	NewSession(userID string) *session.Session
	EndSession(sessionID string) (*session.Session, error)
}

type Server struct {
	cfg          config.Config
	orchestrator Orchestrator
	metrics      *observability.Metrics
	upgrader     websocket.Upgrader
}

func New(cfg config.Config, orch Orchestrator, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:          cfg,
		orchestrator: orch,
		metrics:      metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same
				// origin unless explicitly opened up.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealthz)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/api/chat", s.handleChat)
	r.Get("/api/chat/ws", s.handleChatWS)
	r.Post("/api/session/new", s.handleCreateSession)
	r.Get("/api/session/{id}", s.handleGetSession)
	r.Post("/api/session/{id}/end", s.handleEndSession)
	r.Get("/api/agents/status", s.handleAgentsStatus)
	r.Get("/api/health", s.handleHealth)

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleHealth serves the aggregate health payload with the status snapshot
// embedded.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"system": s.orchestrator.Status(),
	})
}

type chatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "message is required")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		req.UserID = "anonymous"
	}

	result := s.orchestrator.Handle(r.Context(), req.SessionID, req.UserID, req.Message)
	respondJSON(w, http.StatusOK, result)
}

type createSessionRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		req.UserID = "anonymous"
	}

	sess := s.orchestrator.NewSession(req.UserID)
	if s.metrics != nil {
		s.metrics.SessionEvents.WithLabelValues("created").Inc()
	}
	respondJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	info, err := s.orchestrator.SessionInfo(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.orchestrator.EndSession(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	if s.metrics != nil {
		s.metrics.SessionEvents.WithLabelValues("ended").Inc()
	}
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleAgentsStatus(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.orchestrator.Status())
}

// handleChatWS runs one websocket conversation. Messages are handled in
// arrival order on a single goroutine, so one connection never has two
// pipeline runs for the same session in flight.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if s.metrics != nil {
		s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan any, 64)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			s.send(ctx, outbound, protocol.ErrorEvent{
				Type:   protocol.TypeErrorEvent,
				Code:   "invalid_client_message",
				Detail: err.Error(),
			})
			continue
		}

		switch msg := parsed.(type) {
		case protocol.ClientChat:
			result := s.orchestrator.Handle(ctx, msg.SessionID, msg.UserID, msg.Message)
			payload, err := json.Marshal(result)
			if err != nil {
				continue
			}
			s.send(ctx, outbound, protocol.ChatResult{Type: protocol.TypeChatResult, Payload: payload})
		case protocol.ClientControl:
			s.handleControl(ctx, outbound, msg)
		}
	}

	cancel()
	<-writerDone
	if s.metrics != nil {
		s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
	}
}

func (s *Server) handleControl(ctx context.Context, outbound chan<- any, msg protocol.ClientControl) {
	switch msg.Action {
	case "status":
		payload, err := json.Marshal(s.orchestrator.Status())
		if err != nil {
			return
		}
		s.send(ctx, outbound, protocol.StatusEvent{Type: protocol.TypeStatusEvent, Payload: payload})
	case "end":
		if _, err := s.orchestrator.EndSession(msg.SessionID); err != nil {
			s.send(ctx, outbound, protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: msg.SessionID,
				Code:      "session_not_found",
				Detail:    err.Error(),
			})
			return
		}
		s.send(ctx, outbound, protocol.SystemEvent{
			Type:      protocol.TypeSystemEvent,
			SessionID: msg.SessionID,
			Code:      "session_ended",
		})
	default:
		s.send(ctx, outbound, protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: msg.SessionID,
			Code:      "unknown_action",
			Detail:    msg.Action,
		})
	}
}

func (s *Server) send(ctx context.Context, outbound chan<- any, msg any) {
	select {
	case <-ctx.Done():
	case outbound <- msg:
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
