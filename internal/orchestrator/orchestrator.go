package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/mcolombo/ensemble/internal/agent"
	"github.com/mcolombo/ensemble/internal/contextstore"
	"github.com/mcolombo/ensemble/internal/observability"
	"github.com/mcolombo/ensemble/internal/session"
)

// Degradation reasons carried in ChatResult metadata.
const (
	ReasonTimeout           = "timeout"
	ReasonProviderExhausted = "provider_exhausted"
	ReasonCanceled          = "canceled"
)

// ResultContext is the derived-label view returned with every reply.
type ResultContext struct {
	Sentiment  string         `json:"sentiment"`
	Intent     string         `json:"intent"`
	Confidence float64        `json:"confidence"`
	Entities   []agent.Entity `json:"entities,omitempty"`
}

// Metadata describes how the reply was produced.
type Metadata struct {
	SessionID    string        `json:"session_id"`
	ProviderUsed string        `json:"provider_used,omitempty"`
	ResponseTime time.Duration `json:"response_time"`
	Reason       string        `json:"reason,omitempty"`
}

// ChatResult is the outcome of one handled message. Degraded results carry
// success=false and a machine-readable reason; errors never escape Handle.
type ChatResult struct {
	Response    string        `json:"response"`
	Success     bool          `json:"success"`
	Context     ResultContext `json:"context"`
	Suggestions []string      `json:"suggestions"`
	Metadata    Metadata      `json:"metadata"`
}

// Orchestrator sequences the memory, matching and conversational agents for
// each inbound message under one overall deadline.
type Orchestrator struct {
	sessions       *session.Manager
	memory         *agent.MemoryAgent
	matching       *agent.MatchingAgent
	conversational *agent.ConversationalAgent
	metrics        *SystemMetrics
	instruments    *observability.Metrics
	deadline       time.Duration
}

// New wires the pipeline. instruments may be nil when Prometheus export is
// not wanted, e.g. in tests.
func New(
	sessions *session.Manager,
	mem *agent.MemoryAgent,
	matching *agent.MatchingAgent,
	conversational *agent.ConversationalAgent,
	metrics *SystemMetrics,
	instruments *observability.Metrics,
	deadline time.Duration,
) *Orchestrator {
	if deadline <= 0 {
		deadline = 30 * time.Second
	}
	if metrics == nil {
		metrics = NewSystemMetrics()
	}
	return &Orchestrator{
		sessions:       sessions,
		memory:         mem,
		matching:       matching,
		conversational: conversational,
		metrics:        metrics,
		instruments:    instruments,
		deadline:       deadline,
	}
}

// Handle runs the full pipeline for one message and always returns a
// ChatResult. Pipeline failures surface as a degraded result, never as an
// error to the transport.
func (o *Orchestrator) Handle(ctx context.Context, sessionID, userID, message string) ChatResult {
	start := time.Now()
	reqCtx, cancel := context.WithTimeout(ctx, o.deadline)
	defer cancel()

	sess := o.sessions.Ensure(sessionID, userID)
	sessionID = sess.ID

	cctx := o.memory.Load(reqCtx, sessionID)
	match := o.matching.Analyze(message, cctx)
	sentiment := agent.AnalyzeSentiment(message)
	o.memory.UpdateDerived(sessionID, sentiment, match.Intent, match.Confidence)

	o.memory.RecordTurn(reqCtx, sessionID, userID, contextstore.Turn{
		Role: contextstore.RoleUser,
		Text: message,
	})

	if reqCtx.Err() != nil {
		return o.degraded(sessionID, sentiment, match, abortReason(reqCtx.Err()), start)
	}

	cctx.Sentiment = sentiment
	gen, err := o.conversational.Respond(reqCtx, message, cctx, match)
	if err != nil {
		return o.degraded(sessionID, sentiment, match, abortReason(err), start)
	}
	if !gen.Success {
		return o.degraded(sessionID, sentiment, match, ReasonProviderExhausted, start)
	}

	o.memory.RecordTurn(reqCtx, sessionID, userID, contextstore.Turn{
		Role:         contextstore.RoleAssistant,
		Text:         gen.Response,
		ResponseTime: gen.Latency,
		Suggestions:  gen.Suggestions,
	})
	_ = o.sessions.RecordMessage(sessionID)

	elapsed := time.Since(start)
	o.metrics.recordSuccess(elapsed)
	o.observe("success", elapsed)

	return ChatResult{
		Response: gen.Response,
		Success:  true,
		Context: ResultContext{
			Sentiment:  sentiment,
			Intent:     match.Intent,
			Confidence: match.Confidence,
			Entities:   match.Entities,
		},
		Suggestions: gen.Suggestions,
		Metadata: Metadata{
			SessionID:    sessionID,
			ProviderUsed: gen.Provider,
			ResponseTime: elapsed,
		},
	}
}

// abortReason maps a pipeline abort to its metadata reason. Client
// cancellation is reported distinctly from a deadline hit.
func abortReason(err error) string {
	if errors.Is(err, context.Canceled) {
		return ReasonCanceled
	}
	return ReasonTimeout
}

// degraded builds the uniform fallback result. Shape is identical for every
// failure mode; only the reason differs.
func (o *Orchestrator) degraded(sessionID, sentiment string, match agent.MatchResult, reason string, start time.Time) ChatResult {
	elapsed := time.Since(start)
	o.metrics.recordFailure(elapsed)
	o.observe(reason, elapsed)

	return ChatResult{
		Response:    agent.DegradedResponse,
		Success:     false,
		Suggestions: []string{},
		Context: ResultContext{
			Sentiment:  sentiment,
			Intent:     match.Intent,
			Confidence: match.Confidence,
		},
		Metadata: Metadata{
			SessionID:    sessionID,
			ResponseTime: elapsed,
			Reason:       reason,
		},
	}
}

func (o *Orchestrator) observe(outcome string, elapsed time.Duration) {
	if o.instruments == nil {
		return
	}
	o.instruments.ChatRequests.WithLabelValues(outcome).Inc()
	o.instruments.ObserveResponseLatency(elapsed)
	o.instruments.ActiveSessions.Set(float64(o.sessions.ActiveCount()))
}

// StatusSnapshot is the read-only health view served to status queries.
type StatusSnapshot struct {
	Agents []agent.Status `json:"agents"`
	System SystemSnapshot `json:"system_metrics"`
}

// Status assembles a point-in-time snapshot. Safe to call concurrently with
// active request handling; two calls with no intervening traffic return
// identical snapshots.
func (o *Orchestrator) Status() StatusSnapshot {
	return StatusSnapshot{
		Agents: []agent.Status{
			o.memory.Status(),
			o.matching.Status(),
			o.conversational.Status(),
		},
		System: o.metrics.Snapshot(o.sessions.ActiveCount()),
	}
}

// SessionInfo combines the session row with its current context view.
type SessionInfo struct {
	Session *session.Session     `json:"session"`
	Context contextstore.Context `json:"context"`
}

func (o *Orchestrator) SessionInfo(sessionID string) (SessionInfo, error) {
	sess, err := o.sessions.Get(sessionID)
	if err != nil {
		return SessionInfo{}, err
	}
	return SessionInfo{
		Session: sess,
		Context: o.memory.Load(context.Background(), sessionID),
	}, nil
}

// NewSession creates a session eagerly for transports that want an ID before
// the first message.
func (o *Orchestrator) NewSession(userID string) *session.Session {
	return o.sessions.Ensure("", userID)
}

// EndSession marks a session ended and releases its context.
func (o *Orchestrator) EndSession(sessionID string) (*session.Session, error) {
	sess, err := o.sessions.End(sessionID)
	if err != nil {
		return nil, err
	}
	o.memory.Forget(sessionID)
	return sess, nil
}
