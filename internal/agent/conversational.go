package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mcolombo/ensemble/internal/contextstore"
	"github.com/mcolombo/ensemble/internal/provider"
)

// TextGenerator is the slice of the failover client the conversational agent
// depends on.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (provider.Result, error)
}

// GenerationResult is the ephemeral outcome of one response generation.
type GenerationResult struct {
	Response    string        `json:"response"`
	Suggestions []string      `json:"suggestions"`
	Provider    string        `json:"provider,omitempty"`
	Latency     time.Duration `json:"latency"`
	Success     bool          `json:"success"`
}

// DegradedResponse is the canned reply used whenever the pipeline cannot
// produce a real one. Uniform regardless of how far processing got.
const DegradedResponse = "I apologize, but I'm unable to generate a response right now. Please try again in a moment."

// DefaultSuggestions returns the built-in per-intent suggestion table.
// Loaded once at startup and immutable thereafter.
func DefaultSuggestions() map[string][]string {
	return map[string][]string{
		"greeting":  {"Hello, how are you?", "Good morning", "Hi there"},
		"question":  {"What is the system architecture?", "How do the agents work together?", "What can you help me with?"},
		"request":   {"Show me the system status", "Explain the multi-agent system", "Help me understand the agents"},
		"complaint": {"The system is not working", "I'm having trouble with the interface", "Something went wrong"},
		"general":   {"What can you do?", "Show me the system status", "How does this work?"},
	}
}

var positiveWords = []string{
	"good", "great", "excellent", "amazing", "wonderful", "fantastic", "love",
	"like", "happy", "pleased", "awesome", "brilliant", "perfect",
}

var negativeWords = []string{
	"bad", "terrible", "awful", "hate", "dislike", "angry", "frustrated",
	"sad", "disappointed", "horrible", "worst", "annoying",
}

// AnalyzeSentiment labels a message positive, negative or neutral by lexicon
// lookup. Positive hits take precedence over negative ones.
func AnalyzeSentiment(message string) string {
	lower := strings.ToLower(message)
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			return "positive"
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			return "negative"
		}
	}
	return "neutral"
}

// ConversationalAgent builds a bounded prompt from the message, recent
// history and the match result, and delegates generation to the failover
// client.
type ConversationalAgent struct {
	generator      TextGenerator
	suggestions    map[string][]string
	historyTurns   int
	maxSuggestions int
	maxTokens      int
	metrics        *Metrics
}

func NewConversationalAgent(generator TextGenerator, historyTurns, maxSuggestions, maxTokens int, suggestions map[string][]string) *ConversationalAgent {
	if historyTurns <= 0 {
		historyTurns = 5
	}
	if maxSuggestions <= 0 {
		maxSuggestions = 3
	}
	if maxTokens <= 0 {
		maxTokens = 200
	}
	if suggestions == nil {
		suggestions = DefaultSuggestions()
	}
	return &ConversationalAgent{
		generator:      generator,
		suggestions:    suggestions,
		historyTurns:   historyTurns,
		maxSuggestions: maxSuggestions,
		maxTokens:      maxTokens,
		metrics:        NewMetrics("conversational"),
	}
}

// Respond generates a reply for the message. Provider exhaustion is a
// defined fallback path: it yields the degraded result with Success=false
// and a nil error. A non-nil error means the request context expired and the
// caller owns the degraded shape.
func (a *ConversationalAgent) Respond(ctx context.Context, message string, cctx contextstore.Context, match MatchResult) (GenerationResult, error) {
	start := time.Now()

	prompt := a.buildPrompt(message, cctx, match)
	res, err := a.generator.Generate(ctx, prompt, a.maxTokens)
	if err != nil {
		a.metrics.Record(time.Since(start), false)
		if provider.IsExhausted(err) {
			return GenerationResult{
				Response:    DegradedResponse,
				Suggestions: []string{},
				Latency:     time.Since(start),
			}, nil
		}
		return GenerationResult{}, err
	}

	a.metrics.Record(time.Since(start), true)
	return GenerationResult{
		Response:    res.Text,
		Suggestions: a.suggestionsFor(match),
		Provider:    res.Provider,
		Latency:     res.Latency,
		Success:     true,
	}, nil
}

func (a *ConversationalAgent) buildPrompt(message string, cctx contextstore.Context, match MatchResult) string {
	var sb strings.Builder
	sb.WriteString("You are a helpful assistant in a multi-agent chat system. Respond naturally and helpfully to the user's message.\n\n")
	fmt.Fprintf(&sb, "User message: %q\n", message)
	fmt.Fprintf(&sb, "Sentiment: %s\n", cctx.Sentiment)
	fmt.Fprintf(&sb, "Intent: %s (confidence %.2f)\n", match.Intent, match.Confidence)

	turns := cctx.Turns
	if len(turns) > a.historyTurns {
		turns = turns[len(turns)-a.historyTurns:]
	}
	if len(turns) > 0 {
		sb.WriteString("\nRecent conversation:\n")
		for _, t := range turns {
			switch t.Role {
			case contextstore.RoleUser:
				fmt.Fprintf(&sb, "User: %s\n", t.Text)
			case contextstore.RoleAssistant:
				fmt.Fprintf(&sb, "Assistant: %s\n", t.Text)
			}
		}
	}

	sb.WriteString("\nProvide a helpful, contextual response. Keep it concise but informative.")
	return sb.String()
}

// suggestionsFor picks from the per-intent table, appending entity-driven
// followups, capped at the configured maximum.
func (a *ConversationalAgent) suggestionsFor(match MatchResult) []string {
	base, ok := a.suggestions[match.Intent]
	if !ok {
		base = a.suggestions["general"]
	}
	out := make([]string, 0, a.maxSuggestions)
	out = append(out, base...)

	for _, e := range match.Entities {
		switch e.Type {
		case "email":
			out = append(out, "Send an email to support")
		case "phone":
			out = append(out, "Call the support number")
		case "url":
			out = append(out, "Check this website")
		}
	}

	if len(out) > a.maxSuggestions {
		out = out[:a.maxSuggestions]
	}
	return out
}

func (a *ConversationalAgent) Status() Status {
	return a.metrics.Snapshot()
}
