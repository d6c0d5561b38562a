package agent

import (
	"regexp"
	"strings"
	"time"

	"github.com/mcolombo/ensemble/internal/contextstore"
)

// Entity is one pattern-extracted fragment of the user message.
type Entity struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// MatchResult is the ephemeral classification of one message. Produced fresh
// per request and never persisted.
type MatchResult struct {
	Intent     string   `json:"intent"`
	Entities   []Entity `json:"entities"`
	Confidence float64  `json:"confidence"`
}

// IntentRule binds a set of trigger keywords to an intent label. Rules are
// evaluated in order; the first rule with any keyword hit wins.
type IntentRule struct {
	Intent   string
	Keywords []string
}

// DefaultIntentRules returns the built-in rule table. Order is the tie-break
// policy: earlier rules shadow later ones.
func DefaultIntentRules() []IntentRule {
	return []IntentRule{
		{Intent: "greeting", Keywords: []string{"hello", "hi", "hey", "good morning", "good afternoon", "greetings"}},
		{Intent: "question", Keywords: []string{"what", "how", "why", "when", "where", "who", "explain", "describe"}},
		{Intent: "request", Keywords: []string{"please", "can you", "could you", "help me", "show me", "tell me", "assist", "support"}},
		{Intent: "complaint", Keywords: []string{"problem", "issue", "error", "bug", "broken", "complain", "trouble", "difficulty"}},
		{Intent: "compliment", Keywords: []string{"thank you", "thanks", "great", "awesome", "excellent", "good job", "appreciate"}},
		{Intent: "goodbye", Keywords: []string{"bye", "goodbye", "see you", "farewell", "later", "exit"}},
	}
}

var entityPatterns = []struct {
	kind string
	re   *regexp.Regexp
}{
	{"email", regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{"phone", regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`)},
	{"url", regexp.MustCompile(`https?://\S+`)},
	{"date", regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`)},
	{"time", regexp.MustCompile(`\b\d{1,2}:\d{2}\s*(?:am|pm)?\b`)},
	{"number", regexp.MustCompile(`\b\d+\b`)},
}

type compiledRule struct {
	intent   string
	keywords []*regexp.Regexp
}

// MatchingAgent classifies messages against an ordered keyword rule table
// and extracts entities by independent patterns. Stateless apart from its
// metrics; Analyze is a pure function of its inputs.
type MatchingAgent struct {
	rules   []compiledRule
	metrics *Metrics
}

func NewMatchingAgent(rules []IntentRule) *MatchingAgent {
	if len(rules) == 0 {
		rules = DefaultIntentRules()
	}
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		cr := compiledRule{intent: r.Intent}
		for _, kw := range r.Keywords {
			cr.keywords = append(cr.keywords, regexp.MustCompile(`\b`+regexp.QuoteMeta(strings.ToLower(kw))+`\b`))
		}
		compiled = append(compiled, cr)
	}
	return &MatchingAgent{
		rules:   compiled,
		metrics: NewMetrics("matching"),
	}
}

// Analyze classifies the message. Unmatched input never fails; it yields the
// "general" intent at low confidence with whatever entities were found.
func (a *MatchingAgent) Analyze(message string, _ contextstore.Context) MatchResult {
	start := time.Now()
	defer func() { a.metrics.Record(time.Since(start), true) }()

	entities := extractEntities(message)
	lower := strings.ToLower(message)

	for _, rule := range a.rules {
		hits := 0
		for _, kw := range rule.keywords {
			if kw.MatchString(lower) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		return MatchResult{
			Intent:     rule.intent,
			Entities:   entities,
			Confidence: scoreConfidence(rule.intent, hits, len(entities), message),
		}
	}

	return MatchResult{Intent: "general", Entities: entities, Confidence: 0.3}
}

// scoreConfidence weights keyword hits, boosted by extracted entities and by
// a trailing question mark for question intents, clipped to [0,1].
func scoreConfidence(intent string, keywordHits, entityCount int, message string) float64 {
	score := 0.3 * float64(keywordHits)
	if boost := 0.1 * float64(entityCount); boost > 0 {
		score += min(boost, 0.3)
	}
	if intent == "question" && strings.Contains(message, "?") {
		score += 0.2
	}
	return min(score, 1.0)
}

func extractEntities(message string) []Entity {
	var entities []Entity
	for _, p := range entityPatterns {
		for _, m := range p.re.FindAllString(message, -1) {
			entities = append(entities, Entity{Type: p.kind, Value: m})
		}
	}
	return entities
}

func (a *MatchingAgent) Status() Status {
	return a.metrics.Snapshot()
}
