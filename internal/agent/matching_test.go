package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mcolombo/ensemble/internal/contextstore"
)

func TestAnalyzeClassifiesIntents(t *testing.T) {
	a := NewMatchingAgent(nil)

	cases := []struct {
		message string
		intent  string
	}{
		{"hello there", "greeting"},
		{"what time is it?", "question"},
		{"please help me with this", "request"},
		{"there is a problem with my account", "complaint"},
		{"thanks, that was great", "compliment"},
		{"bye for now", "goodbye"},
		{"zzz qqq", "general"},
	}
	for _, tc := range cases {
		res := a.Analyze(tc.message, contextstore.Context{})
		assert.Equal(t, tc.intent, res.Intent, "message %q", tc.message)
		assert.GreaterOrEqual(t, res.Confidence, 0.0)
		assert.LessOrEqual(t, res.Confidence, 1.0)
	}
}

func TestAnalyzeRuleOrderBreaksTies(t *testing.T) {
	a := NewMatchingAgent(nil)

	// "hello" (greeting) and "what" (question) both hit; greeting is listed
	// first so it wins.
	res := a.Analyze("hello, what is this", contextstore.Context{})
	assert.Equal(t, "greeting", res.Intent)
}

func TestAnalyzeUnmatchedDefaultsToGeneral(t *testing.T) {
	a := NewMatchingAgent(nil)

	res := a.Analyze("xylophone cabbage", contextstore.Context{})
	assert.Equal(t, "general", res.Intent)
	assert.InDelta(t, 0.3, res.Confidence, 0.001)
	assert.Empty(t, res.Entities)
}

func TestAnalyzeExtractsEntities(t *testing.T) {
	a := NewMatchingAgent(nil)

	res := a.Analyze("email me at ada@example.com or visit https://example.com", contextstore.Context{})

	types := map[string]string{}
	for _, e := range res.Entities {
		types[e.Type] = e.Value
	}
	assert.Equal(t, "ada@example.com", types["email"])
	assert.Equal(t, "https://example.com", types["url"])
}

func TestAnalyzeQuestionMarkBoostsQuestions(t *testing.T) {
	a := NewMatchingAgent(nil)

	plain := a.Analyze("how does this work", contextstore.Context{})
	marked := a.Analyze("how does this work?", contextstore.Context{})
	assert.Greater(t, marked.Confidence, plain.Confidence)
}

func TestAnalyzeCustomRules(t *testing.T) {
	a := NewMatchingAgent([]IntentRule{
		{Intent: "order", Keywords: []string{"order", "purchase"}},
	})

	res := a.Analyze("I want to order a pizza", contextstore.Context{})
	assert.Equal(t, "order", res.Intent)
}

func TestAnalyzeFeelGreatToday(t *testing.T) {
	a := NewMatchingAgent(nil)

	// "great" lands in the compliment rule; either way confidence stays in
	// range and no entities are invented.
	res := a.Analyze("I feel great today", contextstore.Context{})
	assert.Contains(t, []string{"compliment", "general"}, res.Intent)
	assert.GreaterOrEqual(t, res.Confidence, 0.0)
	assert.LessOrEqual(t, res.Confidence, 1.0)
}
