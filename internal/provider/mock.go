package provider

import (
	"context"
	"fmt"
	"strings"
)

// MockGenerator provides deterministic local replies when no real provider
// is configured.
type MockGenerator struct {
	name string
}

func NewMockGenerator(name string) *MockGenerator {
	if strings.TrimSpace(name) == "" {
		name = "mock"
	}
	return &MockGenerator{name: name}
}

func (g *MockGenerator) Name() string { return g.name }

func (g *MockGenerator) Generate(ctx context.Context, prompt string, _ int) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	lines := strings.Split(prompt, "\n")
	last := ""
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			last = strings.TrimSpace(lines[i])
			break
		}
	}
	if last == "" {
		return "I am listening.", nil
	}
	return fmt.Sprintf("I understand. You said: %s", strings.TrimPrefix(last, "User message: ")), nil
}
