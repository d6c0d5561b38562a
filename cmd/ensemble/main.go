package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mcolombo/ensemble/internal/agent"
	"github.com/mcolombo/ensemble/internal/config"
	"github.com/mcolombo/ensemble/internal/contextstore"
	"github.com/mcolombo/ensemble/internal/httpapi"
	"github.com/mcolombo/ensemble/internal/memory"
	"github.com/mcolombo/ensemble/internal/observability"
	"github.com/mcolombo/ensemble/internal/orchestrator"
	"github.com/mcolombo/ensemble/internal/provider"
	"github.com/mcolombo/ensemble/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	memoryStore, err := memory.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("memory store init failed: %v", err)
	}
	defer memoryStore.Close()

	primary, secondary := selectProviders(cfg)

	sessions := session.NewManager(cfg.SessionIdleTimeout)
	contexts := contextstore.New(cfg.MaxContextTurns)
	memoryAgent := agent.NewMemoryAgent(contexts, memoryStore)
	sessions.SetExpireHook(func(s *session.Session) {
		memoryAgent.Forget(s.ID)
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})

	failover := provider.NewFailoverClient(primary, secondary, cfg.ProviderCallTimeout,
		provider.WithFailureObserver(func(name string, err error) {
			metrics.ProviderErrors.WithLabelValues(name, provider.ClassOf(err)).Inc()
		}),
	)
	conversational := agent.NewConversationalAgent(
		failover,
		cfg.PromptHistoryTurns,
		cfg.MaxSuggestions,
		cfg.MaxTokens,
		nil,
	)

	orch := orchestrator.New(
		sessions,
		memoryAgent,
		agent.NewMatchingAgent(nil),
		conversational,
		orchestrator.NewSystemMetrics(),
		metrics,
		cfg.RequestDeadline,
	)

	api := httpapi.New(cfg, orch, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sessions.StartJanitor(runCtx, 30*time.Second)

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}

// selectProviders resolves the primary/secondary generation backends from
// PROVIDER_MODE. Live mode was already validated at config load.
func selectProviders(cfg config.Config) (provider.Generator, provider.Generator) {
	mode := strings.ToLower(strings.TrimSpace(cfg.ProviderMode))
	switch mode {
	case "live":
		log.Printf("providers: openai (primary), anthropic (secondary)")
		return provider.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIModel),
			provider.NewAnthropicGenerator(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	case "mock":
		log.Printf("providers: mock")
		return provider.NewMockGenerator("mock-primary"), provider.NewMockGenerator("mock-secondary")
	default: // auto
		if cfg.OpenAIAPIKey != "" && cfg.AnthropicAPIKey != "" {
			log.Printf("providers: openai (primary), anthropic (secondary)")
			return provider.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIModel),
				provider.NewAnthropicGenerator(cfg.AnthropicAPIKey, cfg.AnthropicModel)
		}
		log.Printf("providers: mock (missing OPENAI_API_KEY or ANTHROPIC_API_KEY)")
		return provider.NewMockGenerator("mock-primary"), provider.NewMockGenerator("mock-secondary")
	}
}
