package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/adapter/llm"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/agent"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/auth"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/config"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/hub"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/log"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/observe"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/repository"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/service"
	server "github.com/vinodsharma/lg-deepresearch-agent/internal/transport/http"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/tools"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log.SetLevel(cfg.LogLevel)

	log.Infof("Starting deep research agent...")
	log.Infof("HTTP Port: %d", cfg.HTTPPort)
	log.Infof("Database: %s", cfg.DatabaseURL)
	log.Infof("Model: %s", cfg.ModelName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize tracing
	shutdownTracing, err := observe.Start(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize tools and model
	registry, err := tools.NewDefaultRegistry(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize tools: %v", err)
	}
	model, err := llm.NewChatModel(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize model: %v", err)
	}

	// Approvals are swept for expiry in the background
	approvals := service.NewApprovalBroker(db, cfg.ApprovalTimeout)
	go approvals.RunTimeoutMonitor(ctx)

	ag, err := agent.New(ctx, agent.Options{
		Model:                  model,
		Tools:                  registry,
		Approver:               approvals,
		MaxConcurrentSubagents: cfg.MaxConcurrentSubagents,
		MaxDelegationRounds:    cfg.MaxDelegationRounds,
		RecursionLimit:         cfg.RecursionLimit,
	})
	if err != nil {
		log.Fatalf("Failed to initialize agent: %v", err)
	}

	// Event fan-out to websocket watchers, relayed across instances when
	// Redis is configured
	eventHub := hub.NewHub()
	go eventHub.Run(ctx)

	var publisher service.Publisher = eventHub
	if cfg.RedisURL != "" {
		rdb, err := hub.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to initialize redis: %v", err)
		}
		defer rdb.Close()
		relay := hub.NewRedisRelay(rdb, eventHub, hub.DefaultChannel)
		relay.OnDecision(approvals.Release)
		approvals.SetRelay(relay)
		go func() {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorf("Redis relay stopped: %v", err)
			}
		}()
		publisher = relay
	}

	var tokens *auth.TokenIssuer
	if cfg.JWTSecret != "" {
		tokens = auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTAlgorithm, cfg.JWTExpireMinutes)
	} else {
		log.Warnf("JWT_SECRET is not set, only API keys are accepted")
	}

	// Initialize service and server
	svc := service.New(db, ag, approvals, tokens, publisher, cfg)
	e := server.NewServer(svc, eventHub, cfg)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Infof("API started on port %d", cfg.HTTPPort)

	<-ctx.Done()
	log.Infof("Shutting down...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warnf("Failed to shutdown server gracefully: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warnf("Failed to flush traces: %v", err)
	}

	log.Infof("Stopped")
}
