package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/imjd-ai/saba-backend/internal/api/router"
	"github.com/imjd-ai/saba-backend/internal/booking"
	appconfig "github.com/imjd-ai/saba-backend/internal/config"
	"github.com/imjd-ai/saba-backend/internal/conversation"
	"github.com/imjd-ai/saba-backend/internal/leads"
	"github.com/imjd-ai/saba-backend/internal/observability/metrics"
	"github.com/imjd-ai/saba-backend/internal/session"
	"github.com/imjd-ai/saba-backend/internal/transcript"
	"github.com/imjd-ai/saba-backend/pkg/logging"
)

func main() {
	// Load .env if present; real environments set variables directly.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting saba-backend API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	// Redis-backed chat sessions.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
		os.Exit(1)
	}
	sessions := session.NewStore(rdb, cfg.SessionTTL)

	// File-backed lead, note and transcript stores.
	transcripts, err := transcript.NewStore(filepath.Join(cfg.DataDir, "conversations"), logger.Named("transcripts"))
	if err != nil {
		logger.Error("failed to initialize transcript store", "error", err)
		os.Exit(1)
	}
	repo, err := leads.NewFileRepository(filepath.Join(cfg.DataDir, "leads_minimal.json"), transcripts, cfg.OperatorEmail, logger.Named("leads"))
	if err != nil {
		logger.Error("failed to initialize lead repository", "error", err)
		os.Exit(1)
	}
	notes := leads.NewNotesStore(filepath.Join(cfg.DataDir, "lead_notes.json"))

	// Gemini completion backend with an optional fallback model.
	llm, err := buildLLM(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize Gemini client", "error", err)
		os.Exit(1)
	}

	// Calendar booking over the credential chain.
	registry := prometheus.DefaultRegisterer
	convMetrics := metrics.NewConversationMetrics(registry)
	audit := booking.NewAuditLog(filepath.Join(cfg.DataDir, cfg.BookingAuditFile), logger.Named("booking"))
	chain, delegated := buildSchedulers(cfg, repo, audit, convMetrics, logger)

	instructions := conversation.NewInstructionStore(
		filepath.Join(cfg.DataDir, cfg.SystemInstructionFile),
		filepath.Join(cfg.DataDir, cfg.SystemInstructionHistoryFile),
		logger.Named("instructions"))
	extractor := conversation.NewInfoExtractor(cfg.OperatorEmail)
	detector := conversation.NewDetector(conversation.NewTimeExtractor(), extractor, transcripts, cfg.OperatorEmail)

	service := conversation.NewService(conversation.ServiceConfig{
		LLM:          llm,
		Sessions:     sessions,
		Repo:         repo,
		Transcripts:  transcripts,
		Assembler:    conversation.NewContextAssembler(instructions, notes),
		Detector:     detector,
		Extractor:    extractor,
		Scheduler:    chain,
		MaxTurnPairs: cfg.MaxHistoryTurns,
		Logger:       logger.Named("conversation"),
		Metrics:      convMetrics,
	})

	r := router.New(&router.Config{
		Logger:              logger,
		ConversationHandler: conversation.NewHandler(service, instructions, cfg.MaxInputLength, logger.Named("conversation")),
		LeadsHandler:        leads.NewHandler(repo, notes, transcripts, logger.Named("leads")),
		BookingHandler:      booking.NewHandler(chain, delegated, logger.Named("booking")),
		MetricsHandler:      promhttp.Handler(),
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		ChatRateLimit:       cfg.ChatRateLimit,
		ChatRateBurst:       cfg.ChatRateBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func buildLLM(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (conversation.LLMClient, error) {
	primary, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return nil, err
	}
	if cfg.GeminiFallbackModel == "" {
		return primary, nil
	}
	fallback, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiFallbackModel)
	if err != nil {
		logger.Warn("fallback model unavailable, continuing with primary only", "error", err)
		return primary, nil
	}
	return conversation.NewFallbackLLMClient(primary, fallback, logger.Named("llm")), nil
}

// buildSchedulers assembles the booking credential chain. The primary
// service-account credential is always first; a delegated OAuth token,
// when configured, is both the fallback and its own direct scheduler.
func buildSchedulers(cfg *appconfig.Config, repo leads.Repository, audit *booking.AuditLog, m *metrics.ConversationMetrics, logger *logging.Logger) (*booking.Scheduler, *booking.Scheduler) {
	bookingLogger := logger.Named("booking")

	strategies := []booking.Strategy{
		booking.NewServiceAccountStrategy(cfg.ServiceAccountFile, cfg.CalendarID),
	}
	var delegated *booking.Scheduler
	if cfg.OAuthTokenFile != "" {
		if _, err := os.Stat(cfg.OAuthTokenFile); err == nil {
			oauthStrategy := booking.NewDelegatedStrategy(cfg.OAuthTokenFile, cfg.CalendarID)
			strategies = append(strategies, oauthStrategy)
			delegated = booking.NewScheduler([]booking.Strategy{oauthStrategy}, repo, audit, cfg.OperatorEmail, bookingLogger, m)
		} else {
			logger.Warn("oauth token file not found, attendee invites may fail", "path", cfg.OAuthTokenFile)
		}
	}
	chain := booking.NewScheduler(strategies, repo, audit, cfg.OperatorEmail, bookingLogger, m)
	return chain, delegated
}
