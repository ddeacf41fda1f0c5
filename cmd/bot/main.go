package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"marketbot/internal/bot"
	"marketbot/internal/config"
	"marketbot/internal/kb"
	"marketbot/internal/payments"
	"marketbot/internal/util"
	"marketbot/pkg/ai"
	"marketbot/pkg/store"
)

const cleanupInterval = 24 * time.Hour

func main() {
	// Missing .env is fine; the config loader falls back to real env vars.
	_ = godotenv.Load()

	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}
	util.InitLogger(cfg.LogLevel)

	st, err := store.NewGormStore(cfg.DatabasePath,
		store.WithTierLimits(cfg.TierLimits()),
		store.WithFallbackLimit(cfg.FallbackLimit),
	)
	if err != nil {
		util.Fatal("failed to open store", "err", err)
	}
	defer st.Close()

	aiClient := ai.NewOpenAIClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.GenerationModel, cfg.EmbeddingModel)

	var index *kb.VectorIndex
	if cfg.UseVectorSearch {
		index, err = kb.NewVectorIndex(cfg.VectorStorage, aiClient, cfg.SimilarityThreshold)
		if err != nil {
			util.Fatal("failed to init vector index", "err", err)
		}
	}
	manager, err := kb.NewManager(st, index, cfg.DocumentStorage)
	if err != nil {
		util.Fatal("failed to init knowledge base", "err", err)
	}

	var gateway bot.PaymentGateway
	if cfg.YookassaShopID != "" && cfg.YookassaSecretKey != "" {
		gateway = payments.NewClient(cfg.YookassaShopID, cfg.YookassaSecretKey, cfg.PaymentReturnURL)
	} else {
		slog.Warn("payment gateway credentials not set, subscriptions disabled")
	}

	tgBot, err := bot.New(cfg, st, manager, aiClient, gateway)
	if err != nil {
		util.Fatal("failed to init bot", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go runCleanup(ctx, st, cfg.CleanupAge())

	slog.Info("bot starting", "vector_search", index != nil, "payments", gateway != nil)
	tgBot.Start(ctx)
}

// runCleanup drops chat history and user rows inactive for longer than
// maxAge, once at startup and then daily.
func runCleanup(ctx context.Context, st store.Store, maxAge time.Duration) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		removed, err := st.CleanupInactiveChats(maxAge)
		if err != nil {
			slog.Error("cleanup inactive chats", "err", err)
		} else if removed > 0 {
			slog.Info("cleaned up inactive chats", "rows", removed)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
