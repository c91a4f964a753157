package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ermakartekovec-star/E-Genius5-AI/internal/config"
	"github.com/ermakartekovec-star/E-Genius5-AI/internal/handler"
	"github.com/ermakartekovec-star/E-Genius5-AI/internal/handler/stream"
	"github.com/ermakartekovec-star/E-Genius5-AI/internal/service/ai"
	authservice "github.com/ermakartekovec-star/E-Genius5-AI/internal/service/auth"
	syncservice "github.com/ermakartekovec-star/E-Genius5-AI/internal/service/sync"
	"github.com/ermakartekovec-star/E-Genius5-AI/internal/store"
	"github.com/ermakartekovec-star/E-Genius5-AI/internal/store/drive"
	"github.com/ermakartekovec-star/E-Genius5-AI/internal/store/token"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	tokens := buildTokenProvider(cfg.Drive)
	blobs := drive.New(drive.Config{
		FolderName: cfg.Drive.FolderName,
		Tokens:     tokens,
	})

	gateway := buildGateway(ctx, cfg, blobs)

	hub := stream.NewHub()
	engine := syncservice.NewSession(blobs, gateway, syncservice.Config{
		DailyLimit:   cfg.Chat.DailyLimit,
		PollInterval: cfg.Chat.PollInterval,
		Listener:     hub,
	})
	engine.Initialize(ctx)

	authSvc := authservice.New(blobs, authservice.Config{
		StateDir:     cfg.Drive.StateDir,
		DefaultModel: cfg.AI.Model,
		DailyLimit:   cfg.Chat.DailyLimit,
		SessionDays:  cfg.Chat.SessionDays,
	})

	// Poll loop lives exactly as long as the server.
	go engine.Run(ctx)

	router := handler.NewRouter(authSvc, engine, hub)
	startServer(ctx, cfg.Server, router)
}

// buildTokenProvider prefers an env-injected token and falls back to the
// cached interactive one under the state dir.
func buildTokenProvider(cfg config.DriveConfig) store.TokenProvider {
	if cfg.AccessToken != "" {
		log.Println("using access token from environment")
		return token.Static(cfg.AccessToken)
	}
	return token.NewFileProvider(cfg.StateDir, nil)
}

// buildGateway selects the completion backend: Ark when its credentials are
// configured, OpenRouter otherwise. A nil gateway disables the AI step.
func buildGateway(ctx context.Context, cfg *config.Config, blobs store.BlobStore) ai.CompletionProvider {
	if cfg.AI.ArkEnabled() {
		chatModel, err := cfg.AI.NewArkChatModel(ctx)
		if err != nil {
			log.Printf("warning: failed to initialize ark model: %v", err)
		} else if gateway, err := ai.NewArkGateway(ctx, chatModel); err != nil {
			log.Printf("warning: failed to build ark gateway: %v", err)
		} else {
			log.Println("completion gateway: ark")
			return gateway
		}
	}

	log.Println("completion gateway: openrouter (key read from remote config.json)")
	return ai.NewOpenRouter(ai.OpenRouterConfig{
		BaseURL:       cfg.AI.OpenRouterBaseURL,
		FallbackModel: cfg.AI.Model,
		AppName:       cfg.AI.AppName,
		Referer:       cfg.AI.OpenRouterReferer,
	}, blobs)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("E-Genius5 AI backend listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
