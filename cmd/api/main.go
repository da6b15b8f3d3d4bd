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

	"github.com/astrovoice/kundli/backend/internal/config"
	"github.com/astrovoice/kundli/backend/internal/handler"
	"github.com/astrovoice/kundli/backend/internal/model/astrologer"
	"github.com/astrovoice/kundli/backend/internal/service/billing"
	"github.com/astrovoice/kundli/backend/internal/service/chat"
	"github.com/astrovoice/kundli/backend/internal/service/guidance"
	"github.com/astrovoice/kundli/backend/internal/service/speech"
	"github.com/astrovoice/kundli/backend/internal/service/wallet"
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

	astrologerStore := astrologer.NewMemoryStore(astrologer.Seed())
	chatService := chat.NewService()
	registry := billing.NewRegistry()

	walletStore, cleanup, err := newWalletStore(ctx, cfg.Wallet)
	if err != nil {
		log.Fatalf("failed to initialize wallet store: %v", err)
	}
	defer cleanup()

	var guidanceService *guidance.Service
	if cfg.Guidance.Enabled() {
		guidanceService, err = guidance.NewService(cfg.Guidance)
		if err != nil {
			log.Printf("warning: failed to initialize guidance service: %v", err)
			log.Println("continuing without reply generation")
		} else {
			log.Println("guidance service initialized successfully")
		}
	} else {
		log.Println("guidance credentials not configured, skipping reply generation")
	}

	var speechService speech.Service
	if cfg.Speech.Enabled() {
		openaiSpeech, err := speech.NewOpenAIService(cfg.Speech)
		if err != nil {
			log.Printf("warning: failed to initialize speech service: %v", err)
		} else {
			speechService = openaiSpeech
			log.Println("speech service initialized successfully")
		}
	} else {
		log.Println("speech credentials not configured, skipping ASR/TTS")
	}

	router := handler.NewRouter(cfg, astrologerStore, chatService, walletStore, registry, guidanceService, speechService)

	startServer(ctx, cfg.Server, router)
}

// newWalletStore selects Postgres when DATABASE_URL is set, the in-memory
// store otherwise.
func newWalletStore(ctx context.Context, cfg config.WalletConfig) (wallet.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Println("DATABASE_URL not set, using in-memory wallet store")
		return wallet.NewMemoryStore(cfg.SignupBalance), func() {}, nil
	}

	store, err := wallet.NewPostgresStore(ctx, cfg.DatabaseURL, cfg.SignupBalance)
	if err != nil {
		return nil, nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	log.Println("postgres wallet store initialized")
	return store, store.Close, nil
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("AstroVoice backend listening on %s", addr)
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
