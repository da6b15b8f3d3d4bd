package handler

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/astrovoice/kundli/backend/internal/config"
	astrologerHandler "github.com/astrovoice/kundli/backend/internal/handler/astrologer"
	chatHandler "github.com/astrovoice/kundli/backend/internal/handler/chat"
	"github.com/astrovoice/kundli/backend/internal/handler/stream"
	voiceHandler "github.com/astrovoice/kundli/backend/internal/handler/voice"
	walletHandler "github.com/astrovoice/kundli/backend/internal/handler/wallet"
	astrologerModel "github.com/astrovoice/kundli/backend/internal/model/astrologer"
	"github.com/astrovoice/kundli/backend/internal/service/billing"
	chatService "github.com/astrovoice/kundli/backend/internal/service/chat"
	"github.com/astrovoice/kundli/backend/internal/service/guidance"
	speechService "github.com/astrovoice/kundli/backend/internal/service/speech"
	walletService "github.com/astrovoice/kundli/backend/internal/service/wallet"
	"github.com/astrovoice/kundli/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. Guidance and speech may be
// nil; routes that need them degrade to service-unavailable responses.
func NewRouter(
	cfg *config.Config,
	astrologers astrologerModel.Store,
	chatSvc *chatService.Service,
	wallets walletService.Store,
	registry *billing.Registry,
	guidanceSvc *guidance.Service,
	speechSvc speechService.Service,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
	}).Handler)

	// Typed nils must not leak into the handler interfaces.
	var voiceSpeech voiceHandler.SpeechService
	if speechSvc != nil {
		voiceSpeech = speechSvc
	}
	var voiceGuidance voiceHandler.GuidanceService
	if guidanceSvc != nil {
		voiceGuidance = guidanceSvc
	}

	var streamHandler *stream.Handler
	if guidanceSvc != nil {
		streamHandler = stream.New(guidanceSvc, chatSvc, astrologers)
	}

	r.Route("/api", func(api chi.Router) {
		astrologerHandler.New(astrologers).RegisterRoutes(api)
		chatHandler.New(chatSvc, astrologers).RegisterRoutes(api)
		walletHandler.New(wallets, registry).RegisterRoutes(api)

		voiceHandler.New(voiceSpeech, voiceGuidance, chatSvc, astrologers).RegisterRoutes(api)
		voiceHandler.NewWebSocketHandler(
			voiceSpeech,
			voiceGuidance,
			chatSvc,
			astrologers,
			wallets,
			registry,
			cfg.Billing.DeductionInterval,
		).RegisterRoutes(api)

		api.Get("/stream/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
			sessionID := chi.URLParam(r, "sessionID")
			userMessage := r.URL.Query().Get("message")

			if streamHandler == nil {
				utils.RespondError(w, http.StatusServiceUnavailable, "guidance streaming unavailable")
				return
			}
			if userMessage == "" {
				utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
				return
			}

			if err := streamHandler.HandleStreamRequest(r.Context(), w, sessionID, userMessage); err != nil {
				log.Printf("[stream] error handling request: %v", err)
			}
		})
	})

	return r
}
