package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/openline/internal/handler"
	"github.com/dukerupert/openline/internal/middleware"
	"github.com/dukerupert/openline/internal/store"
	ws "github.com/dukerupert/openline/internal/websocket"
)

// Server wires the stores, handlers, and WebSocket hub into one HTTP surface.
type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	meetingH    *handler.MeetingHandler
	offerH      *handler.OfferHandler
	deviceH     *handler.DeviceHandler
	deviceStore *store.DeviceStore
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db *sql.DB, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	meetingStore := store.NewMeetingStore(db)
	offerStore := store.NewOfferStore(db)
	deviceStore := store.NewDeviceStore(db)

	return &Server{
		db:          db,
		hub:         hub,
		meetingH:    handler.NewMeetingHandler(meetingStore, offerStore, hub, logger.With("component", "meeting")),
		offerH:      handler.NewOfferHandler(meetingStore, offerStore, hub, logger.With("component", "offer")),
		deviceH:     handler.NewDeviceHandler(deviceStore, logger.With("component", "device")),
		deviceStore: deviceStore,
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// Hub returns the WebSocket hub, e.g. for shutdown.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("POST /api/register-device", s.rateLimitedHandler(s.deviceH.Register))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Device-authenticated routes
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireDevice(s.deviceStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Meeting routes
	mux.HandleFunc("POST /api/get-meetings", s.meetingH.GetMeetings)
	mux.HandleFunc("POST /api/create-meeting", s.meetingH.CreateMeeting)
	mux.HandleFunc("POST /api/cancel-meeting", s.meetingH.CancelMeeting)
	mux.HandleFunc("POST /api/broadcast-now", s.meetingH.BroadcastNow)
	mux.HandleFunc("POST /api/broadcast-end", s.meetingH.BroadcastEnd)
	mux.HandleFunc("POST /api/is-user-broadcasting", s.meetingH.IsUserBroadcasting)
	mux.HandleFunc("POST /api/cancel-broadcast-acceptance", s.meetingH.CancelBroadcastAcceptance)
	mux.HandleFunc("POST /api/accept-suggestion", s.meetingH.AcceptSuggestion)
	mux.HandleFunc("POST /api/dismiss-suggestion", s.meetingH.DismissSuggestion)

	// Offer routes
	mux.HandleFunc("POST /api/get-offers", s.offerH.GetOffers)
	mux.HandleFunc("POST /api/accept-offer", s.offerH.AcceptOffer)
	mux.HandleFunc("POST /api/reject-offer", s.offerH.RejectOffer)
	mux.HandleFunc("POST /api/try-accept-broadcast", s.offerH.TryAcceptBroadcast)
	mux.HandleFunc("POST /api/accept-broadcast", s.offerH.AcceptBroadcast)
	mux.HandleFunc("POST /api/reject-broadcast", s.offerH.RejectBroadcast)

	// WebSocket change feed
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, func(r *http.Request) string {
		return middleware.UserID(r.Context())
	}, s.logger.With("component", "websocket")))
}
