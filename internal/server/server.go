package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/natelewis/whalewatch-sub003/internal/app"
	"github.com/natelewis/whalewatch-sub003/internal/ports"
)

// Config wires the server's collaborators.
type Config struct {
	Addr      string
	Logger    ports.Logger
	Session   *app.ChartSession
	Hub       *Hub
	TradeRepo ports.TradeRepository // optional
	QuoteRepo ports.QuoteRepository // optional
}

// Server exposes the chart session over REST and WebSocket: state snapshots,
// bar pages, viewport navigation, and a live frame stream.
type Server struct {
	addr      string
	logger    ports.Logger
	session   *app.ChartSession
	hub       *Hub
	tradeRepo ports.TradeRepository
	quoteRepo ports.QuoteRepository
}

// New creates a server.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil || cfg.Session == nil || cfg.Hub == nil {
		return nil, fmt.Errorf("missing required dependencies for server")
	}
	if cfg.Addr == "" {
		return nil, fmt.Errorf("server address is required")
	}
	return &Server{
		addr:      cfg.Addr,
		logger:    cfg.Logger,
		session:   cfg.Session,
		hub:       cfg.Hub,
		tradeRepo: cfg.TradeRepo,
		quoteRepo: cfg.QuoteRepo,
	}, nil
}

// Routes builds the handler tree.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/bars", s.handleBars)
	mux.HandleFunc("POST /api/view", s.handleView)
	mux.HandleFunc("GET /api/trades", s.handleTrades)
	mux.HandleFunc("GET /api/quote", s.handleQuote)
	mux.HandleFunc("GET /ws", s.hub.ServeWS)
	return mux
}

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "HTTP server listening", map[string]interface{}{"addr": s.addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn(ctx, "HTTP server shutdown error", map[string]interface{}{"error": err.Error()})
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	state := s.session.State()
	if state == nil {
		s.writeError(w, http.StatusNotFound, "no chart state computed yet")
		return
	}
	s.writeJSON(w, http.StatusOK, frameFromState(state))
}

func (s *Server) handleBars(w http.ResponseWriter, r *http.Request) {
	bars := s.session.Bars()
	if limit := queryInt(r, "limit", 0); limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	frames := make([]BarFrame, 0, len(bars))
	for _, b := range bars {
		frames = append(frames, barFrame(b))
	}
	s.writeJSON(w, http.StatusOK, frames)
}

// viewRequest drives viewport navigation. Mode "pan" keeps the locked price
// domain; "skip" (the default) recomputes it for the target slice.
type viewRequest struct {
	Mode      string `json:"mode"`
	ViewStart int    `json:"viewStart"`
	ViewEnd   int    `json:"viewEnd"`
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	var req viewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var err error
	switch req.Mode {
	case "pan":
		err = s.session.Pan(r.Context(), req.ViewStart, req.ViewEnd)
	case "", "skip":
		err = s.session.SkipTo(r.Context(), req.ViewStart, req.ViewEnd)
	default:
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown mode %q", req.Mode))
		return
	}
	if err != nil {
		if errors.Is(err, ports.ErrNoData) {
			s.writeError(w, http.StatusConflict, "no data loaded")
			return
		}
		s.logger.Error(r.Context(), err, "View navigation failed", map[string]interface{}{"mode": req.Mode})
		s.writeError(w, http.StatusInternalServerError, "render failed")
		return
	}
	s.writeJSON(w, http.StatusOK, frameFromState(s.session.State()))
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	if s.tradeRepo == nil {
		s.writeError(w, http.StatusNotFound, "trade feed not configured")
		return
	}
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		s.writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	limit := queryInt(r, "limit", 50)
	trades, err := s.tradeRepo.RecentTrades(r.Context(), symbol, limit)
	if err != nil {
		s.logger.Error(r.Context(), err, "Failed to load recent trades", map[string]interface{}{"symbol": symbol})
		s.writeError(w, http.StatusInternalServerError, "failed to load trades")
		return
	}
	s.writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	if s.quoteRepo == nil {
		s.writeError(w, http.StatusNotFound, "quote feed not configured")
		return
	}
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		s.writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	quote, err := s.quoteRepo.LatestQuote(r.Context(), symbol)
	if err != nil {
		s.logger.Error(r.Context(), err, "Failed to load latest quote", map[string]interface{}{"symbol": symbol})
		s.writeError(w, http.StatusInternalServerError, "failed to load quote")
		return
	}
	if quote == nil {
		s.writeError(w, http.StatusNotFound, "no quote stored")
		return
	}
	s.writeJSON(w, http.StatusOK, quote)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn(context.Background(), "Failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
