package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/normanking/monavatar/internal/bus"
	"github.com/normanking/monavatar/internal/config"
)

// Server hosts the frame stream plus health, metrics and event history
// endpoints.
type Server struct {
	log    zerolog.Logger
	hub    *Hub
	events *bus.Bus
	http   *http.Server
}

func NewServer(cfg config.BridgeConfig, log zerolog.Logger, hub *Hub) *Server {
	s := &Server{log: log, hub: hub}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws/frames", hub.HandleFrames)
	r.Get("/api/events", s.handleEvents)

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves until ctx is cancelled, then drains connections.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.http.Addr).Msg("Bridge server listening")
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.hub.Close()
		s.http.Shutdown(shutdownCtx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

// ForwardEvents mirrors selected bus events onto every adapter and backs
// the /api/events history endpoint. Call before Start.
func (s *Server) ForwardEvents(events *bus.Bus) {
	if events == nil {
		return
	}
	s.events = events
	forwarded := []bus.EventType{
		bus.EventTypeStateChanged,
		bus.EventTypeUtteranceStarted,
		bus.EventTypeUtteranceFinished,
		bus.EventTypeStrategyResolved,
		bus.EventTypeStrategyDegraded,
		bus.EventTypeCueTrackRejected,
		bus.EventTypePlaybackError,
	}
	for _, t := range forwarded {
		events.Subscribe(t, s.hub.BroadcastEvent)
	}
}

// handleEvents serves the recent bus history, newest last. ?n= bounds
// the count; the bus retention cap applies either way.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		http.Error(w, "event history unavailable", http.StatusNotFound)
		return
	}
	n := 50
	if q := r.URL.Query().Get("n"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v <= 0 {
			http.Error(w, "n must be a positive integer", http.StatusBadRequest)
			return
		}
		n = v
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.events.History(n)); err != nil {
		s.log.Debug().Err(err).Msg("Event history encode failed")
	}
}
