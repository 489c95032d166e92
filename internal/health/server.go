package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/apoyointegral/sesiones-bot/internal/session"
)

// StatsProvider exposes read-only registry counts for the status endpoint.
type StatsProvider interface {
	Stats() session.Stats
}

// Server answers uptime-monitor probes. It shares nothing with the bot
// beyond the read-only stats snapshot.
type Server struct {
	stats StatsProvider
	log   *slog.Logger

	server *http.Server
}

func NewServer(stats StatsProvider, log *slog.Logger) *Server {
	return &Server{
		stats: stats,
		log:   log,
	}
}

// Start starts the health server and blocks until the context is cancelled.
func (s *Server) Start(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHealth)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/ping", s.handlePing)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.log.Info("starting health server", "port", port)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(shutdownCtx)
	}()

	return s.server.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   "Apoyo Integral Bot",
		"message":   "Bot is running successfully",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.stats.Stats()
	writeJSON(w, map[string]any{
		"status":    "active",
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   "Apoyo Integral Bot",
		"stats": map[string]any{
			"pending_questions":    st.PendingQuestions,
			"active_conversations": st.ActiveConversations,
			"pending_payments":     st.PendingPayments,
		},
		"endpoints": map[string]string{
			"health": "/health",
			"status": "/status",
			"ping":   "/ping",
		},
	})
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "pong - %s", time.Now().Format(time.RFC3339))
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}
