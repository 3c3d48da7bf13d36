package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/birddigital/voice-session-gateway/pkg/config"
	"github.com/birddigital/voice-session-gateway/pkg/metrics"
	"github.com/birddigital/voice-session-gateway/pkg/monitor"
	"github.com/birddigital/voice-session-gateway/pkg/session"
	"github.com/birddigital/voice-session-gateway/pkg/telephony"
)

const serviceName = "voice-session-gateway"

// Dependencies groups everything the HTTP surface needs
type Dependencies struct {
	Handlers    *telephony.CallHandlers
	Store       session.Store
	Hub         *monitor.Hub
	Metrics     *metrics.Metrics
	DialogueURL string
	StartedAt   time.Time
}

func NewHTTPServer(cfg *config.Config, deps Dependencies, logger *logrus.Logger) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      NewRouter(deps, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewRouter mounts webhooks, health, metrics and the operator monitor
func NewRouter(deps Dependencies, logger *logrus.Logger) *mux.Router {
	if deps.StartedAt.IsZero() {
		deps.StartedAt = time.Now()
	}

	router := mux.NewRouter()
	deps.Handlers.RegisterRoutes(router)

	router.HandleFunc("/health", health(deps)).Methods("GET")
	router.Handle("/metrics", deps.Metrics.Handler()).Methods("GET")
	if deps.Hub != nil {
		router.HandleFunc("/monitor/stream", deps.Hub.HandleStream).Methods("GET")
	}
	router.HandleFunc("/", index(deps)).Methods("GET")

	router.Use(requestIDMiddleware, loggingMiddleware(logger), recoveryMiddleware(logger))
	return router
}

func health(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{
			"status":          "healthy",
			"service":         serviceName,
			"dialogue_target": deps.DialogueURL,
			"uptime_seconds":  int64(time.Since(deps.StartedAt).Seconds()),
			"timestamp":       time.Now().UTC().Format(time.RFC3339),
		}

		if n, err := deps.Store.Count(r.Context()); err != nil {
			body["status"] = "degraded"
			body["session_store"] = err.Error()
		} else {
			body["active_sessions"] = n
			deps.Metrics.ActiveSessions.Set(float64(n))
		}

		writeJSON(w, http.StatusOK, body)
	}
}

func index(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"service": serviceName,
			"endpoints": map[string]string{
				"incoming_call": telephony.PathIncomingCall,
				"speech":        telephony.PathSpeech,
				"fallback":      telephony.PathFallback,
				"status":        telephony.PathStatus,
				"health":        "/health",
				"metrics":       "/metrics",
				"monitor":       "/monitor/stream",
			},
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// ============================================
// MIDDLEWARE
// ============================================

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
			r.Header.Set("X-Request-ID", id)
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// The monitor stream is hijacked by the WebSocket upgrader
			if r.URL.Path == "/monitor/stream" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logger.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     rec.status,
				"duration":   time.Since(start),
				"remote":     r.RemoteAddr,
				"request_id": r.Header.Get("X-Request-ID"),
			}).Debug("HTTP request processed")
		})
	}
}

func recoveryMiddleware(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.WithFields(logrus.Fields{
						"panic":      rec,
						"path":       r.URL.Path,
						"request_id": r.Header.Get("X-Request-ID"),
					}).Error("Recovered from panic")
					http.Error(w, "Internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
