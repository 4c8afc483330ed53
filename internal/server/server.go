// Package server provides the HTTP server for the mudra service.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/lgr"
	"github.com/ayusman/mudra/internal/server/api"
	"github.com/ayusman/mudra/internal/store"
)

// Controller is the recognition pipeline as seen by the API.
type Controller interface {
	SetEnabled(on bool)
	Enabled() bool
	Detectors() []gesture.Status
}

// Config holds the server configuration. Optional parts that are nil
// leave their routes unregistered.
type Config struct {
	StaticDir  string
	Store      *store.Store
	Controller Controller
	Events     *gesture.Bus
	Joints     JointFeed

	// Gestures limits binding targets when non-empty.
	Gestures []string
}

// Server is the HTTP API and websocket server.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time

	events     *Hub
	joints     *Hub
	eventSub   *gesture.Subscription
	stopJoints func()
}

// New creates a Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Controller != nil {
		s.mux.HandleFunc("/api/status", s.handleStatus)
		s.mux.HandleFunc("/api/recognition/start", s.handleRecognition(true))
		s.mux.HandleFunc("/api/recognition/stop", s.handleRecognition(false))
	}

	if s.config.Store != nil {
		bindings := api.NewBindingHandler(s.config.Store, s.config.Gestures)
		detections := api.NewDetectionHandler(s.config.Store)
		recordings := api.NewRecordingHandler(s.config.Store)
		settings := api.NewSettingsHandler(s.config.Store)

		s.mux.Handle("/api/bindings", bindings)
		s.mux.Handle("/api/bindings/", bindings)
		s.mux.Handle("/api/detections", detections)
		s.mux.Handle("/api/detections/", detections)
		s.mux.Handle("/api/recordings", recordings)
		s.mux.Handle("/api/recordings/", recordings)
		s.mux.Handle("/api/settings", settings)
		s.mux.Handle("/api/settings/", settings)
	}

	if s.config.Events != nil {
		s.events = NewHub()
		s.eventSub = streamEvents(s.config.Events, s.events)
		s.mux.Handle("/api/events", s.events)
	}

	if s.config.Joints != nil {
		s.joints = NewHub()
		s.stopJoints = streamJoints(s.config.Joints, s.joints)
		s.mux.Handle("/api/joints", s.joints)
	}

	if s.config.StaticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		lgr.Logger.Warn("failed to encode response", slog.Any("error", err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	})
}

type statusResponse struct {
	Enabled   bool             `json:"enabled"`
	Uptime    string           `json:"uptime"`
	Detectors []gesture.Status `json:"detectors"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Enabled:   s.config.Controller.Enabled(),
		Uptime:    time.Since(s.start).String(),
		Detectors: s.config.Controller.Detectors(),
	})
}

func (s *Server) handleRecognition(on bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.config.Controller.SetEnabled(on)
		lgr.Logger.Info("recognition toggled", slog.Bool("enabled", on), slog.String("remote", r.RemoteAddr))
		writeJSON(w, http.StatusOK, map[string]bool{"enabled": s.config.Controller.Enabled()})
	}
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		lgr.Logger.Info("http server listening", slog.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close detaches the streams and disconnects websocket clients.
func (s *Server) Close() {
	if s.eventSub != nil {
		s.eventSub.Cancel()
	}
	if s.stopJoints != nil {
		s.stopJoints()
	}
	if s.events != nil {
		s.events.Close()
	}
	if s.joints != nil {
		s.joints.Close()
	}
}
