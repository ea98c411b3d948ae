package www

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/angas/pricewatch-go/config"
	"github.com/angas/pricewatch-go/coordinator"
	"github.com/angas/pricewatch-go/database"
	"github.com/angas/pricewatch-go/optimize"
	"github.com/angas/pricewatch-go/types"
)

// SettingsFunc returns the analysis settings currently in effect. It is a
// function so config file changes apply to the next request without a restart.
type SettingsFunc func() optimize.Settings

type Server struct {
	logger   *slog.Logger
	config   config.AppConfigApi
	db       *database.Database
	manager  *coordinator.Manager
	settings SettingsFunc
	hub      *Hub
	mux      *http.ServeMux
}

func StartServer(db *database.Database, manager *coordinator.Manager, settings SettingsFunc, config config.AppConfigApi) *Server {
	logger := slog.Default().With("module", "www")

	s := &Server{
		logger:   logger,
		config:   config,
		db:       db,
		manager:  manager,
		settings: settings,
		hub:      NewHub(logger),
		mux:      http.NewServeMux(),
	}

	go s.hub.Run()

	logReqMW := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.logger.Debug("http request",
				slog.String("method", r.Method),
				slog.String("url", r.URL.String()),
				slog.String("remoteAddr", r.RemoteAddr))
			next.ServeHTTP(w, r)
		})
	}

	s.mux.Handle("GET /api/households", logReqMW(NewHouseholdsHandler(
		logger.With(slog.String("handler", "households")),
		s.manager)))

	s.mux.Handle("GET /api/households/{id}", logReqMW(NewAnalyticsHandler(
		logger.With(slog.String("handler", "analytics")),
		s.manager,
		s.settings)))

	s.mux.Handle("GET /api/households/{id}/best_window", logReqMW(NewBestWindowHandler(
		logger.With(slog.String("handler", "best_window")),
		s.manager,
		s.settings)))

	s.mux.Handle("GET /api/households/{id}/forecast", logReqMW(NewForecastHandler(
		logger.With(slog.String("handler", "forecast")),
		s.manager)))

	s.mux.Handle("POST /api/households/{id}/refresh", logReqMW(NewRefreshHandler(
		logger.With(slog.String("handler", "refresh")),
		s.manager)))

	s.mux.Handle("GET /api/log", logReqMW(NewLogHandler(
		logger.With(slog.String("handler", "log")),
		s.db)))

	s.mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		name := r.Header.Get("User-Agent")
		client, err := NewClient(s.hub, w, r, name)
		if err != nil {
			s.logger.Error("new websocket client failed", slog.Any("error", err))
			return
		}
		s.hub.Register <- client
		go client.WritePump()
	})

	return s
}

// PublishUpdate pushes a refreshed snapshot's analytics to all websocket
// clients. Wired as the coordinator manager's update callback.
func (s *Server) PublishUpdate(household types.Household, snap coordinator.Snapshot) {
	report := optimize.NewReport(snap.Series, s.settings(), time.Now())
	s.hub.Broadcast <- newPushMessage(household, snap, report)
}

func (s *Server) Run(ctx context.Context) {
	s.logger.Info("starting server...", "address", s.config.Address, "port", s.config.Port)
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.config.Address, s.config.Port),
		Handler: s.mux,
	}

	srvErrors := make(chan error, 1)

	go func() {
		srvErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-srvErrors:
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error("server error", slog.Any("error", err))
		}

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("server shutdown failed", slog.Any("error", err))
		}
	}
}
