package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"mentor-session-service/internal/auth"
	"mentor-session-service/internal/config"
	availDelete "mentor-session-service/internal/http-server/handlers/availability/delete"
	availList "mentor-session-service/internal/http-server/handlers/availability/list"
	availSlots "mentor-session-service/internal/http-server/handlers/availability/slots"
	availUpsert "mentor-session-service/internal/http-server/handlers/availability/upsert"
	reschedAccept "mentor-session-service/internal/http-server/handlers/reschedule/accept"
	reschedDecline "mentor-session-service/internal/http-server/handlers/reschedule/decline"
	reschedRequest "mentor-session-service/internal/http-server/handlers/reschedule/request"
	sessionAccept "mentor-session-service/internal/http-server/handlers/sessions/accept"
	sessionAttendance "mentor-session-service/internal/http-server/handlers/sessions/attendance"
	sessionCancel "mentor-session-service/internal/http-server/handlers/sessions/cancel"
	sessionCreate "mentor-session-service/internal/http-server/handlers/sessions/create"
	sessionDecline "mentor-session-service/internal/http-server/handlers/sessions/decline"
	sessionGet "mentor-session-service/internal/http-server/handlers/sessions/get"
	sessionList "mentor-session-service/internal/http-server/handlers/sessions/list"
	sessionStatus "mentor-session-service/internal/http-server/handlers/sessions/status"
	sessionUpdate "mentor-session-service/internal/http-server/handlers/sessions/update"
	"mentor-session-service/internal/lock"
	"mentor-session-service/internal/notify"
	svc "mentor-session-service/internal/service"
	"mentor-session-service/internal/storage/postgres"
	"mentor-session-service/pkg/logger/slogpretty"
	"mentor-session-service/pkg/middleware/mwlogger"
	"mentor-session-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Content-Type", "application/json; charset=utf-8")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {

	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("Starting API", slog.String("env", cfg.Env))
	log.Debug("Debug messages are enabled")

	storage, err := postgres.New(cfg.StoragePath)
	if err != nil {
		log.Error("Failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	locker, err := lock.NewRedisLock(cfg.RedisAddr)
	if err != nil {
		log.Error("Failed to init redis lock", sl.Err(err))
		os.Exit(1)
	}

	dispatcher := notify.NewDispatcher(log,
		&notify.LogNotifier{Log: log},
		&notify.LogEmailer{Log: log},
	)

	service := svc.NewService(storage, locker, dispatcher)

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(mwlogger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)
	router.Use(CORS)

	router.Group(func(r chi.Router) {
		r.Use(auth.New(log, cfg.JWTSecret))

		// Availability
		r.Post("/sessions/availability", availUpsert.New(log, service))
		r.Get("/sessions/mentor/{mentorID}/availability", availList.New(log, service))
		r.Get("/sessions/mentor/{mentorID}/availability/{date}", availSlots.New(log, service))
		r.Delete("/sessions/availability/{id}", availDelete.New(log, service))

		// Sessions
		r.Post("/sessions", sessionCreate.New(log, service))
		r.Get("/sessions", sessionList.New(log, service))
		r.Get("/sessions/{id}", sessionGet.New(log, service))
		r.Put("/sessions/{id}", sessionUpdate.New(log, service))
		r.Delete("/sessions/{id}", sessionCancel.New(log, service))
		r.Patch("/sessions/{id}/status", sessionStatus.New(log, service))
		r.Post("/sessions/{id}/accept", sessionAccept.New(log, service))
		r.Post("/sessions/{id}/decline", sessionDecline.New(log, service))
		r.Post("/sessions/{id}/confirm-attendance", sessionAttendance.New(log, service))

		// Reschedule negotiation
		r.Patch("/sessions/{id}/reschedule", reschedRequest.New(log, service))
		r.Post("/sessions/{id}/reschedule/accept", reschedAccept.New(log, service))
		r.Post("/sessions/{id}/reschedule/decline", reschedDecline.New(log, service))
	})

	serv := &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	serverErrCh := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", slog.String("addr", cfg.Address))
		if err := serv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		} else {
			serverErrCh <- nil
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case err := <-serverErrCh:
		if err != nil {
			log.Error("HTTP server stopped unexpectedly", sl.Err(err))
		} else {
			log.Info("HTTP server stopped gracefully")
		}
	}

	shutdownTimeout := cfg.HTTPServer.ShutdownTimeout

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info("Shutting down HTTP server", slog.String("timeout", shutdownTimeout.String()))

	if err := serv.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", sl.Err(err))
	} else {
		log.Info("Server shutdown complete")
	}

	if storage != nil {
		if err := storage.Close(); err != nil {
			log.Error("Failed to close storage", sl.Err(err))
		} else {
			log.Info("Storage closed")
		}
	}

	if locker != nil {
		if err := locker.Close(); err != nil {
			log.Error("Failed to close locker", sl.Err(err))
		} else {
			log.Info("Locker closed")
		}
	}

	log.Info("Shutdown finished, server stopped")

}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger
	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
