package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/csrf"
	"github.com/sirupsen/logrus"

	reqcontext "github.com/medinfo-ai/medinfo/context"
	"github.com/medinfo-ai/medinfo/internal/config"
	"github.com/medinfo-ai/medinfo/internal/controllers"
	"github.com/medinfo-ai/medinfo/internal/middleware"
	"github.com/medinfo-ai/medinfo/internal/services"
	"github.com/medinfo-ai/medinfo/internal/views"
	"github.com/medinfo-ai/medinfo/templates"
)

type application struct {
	cfg       *config.Config
	log       *logrus.Logger
	interpret *controllers.InterpretController
	api       *controllers.APIController
}

// newApplication wires services and controllers around invoker.
func newApplication(cfg *config.Config, log *logrus.Logger, invoker services.ModelInvoker) (*application, error) {
	interpreter := services.NewInterpreter(invoker, services.InterpreterConfig{
		DefaultModel:  cfg.Model.Default,
		AllowedModels: cfg.Model.Allowed,
		Timeout:       cfg.Model.Timeout,
	})
	images := services.NewImageDecoder(cfg.Limits.MaxUploadBytes, cfg.Limits.MaxImageEdge)

	tpl, err := views.ParseFS(templates.FS, "pages/interpret.gohtml")
	if err != nil {
		return nil, err
	}

	return &application{
		cfg: cfg,
		log: log,
		interpret: controllers.NewInterpretController(
			interpreter,
			images,
			tpl,
			cfg.Limits.MaxUploadBytes,
			cfg.IsDevelopment(),
		),
		api: controllers.NewAPIController(interpreter, images),
	}, nil
}

func (app *application) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRequestLogger(app.log).Handler)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", controllers.HealthCheck)

	// Browser routes: CSRF protected form flow
	r.Group(func(r chi.Router) {
		if !app.cfg.Security.CSRFSecure {
			r.Use(plaintextHTTP)
		}
		r.Use(csrf.Protect(
			[]byte(app.cfg.Security.CSRFKey),
			csrf.Secure(app.cfg.Security.CSRFSecure),
			csrf.Path("/"),
			csrf.TrustedOrigins(app.cfg.Security.CSRFTrustedOrigins),
			csrf.ErrorHandler(http.HandlerFunc(csrfFailure)),
		))

		r.Get("/", app.interpret.GetInterpret)
		r.Get("/interpret", app.interpret.GetInterpret)
		r.With(middleware.LimitBody(app.cfg.Limits.MaxUploadBytes+1<<20)).
			Post("/interpret", app.interpret.PostInterpret)
	})

	// JSON API: credential travels in a header, so no CSRF token
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: app.cfg.Security.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Authorization", "X-Api-Key", middleware.RequestIDHeader},
			ExposedHeaders: []string{middleware.RequestIDHeader},
			MaxAge:         300,
		}))
		// base64 inflates the payload by a third
		r.Use(middleware.LimitBody(app.cfg.Limits.MaxUploadBytes*4/3 + 1<<20))

		r.Post("/interpret", app.api.PostInterpret)
		r.NotFound(controllers.NotFound)
	})

	return r
}

// plaintextHTTP marks requests as served over HTTP so the CSRF origin check
// does not demand TLS.
func plaintextHTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
	})
}

func csrfFailure(w http.ResponseWriter, r *http.Request) {
	reqcontext.Logger(r.Context()).
		WithError(csrf.FailureReason(r)).
		Warn("csrf validation failed")
	http.Error(w, "Forbidden - invalid CSRF token", http.StatusForbidden)
}

// serve runs the HTTP server until SIGINT or SIGTERM, then drains it.
func (app *application) serve() error {
	srv := &http.Server{
		Addr:         app.cfg.Server.Address,
		Handler:      app.routes(),
		ReadTimeout:  app.cfg.Server.ReadTimeout,
		WriteTimeout: app.cfg.Server.WriteTimeout,
		IdleTimeout:  app.cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		app.log.WithFields(logrus.Fields{
			"address":     srv.Addr,
			"environment": app.cfg.Server.Environment,
			"model":       app.cfg.Model.Default,
		}).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case sig := <-stop:
		app.log.WithField("signal", sig.String()).Info("shutting down server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	app.log.Info("server stopped")
	return nil
}
