package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/dgnsrekt/pulse/internal/action"
	"github.com/dgnsrekt/pulse/internal/bridge"
	"github.com/dgnsrekt/pulse/internal/capture"
	"github.com/dgnsrekt/pulse/internal/engine"
	"github.com/dgnsrekt/pulse/internal/errcode"
	"github.com/dgnsrekt/pulse/internal/history"
	"github.com/dgnsrekt/pulse/internal/metrics"
	"github.com/dgnsrekt/pulse/internal/relay"
	"github.com/dgnsrekt/pulse/internal/snapshot"
	"github.com/dgnsrekt/pulse/internal/surface"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Service interface {
	OpenSurface(ctx context.Context, location string) (surface.Info, error)
	ActivateSurface(ctx context.Context, id int) error
	CloseSurface(ctx context.Context, id int) error
	NavigateSurface(ctx context.Context, id int, location string) (surface.Info, error)
	ListSurfaces(ctx context.Context) ([]surface.Info, error)
	ExecuteAction(ctx context.Context, cmd action.Command) action.Result
	Snapshot(ctx context.Context, notes string) (snapshot.Meta, error)
	StartCapture(ctx context.Context) error
	StopCapture(ctx context.Context) error
	SendTextCommand(ctx context.Context, text string) error
	Resize(ctx context.Context, size engine.Size) (engine.Rect, error)
	AgentStatus() bridge.AgentStatus
	LatestFrame() (capture.Frame, bool)
	History(query string, limit int) []history.Visit
}

// Options carries the collaborators mounted next to the JSON API. Every
// field is optional.
type Options struct {
	Snapshots *snapshot.Store
	Events    *relay.Broker
	Audio     http.Handler
	Metrics   *metrics.Metrics
}

func NewServer(svc Service, opts Options) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger(opts.Metrics))
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Pulse Bridge API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})
	router.Get("/docs/events", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(eventsDocsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		if _, err := w.Write([]byte("ok\n")); err != nil {
			slog.Debug("healthz response write failed", "error", err)
		}
	})
	if opts.Events != nil {
		router.Get("/events", eventsHandler(opts.Events, opts.Metrics))
	}
	if opts.Audio != nil {
		router.Handle("/ws/audio", opts.Audio)
	}
	if opts.Metrics != nil {
		router.Handle("/metrics", opts.Metrics.Handler())
	}

	registerSurfaceHandlers(api, svc)
	registerActionHandlers(api, svc)
	registerMediaHandlers(api, svc, opts.Snapshots)
	registerAgentHandlers(api, svc)

	return router
}

func eventsHandler(broker *relay.Broker, m *metrics.Metrics) http.HandlerFunc {
	stream := relay.SSEHandler(broker)
	return func(w http.ResponseWriter, r *http.Request) {
		m.SetSubscribers(broker.ClientCount() + 1)
		defer func() { m.SetSubscribers(broker.ClientCount()) }()
		stream(w, r)
	}
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, snapshot.ErrNotFound) {
		return huma.Error404NotFound(err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return huma.Error504GatewayTimeout(err.Error())
	}
	var coded *errcode.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case errcode.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case errcode.CodeNotFound:
			return huma.Error404NotFound(coded.Message)
		case errcode.CodePrecondition:
			return huma.Error409Conflict(coded.Message)
		case errcode.CodeTimeout:
			return huma.Error504GatewayTimeout(coded.Message)
		case errcode.CodeUnavailable:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
