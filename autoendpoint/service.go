// Package autoendpoint assembles the push endpoint service: the
// registration HTTP surface and the queue-fed dispatch pipeline.
package autoendpoint

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"cloud.google.com/go/pubsub/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ncalexan/autopush-rs/autoendpoint/config"
	"github.com/ncalexan/autopush-rs/internal/api"
	"github.com/ncalexan/autopush-rs/internal/pipeline"
	"github.com/ncalexan/autopush-rs/pkg/apierror"
	"github.com/ncalexan/autopush-rs/pkg/router"
	"github.com/ncalexan/autopush-rs/pkg/store"
)

// MessageSource is the queue subscription the dispatch pipeline drains.
// *pubsub.Subscriber satisfies it.
type MessageSource interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// Service owns the HTTP server and the receive loop.
type Service struct {
	cfg       *config.Config
	routers   map[string]router.Router
	server    *http.Server
	consumer  MessageSource
	processor *pipeline.Processor
	logger    *slog.Logger

	receiveCancel context.CancelFunc
	receiveDone   chan error
}

// New assembles the service around already-built routers and storage.
func New(
	cfg *config.Config,
	routers map[string]router.Router,
	db store.UserStore,
	consumer MessageSource,
	logger *slog.Logger,
) *Service {
	s := &Service{
		cfg:         cfg,
		routers:     routers,
		consumer:    consumer,
		processor:   pipeline.NewProcessor(routers, db, logger),
		logger:      logger,
		receiveDone: make(chan error, 1),
	}

	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)
	mux.Get("/__heartbeat__", s.heartbeatHandler)
	mux.Get("/__lbheartbeat__", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	api.NewRegistrationAPI(routers, db, logger).Mount(mux)
	// Unmatched paths get a bare 404 with no body, never the structured
	// error contract.
	mux.NotFound(apierror.NotFoundHandler)

	s.server = &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	return s
}

// Start runs the receive loop and then blocks serving HTTP until Shutdown.
func (s *Service) Start(ctx context.Context) error {
	receiveCtx, cancel := context.WithCancel(ctx)
	s.receiveCancel = cancel

	go func() {
		s.logger.Info("Dispatch pipeline starting...", "subscription", s.cfg.SubscriptionID)
		s.receiveDone <- s.consumer.Receive(receiveCtx, s.handleMessage)
	}()

	s.logger.Info("HTTP server starting...", "addr", s.cfg.ListenAddr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the receive loop, then the HTTP server.
func (s *Service) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down service components...")
	var finalErr error

	if s.receiveCancel != nil {
		s.receiveCancel()
		if err := <-s.receiveDone; err != nil {
			s.logger.Error("Dispatch pipeline shutdown failed.", "err", err)
			finalErr = err
		}
	}
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown failed.", "err", err)
		finalErr = err
	}

	s.logger.Info("Service shutdown complete.")
	return finalErr
}

// handleMessage is the per-message unit of work. Permanent failures ack so
// the broker drops (or dead-letters) the message; transient ones nack for
// broker-side redelivery. The core itself never retries.
func (s *Service) handleMessage(ctx context.Context, msg *pubsub.Message) {
	n, err := pipeline.Transform(msg.Data)
	if err != nil {
		s.logger.Warn("Dropping malformed notification", "pubsub_msg_id", msg.ID, "err", err)
		msg.Ack()
		return
	}

	if err := s.processor.Process(ctx, n); err != nil {
		if permanentFailure(err) {
			msg.Ack()
		} else {
			msg.Nack()
		}
		return
	}
	msg.Ack()
}

// permanentFailure reports whether redelivering the message could ever
// succeed. Anything classified below 500 is the message's own fault.
func permanentFailure(err error) bool {
	var apiErr *apierror.Error
	return errors.As(err, &apiErr) && apiErr.Status() < http.StatusInternalServerError
}

// heartbeatHandler reports which backends are live.
func (s *Service) heartbeatHandler(w http.ResponseWriter, _ *http.Request) {
	routerStatus := make(map[string]bool, len(s.routers))
	for name, backend := range s.routers {
		routerStatus[name] = backend.Active()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "OK",
		"routers": routerStatus,
	})
}
