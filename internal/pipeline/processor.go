package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ncalexan/autopush-rs/pkg/apierror"
	"github.com/ncalexan/autopush-rs/pkg/router"
	"github.com/ncalexan/autopush-rs/pkg/store"
)

// Processor dispatches one decoded notification through the backend named
// by the stored subscription record. Each call is an independent unit of
// work; the processor itself holds only read-only state.
type Processor struct {
	routers map[string]router.Router
	store   store.UserStore
	logger  *slog.Logger
}

func NewProcessor(routers map[string]router.Router, db store.UserStore, logger *slog.Logger) *Processor {
	return &Processor{
		routers: routers,
		store:   db,
		logger:  logger.With("component", "Processor"),
	}
}

// Process loads the subscription record, selects the backend, and routes.
// Errors come back as *apierror.Error so callers can separate permanent
// failures (drop) from transient ones (redeliver).
func (p *Processor) Process(ctx context.Context, n *router.Notification) error {
	procLogger := p.logger.With(
		"uaid", n.Subscription.UAID,
		"message_id", n.MessageID,
	)

	user, err := p.store.GetUser(ctx, n.Subscription.UAID)
	if errors.Is(err, store.ErrNotFound) {
		procLogger.Info("No subscription record for user; dropping notification.")
		return apierror.NoUser()
	}
	if err != nil {
		return apierror.Database(err)
	}

	backend, ok := p.routers[user.RouterType]
	if !ok || !backend.Active() {
		return apierror.Internal(fmt.Sprintf("no active router for type %q", user.RouterType))
	}

	n.Subscription.RouterType = user.RouterType
	n.Subscription.RouterData = user.RouterData

	resp, err := backend.RouteNotification(ctx, n)
	if err != nil {
		procLogger.Error("Dispatch failed", "router_type", user.RouterType, "err", err)
		return err
	}

	procLogger.Info("Notification dispatched",
		"router_type", user.RouterType, "location", resp.Location, "ttl", resp.TTL)
	return nil
}
