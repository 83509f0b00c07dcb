package config_handler

import (
	"context"

	"event-director/internal/logger"
	"event-director/pkg/models"
)

type ConfigReloader interface {
	ReloadRules(ctx context.Context) error
}

// Handler reacts to configuration change events addressed to one service by
// reloading that service's configuration.
type Handler struct {
	expectedEventType   string
	expectedServiceType string
	reloader            ConfigReloader
	logger              logger.Logger
}

func NewHandler(expectedEventType, expectedServiceType string, reloader ConfigReloader, log logger.Logger) *Handler {
	return &Handler{
		expectedEventType:   expectedEventType,
		expectedServiceType: expectedServiceType,
		reloader:            reloader,
		logger:              log,
	}
}

// NewNetworkMapHandler listens for network map changes aimed at the event
// director.
func NewNetworkMapHandler(reloader ConfigReloader, log logger.Logger) *Handler {
	return NewHandler(models.EventTypeNetworkMapUpdated, models.ServiceTypeEventDirector, reloader, log)
}

// HandleConfigUpdateEvent ignores events meant for other services. The
// returned error comes from the reload so the consumer can retry it.
func (h *Handler) HandleConfigUpdateEvent(ctx context.Context, event models.ConfigUpdateEvent) error {
	if event.EventType == "" {
		h.logger.WarnwCtx(ctx, "Config event missing event_type")
		return nil
	}
	if event.EventType != h.expectedEventType {
		return nil
	}

	if event.ServiceType == "" {
		h.logger.WarnwCtx(ctx, "Config event missing service_type", "event_type", event.EventType)
		return nil
	}
	if event.ServiceType != h.expectedServiceType {
		return nil
	}

	h.logger.InfowCtx(ctx, "Received config update event",
		"event_type", event.EventType,
		"action", event.Action,
		"tenant_id", event.TenantID,
		"changed_by", event.ChangedBy,
	)

	if err := h.reloader.ReloadRules(ctx); err != nil {
		h.logger.ErrorwCtx(ctx, "Failed to reload network maps after config update", "error", err)
		return err
	}

	h.logger.InfowCtx(ctx, "Network maps reloaded successfully after config update", "action", event.Action)
	return nil
}
