package settings

import (
	"context"
	"fmt"
	"log/slog"
)

// Panel is the user-facing toggle surface: it reads the store, writes
// changes back and broadcasts them to every running engine.
type Panel struct {
	store  Store
	hub    *Hub
	logger *slog.Logger
}

// NewPanel creates a panel. hub may be nil when no engine runs in-process.
func NewPanel(store Store, hub *Hub, logger *slog.Logger) *Panel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Panel{store: store, hub: hub, logger: logger}
}

// Load returns the current flags.
func (p *Panel) Load(ctx context.Context) (Settings, error) {
	return Load(ctx, p.store)
}

// Update stores the flags and broadcasts them. It returns the number of
// engines that received the broadcast.
func (p *Panel) Update(ctx context.Context, hideEmails, hideIps bool) (int, error) {
	msg := UpdateMessage(hideEmails, hideIps)
	if err := p.store.Set(ctx, msg.Settings.Values()); err != nil {
		return 0, fmt.Errorf("failed to save settings: %w", err)
	}
	if p.hub == nil {
		return 0, nil
	}
	n := p.hub.Broadcast(msg)
	p.logger.Debug("settings broadcast",
		"hide_emails", hideEmails,
		"hide_ips", hideIps,
		"receivers", n,
	)
	return n, nil
}
