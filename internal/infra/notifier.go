package infra

import (
	"github.com/gen2brain/beeep"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// DesktopNotifier implements domain.Notifier with native notifications.
type DesktopNotifier struct {
	enabled bool
	logger  *zap.Logger
}

// NewDesktopNotifier creates a notifier. When disabled, Notify only logs.
func NewDesktopNotifier(enabled bool, logger *zap.Logger) *DesktopNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DesktopNotifier{enabled: enabled, logger: logger}
}

// Notify shows a desktop notification.
func (n *DesktopNotifier) Notify(title, message string) error {
	n.logger.Debug("notification",
		zap.String("title", title),
		zap.String("message", message),
		zap.Bool("enabled", n.enabled))
	if !n.enabled {
		return nil
	}
	return beeep.Notify(title, message, "")
}

// Ensure DesktopNotifier implements domain.Notifier.
var _ domain.Notifier = (*DesktopNotifier)(nil)
