package notifications

import (
	"context"

	"github.com/angelmondragon/cropmarket-backend/pkg/enums"
	"github.com/angelmondragon/cropmarket-backend/pkg/logger"
	"github.com/google/uuid"
)

// Dispatcher delivers a notification outside the app (email, push).
type Dispatcher interface {
	Notify(ctx context.Context, kind enums.NotificationType, recipient uuid.UUID, args map[string]any) error
}

// LogDispatcher writes each delivery as a structured log line instead of sending mail.
type LogDispatcher struct {
	logg *logger.Logger
}

// NewLogDispatcher returns a dispatcher backed by logg.
func NewLogDispatcher(logg *logger.Logger) *LogDispatcher {
	if logg == nil {
		logg = logger.Nop()
	}
	return &LogDispatcher{logg: logg}
}

func (d *LogDispatcher) Notify(ctx context.Context, kind enums.NotificationType, recipient uuid.UUID, args map[string]any) error {
	fields := map[string]any{
		"notification_type": string(kind),
		"recipient_id":      recipient.String(),
	}
	for k, v := range args {
		fields["arg_"+k] = v
	}
	d.logg.Info(d.logg.WithFields(ctx, fields), "notification dispatched")
	return nil
}
