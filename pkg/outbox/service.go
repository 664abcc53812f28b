package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cropmarket-backend/pkg/db/models"
	"github.com/angelmondragon/cropmarket-backend/pkg/enums"
	"github.com/angelmondragon/cropmarket-backend/pkg/logger"
)

var errTxRequired = errors.New("transaction required")

// DomainEvent is a state change to be published once its transaction commits.
// Version and OccurredAt default to the current envelope version and now.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	Version       int
	OccurredAt    time.Time
}

func (e DomainEvent) validate() error {
	switch {
	case !e.EventType.IsValid():
		return fmt.Errorf("unknown outbox event type %q", e.EventType)
	case !e.AggregateType.IsValid():
		return fmt.Errorf("unknown outbox aggregate type %q", e.AggregateType)
	case e.AggregateID == uuid.Nil:
		return fmt.Errorf("%s: aggregate id is required", e.EventType)
	case e.Version < 0 || e.Version > CurrentEnvelopeVersion:
		return fmt.Errorf("%s: %w %d", e.EventType, ErrEnvelopeVersion, e.Version)
	}
	return nil
}

// Service queues domain events in the transactional outbox.
type Service struct {
	repo *Repository
	logg *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{repo: repo, logg: logg}
}

// Emit queues events in the caller's transaction so they commit or roll back
// with the state change. Either every event is queued or none is.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, events ...DomainEvent) error {
	if tx == nil {
		return errTxRequired
	}

	rows := make([]models.OutboxEvent, 0, len(events))
	for _, event := range events {
		if err := event.validate(); err != nil {
			return err
		}
		row := models.OutboxEvent{
			ID:            uuid.New(),
			EventType:     event.EventType,
			AggregateType: event.AggregateType,
			AggregateID:   event.AggregateID,
		}
		payload, err := encodeEnvelope(row.ID, event)
		if err != nil {
			return err
		}
		row.Payload = payload
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil
	}

	if err := s.repo.Insert(tx.WithContext(ctx), rows...); err != nil {
		return fmt.Errorf("queue %d outbox events: %w", len(rows), err)
	}
	for _, row := range rows {
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"event_id":       row.ID.String(),
			"event_type":     row.EventType,
			"aggregate_id":   row.AggregateID.String(),
			"aggregate_type": row.AggregateType,
		}), "outbox event queued")
	}
	return nil
}
