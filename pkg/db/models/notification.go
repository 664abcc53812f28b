package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cropmarket-backend/pkg/enums"
)

// Notification is an in-app message for a single user. SourceEventID ties it
// back to the outbox event that produced it.
type Notification struct {
	ID            uuid.UUID              `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index;uniqueIndex:idx_notifications_user_source_event" json:"user_id"`
	Type          enums.NotificationType `gorm:"column:type;type:text;not null" json:"type"`
	Title         string                 `gorm:"column:title;type:text;not null" json:"title"`
	Message       string                 `gorm:"column:message;type:text;not null" json:"message"`
	Link          *string                `gorm:"column:link;type:text" json:"link,omitempty"`
	SourceEventID *uuid.UUID             `gorm:"column:source_event_id;type:uuid;uniqueIndex:idx_notifications_user_source_event" json:"source_event_id,omitempty"`
	ReadAt        *time.Time             `gorm:"column:read_at" json:"read_at,omitempty"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }

func (n *Notification) BeforeCreate(*gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
