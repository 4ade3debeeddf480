package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	NotificationApplicationAccepted = "application_accepted"
	NotificationApplicationRejected = "application_rejected"
	NotificationPropertyFinalized   = "property_finalized"
)

// Notification is an outbox row written in the settlement transaction and delivered afterwards.
type Notification struct {
	ID         uuid.UUID      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID      `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	PropertyID uuid.UUID      `gorm:"column:property_id;type:uuid;not null" json:"property_id"`
	Kind       string         `gorm:"column:kind;type:varchar(40);not null" json:"kind"`
	Payload    datatypes.JSON `gorm:"column:payload;type:json;not null" json:"payload"`
	Attempts   int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	SentAt     *time.Time     `gorm:"column:sent_at;index" json:"sent_at"`
	CreatedAt  time.Time      `gorm:"column:createdAt" json:"createdAt"`
}

func (Notification) TableName() string {
	return "Notifications"
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
