package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	EventApplicationCreated  = "APPLICATION_CREATED"
	EventInvestmentCreated   = "INVESTMENT_CREATED"
	EventPrioritySet         = "PRIORITY_SET"
	EventPriorityCleared     = "PRIORITY_CLEARED"
	EventTrancheOpened       = "TRANCHE_OPENED"
	EventTrancheFunded       = "TRANCHE_FUNDED"
	EventTrancheUnfunded     = "TRANCHE_UNFUNDED"
	EventApplicationAccepted = "APPLICATION_ACCEPTED"
	EventApplicationRejected = "APPLICATION_REJECTED"
	EventSharesAllocated     = "SHARES_ALLOCATED"
	EventPropertyFinalized   = "PROPERTY_FINALIZED"
)

const (
	ActorSystem = "system"
	ActorSweep  = "sweep"
	ActorAdmin  = "admin"
)

// AuditEvent is the append-only settlement history of a property.
// EventData holds typed fields (amounts as strings, shares as integers), never prose.
type AuditEvent struct {
	EventID    uuid.UUID      `gorm:"column:event_id;type:uuid;primaryKey" json:"event_id"`
	PropertyID uuid.UUID      `gorm:"column:property_id;type:uuid;not null;index" json:"property_id"`
	Actor      string         `gorm:"column:actor;not null" json:"actor"`
	EventType  string         `gorm:"column:event_type;type:varchar(30);not null" json:"event_type"`
	EventData  datatypes.JSON `gorm:"column:event_data;type:json;not null" json:"event_data"`
	CreatedAt  time.Time      `gorm:"column:createdAt" json:"createdAt"`
}

func (AuditEvent) TableName() string {
	return "AuditEvents"
}

func (e *AuditEvent) BeforeCreate(tx *gorm.DB) error {
	if e.EventID == uuid.Nil {
		e.EventID = uuid.New()
	}
	return nil
}
