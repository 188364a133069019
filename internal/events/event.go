// Package events defines the SFR domain events. The bus itself lives in
// platform/events; its types are aliased here so modules import one package.
package events

import (
	"context"

	"sfr_ops_backend/platform/events"
	"sfr_ops_backend/platform/logger"

	"github.com/google/uuid"
)

type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

var NewBaseEvent = events.NewBaseEvent

// On adapts a handler for one concrete event type.
func On[T Event](fn func(ctx context.Context, event T) error) Handler {
	return events.On(fn)
}

// NewInMemoryBus creates the process-local bus used by both binaries.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// =============================================================================
// SFR Notification Events
// =============================================================================

// NotificationKind is the kind of an SFR notification.
type NotificationKind string

const (
	KindAmendment                NotificationKind = "amendment"
	KindCreated                  NotificationKind = "created"
	KindCancelled                NotificationKind = "cancelled"
	KindStatusChanged            NotificationKind = "status_changed"
	KindGHReconfirmationRequired NotificationKind = "gh_reconfirmation_required"
)

// Audience names who a notification is meant for.
type Audience string

const (
	AudienceStaff         Audience = "staff"
	AudienceClient        Audience = "client"
	AudienceFuelTeam      Audience = "fuel_team"
	AudienceGroundHandler Audience = "ground_handler"
)

// FieldChange is an old/new pair rendered for humans.
type FieldChange struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// ServiceDetail is the detail of a service as shown in notifications.
type ServiceDetail struct {
	Note         string   `json:"note,omitempty"`
	FreeText     string   `json:"freeText,omitempty"`
	Quantity     *float64 `json:"quantity,omitempty"`
	QuantityUnit string   `json:"quantityUnit,omitempty"`
}

// ServiceChange is one added, removed or modified service.
type ServiceChange struct {
	ServiceID  int64          `json:"serviceId"`
	Name       string         `json:"name"`
	Direction  string         `json:"direction"`
	ChangeType string         `json:"changeType"`
	Old        *ServiceDetail `json:"old,omitempty"`
	New        *ServiceDetail `json:"new,omitempty"`
}

// StatusChange carries the previous and new derived status labels.
type StatusChange struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// SFRNotification is emitted by the lifecycle orchestrator after commit and
// consumed by the notification dispatcher. Delivery is at-least-once.
type SFRNotification struct {
	BaseEvent
	Kind            NotificationKind       `json:"kind"`
	RequestID       int64                  `json:"requestId"`
	ActorID         *int64                 `json:"actorId"`
	Callsign        string                 `json:"callsign"`
	Audiences       []Audience             `json:"audiences"`
	ChangedFields   map[string]FieldChange `json:"changedFields"`
	ChangedServices []ServiceChange        `json:"changedServices"`
	Status          *StatusChange          `json:"status,omitempty"`
}

// SFRNotificationEvent is the bus name of SFRNotification.
const SFRNotificationEvent = "sfr.notification"

func (e SFRNotification) EventName() string { return SFRNotificationEvent }

// HasAudience reports whether a is among the audiences of e.
func (e SFRNotification) HasAudience(a Audience) bool {
	for _, x := range e.Audiences {
		if x == a {
			return true
		}
	}
	return false
}

// SFRStatusTimerFired is published when an ETA/ETD timer invalidates a request's status.
type SFRStatusTimerFired struct {
	BaseEvent
	RequestID int64 `json:"requestId"`
}

func (e SFRStatusTimerFired) EventName() string { return "sfr.status.timer_fired" }

// NotificationOutboxDue is published by the scheduler when a notification outbox
// record should be processed.
type NotificationOutboxDue struct {
	BaseEvent
	OutboxID  uuid.UUID `json:"outboxId"`
	RequestID int64     `json:"requestId"`
}

func (e NotificationOutboxDue) EventName() string { return "notification.outbox.due" }
