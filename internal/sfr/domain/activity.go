package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Actor is whoever triggered a mutation. System actors have no ID and a Name.
type Actor struct {
	ID   int64
	Name string
}

// SystemActor builds an actor for automated work such as timers.
func SystemActor(name string) Actor { return Actor{Name: name} }

// IsSystem reports whether no user is behind the action.
func (a Actor) IsSystem() bool { return a.ID == 0 }

// IDPtr returns the actor id or nil for system actors.
func (a Actor) IDPtr() *int64 {
	if a.IsSystem() {
		return nil
	}
	id := a.ID
	return &id
}

// ActivityEntry is one append-only line of a request's activity log.
type ActivityEntry struct {
	ID        uuid.UUID
	RequestID int64
	Field     *string
	OldValue  *string
	NewValue  *string
	Detail    *string
	ActorID   *int64
	ActorText *string
	CreatedAt time.Time
}

// NewActivity creates a free-text entry.
func NewActivity(requestID int64, actor Actor, now time.Time, detail string) ActivityEntry {
	e := ActivityEntry{
		ID:        uuid.New(),
		RequestID: requestID,
		Detail:    &detail,
		CreatedAt: now,
	}
	e.setActor(actor)
	return e
}

func (e *ActivityEntry) setActor(actor Actor) {
	e.ActorID = actor.IDPtr()
	if actor.IsSystem() {
		name := actor.Name
		if name == "" {
			name = "system"
		}
		e.ActorText = &name
	}
}

// ActivityFromChanges renders one entry per changed field and per changed service.
func ActivityFromChanges(requestID int64, cs ChangeSet, actor Actor, now time.Time) []ActivityEntry {
	out := make([]ActivityEntry, 0, len(cs.Fields)+len(cs.Services))
	for _, f := range cs.SortedFields() {
		change := cs.Fields[f]
		out = append(out, NewFieldActivity(requestID, actor, now, string(f), change.Old, change.New))
	}
	for _, s := range cs.Services {
		out = append(out, NewActivity(requestID, actor, now, describeServiceChange(s)))
	}
	return out
}

func describeServiceChange(s ServiceChange) string {
	leg := strings.ToLower(string(s.Direction))
	switch s.Type {
	case ChangeAdded:
		return fmt.Sprintf("Service %s added on %s%s", s.Name, leg, describeDetail(s.New))
	case ChangeRemoved:
		return fmt.Sprintf("Service %s removed from %s", s.Name, leg)
	default:
		return fmt.Sprintf("Service %s on %s changed from%s to%s", s.Name, leg, describeDetail(s.Old), describeDetail(s.New))
	}
}

func describeDetail(d *ServiceDetail) string {
	if d == nil {
		return ""
	}
	var out string
	switch {
	case d.FreeText != "":
		out = fmt.Sprintf(" %q", d.FreeText)
	case d.Quantity != nil:
		out = fmt.Sprintf(" %s %s", formatQuantity(d.Quantity), d.QuantityUnit)
	}
	if d.Note != "" {
		out += fmt.Sprintf(" (note: %s)", d.Note)
	}
	if out == "" {
		return " (no detail)"
	}
	return out
}

// NewFieldActivity creates an entry for a field that is not part of the snapshot,
// such as fuel booking flags or service confirmation states.
func NewFieldActivity(requestID int64, actor Actor, now time.Time, field, oldValue, newValue string) ActivityEntry {
	e := ActivityEntry{
		ID:        uuid.New(),
		RequestID: requestID,
		Field:     &field,
		OldValue:  &oldValue,
		NewValue:  &newValue,
		CreatedAt: now,
	}
	e.setActor(actor)
	return e
}
