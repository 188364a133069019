package lifecycle

import (
	"sort"
	"time"

	"sfr_ops_backend/internal/events"
	"sfr_ops_backend/internal/sfr/domain"
)

func newEvent(kind events.NotificationKind, req *domain.Request, actor domain.Actor, now time.Time, audiences ...events.Audience) events.SFRNotification {
	return events.SFRNotification{
		BaseEvent:       events.BaseEvent{Timestamp: now},
		Kind:            kind,
		RequestID:       req.ID,
		ActorID:         actor.IDPtr(),
		Callsign:        req.Callsign,
		Audiences:       audiences,
		ChangedFields:   map[string]events.FieldChange{},
		ChangedServices: []events.ServiceChange{},
	}
}

func createdEvent(req *domain.Request, actor domain.Actor, now time.Time) events.SFRNotification {
	return newEvent(events.KindCreated, req, actor, now, events.AudienceStaff)
}

func amendmentEvent(req *domain.Request, cs domain.ChangeSet, actor domain.Actor, now time.Time, audiences ...events.Audience) events.SFRNotification {
	evt := newEvent(events.KindAmendment, req, actor, now, audiences...)
	for f, c := range cs.Fields {
		evt.ChangedFields[string(f)] = events.FieldChange{Old: c.Old, New: c.New}
	}
	for _, s := range cs.Services {
		evt.ChangedServices = append(evt.ChangedServices, serviceChange(s.ServiceID, s.Name, s.Direction, s.Type, s.Old, s.New))
	}
	return evt
}

// reconfirmationEvent compares the session's original values with the current
// ones. Without audiences it addresses the ground handler and staff.
func reconfirmationEvent(req *domain.Request, s *domain.AmendmentSession, actor domain.Actor, now time.Time, audiences ...events.Audience) events.SFRNotification {
	if len(audiences) == 0 {
		audiences = []events.Audience{events.AudienceGroundHandler, events.AudienceStaff}
	}
	evt := newEvent(events.KindGHReconfirmationRequired, req, actor, now, audiences...)

	current := domain.CaptureSnapshot(req).Fields
	for f, orig := range s.Original {
		if cur := current[f]; cur != orig {
			evt.ChangedFields[string(f)] = events.FieldChange{Old: orig, New: cur}
		}
	}
	for _, c := range s.Services {
		evt.ChangedServices = append(evt.ChangedServices, serviceChange(c.ServiceID, c.Name, c.Direction, c.Type, c.Old, c.New))
	}
	sort.Slice(evt.ChangedServices, func(i, j int) bool {
		a, b := evt.ChangedServices[i], evt.ChangedServices[j]
		if a.Direction != b.Direction {
			return a.Direction < b.Direction
		}
		return a.ServiceID < b.ServiceID
	})
	return evt
}

func statusChangedEvent(req *domain.Request, previous domain.Status, actor domain.Actor, now time.Time) events.SFRNotification {
	evt := newEvent(events.KindStatusChanged, req, actor, now, events.AudienceStaff, events.AudienceClient)
	evt.Status = &events.StatusChange{Old: previous.String(), New: req.Status.String()}
	return evt
}

// cancelledEvent also reaches the ground handler and fuel team when they were engaged.
func cancelledEvent(req *domain.Request, actor domain.Actor, now time.Time) events.SFRNotification {
	audiences := []events.Audience{events.AudienceStaff, events.AudienceClient}
	if req.HandlingAgent != nil && (req.HandlingConfirmed || req.Session != nil) {
		audiences = append(audiences, events.AudienceGroundHandler)
	}
	if req.Fuel != nil {
		audiences = append(audiences, events.AudienceFuelTeam)
	}
	return newEvent(events.KindCancelled, req, actor, now, audiences...)
}

func serviceChange(id int64, name string, dir domain.Direction, typ domain.ChangeType, old, new *domain.ServiceDetail) events.ServiceChange {
	return events.ServiceChange{
		ServiceID:  id,
		Name:       name,
		Direction:  string(dir),
		ChangeType: string(typ),
		Old:        eventDetail(old),
		New:        eventDetail(new),
	}
}

func eventDetail(d *domain.ServiceDetail) *events.ServiceDetail {
	if d == nil {
		return nil
	}
	return &events.ServiceDetail{
		Note:         d.Note,
		FreeText:     d.FreeText,
		Quantity:     d.Quantity,
		QuantityUnit: d.QuantityUnit,
	}
}
