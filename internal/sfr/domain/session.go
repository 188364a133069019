package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionServiceChange is one accumulated entry of an amendment session. Old is
// the detail before the session opened, New the latest detail.
type SessionServiceChange struct {
	ServiceID int64          `json:"serviceId"`
	Name      string         `json:"name"`
	Direction Direction      `json:"direction"`
	Type      ChangeType     `json:"changeType"`
	Old       *ServiceDetail `json:"old,omitempty"`
	New       *ServiceDetail `json:"new,omitempty"`
}

// SessionOutcome reports what the coordinator did.
type SessionOutcome int

const (
	// SessionUntouched means the change needed no re-confirmation.
	SessionUntouched SessionOutcome = iota
	// SessionOpened means a new session was opened.
	SessionOpened
	// SessionMerged means an open session absorbed the change.
	SessionMerged
)

// CoordinateAmendment opens or updates the amendment session of r for the
// changes made since before. It also applies the flag effects on r: whole
// amendments revoke the handling confirmation and mark r amended, departure-only
// amendments raise the awaiting-departure-update flag instead.
func CoordinateAmendment(r *Request, before Snapshot, changes ChangeSet, actorID int64, now time.Time) SessionOutcome {
	if !changes.AmendmentRelevant() {
		return SessionUntouched
	}

	departureOnly := changes.DepartureOnly() && !ArrivalInFuture(r, now)

	session := r.OpenSession()
	outcome := SessionMerged
	if session == nil {
		if !r.HandlingConfirmed {
			return SessionUntouched
		}
		session = &AmendmentSession{
			ID:            uuid.New(),
			RequestID:     r.ID,
			Open:          true,
			DepartureOnly: departureOnly,
			Original:      originalFields(before),
			OpenedBy:      actorID,
			OpenedAt:      now,
		}
		r.Session = session
		outcome = SessionOpened
	} else if session.DepartureOnly && !departureOnly {
		session.DepartureOnly = false
	}

	for _, c := range changes.Services {
		session.mergeService(c)
	}

	if session.DepartureOnly {
		r.AwaitingDepartureUpdate = true
	} else {
		// A whole amendment is settled by ConfirmHandling, not ConfirmDepartureUpdate.
		r.AwaitingDepartureUpdate = false
		r.HandlingConfirmed = false
		r.Amended = true
	}
	if changes.Has(FieldCallsign) {
		r.AmendedCallsign = true
	}
	return outcome
}

// originalFields keeps only the amendment scalars of the pre-change snapshot.
func originalFields(before Snapshot) map[Field]string {
	out := make(map[Field]string, len(amendmentFields))
	for f := range amendmentFields {
		out[f] = before.Fields[f]
	}
	return out
}

func (s *AmendmentSession) find(dir Direction, serviceID int64) int {
	for i, c := range s.Services {
		if c.Direction == dir && c.ServiceID == serviceID {
			return i
		}
	}
	return -1
}

func (s *AmendmentSession) drop(i int) {
	s.Services = append(s.Services[:i], s.Services[i+1:]...)
}

// mergeService folds one diff entry into the accumulated change list so the
// list always describes the net change since the session opened.
func (s *AmendmentSession) mergeService(c ServiceChange) {
	i := s.find(c.Direction, c.ServiceID)
	if i < 0 {
		s.Services = append(s.Services, SessionServiceChange{
			ServiceID: c.ServiceID,
			Name:      c.Name,
			Direction: c.Direction,
			Type:      c.Type,
			Old:       c.Old,
			New:       c.New,
		})
		return
	}

	entry := &s.Services[i]
	switch c.Type {
	case ChangeRemoved:
		switch entry.Type {
		case ChangeAdded:
			s.drop(i)
		default:
			entry.Type = ChangeRemoved
			entry.New = nil
		}
	case ChangeAdded:
		if entry.Type != ChangeRemoved {
			entry.New = c.New
			return
		}
		if entry.Old != nil && c.New != nil && entry.Old.Equal(*c.New) {
			s.drop(i)
			return
		}
		entry.Type = ChangeModified
		entry.New = c.New
	case ChangeModified:
		entry.New = c.New
		if entry.Type == ChangeModified && entry.Old != nil && c.New != nil && entry.Old.Equal(*c.New) {
			s.drop(i)
		}
	}
}

// Close marks the session as dispatched. It is terminal for this instance.
func (s *AmendmentSession) Close(now time.Time) {
	if s == nil || !s.Open {
		return
	}
	s.Open = false
	s.Sent = true
	s.ClosedAt = &now
}
