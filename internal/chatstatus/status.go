// Package chatstatus owns the lifecycle of a support conversation's status.
// Every status write in the service goes through Transition.
package chatstatus

import (
	"errors"
	"fmt"

	"github.com/ageniuscoder/shopdesk/backend/internal/apperr"
)

type Status string

const (
	New      Status = "new"
	Waiting  Status = "waiting"
	Active   Status = "active"
	Done     Status = "done"
	Missed   Status = "missed"
	Archived Status = "archived"
)

var All = []Status{New, Waiting, Active, Done, Missed, Archived}

// Open statuses are the ones the escalator is allowed to flip to missed.
var Open = []Status{New, Waiting, Active}

func Parse(s string) (Status, error) {
	for _, st := range All {
		if string(st) == s {
			return st, nil
		}
	}
	return "", apperr.Invalid("invalid status %q", s)
}

func (s Status) IsOpen() bool {
	switch s {
	case New, Waiting, Active:
		return true
	}
	return false
}

type Event string

const (
	ClientMessage Event = "client_message"
	AdminRead     Event = "admin_read"
	Escalate      Event = "escalate"
	AdminReopen   Event = "admin_reopen"
	AdminActivate Event = "admin_activate"
	AdminClose    Event = "admin_close"
	AdminArchive  Event = "admin_archive"
)

var ErrIllegalTransition = errors.New("illegal status transition")

type rule struct {
	from []Status // nil means any status
	to   Status
}

// Closed threads only come back through a client message.
var live = []Status{New, Waiting, Active, Missed}

var rules = map[Event]rule{
	ClientMessage: {to: New},
	AdminRead:     {to: Waiting},
	Escalate:      {from: Open, to: Missed},
	AdminReopen:   {from: live, to: New},
	AdminActivate: {from: live, to: Active},
	AdminClose:    {to: Done},
	AdminArchive:  {to: Archived},
}

// Transition returns the status cur moves to on ev, or ErrIllegalTransition.
func Transition(cur Status, ev Event) (Status, error) {
	r, ok := rules[ev]
	if !ok {
		return cur, fmt.Errorf("%w: unknown event %q", ErrIllegalTransition, ev)
	}
	if r.from == nil {
		return r.to, nil
	}
	for _, s := range r.from {
		if s == cur {
			return r.to, nil
		}
	}
	return cur, fmt.Errorf("%w: %s on %q", ErrIllegalTransition, ev, cur)
}

// AdminEventFor maps a status an admin asked for to the event that produces it.
// Missed is reserved for the escalator.
func AdminEventFor(target Status) (Event, error) {
	switch target {
	case New:
		return AdminReopen, nil
	case Waiting:
		return AdminRead, nil
	case Active:
		return AdminActivate, nil
	case Done:
		return AdminClose, nil
	case Archived:
		return AdminArchive, nil
	case Missed:
		return "", apperr.Invalid("status %q is set by the escalator only", target)
	}
	return "", apperr.Invalid("invalid status %q", target)
}
