// Package access decides whether an actor may perform an action on a project
// or on something that belongs to one.
//
// Decide is a pure function. Callers load a Snapshot of the project's current
// ownership and the actor's membership inside the same transaction that will
// perform the action, and pass it in. Nothing here caches a decision.
package access

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrProjectNotFound = errors.New("project not found")
)

type Action string

const (
	ReadProject   Action = "project:read"
	UpdateProject Action = "project:update"
	DeleteProject Action = "project:delete"
	AddMember     Action = "project:add_member"
	ReadMembers   Action = "project:read_members"
	Subscribe     Action = "project:subscribe"

	CreateTask Action = "task:create"
	ReadTasks  Action = "task:read"
	UpdateTask Action = "task:update"
	DeleteTask Action = "task:delete"

	CreateComment Action = "comment:create"
	ReadComments  Action = "comment:read"
	UpdateComment Action = "comment:update"
	DeleteComment Action = "comment:delete"
)

// Snapshot is the ownership and membership state a decision is made against.
type Snapshot struct {
	ProjectID uuid.UUID `db:"id"`
	CreatorID uuid.UUID `db:"created_by"`
	Member    bool      `db:"is_member"`
}

type Reason string

const (
	ReasonNone            Reason = ""
	ReasonUnauthenticated Reason = "actor is not authenticated"
	ReasonNotMember       Reason = "actor is not a member of the project"
	ReasonNotCreator      Reason = "only the project creator may do this"
	ReasonNotExposed      Reason = "action is not available"
	ReasonUnknownAction   Reason = "unknown action"
)

type Decision struct {
	Action  Action
	Allowed bool
	Reason  Reason
}

type rule int

const (
	ruleMember rule = iota
	ruleCreator
	ruleNever
)

var policy = map[Action]rule{
	ReadProject:   ruleMember,
	ReadMembers:   ruleMember,
	Subscribe:     ruleMember,
	UpdateProject: ruleCreator,
	DeleteProject: ruleCreator,
	AddMember:     ruleCreator,

	CreateTask: ruleMember,
	ReadTasks:  ruleMember,
	UpdateTask: ruleMember,
	DeleteTask: ruleMember,

	CreateComment: ruleMember,
	ReadComments:  ruleMember,
	UpdateComment: ruleNever,
	DeleteComment: ruleNever,
}

// Decide evaluates action for actor against snap. A zero actor never passes.
func Decide(actor uuid.UUID, action Action, snap Snapshot) Decision {
	d := Decision{Action: action}

	if actor == uuid.Nil {
		d.Reason = ReasonUnauthenticated
		return d
	}

	r, ok := policy[action]
	if !ok {
		d.Reason = ReasonUnknownAction
		return d
	}

	// Visibility comes first: a non-member learns nothing else about the project.
	if !snap.Member {
		d.Reason = ReasonNotMember
		return d
	}

	switch r {
	case ruleMember:
		d.Allowed = true
	case ruleCreator:
		if snap.CreatorID == actor {
			d.Allowed = true
		} else {
			d.Reason = ReasonNotCreator
		}
	case ruleNever:
		d.Reason = ReasonNotExposed
	}

	return d
}

// Enforce turns d into the error reported to the caller, or nil when allowed.
//
// A non-member is told the target does not exist (notFound) so that probing an
// id cannot reveal whether it is in use.
func Enforce(d Decision, notFound error) error {
	if d.Allowed {
		return nil
	}

	switch d.Reason {
	case ReasonUnauthenticated:
		return ErrUnauthenticated
	case ReasonNotMember:
		return notFound
	default:
		return fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}
}

// Check is Decide followed by Enforce.
func Check(actor uuid.UUID, action Action, snap Snapshot, notFound error) error {
	return Enforce(Decide(actor, action, snap), notFound)
}
