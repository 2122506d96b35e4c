package membership

import (
	"time"

	"github.com/google/uuid"
)

// Member is a project member as shown to other members.
type Member struct {
	ProjectID uuid.UUID `db:"project_id" json:"-"`
	UserID    uuid.UUID `db:"user_id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	AvatarURL *string   `db:"avatar_url" json:"avatar_url,omitempty"`
	JoinedAt  time.Time `db:"joined_at" json:"joined_at"`
}

// Lock selects the row lock Snapshot takes on the project row.
type Lock int

const (
	LockNone Lock = iota
	// LockShare blocks the cascade while a child row is being attached.
	LockShare
	// LockUpdate serialises creator-only writes and the cascade.
	LockUpdate
)

func (l Lock) clause() string {
	switch l {
	case LockShare:
		return " FOR SHARE OF p"
	case LockUpdate:
		return " FOR UPDATE OF p"
	default:
		return ""
	}
}
