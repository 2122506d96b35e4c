package project

import (
	"time"

	"github.com/curaious/synergy/internal/services/membership"
	"github.com/google/uuid"
)

// Project is a workspace that tasks, comments and members belong to.
type Project struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	Description *string    `json:"description,omitempty" db:"description"`
	Deadline    *time.Time `json:"deadline,omitempty" db:"deadline"`
	CreatedBy   uuid.UUID  `json:"created_by" db:"created_by"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// ProjectDetails is a project as shown to its members.
type ProjectDetails struct {
	Project
	CreatedByName string               `json:"created_by_name" db:"created_by_name"`
	TaskCount     int                  `json:"task_count" db:"task_count"`
	Members       []uuid.UUID          `json:"members" db:"-"`
	MemberDetails []*membership.Member `json:"member_details" db:"-"`
}

func (d *ProjectDetails) setMembers(members []*membership.Member) {
	d.Members = make([]uuid.UUID, 0, len(members))
	d.MemberDetails = members
	if d.MemberDetails == nil {
		d.MemberDetails = []*membership.Member{}
	}
	for _, m := range members {
		d.Members = append(d.Members, m.UserID)
	}
}

// CreateProjectRequest captures payload for creating a project
type CreateProjectRequest struct {
	Name        string     `json:"name"`
	Description *string    `json:"description,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

// UpdateProjectRequest captures payload for updating a project. Nil fields
// keep their current value.
type UpdateProjectRequest struct {
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

// AddMemberRequest captures payload for adding a member by email
type AddMemberRequest struct {
	Email string `json:"email"`
}

// CascadeReport counts what a project deletion removed.
type CascadeReport struct {
	ProjectID uuid.UUID `json:"project_id"`
	Tasks     int       `json:"tasks"`
	Comments  int       `json:"comments"`
	Members   int       `json:"members"`
}
