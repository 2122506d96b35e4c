package comment

import (
	"time"

	"github.com/google/uuid"
)

type Comment struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ProjectID uuid.UUID `json:"project_id" db:"project_id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	UserName  string    `json:"user_name" db:"user_name"`
	Message   string    `json:"message" db:"message"`
	CreatedAt time.Time `json:"timestamp" db:"created_at"`
}

// CreateCommentRequest captures payload for posting a comment
type CreateCommentRequest struct {
	Message string `json:"message"`
}
