package services

import (
	"log"

	"github.com/curaious/synergy/internal/api/authenticator"
	"github.com/curaious/synergy/internal/config"
	"github.com/curaious/synergy/internal/db"
	"github.com/curaious/synergy/internal/services/cascade"
	"github.com/curaious/synergy/internal/services/comment"
	"github.com/curaious/synergy/internal/services/membership"
	"github.com/curaious/synergy/internal/services/project"
	"github.com/curaious/synergy/internal/services/task"
	"github.com/curaious/synergy/internal/services/user"
	"github.com/jmoiron/sqlx"
)

type Services struct {
	DB      *sqlx.DB
	Auth    *authenticator.Authenticator
	User    *user.UserService
	Project *project.ProjectService
	Task    *task.TaskService
	Comment *comment.CommentService
	Cascade *cascade.Coordinator
}

func NewServices(conf *config.Config) *Services {
	auth, err := authenticator.New(conf)
	if err != nil {
		log.Fatal(err)
	}

	return New(db.NewConn(conf), auth)
}

// New wires the services around an open connection pool.
func New(conn *sqlx.DB, auth *authenticator.Authenticator) *Services {
	users := user.NewUserRepo(conn)
	members := membership.NewMembershipRepo(conn)
	projects := project.NewProjectRepo(conn)
	tasks := task.NewTaskRepo(conn)
	comments := comment.NewCommentRepo(conn)

	coordinator := cascade.NewCoordinator(conn, projects, members, tasks, comments)

	return &Services{
		DB:      conn,
		Auth:    auth,
		User:    user.NewUserService(users, auth),
		Project: project.NewProjectService(conn, projects, members, users, coordinator),
		Task:    task.NewTaskService(conn, tasks, members, users),
		Comment: comment.NewCommentService(conn, comments, members),
		Cascade: coordinator,
	}
}
