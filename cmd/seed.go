package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/curaious/synergy/internal/config"
	"github.com/curaious/synergy/internal/services"
	"github.com/curaious/synergy/internal/services/comment"
	"github.com/curaious/synergy/internal/services/project"
	"github.com/curaious/synergy/internal/services/task"
	"github.com/curaious/synergy/internal/services/user"
	"github.com/spf13/cobra"
)

const seedPassword = "password123"

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate the database with demo data",
	Long:  "Creates the demo users john@example.com and jane@example.com (password \"password123\")\nand a shared \"Sample Project\" with two tasks and a comment.",
	Run: func(cmd *cobra.Command, args []string) {
		svc := services.NewServices(config.ReadConfig())
		defer svc.DB.Close()

		if err := seed(cmd.Context(), svc); err != nil {
			fmt.Println("Unable to seed database", err)
			os.Exit(1)
		}
	},
}

func seed(ctx context.Context, svc *services.Services) error {
	john, err := seedUser(ctx, svc, "John Doe", "john@example.com")
	if err != nil {
		return err
	}
	jane, err := seedUser(ctx, svc, "Jane Smith", "jane@example.com")
	if err != nil {
		return err
	}

	description := "This is a sample project for testing"
	p, err := svc.Project.Create(ctx, john.ID, &project.CreateProjectRequest{
		Name:        "Sample Project",
		Description: &description,
	})
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	if _, _, err := svc.Project.AddMember(ctx, john.ID, p.ID, jane.Email); err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}

	tasks := []task.CreateTaskRequest{
		{Title: "Setup database", Description: ptr("Initialize the database with proper schema"), AssigneeID: &john.ID, Status: "Done"},
		{Title: "Create API endpoints", Description: ptr("Implement all necessary API endpoints"), AssigneeID: &jane.ID, Status: "In Progress"},
	}
	for i := range tasks {
		if _, err := svc.Task.Create(ctx, john.ID, p.ID, &tasks[i]); err != nil {
			return fmt.Errorf("failed to create task %q: %w", tasks[i].Title, err)
		}
	}

	if _, err := svc.Comment.Create(ctx, john.ID, p.ID, &comment.CreateCommentRequest{
		Message: "Great progress on the project setup!",
	}); err != nil {
		return fmt.Errorf("failed to post comment: %w", err)
	}

	slog.Info("Seeded database", slog.String("project_id", p.ID.String()))
	return nil
}

func ptr[T any](v T) *T { return &v }

// seedUser registers a demo user, reusing the account when it already exists.
func seedUser(ctx context.Context, svc *services.Services, name, email string) (*user.User, error) {
	u, err := svc.User.Register(ctx, &user.RegisterRequest{Name: name, Email: email, Password: seedPassword})
	if errors.Is(err, user.ErrDuplicateEmail) {
		return svc.User.GetByEmail(ctx, email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", email, err)
	}
	return u, nil
}

// Register the "seed" command
func init() {
	rootCmd.AddCommand(seedCmd)
}
