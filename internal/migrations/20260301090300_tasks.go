package migrations

import "github.com/jmoiron/sqlx"

func init() {
	registry.addMigration(&migration{
		version: "20260301090300",
		up:      mig_20260301090300_tasks_up,
		down:    mig_20260301090300_tasks_down,
	})
}

func mig_20260301090300_tasks_up(tx *sqlx.Tx) error {
	_, err := tx.Exec(`
        CREATE TABLE IF NOT EXISTS tasks (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            project_id UUID NOT NULL REFERENCES projects(id),
            title VARCHAR(255) NOT NULL,
            description TEXT,
            assignee_id UUID REFERENCES users(id),
            due_date TIMESTAMP WITH TIME ZONE,
            status VARCHAR(100) NOT NULL DEFAULT 'To-Do',
            created_by UUID NOT NULL REFERENCES users(id),
            created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
        );
    `)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
        CREATE INDEX IF NOT EXISTS idx_tasks_project_id ON tasks(project_id);
    `)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
        CREATE INDEX IF NOT EXISTS idx_tasks_assignee_id ON tasks(assignee_id);
    `)
	return err
}

func mig_20260301090300_tasks_down(tx *sqlx.Tx) error {
	_, err := tx.Exec(`DROP TABLE IF EXISTS tasks;`)
	return err
}
