package migrations

import "github.com/jmoiron/sqlx"

func init() {
	registry.addMigration(&migration{
		version: "20260301090100",
		up:      mig_20260301090100_projects_up,
		down:    mig_20260301090100_projects_down,
	})
}

func mig_20260301090100_projects_up(tx *sqlx.Tx) error {
	_, err := tx.Exec(`
        CREATE TABLE IF NOT EXISTS projects (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            name VARCHAR(255) NOT NULL,
            description TEXT,
            deadline TIMESTAMP WITH TIME ZONE,
            created_by UUID NOT NULL REFERENCES users(id),
            created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
        );
    `)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
        CREATE INDEX IF NOT EXISTS idx_projects_created_by ON projects(created_by);
    `)
	return err
}

func mig_20260301090100_projects_down(tx *sqlx.Tx) error {
	_, err := tx.Exec(`DROP TABLE IF EXISTS projects;`)
	return err
}
