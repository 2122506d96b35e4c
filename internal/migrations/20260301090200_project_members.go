package migrations

import "github.com/jmoiron/sqlx"

func init() {
	registry.addMigration(&migration{
		version: "20260301090200",
		up:      mig_20260301090200_project_members_up,
		down:    mig_20260301090200_project_members_down,
	})
}

func mig_20260301090200_project_members_up(tx *sqlx.Tx) error {
	// No ON DELETE CASCADE: membership rows are removed explicitly by the
	// project cascade, and a leftover row makes the project delete fail.
	_, err := tx.Exec(`
        CREATE TABLE IF NOT EXISTS project_members (
            project_id UUID NOT NULL REFERENCES projects(id),
            user_id UUID NOT NULL REFERENCES users(id),
            joined_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
            PRIMARY KEY (project_id, user_id)
        );
    `)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
        CREATE INDEX IF NOT EXISTS idx_project_members_user_id ON project_members(user_id);
    `)
	return err
}

func mig_20260301090200_project_members_down(tx *sqlx.Tx) error {
	_, err := tx.Exec(`DROP TABLE IF EXISTS project_members;`)
	return err
}
