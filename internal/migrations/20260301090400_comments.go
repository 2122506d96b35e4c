package migrations

import "github.com/jmoiron/sqlx"

func init() {
	registry.addMigration(&migration{
		version: "20260301090400",
		up:      mig_20260301090400_comments_up,
		down:    mig_20260301090400_comments_down,
	})
}

func mig_20260301090400_comments_up(tx *sqlx.Tx) error {
	_, err := tx.Exec(`
        CREATE TABLE IF NOT EXISTS comments (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            project_id UUID NOT NULL REFERENCES projects(id),
            user_id UUID NOT NULL REFERENCES users(id),
            message TEXT NOT NULL,
            created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
        );
    `)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
        CREATE INDEX IF NOT EXISTS idx_comments_project_id ON comments(project_id, created_at);
    `)
	return err
}

func mig_20260301090400_comments_down(tx *sqlx.Tx) error {
	_, err := tx.Exec(`DROP TABLE IF EXISTS comments;`)
	return err
}
