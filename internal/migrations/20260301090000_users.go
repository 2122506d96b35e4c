package migrations

import "github.com/jmoiron/sqlx"

func init() {
	registry.addMigration(&migration{
		version: "20260301090000",
		up:      mig_20260301090000_users_up,
		down:    mig_20260301090000_users_down,
	})
}

func mig_20260301090000_users_up(tx *sqlx.Tx) error {
	_, err := tx.Exec(`
        CREATE TABLE IF NOT EXISTS users (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            name VARCHAR(255) NOT NULL,
            email VARCHAR(255) NOT NULL,
            password_hash TEXT NOT NULL,
            avatar_url TEXT,
            created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
        );
    `)
	if err != nil {
		return err
	}

	// Emails compare case-sensitively, so a plain unique index is the constraint.
	_, err = tx.Exec(`
        CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email);
    `)
	return err
}

func mig_20260301090000_users_down(tx *sqlx.Tx) error {
	_, err := tx.Exec(`DROP TABLE IF EXISTS users;`)
	return err
}
