package migrations

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/template"
	"time"

	"github.com/curaious/synergy/internal/db"
	"github.com/jmoiron/sqlx"
)

// migration is one schema version. done is true once its version is
// recorded in metadata.schema_migrations.
type migration struct {
	version string
	done    bool
	up      func(*sqlx.Tx) error
	down    func(*sqlx.Tx) error
}

// Migrator applies and reverts the registered migrations against one
// database, tracking completed versions in metadata.schema_migrations.
type Migrator struct {
	db         *sqlx.DB
	versions   []string
	migrations map[string]*migration
}

// registry collects migrations from the init() funcs of this package.
var registry = &Migrator{
	versions:   []string{},
	migrations: map[string]*migration{},
}

// NewMigrator loads the completed versions from metadata.schema_migrations.
func NewMigrator(conn *sqlx.DB) (*Migrator, error) {
	m := &Migrator{
		db:         conn,
		versions:   registry.versions,
		migrations: map[string]*migration{},
	}
	for v, mg := range registry.migrations {
		cp := *mg
		m.migrations[v] = &cp
	}

	_, err := m.db.Exec(`CREATE SCHEMA IF NOT EXISTS metadata`)
	if err != nil {
		slog.Error("Unable to create metadata schema", slog.Any("error", err))
		return nil, err
	}

	_, err = m.db.Exec(`CREATE TABLE IF NOT EXISTS metadata.schema_migrations (
		version varchar(255)
	);`)
	if err != nil {
		slog.Error("Unable to create `schema_migrations` table", slog.Any("error", err))
		return nil, err
	}

	rows, err := m.db.Query("SELECT version FROM metadata.schema_migrations;")
	if err != nil {
		slog.Error("Unable to fetch completed migrations", slog.Any("error", err))
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var version string
		err := rows.Scan(&version)
		if err != nil {
			slog.Error("Unable to read row", slog.Any("error", err))
			return nil, err
		}

		if m.migrations[version] != nil {
			m.migrations[version].done = true
		}
	}

	return m, rows.Err()
}

// addMigration keeps versions sorted as migrations register themselves.
func (m *Migrator) addMigration(mg *migration) {
	m.migrations[mg.version] = mg

	index := 0

	for index < len(m.versions) {
		if m.versions[index] > mg.version {
			break
		}

		index++
	}

	m.versions = append(m.versions, mg.version)
	copy(m.versions[index+1:], m.versions[index:])
	m.versions[index] = mg.version
}

// MigrationStatus logs every known version as completed or pending.
func (m *Migrator) MigrationStatus() error {
	for _, v := range m.versions {
		mg := m.migrations[v]

		if mg.done {
			slog.Info(fmt.Sprintf("Migration %s... completed", v))
		} else {
			slog.Info(fmt.Sprintf("Migration %s... pending", v))
		}
	}

	return nil
}

// CreateMigration writes an empty migration file from template.txt.
func (m *Migrator) CreateMigration(title string) error {
	var out bytes.Buffer

	version := time.Now().Format("20060102150405")

	in := struct {
		Version string
		Title   string
	}{
		Version: version,
		Title:   title,
	}

	t := template.Must(template.ParseFiles("./internal/migrations/template.txt"))
	err := t.Execute(&out, in)
	if err != nil {
		slog.Error("Unable to execute migration template", slog.Any("error", err))
		return err
	}

	f, err := os.Create(fmt.Sprintf("./internal/migrations/%s_%s.go", version, title))
	if err != nil {
		slog.Error("Unable to create the migration file", slog.Any("error", err))
		return err
	}
	defer f.Close()

	if _, err := f.WriteString(out.String()); err != nil {
		slog.Error("Unable to write to the migration file", slog.Any("error", err))
		return err
	}

	slog.Info("Generated new migration file...", slog.String("filename", f.Name()))
	return nil
}

// Up runs pending migrations in one transaction. step > 0 limits how many run.
func (m *Migrator) Up(step int) error {
	return m.apply(m.versions, step, false, func(tx *sqlx.Tx, mg *migration) error {
		if err := mg.up(tx); err != nil {
			return err
		}
		_, err := tx.Exec("INSERT INTO metadata.schema_migrations VALUES($1);", mg.version)
		return err
	})
}

// Down reverts completed migrations, newest first. step > 0 limits how many run.
func (m *Migrator) Down(step int) error {
	return m.apply(reverse(m.versions), step, true, func(tx *sqlx.Tx, mg *migration) error {
		if err := mg.down(tx); err != nil {
			return err
		}
		_, err := tx.Exec("DELETE FROM metadata.schema_migrations WHERE version = $1;", mg.version)
		return err
	})
}

// apply runs fn for up to step migrations in versions whose done flag equals
// done, all in one transaction, and flips their flags after commit.
func (m *Migrator) apply(versions []string, step int, done bool, fn func(*sqlx.Tx, *migration) error) error {
	direction := "up"
	if done {
		direction = "down"
	}

	var applied []string
	err := db.WithTx(context.Background(), m.db, func(tx *sqlx.Tx) error {
		for _, v := range versions {
			if step > 0 && len(applied) == step {
				break
			}

			mg := m.migrations[v]
			if mg.done != done {
				continue
			}

			l := slog.With(slog.String("version", mg.version), slog.String("direction", direction))
			l.Info("Running migration...")
			if err := fn(tx, mg); err != nil {
				l.Error("Error occurred while running migration", slog.Any("error", err))
				return fmt.Errorf("migration %s %s: %w", mg.version, direction, err)
			}

			applied = append(applied, v)
			l.Info("Finished migration...")
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, v := range applied {
		m.migrations[v].done = !done
	}

	return nil
}

func reverse(arr []string) []string {
	out := make([]string, len(arr))
	for i, v := range arr {
		out[len(arr)-i-1] = v
	}
	return out
}
