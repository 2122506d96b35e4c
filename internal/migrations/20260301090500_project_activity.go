package migrations

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

func init() {
	registry.addMigration(&migration{
		version: "20260301090500",
		up:      mig_20260301090500_project_activity_up,
		down:    mig_20260301090500_project_activity_down,
	})
}

var activityTables = []string{"tasks", "comments", "project_members"}

func mig_20260301090500_project_activity_up(tx *sqlx.Tx) error {
	// Payload is "<table>:<operation>:<project id>". Notifications are only
	// delivered when the writing transaction commits.
	_, err := tx.Exec(`
		CREATE OR REPLACE FUNCTION notify_project_activity()
		RETURNS TRIGGER AS $$
		DECLARE
			pid UUID;
		BEGIN
			IF TG_OP = 'DELETE' THEN
				pid := OLD.project_id;
			ELSE
				pid := NEW.project_id;
			END IF;
			PERFORM pg_notify('project_activity', TG_TABLE_NAME || ':' || TG_OP || ':' || pid::text);
			RETURN COALESCE(NEW, OLD);
		END;
		$$ LANGUAGE plpgsql;
	`)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		CREATE OR REPLACE FUNCTION notify_project_change()
		RETURNS TRIGGER AS $$
		DECLARE
			pid UUID;
		BEGIN
			IF TG_OP = 'DELETE' THEN
				pid := OLD.id;
			ELSE
				pid := NEW.id;
			END IF;
			PERFORM pg_notify('project_activity', TG_TABLE_NAME || ':' || TG_OP || ':' || pid::text);
			RETURN COALESCE(NEW, OLD);
		END;
		$$ LANGUAGE plpgsql;
	`)
	if err != nil {
		return err
	}

	for _, table := range activityTables {
		_, err = tx.Exec(fmt.Sprintf(`
			CREATE TRIGGER %[1]s_activity_notify
			AFTER INSERT OR UPDATE OR DELETE ON %[1]s
			FOR EACH ROW EXECUTE FUNCTION notify_project_activity();
		`, table))
		if err != nil {
			return err
		}
	}

	_, err = tx.Exec(`
		CREATE TRIGGER projects_activity_notify
		AFTER UPDATE OR DELETE ON projects
		FOR EACH ROW EXECUTE FUNCTION notify_project_change();
	`)
	return err
}

func mig_20260301090500_project_activity_down(tx *sqlx.Tx) error {
	_, err := tx.Exec(`DROP TRIGGER IF EXISTS projects_activity_notify ON projects;`)
	if err != nil {
		return err
	}

	for _, table := range activityTables {
		_, err = tx.Exec(fmt.Sprintf(`DROP TRIGGER IF EXISTS %[1]s_activity_notify ON %[1]s;`, table))
		if err != nil {
			return err
		}
	}

	_, err = tx.Exec(`DROP FUNCTION IF EXISTS notify_project_change();`)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`DROP FUNCTION IF EXISTS notify_project_activity();`)
	return err
}
