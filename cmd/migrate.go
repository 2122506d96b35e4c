package cmd

import (
	"fmt"
	"os"

	"github.com/curaious/synergy/internal/config"
	"github.com/curaious/synergy/internal/db"
	"github.com/curaious/synergy/internal/migrations"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run Migrations",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(cmd.Help())
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display status of each migration",
	Run: func(cmd *cobra.Command, args []string) {
		exitOnErr("Unable to fetch migration status", newMigrator().MigrationStatus())
	},
}

var migrateCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new empty migration file",
	Run: func(cmd *cobra.Command, args []string) {
		name, err := cmd.Flags().GetString("name")
		exitOnErr("Unable to read flag `name`", err)
		if name == "" {
			exitOnErr("Unable to create new migration file", fmt.Errorf("--name is required"))
		}

		exitOnErr("Unable to create new migration file", newMigrator().CreateMigration(name))
	},
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Run up migrations",
	Long:  "Run all pending 'up' migrations by default.\nIf step is provided, it will run `N` 'up' migrations.",
	Run: func(cmd *cobra.Command, args []string) {
		step, err := cmd.Flags().GetInt("step")
		exitOnErr("Unable to read flag `step`", err)

		exitOnErr("Unable to run `up` migrations", newMigrator().Up(step))
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Run down migrations",
	Long:  "Run all 'down' migrations by default.\nIf step is provided, it will run `N` 'down' migrations.",
	Run: func(cmd *cobra.Command, args []string) {
		step, err := cmd.Flags().GetInt("step")
		exitOnErr("Unable to read flag `step`", err)

		exitOnErr("Unable to run `down` migrations", newMigrator().Down(step))
	},
}

// newMigrator opens a pool from the environment. The process exits on failure.
func newMigrator() *migrations.Migrator {
	conn := db.NewConn(config.ReadConfig())

	migrator, err := migrations.NewMigrator(conn)
	exitOnErr("Unable to initialize migrator", err)

	return migrator
}

func exitOnErr(msg string, err error) {
	if err != nil {
		fmt.Println(msg, err)
		os.Exit(1)
	}
}

// Register the "migrate" command
func init() {
	migrateCreateCmd.Flags().StringP("name", "n", "", "Name for the migration")
	migrateCmd.AddCommand(migrateCreateCmd)

	migrateUpCmd.Flags().IntP("step", "s", 0, "Number of migrations to execute")
	migrateCmd.AddCommand(migrateUpCmd)

	migrateDownCmd.Flags().IntP("step", "s", 0, "Number of migrations to execute")
	migrateCmd.AddCommand(migrateDownCmd)

	migrateCmd.AddCommand(migrateStatusCmd)

	rootCmd.AddCommand(migrateCmd)
}
