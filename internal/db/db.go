package db

import (
	"log"
	"log/slog"

	"github.com/curaious/synergy/internal/config"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func NewConn(conf *config.Config) *sqlx.DB {
	slog.Info("Connecting to database", slog.String("host", conf.DB_HOST), slog.String("database", conf.DB_NAME))

	// Connect to database
	db, err := sqlx.Open("postgres", conf.DatabaseURL())
	if err != nil {
		log.Fatal(err)
	}
	err = db.Ping()
	if err != nil {
		log.Fatalln("Unable to connect to database", err.Error())
	}

	slog.Info("Connected to database")

	return db
}
