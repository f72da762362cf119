package main

import (
	"fmt"
	"net/url"
	"os"

	"github.com/aquariusluo/creditscore/common"
	"github.com/golang-migrate/migrate"
	_ "github.com/golang-migrate/migrate/database/postgres"
	_ "github.com/golang-migrate/migrate/source/file"
	dbconf "github.com/kthomas/go-db-config"
)

const defaultMigrationsPath = "./ops/migrations"

func main() {
	m, err := migrate.New(migrationsSource(), databaseURL(dbconf.GetDBConfig()))
	if err != nil {
		common.Log.Panicf("failed to initialize migrations; %s", err.Error())
	}
	defer m.Close()

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		common.Log.Panicf("failed to apply migrations; %s", err.Error())
	}

	version, dirty, _ := m.Version()
	common.Log.Debugf("database schema at version %d; dirty: %v", version, dirty)
}

func migrationsSource() string {
	path := os.Getenv("MIGRATIONS_PATH")
	if path == "" {
		path = defaultMigrationsPath
	}
	return fmt.Sprintf("file://%s", path)
}

// databaseURL builds the migrate DSN from the same DATABASE_* config the api
// binary connects with
func databaseURL(cfg *dbconf.DBConfig) string {
	dsn := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.DatabaseUser, cfg.DatabasePassword),
		Host:   fmt.Sprintf("%s:%d", cfg.DatabaseHost, cfg.DatabasePort),
		Path:   cfg.DatabaseName,
	}

	query := url.Values{}
	query.Set("sslmode", cfg.DatabaseSSLMode)
	dsn.RawQuery = query.Encode()

	return dsn.String()
}
