package config

import (
	"fmt"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"

	"drive_mapping/internal/logger"
	"drive_mapping/internal/models"
)

// InitDB opens the database selected by the settings and migrates the schema.
// The handle is returned to the caller and passed explicitly to every component.
func InitDB(s Settings) *gorm.DB {
	var (
		db  *gorm.DB
		err error
	)
	switch s.DBDriver {
	case "sqlite":
		db, err = OpenSQLite(s.SQLitePath)
	default:
		db, err = OpenPostgres()
	}
	if err != nil {
		logrus.Fatalf("failed to connect to database: %v", err)
	}

	if err := Migrate(db); err != nil {
		logrus.Fatalf("auto-migration failed: %v", err)
	}
	return db
}

// OpenPostgres connects through lib/pq using the DB_* environment variables.
func OpenPostgres() (*gorm.DB, error) {
	host := getEnv("DB_HOST", "localhost")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "postgres")
	password := getEnv("DB_PASSWORD", "password")
	dbname := getEnv("DB_NAME", "drive_mapping")
	sslmode := getEnv("DB_SSLMODE", "disable")
	timezone := getEnv("DB_TIMEZONE", "Asia/Tokyo")

	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		host, user, password, dbname, port, sslmode, timezone,
	)

	return gorm.Open(postgres.New(postgres.Config{
		DriverName: "postgres",
		DSN:        dsn,
	}), &gorm.Config{Logger: logger.GormLogger()})
}

// OpenSQLite opens a pure-Go SQLite database at path.
func OpenSQLite(path string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        path,
	}, &gorm.Config{Logger: logger.GormLogger()})
}

// Migrate creates or updates every table the application uses.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Route{},
		&models.RoutePrefecture{},
		&models.RoutePoint{},
		&models.RoutePhoto{},
		&models.RouteLike{},
	)
}
