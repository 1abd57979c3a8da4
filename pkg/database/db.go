package database

import (
	"strings"
	"sync"

	"github.com/glebarez/sqlite"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	DB   *gorm.DB
	once sync.Once
)

// Connect opens the database described by the given URL. A "postgres://"
// URL goes to the pgx driver, a "sqlite://" URL to the embedded driver.
// An empty URL falls back to a local sqlite file for development.
func Connect(dbURL string) *gorm.DB {
	once.Do(func() {
		if dbURL == "" {
			dbURL = "sqlite://forumkarma.db"
			log.Warn("DATABASE_URL not set, defaulting to 'sqlite://forumkarma.db'")
		}

		var dialector gorm.Dialector
		switch {
		case strings.HasPrefix(dbURL, "postgres://"):
			dialector = postgres.Open(dbURL)
		case strings.HasPrefix(dbURL, "sqlite://"):
			dialector = sqlite.Open(strings.TrimPrefix(dbURL, "sqlite://"))
		default:
			log.Fatal("invalid DATABASE_URL: must start with 'postgres://' or 'sqlite://'")
		}

		db, err := gorm.Open(dialector, &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			log.Fatalf("failed to connect database: %v", err)
		}

		sqlDB, err := db.DB()
		if err != nil {
			log.Fatalf("failed to access database pool: %v", err)
		}
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)

		DB = db
	})

	return DB
}

func GetDB() *gorm.DB {
	return DB
}
