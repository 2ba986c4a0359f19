// Package repo holds the GORM persistence layer: connection setup for the
// supported drivers, the schema and the queries each service needs.
package repo

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/nicoiwnl/SGC-Maule/internal/domain"
)

// sqlitePragmas run on every pooled connection, not only the first one.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

type poolLimits struct {
	maxOpen  int
	idleTime time.Duration
	lifetime time.Duration
}

var (
	sqlitePool   = poolLimits{maxOpen: 10, idleTime: 5 * time.Minute, lifetime: 30 * time.Minute}
	postgresPool = poolLimits{maxOpen: 25, idleTime: 5 * time.Minute, lifetime: 30 * time.Minute}
)

// Open connects to driver ("sqlite", the default, or "postgres"). path names
// the sqlite file and dsn the postgres connection string.
func Open(driver, path, dsn string) (*gorm.DB, error) {
	var (
		dialector gorm.Dialector
		limits    poolLimits
	)
	switch driver {
	case "", "sqlite":
		// sqlite reports a missing directory as "out of memory (14)"
		if dir := filepath.Dir(path); dir != "." {
			if _, err := os.Stat(dir); err != nil {
				return nil, fmt.Errorf("sqlite directory: %w", err)
			}
		}
		dialector, limits = sqlite.Open(sqliteDSN(path)), sqlitePool
	case "postgres":
		dialector, limits = postgres.Open(dsn), postgresPool
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: newQueryLogger(200 * time.Millisecond)})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(limits.maxOpen)
	sqlDB.SetMaxIdleConns(limits.maxOpen)
	sqlDB.SetConnMaxIdleTime(limits.idleTime)
	sqlDB.SetConnMaxLifetime(limits.lifetime)
	return db, nil
}

func sqliteDSN(path string) string {
	q := url.Values{}
	for _, p := range sqlitePragmas {
		q.Add("_pragma", p)
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + q.Encode()
}

// Models lists every persisted type, parents before children.
func Models() []any {
	return []any{
		&domain.Department{},
		&domain.Person{},
		&domain.PersonDepartment{},
		&domain.User{},
		&domain.Staff{},
		&domain.Area{},
		&domain.Origin{},
		&domain.Guest{},
		&domain.Commitment{},
		&domain.CommitmentReferent{},
		&domain.Verifier{},
		&domain.CommitmentChange{},
		&domain.Meeting{},
		&domain.MeetingAttendee{},
		&domain.MeetingTopic{},
		&domain.MeetingCommitment{},
		&domain.Idempotency{},
	}
}

// AutoMigrate creates or updates the schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
