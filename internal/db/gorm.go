package db

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqlitePrefix = "sqlite://"

type Config struct {
	DSN    string // postgres://... or sqlite://path (sqlite://file::memory: for tests)
	LogSQL bool
}

// OpenGorm picks the dialect from the DSN scheme. Unique violations surface as
// gorm.ErrDuplicatedKey on both dialects.
func OpenGorm(cfg Config) (*gorm.DB, error) {
	lvl := logger.Silent
	if cfg.LogSQL {
		lvl = logger.Info
	}
	gcfg := &gorm.Config{
		Logger: logger.New(slog.NewLogLogger(slog.Default().Handler(), slog.LevelDebug), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  lvl,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		}),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}

	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(cfg.DSN, sqlitePrefix):
		dialector = sqlite.Open(strings.TrimPrefix(cfg.DSN, sqlitePrefix))
	case strings.HasPrefix(cfg.DSN, "postgres://"), strings.HasPrefix(cfg.DSN, "postgresql://"), strings.Contains(cfg.DSN, "host="):
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("db: unsupported DSN %q", redact(cfg.DSN))
	}
	return gorm.Open(dialector, gcfg)
}

// redact drops credentials so a DSN can be logged.
func redact(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	return dsn[:scheme+3] + "***" + dsn[at:]
}
