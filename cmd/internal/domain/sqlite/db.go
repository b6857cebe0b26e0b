package sqlite

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"selfbooking/cmd/internal/config"
	"selfbooking/cmd/internal/domain/entity"
)

// Init opens the configured database and migrates the schema. SQLite is the
// default; DB_DRIVER=mysql switches to MySQL with the same schema.
func Init(cfg config.Database) (*gorm.DB, error) {
	dialector, err := open(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(&entity.User{}, &entity.Booking{}, &entity.BlackoutPeriod{})
	if err != nil {
		return nil, err
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 1
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxOpen)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func open(cfg config.Database) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return sqlite.Open(withParam(cfg.DSN, "_busy_timeout=5000")), nil
	case "mysql":
		// Conditional updates compare matched rows, not changed ones.
		return mysql.Open(withParam(cfg.DSN, "clientFoundRows=true")), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func withParam(dsn, param string) string {
	if dsn == ":memory:" {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + param
	}
	return dsn + "?" + param
}
