package store

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"marketbot/pkg/domain"
)

const defaultFallbackLimit = 50

type GormStoreOptions struct {
	TierLimits    map[domain.SubscriptionStatus]int
	FallbackLimit int
}

type GormStoreOption func(*GormStoreOptions)

// WithTierLimits sets the tier → default quota table.
func WithTierLimits(limits map[domain.SubscriptionStatus]int) GormStoreOption {
	return func(opts *GormStoreOptions) {
		opts.TierLimits = limits
	}
}

// WithFallbackLimit sets the quota used for unrecognized tiers.
func WithFallbackLimit(limit int) GormStoreOption {
	return func(opts *GormStoreOptions) {
		opts.FallbackLimit = limit
	}
}

// GormStore implements Store using GORM + SQLite.
type GormStore struct {
	db            *gorm.DB
	tierLimits    map[domain.SubscriptionStatus]int
	fallbackLimit int
}

// NewGormStore opens the database file and runs auto-migrations. The store
// holds a single shared connection; concurrent writers are serialized by
// SQLite's write-ahead log, not by application-level locking.
func NewGormStore(path string, options ...GormStoreOption) (*GormStore, error) {
	opts := GormStoreOptions{}
	for _, option := range options {
		if option != nil {
			option(&opts)
		}
	}
	if opts.TierLimits == nil {
		opts.TierLimits = map[domain.SubscriptionStatus]int{
			domain.SubscriptionFree:    5,
			domain.SubscriptionPremium: 500,
		}
	}
	if opts.FallbackLimit <= 0 {
		opts.FallbackLimit = defaultFallbackLimit
	}
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path required")
	}

	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if err := db.Exec("PRAGMA busy_timeout=5000").Error; err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if err := db.Exec("PRAGMA foreign_keys=ON").Error; err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	// One shared connection for the whole process.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(0)

	// AutoMigrate is idempotent and adds missing columns forward.
	if err := db.AutoMigrate(
		&UserModel{},
		&ChatHistoryModel{},
		&DocumentModel{},
		&PageModel{},
		&PaymentModel{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &GormStore{
		db:            db,
		tierLimits:    opts.TierLimits,
		fallbackLimit: opts.FallbackLimit,
	}, nil
}

// Close releases the underlying connection.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
