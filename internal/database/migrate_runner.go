package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"blogicum/internal/middleware"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// migrationLockKey serialises concurrent `migrate up` runs on PostgreSQL.
const migrationLockKey = 0x626c6f67 // "blog"

// SchemaHistory is one applied SQL migration.
type SchemaHistory struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

func (SchemaHistory) TableName() string {
	return "blogicum_schema_history"
}

// MigrationStore records which embedded migrations the database has seen.
type MigrationStore interface {
	Applied(ctx context.Context) ([]int, error)
	Apply(ctx context.Context, m Migration) error
	Revert(ctx context.Context, m Migration) error
}

type migrationStore struct {
	db *gorm.DB
}

func NewMigrationStore(db *gorm.DB) MigrationStore {
	return &migrationStore{db: db}
}

// Applied lists recorded versions in ascending order. A missing history table means none.
func (s *migrationStore) Applied(ctx context.Context) ([]int, error) {
	var versions []int
	err := s.db.WithContext(ctx).Model(&SchemaHistory{}).Order("version").Pluck("version", &versions).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || isMissingTableError(err) {
			return []int{}, nil
		}
		return nil, fmt.Errorf("read schema history: %w", err)
	}
	return versions, nil
}

// Apply runs the up script and records it in one transaction. A version another
// runner recorded first is skipped.
func (s *migrationStore) Apply(ctx context.Context, m Migration) error {
	skipped := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockHistory(tx); err != nil {
			return err
		}
		var seen int64
		if err := tx.Model(&SchemaHistory{}).Where("version = ?", m.Version).Count(&seen).Error; err != nil {
			return fmt.Errorf("check schema history: %w", err)
		}
		if seen > 0 {
			skipped = true
			return nil
		}
		if err := tx.Exec(m.UpScript).Error; err != nil {
			return fmt.Errorf("migration %s: %w", m.String(), err)
		}
		return tx.Create(&SchemaHistory{Version: m.Version, Name: m.Name}).Error
	})
	if err != nil {
		return err
	}
	if skipped {
		middleware.Logger.InfoContext(ctx, "Migration recorded by another runner", slog.Int("version", m.Version))
		return nil
	}
	middleware.Logger.InfoContext(ctx, "Migration applied", slog.Int("version", m.Version), slog.String("name", m.Name))
	return nil
}

// Revert runs the down script and drops the history row in one transaction.
func (s *migrationStore) Revert(ctx context.Context, m Migration) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockHistory(tx); err != nil {
			return err
		}
		if strings.TrimSpace(m.DownScript) != "" {
			if err := tx.Exec(m.DownScript).Error; err != nil {
				return fmt.Errorf("revert %s: %w", m.String(), err)
			}
		}
		res := tx.Where("version = ?", m.Version).Delete(&SchemaHistory{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("migration %s is not applied", m.String())
		}
		return nil
	})
	if err != nil {
		return err
	}
	middleware.Logger.InfoContext(ctx, "Migration reverted", slog.Int("version", m.Version), slog.String("name", m.Name))
	return nil
}

// lockHistory takes a transaction-scoped advisory lock. Other dialects rely on the
// transaction alone.
func lockHistory(tx *gorm.DB) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", migrationLockKey).Error; err != nil {
		return fmt.Errorf("lock schema history: %w", err)
	}
	return nil
}

func isMissingTableError(err error) bool {
	msg := err.Error()
	return (strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist")) ||
		strings.Contains(msg, "no such table")
}

// pendingMigrations returns registered migrations missing from applied, in version
// order. Applied versions this binary does not know about are an error: the database
// is newer than the code.
func pendingMigrations(applied []int, registered []Migration) ([]Migration, error) {
	known := lo.Map(registered, func(m Migration, _ int) int { return m.Version })
	if unknown := lo.Without(applied, known...); len(unknown) > 0 {
		slices.Sort(unknown)
		labels := lo.Map(unknown, func(v int, _ int) string { return fmt.Sprintf("%06d", v) })
		return nil, fmt.Errorf("database has migrations this build does not ship: %s", strings.Join(labels, ", "))
	}

	pending := lo.Filter(registered, func(m Migration, _ int) bool { return !slices.Contains(applied, m.Version) })
	slices.SortFunc(pending, func(a, b Migration) int { return a.Version - b.Version })
	return pending, nil
}

// RunMigrations creates the history table if needed and applies pending migrations.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&SchemaHistory{}); err != nil {
		return fmt.Errorf("create schema history: %w", err)
	}

	store := NewMigrationStore(db)
	applied, err := store.Applied(ctx)
	if err != nil {
		return err
	}
	pending, err := pendingMigrations(applied, GetMigrations())
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		middleware.Logger.DebugContext(ctx, "Schema is up to date", slog.Int("applied", len(applied)))
		return nil
	}

	for _, m := range pending {
		if err := store.Apply(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// RollbackMigration reverts one applied migration.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	m := GetMigrationByVersion(version)
	if m == nil {
		return fmt.Errorf("no migration %06d in this build", version)
	}
	return NewMigrationStore(db).Revert(ctx, *m)
}
