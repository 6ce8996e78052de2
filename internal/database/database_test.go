package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"blogicum/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestSchemaPolicy(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.Config
		wantSQL  bool
		wantAuto bool
		wantErr  bool
	}{
		{"hybrid dev postgres", config.Config{Env: "development", DBDriver: "postgres"}, true, true, false},
		{"hybrid prod postgres", config.Config{Env: "production", DBDriver: "postgres"}, true, false, false},
		{"empty mode defaults to hybrid", config.Config{Env: "test", DBDriver: "postgres", DBSchemaMode: ""}, true, true, false},
		{"sql mode", config.Config{Env: "production", DBDriver: "postgres", DBSchemaMode: "sql"}, true, false, false},
		{"auto in prod refused", config.Config{Env: "production", DBDriver: "postgres", DBSchemaMode: "auto"}, false, false, true},
		{"auto in dev", config.Config{Env: "development", DBDriver: "postgres", DBSchemaMode: "auto"}, false, true, false},
		{"hybrid sqlite", config.Config{Env: "production", DBDriver: "sqlite"}, false, true, false},
		{"sql sqlite refused", config.Config{Env: "development", DBDriver: "sqlite", DBSchemaMode: "sql"}, false, false, true},
		{"unknown mode", config.Config{Env: "development", DBDriver: "postgres", DBSchemaMode: "yolo"}, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runSQL, runAuto, err := schemaPolicy(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, runSQL)
			assert.Equal(t, tt.wantAuto, runAuto)
		})
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	all := GetMigrations()
	require.NotEmpty(t, all)

	for i, m := range all {
		assert.NotEmpty(t, m.UpScript, m.String())
		assert.NotEmpty(t, m.DownScript, m.String())
		if i > 0 {
			assert.Greater(t, m.Version, all[i-1].Version)
		}
	}

	first := GetMigrationByVersion(1)
	require.NotNil(t, first)
	assert.Equal(t, "000001_init", first.String())
	assert.Contains(t, first.UpScript, "CREATE TABLE IF NOT EXISTS posts")
	assert.Nil(t, GetMigrationByVersion(999999))
}

func TestApplySchema_SQLiteAutoMigrate(t *testing.T) {
	db := openSQLite(t)
	cfg := &config.Config{Env: "test", DBDriver: "sqlite"}

	require.NoError(t, ApplySchema(context.Background(), db, cfg))

	for _, table := range []string{"users", "categories", "locations", "posts", "comments"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.False(t, db.Migrator().HasColumn("posts", "comment_count"))

	status, err := GetSchemaStatus(context.Background(), db, cfg)
	require.NoError(t, err)
	assert.False(t, status.WillRunSQL)
	assert.True(t, status.WillRunAutoMigrate)
}

func TestMigrationStore_ApplyAndRevert(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	require.NoError(t, db.AutoMigrate(&SchemaHistory{}))

	widgets := Migration{
		Version:    7,
		Name:       "widgets",
		UpScript:   "CREATE TABLE widgets (id INTEGER PRIMARY KEY)",
		DownScript: "DROP TABLE widgets",
	}
	store := NewMigrationStore(db)
	require.NoError(t, store.Apply(ctx, widgets))
	assert.True(t, db.Migrator().HasTable("widgets"))

	// A second apply of a recorded version is a no-op.
	require.NoError(t, store.Apply(ctx, widgets))

	applied, err := store.Applied(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{7}, applied)

	require.NoError(t, store.Revert(ctx, widgets))
	assert.False(t, db.Migrator().HasTable("widgets"))
	applied, err = store.Applied(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)

	err = store.Revert(ctx, Migration{Version: 7, Name: "widgets"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not applied")
}

func TestMigrationStore_FailedScriptIsNotRecorded(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	require.NoError(t, db.AutoMigrate(&SchemaHistory{}))

	store := NewMigrationStore(db)
	assert.Error(t, store.Apply(ctx, Migration{Version: 3, Name: "broken", UpScript: "CREATE TABLOID nope"}))

	applied, err := store.Applied(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestMigrationStore_RevertFailureKeepsRecord(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	require.NoError(t, db.AutoMigrate(&SchemaHistory{}))

	store := NewMigrationStore(db)
	m := Migration{Version: 4, Name: "gadgets", UpScript: "CREATE TABLE gadgets (id INTEGER)", DownScript: "DROP TABLOID gadgets"}
	require.NoError(t, store.Apply(ctx, m))
	assert.Error(t, store.Revert(ctx, m))

	applied, err := store.Applied(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{4}, applied)
}

func TestMigrationStore_MissingTable(t *testing.T) {
	db := openSQLite(t)
	applied, err := NewMigrationStore(db).Applied(context.Background())
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestPendingMigrations(t *testing.T) {
	registered := []Migration{{Version: 2, Name: "b"}, {Version: 1, Name: "a"}, {Version: 3, Name: "c"}}

	pending, err := pendingMigrations(nil, registered)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, versionsOf(pending))

	pending, err = pendingMigrations([]int{1, 3}, registered)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, versionsOf(pending))

	pending, err = pendingMigrations([]int{1, 2, 3}, registered)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = pendingMigrations([]int{1, 9, 5}, registered)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000005, 000009")
}

func TestRollbackMigration_UnknownVersion(t *testing.T) {
	err := RollbackMigration(context.Background(), openSQLite(t), 424242)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "424242")
}

func versionsOf(ms []Migration) []int {
	out := make([]int, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Version)
	}
	return out
}

func TestConfigurePool(t *testing.T) {
	db := openSQLite(t)
	cfg := &config.Config{DBMaxOpenConns: 10, DBMaxIdleConns: 5, DBConnMaxLifetimeMinutes: 15}

	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestDialector(t *testing.T) {
	d, err := Dialector(&config.Config{DBDriver: "sqlite", DBPath: ":memory:"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())

	d, err = Dialector(&config.Config{DBDriver: "postgres", DBHost: "db", DBPort: "5432"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	_, err = Dialector(&config.Config{DBDriver: "mysql"})
	assert.Error(t, err)
}

func TestCustomGormLogger_Trace(t *testing.T) {
	var buf bytes.Buffer
	l := NewGormLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	ctx := context.Background()
	fc := func() (string, int64) { return "SELECT 1", 1 }

	l.Trace(ctx, time.Now(), fc, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String())

	l.Trace(ctx, time.Now(), fc, errors.New("boom"))
	assert.Contains(t, buf.String(), "GORM query error")

	buf.Reset()
	l.Trace(ctx, time.Now().Add(-time.Second), fc, nil)
	assert.Contains(t, buf.String(), "GORM slow query")

	buf.Reset()
	l.LogMode(logger.Silent).Trace(ctx, time.Now(), fc, errors.New("boom"))
	assert.Empty(t, buf.String())
}
