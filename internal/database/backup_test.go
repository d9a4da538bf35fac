package database

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"venuebook/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileDB(t *testing.T) (*DB, string) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, dbPath
}

func TestBackupService(t *testing.T) {
	db, dbPath := newFileDB(t)
	seedCatalog(t, db)

	storagePath := filepath.Join(t.TempDir(), "backups")
	cfg := config.BackupConfig{
		Enabled:       true,
		StoragePath:   storagePath,
		RetentionDays: 1,
	}
	logger := zerolog.Nop()
	s := NewBackupService(dbPath, cfg, &logger)

	var snapshot string
	t.Run("PerformBackup", func(t *testing.T) {
		path, err := s.PerformBackup(context.Background())
		require.NoError(t, err)
		snapshot = path
		assert.True(t, strings.HasPrefix(filepath.Base(path), "ledger_"))

		restored, err := NewDB(path, &logger)
		require.NoError(t, err)
		defer restored.Close()

		v, err := restored.GetVenue(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, "Court A", v.Name)
	})

	t.Run("CleanupOldBackups", func(t *testing.T) {
		oldFile := filepath.Join(storagePath, "ledger_old.db")
		require.NoError(t, os.WriteFile(oldFile, []byte("old"), 0o644))
		foreign := filepath.Join(storagePath, "notes.txt")
		require.NoError(t, os.WriteFile(foreign, []byte("keep"), 0o644))

		oldTime := time.Now().AddDate(0, 0, -2)
		require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))
		require.NoError(t, os.Chtimes(foreign, oldTime, oldTime))

		s.CleanupOldBackups()

		_, err := os.Stat(oldFile)
		assert.True(t, os.IsNotExist(err))
		_, err = os.Stat(foreign)
		assert.NoError(t, err, "files the service did not create are left alone")
		_, err = os.Stat(snapshot)
		assert.NoError(t, err)
	})
}

func TestBackupService_Fallback(t *testing.T) {
	_, dbPath := newFileDB(t)
	logger := zerolog.Nop()
	s := NewBackupService(dbPath, config.BackupConfig{Enabled: true, StoragePath: t.TempDir()}, &logger)

	target := filepath.Join(t.TempDir(), "copy.db")
	require.NoError(t, s.copyFile(target))

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestBackupService_Loop(t *testing.T) {
	_, dbPath := newFileDB(t)
	logger := zerolog.Nop()
	storage := filepath.Join(t.TempDir(), "loop")
	s := NewBackupService(dbPath, config.BackupConfig{Enabled: true, StoragePath: storage, Schedule: "10ms"}, &logger)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	s.Start(ctx)

	files, _ := os.ReadDir(storage)
	assert.NotEmpty(t, files)
}

func TestBackupService_Disabled(_ *testing.T) {
	logger := zerolog.Nop()
	s := NewBackupService("any", config.BackupConfig{Enabled: false}, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Start(ctx)
}

func TestBackupService_StorageError(t *testing.T) {
	tmpFile, err := os.CreateTemp(t.TempDir(), "notadir")
	require.NoError(t, err)
	tmpFile.Close()

	logger := zerolog.Nop()
	s := NewBackupService(":memory:", config.BackupConfig{Enabled: true, StoragePath: tmpFile.Name() + "/subdir"}, &logger)

	_, err = s.PerformBackup(context.Background())
	assert.Error(t, err)
}
