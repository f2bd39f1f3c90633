package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"parkwise/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupService(t *testing.T) {
	db := setupTestDB(t)
	seedParking(t, db, "B1", 3, 1)

	storagePath := filepath.Join(t.TempDir(), "backups")
	cfg := config.BackupConfig{Enabled: true, StoragePath: storagePath, RetentionDays: 1}
	logger := zerolog.Nop()
	s := NewBackupService(db, cfg, &logger)

	path, err := s.PerformBackup(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, path)

	restored, err := NewDB(path, &logger)
	require.NoError(t, err)
	defer restored.Close()
	p, err := restored.GetParking(context.Background(), "B1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.TotalSpaces)

	t.Run("CleanupOldBackups", func(t *testing.T) {
		oldFile := filepath.Join(storagePath, "parkwise_20000101_000000.db")
		foreign := filepath.Join(storagePath, "keep-me.db")
		require.NoError(t, os.WriteFile(oldFile, []byte("old"), 0o644))
		require.NoError(t, os.WriteFile(foreign, []byte("x"), 0o644))

		oldTime := time.Now().AddDate(0, 0, -2)
		require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))
		require.NoError(t, os.Chtimes(foreign, oldTime, oldTime))

		s.CleanupOldBackups()

		assert.NoFileExists(t, oldFile)
		assert.FileExists(t, foreign)
		assert.FileExists(t, path)
	})
}

func TestBackupService_Disabled(_ *testing.T) {
	logger := zerolog.Nop()
	s := NewBackupService(nil, config.BackupConfig{Enabled: false}, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Start(ctx)
}
