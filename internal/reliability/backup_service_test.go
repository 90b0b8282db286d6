package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	testutil "github.com/aristath/spreadbook/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore is an in-memory ObjectStore
type memoryStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	failWrite bool
}

func newMemoryStore(keys ...string) *memoryStore {
	s := &memoryStore{objects: make(map[string][]byte)}
	for _, k := range keys {
		s.objects[k] = []byte("x")
	}
	return s
}

func (s *memoryStore) Upload(_ context.Context, key string, body io.Reader) error {
	if s.failWrite {
		return errors.New("bucket unavailable")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *memoryStore) List(_ context.Context, _ string) ([]ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ObjectInfo, 0, len(s.objects))
	for k, v := range s.objects {
		out = append(out, ObjectInfo{Key: k, SizeBytes: int64(len(v))})
	}
	return out, nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memoryStore) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func readArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	files := make(map[string][]byte)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		content, err := io.ReadAll(tr)
		require.NoError(t, err)
		files[hdr.Name] = content
	}
	return files
}

func TestBackupService_CreateAndUploadBackup(t *testing.T) {
	db := testutil.NewStrategyTestDB(t)
	ctx := context.Background()
	_, err := db.ExecContext(ctx, `INSERT INTO quote_cache (cache_key, kind, data, expires_at, stored_at) VALUES ('k', 'quote', x'00', 0, 0)`)
	require.NoError(t, err)

	store := newMemoryStore()
	service := NewBackupService(db, store, t.TempDir(), zerolog.Nop())
	service.now = func() time.Time { return time.Date(2025, 1, 21, 14, 30, 22, 0, time.UTC) }

	info, err := service.CreateAndUploadBackup(ctx)
	require.NoError(t, err)
	assert.Equal(t, "spreadbook-backup-2025-01-21-143022.tar.gz", info.Filename)
	require.Equal(t, []string{info.Filename}, store.keys())

	files := readArchive(t, store.objects[info.Filename])
	require.Contains(t, files, "strategy.db")
	require.Contains(t, files, metadataFile)

	var metadata BackupMetadata
	require.NoError(t, json.Unmarshal(files[metadataFile], &metadata))
	assert.Equal(t, "strategy", metadata.Database.Name)
	assert.Equal(t, int64(len(files["strategy.db"])), metadata.Database.SizeBytes)
	assert.Equal(t, fmt.Sprintf("sha256:%x", sha256.Sum256(files["strategy.db"])), metadata.Database.Checksum)
}

func TestBackupService_UploadFailure(t *testing.T) {
	db := testutil.NewStrategyTestDB(t)
	store := newMemoryStore()
	store.failWrite = true

	_, err := NewBackupService(db, store, t.TempDir(), zerolog.Nop()).CreateAndUploadBackup(context.Background())
	assert.ErrorContains(t, err, "bucket unavailable")
}

func TestBackupService_ListAndRotate(t *testing.T) {
	store := newMemoryStore(
		"spreadbook-backup-2025-01-20-020000.tar.gz",
		"spreadbook-backup-2025-01-10-020000.tar.gz",
		"spreadbook-backup-2024-12-01-020000.tar.gz",
		"spreadbook-backup-2024-11-01-020000.tar.gz",
		"spreadbook-backup-2024-10-01-020000.tar.gz",
		"spreadbook-backup-garbage.tar.gz",
		"unrelated.txt",
	)
	service := NewBackupService(nil, store, t.TempDir(), zerolog.Nop())
	service.now = func() time.Time { return time.Date(2025, 1, 21, 2, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	backups, err := service.ListBackups(ctx)
	require.NoError(t, err)
	require.Len(t, backups, 5)
	assert.Equal(t, "spreadbook-backup-2025-01-20-020000.tar.gz", backups[0].Filename)
	assert.EqualValues(t, 24, backups[0].AgeHours)

	deleted, err := service.RotateOldBackups(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	// The three newest are kept even though 2024-12-01 is past retention.
	deleted, err = service.RotateOldBackups(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.NotContains(t, store.keys(), "spreadbook-backup-2024-11-01-020000.tar.gz")
	assert.NotContains(t, store.keys(), "spreadbook-backup-2024-10-01-020000.tar.gz")
	assert.Contains(t, store.keys(), "spreadbook-backup-2024-12-01-020000.tar.gz")
	assert.Contains(t, store.keys(), "unrelated.txt")
}
