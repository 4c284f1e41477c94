package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/ledgerbridge/internal/domain"
	"github.com/aristath/ledgerbridge/internal/store"
)

type memoryBucket struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
}

func newMemoryBucket() *memoryBucket {
	return &memoryBucket{objects: make(map[string][]byte)}
}

func (b *memoryBucket) Upload(ctx context.Context, key string, body io.Reader, size int64) error {
	if b.uploadErr != nil {
		return b.uploadErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	return nil
}

func (b *memoryBucket) List(ctx context.Context, prefix string) ([]types.Object, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var objects []types.Object
	for key, data := range b.objects {
		objects = append(objects, types.Object{Key: aws.String(key), Size: aws.Int64(int64(len(data)))})
	}
	return objects, nil
}

func (b *memoryBucket) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func (b *memoryBucket) keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
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

func TestCreateAndUploadBackup(t *testing.T) {
	stores := store.NewSQLiteStore(filepath.Join(t.TempDir(), "stores"), zerolog.Nop())
	_, err := store.PutAll(stores, "up_accounts", "id", []domain.Account{{ID: "A1", Name: "Spending"}})
	require.NoError(t, err)
	require.NoError(t, stores.Set("submissions__importId", "abc", "T1"))

	bucket := newMemoryBucket()
	svc := NewBackupService(stores, bucket, t.TempDir(), zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2024, 1, 5, 14, 30, 22, 0, time.UTC) }

	require.NoError(t, svc.CreateAndUploadBackup(context.Background()))

	require.Equal(t, []string{"ledgerbridge-backup-2024-01-05-143022.tar.gz"}, bucket.keys())
	files := readArchive(t, bucket.objects["ledgerbridge-backup-2024-01-05-143022.tar.gz"])

	assert.Contains(t, files, "up_accounts__id.db")
	assert.Contains(t, files, "submissions__importId.db")
	require.Contains(t, files, metadataFile)

	var metadata BackupMetadata
	require.NoError(t, json.Unmarshal(files[metadataFile], &metadata))
	require.Len(t, metadata.Stores, 2)
	for _, s := range metadata.Stores {
		assert.Contains(t, s.Checksum, "sha256:")
		assert.Equal(t, int64(len(files[s.Filename])), s.SizeBytes)
	}
}

func TestCreateAndUploadBackup_UploadFailure(t *testing.T) {
	stores := store.NewSQLiteStore(filepath.Join(t.TempDir(), "stores"), zerolog.Nop())
	require.NoError(t, stores.Set("directory__meta", "k", "v"))

	bucket := newMemoryBucket()
	bucket.uploadErr = errors.New("access denied")

	err := NewBackupService(stores, bucket, t.TempDir(), zerolog.Nop()).CreateAndUploadBackup(context.Background())
	assert.ErrorContains(t, err, "access denied")
}

func TestRotateOldBackups(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	bucket := newMemoryBucket()
	for _, daysAgo := range []int{0, 1, 2, 40, 50, 60} {
		key := archivePrefix + now.AddDate(0, 0, -daysAgo).Format(timestampLayout) + archiveSuffix
		bucket.objects[key] = []byte("x")
	}
	bucket.objects["unrelated.txt"] = []byte("x")

	svc := NewBackupService(nil, bucket, t.TempDir(), zerolog.Nop())
	svc.now = func() time.Time { return now }

	require.NoError(t, svc.RotateOldBackups(context.Background(), 30))

	backups, err := svc.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 3)
	assert.True(t, backups[0].Timestamp.Equal(now))
	assert.Contains(t, bucket.keys(), "unrelated.txt")
}

func TestRotateOldBackups_KeepsMinimum(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	bucket := newMemoryBucket()
	for _, daysAgo := range []int{100, 200, 300} {
		key := archivePrefix + now.AddDate(0, 0, -daysAgo).Format(timestampLayout) + archiveSuffix
		bucket.objects[key] = []byte("x")
	}

	svc := NewBackupService(nil, bucket, t.TempDir(), zerolog.Nop())
	svc.now = func() time.Time { return now }

	require.NoError(t, svc.RotateOldBackups(context.Background(), 30))
	assert.Len(t, bucket.keys(), 3)
}
