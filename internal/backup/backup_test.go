package backup

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/face-recognizer/internal/database"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBucket is an in-memory objectClient.
type fakeBucket struct {
	mu       sync.Mutex
	exists   bool
	objects  map[string][]byte
	putErr   error
	types    map[string]string
	makeCall int
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeBucket) BucketExists(context.Context, string) (bool, error) {
	return f.exists, nil
}

func (f *fakeBucket) MakeBucket(context.Context, string, minio.MakeBucketOptions) error {
	f.makeCall++
	f.exists = true
	return nil
}

func (f *fakeBucket) PutObject(_ context.Context, _, key string, r io.Reader, _ int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	f.types[key] = opts.ContentType
	return minio.UploadInfo{Key: key, Size: int64(len(data))}, nil
}

func (f *fakeBucket) FGetObject(_ context.Context, _, key, filePath string, _ minio.GetObjectOptions) error {
	f.mu.Lock()
	data, ok := f.objects[key]
	f.mu.Unlock()
	if !ok {
		return minio.ErrorResponse{Code: "NoSuchKey", Key: key, StatusCode: 404}
	}
	return os.WriteFile(filePath, data, 0o600)
}

func (f *fakeBucket) ListObjects(_ context.Context, _ string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan minio.ObjectInfo, len(f.objects))
	for k := range f.objects {
		if strings.HasPrefix(k, opts.Prefix) {
			ch <- minio.ObjectInfo{Key: k}
		}
	}
	close(ch)
	return ch
}

type staticSource struct{ snap *database.Snapshot }

func (s staticSource) Snapshot() *database.Snapshot { return s.snap }

func sample() *database.Snapshot {
	return &database.Snapshot{
		Version:   database.CurrentFormatVersion,
		Dimension: 2,
		Identities: []database.IdentityRecord{
			{Label: "Alice", Embeddings: [][]float64{{1, 0}, {0.6, 0.8}}},
			{Label: "Bob", Embeddings: [][]float64{{0, 1}}},
		},
	}
}

func TestKeys(t *testing.T) {
	u := newUploader(newFakeBucket(), "b", "snapshots/", nil, nil)
	at := time.Date(2026, 3, 14, 15, 9, 26, 535_000_000, time.FixedZone("CET", 3600))

	assert.Equal(t, "snapshots/identities-20260314T140926.535Z.parquet", u.SnapshotKey(at))
	assert.Equal(t, "snapshots/latest.parquet", u.LatestKey())

	bare := newUploader(newFakeBucket(), "b", "", nil, nil)
	assert.Equal(t, "latest.parquet", bare.LatestKey())
}

func TestEnsureBucket(t *testing.T) {
	fb := newFakeBucket()
	u := newUploader(fb, "b", "", nil, nil)

	require.NoError(t, u.EnsureBucket(context.Background()))
	require.NoError(t, u.EnsureBucket(context.Background()))
	assert.Equal(t, 1, fb.makeCall)
}

func TestBackupAndFetch(t *testing.T) {
	fb := newFakeBucket()
	u := newUploader(fb, "b", "snapshots", staticSource{sample()}, nil)
	u.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	ctx := context.Background()

	key, err := u.BackupSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "snapshots/identities-20260102T030405.000Z.parquet", key)
	assert.Contains(t, fb.objects, key)
	assert.Contains(t, fb.objects, "snapshots/latest.parquet")
	assert.Equal(t, contentType, fb.types[key])

	latest, err := u.Fetch(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, sample().Identities, latest.Identities)

	byKey, err := u.Fetch(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 2, byKey.Dimension)
}

func TestList(t *testing.T) {
	fb := newFakeBucket()
	u := newUploader(fb, "b", "snapshots/", staticSource{sample()}, nil)
	ctx := context.Background()

	times := []time.Time{
		time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, ts := range times {
		u.now = func() time.Time { return ts }
		require.NoError(t, u.Backup(ctx))
	}

	keys, err := u.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"snapshots/identities-20260401T000000.000Z.parquet",
		"snapshots/identities-20260501T000000.000Z.parquet",
	}, keys, "latest.parquet is not listed")
}

func TestFetch_Missing(t *testing.T) {
	u := newUploader(newFakeBucket(), "b", "", nil, nil)
	_, err := u.Fetch(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetch_Corrupt(t *testing.T) {
	fb := newFakeBucket()
	fb.objects["latest.parquet"] = []byte("definitely not parquet")
	u := newUploader(fb, "b", "", nil, nil)

	_, err := u.Fetch(context.Background(), "")
	assert.ErrorIs(t, err, database.ErrSnapshotCorrupt)
}

func TestBackup_Errors(t *testing.T) {
	u := newUploader(newFakeBucket(), "b", "", nil, nil)
	assert.Error(t, u.Backup(context.Background()), "no source")

	fb := newFakeBucket()
	fb.putErr = errors.New("access denied")
	u = newUploader(fb, "b", "", staticSource{sample()}, nil)
	err := u.Backup(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}
