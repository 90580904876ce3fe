// Package backup copies identity snapshots to S3-compatible object storage
// and fetches them back.
//
// Every backup is written twice: once under a timestamped key and once as
// "latest.parquet", both below the configured prefix. Objects use the same
// Parquet layout as the file backend, whatever backend the store runs on.
package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kozaktomas/face-recognizer/internal/config"
	"github.com/kozaktomas/face-recognizer/internal/database"
	"github.com/kozaktomas/face-recognizer/internal/database/file"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const (
	LatestName     = "latest.parquet"
	snapshotPrefix = "identities-"
	snapshotSuffix = ".parquet"
	keyTimeFormat  = "20060102T150405.000Z"
	contentType    = "application/vnd.apache.parquet"
)

// ErrNotFound is returned when the requested backup object does not exist.
var ErrNotFound = errors.New("backup not found")

// Source provides the snapshot to back up.
type Source interface {
	Snapshot() *database.Snapshot
}

// objectClient is the part of *minio.Client the uploader needs.
type objectClient interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	FGetObject(ctx context.Context, bucket, key, filePath string, opts minio.GetObjectOptions) error
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
}

// Uploader writes snapshots to a bucket.
type Uploader struct {
	client objectClient
	bucket string
	prefix string
	source Source
	logger *zap.Logger
	now    func() time.Time
}

// New connects to the configured endpoint. source may be nil when the
// uploader is only used to fetch backups.
func New(cfg config.BackupConfig, source Source, logger *zap.Logger) (*Uploader, error) {
	if !cfg.Enabled() {
		return nil, errors.New("backup endpoint is not configured")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating object storage client: %w", err)
	}
	return newUploader(client, cfg.Bucket, cfg.Prefix, source, logger), nil
}

func newUploader(client objectClient, bucket, prefix string, source Source, logger *zap.Logger) *Uploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{
		client: client,
		bucket: bucket,
		prefix: prefix,
		source: source,
		logger: logger,
		now:    time.Now,
	}
}

func (u *Uploader) key(name string) string {
	return path.Join(u.prefix, name)
}

// SnapshotKey returns the timestamped object key for a backup taken at t.
func (u *Uploader) SnapshotKey(t time.Time) string {
	return u.key(snapshotPrefix + t.UTC().Format(keyTimeFormat) + snapshotSuffix)
}

// LatestKey returns the object key that always holds the newest backup.
func (u *Uploader) LatestKey() string {
	return u.key(LatestName)
}

// EnsureBucket creates the bucket if it does not exist yet.
func (u *Uploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", u.bucket, err)
	}
	if exists {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("creating bucket %s: %w", u.bucket, err)
	}
	u.logger.Info("created backup bucket", zap.String("bucket", u.bucket))
	return nil
}

// Backup uploads the current snapshot.
func (u *Uploader) Backup(ctx context.Context) error {
	_, err := u.BackupSnapshot(ctx)
	return err
}

// BackupSnapshot uploads the current snapshot and returns its timestamped key.
func (u *Uploader) BackupSnapshot(ctx context.Context) (string, error) {
	if u.source == nil {
		return "", errors.New("backup has no snapshot source")
	}
	snap := u.source.Snapshot()

	var buf bytes.Buffer
	if err := file.Encode(&buf, snap); err != nil {
		return "", fmt.Errorf("encoding snapshot: %w", err)
	}
	data := buf.Bytes()

	key := u.SnapshotKey(u.now())
	for _, k := range []string{key, u.LatestKey()} {
		_, err := u.client.PutObject(ctx, u.bucket, k, bytes.NewReader(data), int64(len(data)),
			minio.PutObjectOptions{ContentType: contentType})
		if err != nil {
			return "", fmt.Errorf("uploading %s: %w", k, err)
		}
	}

	u.logger.Info("snapshot backed up",
		zap.String("bucket", u.bucket),
		zap.String("key", key),
		zap.Int("identities", len(snap.Identities)),
		zap.Int("bytes", len(data)),
	)
	return key, nil
}

// List returns the timestamped backup keys, oldest first.
func (u *Uploader) List(ctx context.Context) ([]string, error) {
	var keys []string
	for obj := range u.client.ListObjects(ctx, u.bucket, minio.ListObjectsOptions{
		Prefix:    u.key(snapshotPrefix),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if strings.HasSuffix(obj.Key, snapshotSuffix) {
			keys = append(keys, obj.Key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Fetch downloads and decodes the backup stored under key, or the latest one
// when key is empty.
func (u *Uploader) Fetch(ctx context.Context, key string) (*database.Snapshot, error) {
	if key == "" {
		key = u.LatestKey()
	}

	dir, err := os.MkdirTemp("", "face-backup-")
	if err != nil {
		return nil, fmt.Errorf("creating download directory: %w", err)
	}
	defer os.RemoveAll(dir)

	local := filepath.Join(dir, "snapshot.parquet")
	if err := u.client.FGetObject(ctx, u.bucket, key, local, minio.GetObjectOptions{}); err != nil {
		code := minio.ToErrorResponse(err).Code
		if code == "NoSuchKey" || code == "NotFound" {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("downloading %s: %w", key, err)
	}

	f, err := os.Open(local)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	snap, err := file.Decode(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return snap, nil
}
