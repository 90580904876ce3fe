// Package file persists identity snapshots as a single Apache Parquet file.
//
// Layout: one row per embedding, in store order, with columns
//
//	label     string   identity label
//	position  int32    identity index in insertion order
//	embedding []double the embedding components
//
// and file-level key/value metadata carrying the format version, dimension and
// counts. Any Parquet reader (pyarrow, duckdb, spark) can open it.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/renameio"
	"github.com/kozaktomas/face-recognizer/internal/database"
	"github.com/parquet-go/parquet-go"
)

// Metadata keys written into the Parquet footer.
const (
	KeyFormatVersion = "face.format_version"
	KeyDimension     = "face.dimension"
	KeyIdentities    = "face.identities"
	KeyEmbeddings    = "face.embeddings"
	KeySavedAt       = "face.saved_at"
)

type embeddingRow struct {
	Label     string    `parquet:"label"`
	Position  int32     `parquet:"position"`
	Embedding []float64 `parquet:"embedding"`
}

// Store is a database.SnapshotStore backed by a Parquet file.
type Store struct {
	path string
}

// New creates a file snapshot store at path. Nothing is touched on disk until
// the first Load or Save.
func New(path string) *Store {
	return &Store{path: path}
}

// Location returns the snapshot file path.
func (s *Store) Location() string {
	return s.path
}

// Load reads the snapshot file.
func (s *Store) Load(ctx context.Context) (*database.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, database.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("opening snapshot %s: %w", s.path, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat snapshot %s: %w", s.path, err)
	}

	snap, err := Decode(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return snap, nil
}

// Decode reads a Parquet snapshot of the given size from r.
func Decode(r io.ReaderAt, size int64) (*database.Snapshot, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", database.ErrSnapshotCorrupt, err)
	}

	snap, err := readHeader(pf)
	if err != nil {
		return nil, err
	}

	rows, err := readRows(pf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", database.ErrSnapshotCorrupt, err)
	}

	for _, row := range rows {
		last := len(snap.Identities) - 1
		switch {
		case int(row.Position) == last+1:
			snap.Identities = append(snap.Identities, database.IdentityRecord{Label: row.Label})
		case last >= 0 && int(row.Position) == last && snap.Identities[last].Label == row.Label:
		default:
			return nil, fmt.Errorf("%w: row for %q out of order (position %d)",
				database.ErrSnapshotCorrupt, row.Label, row.Position)
		}
		cur := &snap.Identities[len(snap.Identities)-1]
		cur.Embeddings = append(cur.Embeddings, row.Embedding)
	}

	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}

func readHeader(pf *parquet.File) (*database.Snapshot, error) {
	rawVersion, ok := pf.Lookup(KeyFormatVersion)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s metadata", database.ErrSnapshotCorrupt, KeyFormatVersion)
	}
	version, err := strconv.Atoi(rawVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: bad format version %q", database.ErrSnapshotCorrupt, rawVersion)
	}
	if version != database.CurrentFormatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", database.ErrSnapshotCorrupt, version)
	}

	dim := 0
	if raw, ok := pf.Lookup(KeyDimension); ok {
		if dim, err = strconv.Atoi(raw); err != nil || dim < 0 {
			return nil, fmt.Errorf("%w: bad dimension %q", database.ErrSnapshotCorrupt, raw)
		}
	}

	snap := &database.Snapshot{Version: version, Dimension: dim}
	if raw, ok := pf.Lookup(KeySavedAt); ok {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			snap.SavedAt = t
		}
	}
	return snap, nil
}

func readRows(pf *parquet.File) ([]embeddingRow, error) {
	pr := parquet.NewGenericReader[embeddingRow](pf)
	defer pr.Close()

	total := pr.NumRows()
	if total == 0 {
		return nil, nil
	}
	rows := make([]embeddingRow, total)
	n, err := pr.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if int64(n) != total {
		return nil, fmt.Errorf("read %d of %d rows", n, total)
	}
	return rows, nil
}

// Save writes the snapshot to a temporary file next to the target and renames
// it into place, so readers only ever see a complete file.
func (s *Store) Save(ctx context.Context, snap *database.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating snapshot directory: %w", err)
		}
	}

	pending, err := renameio.TempFile("", s.path)
	if err != nil {
		return fmt.Errorf("creating temporary snapshot file: %w", err)
	}
	defer pending.Cleanup() //nolint:errcheck // no-op after a successful replace

	if err := pending.Chmod(0o644); err != nil {
		return fmt.Errorf("setting snapshot permissions: %w", err)
	}

	if err := Encode(pending, snap); err != nil {
		return err
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replacing snapshot %s: %w", s.path, err)
	}
	return nil
}

// Encode writes snap to w in the Parquet snapshot layout.
func Encode(w io.Writer, snap *database.Snapshot) error {
	savedAt := snap.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now().UTC()
	}

	pw := parquet.NewGenericWriter[embeddingRow](w,
		parquet.Compression(&parquet.Zstd),
		parquet.KeyValueMetadata(KeyFormatVersion, strconv.Itoa(database.CurrentFormatVersion)),
		parquet.KeyValueMetadata(KeyDimension, strconv.Itoa(snap.Dimension)),
		parquet.KeyValueMetadata(KeyIdentities, strconv.Itoa(len(snap.Identities))),
		parquet.KeyValueMetadata(KeyEmbeddings, strconv.Itoa(snap.EmbeddingCount())),
		parquet.KeyValueMetadata(KeySavedAt, savedAt.Format(time.RFC3339Nano)),
	)

	rows := make([]embeddingRow, 0, snap.EmbeddingCount())
	for pos, id := range snap.Identities {
		for _, emb := range id.Embeddings {
			rows = append(rows, embeddingRow{Label: id.Label, Position: int32(pos), Embedding: emb})
		}
	}
	if len(rows) > 0 {
		if _, err := pw.Write(rows); err != nil {
			_ = pw.Close()
			return fmt.Errorf("writing snapshot rows: %w", err)
		}
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("finalizing snapshot: %w", err)
	}
	return nil
}
