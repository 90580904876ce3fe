// Package recognition wires the extractor, the identity store, the matcher and
// the multi-face resolver into the operations the CLI and the HTTP API expose.
package recognition

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-recognizer/internal/config"
	"github.com/kozaktomas/face-recognizer/internal/database"
	"github.com/kozaktomas/face-recognizer/internal/embedding"
	"github.com/kozaktomas/face-recognizer/internal/extractor"
	"github.com/kozaktomas/face-recognizer/internal/facematch"
	"github.com/kozaktomas/face-recognizer/internal/identity"
	"github.com/kozaktomas/face-recognizer/internal/matcher"
	"github.com/kozaktomas/face-recognizer/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Extractor turns an encoded image into face embeddings.
type Extractor interface {
	// ExtractSingle returns the primary face's unit-normalized embedding or
	// extractor.ErrNoFaceDetected.
	ExtractSingle(ctx context.Context, image []byte) (embedding.Vector, error)
	// ExtractAll returns every detected face in detection order.
	ExtractAll(ctx context.Context, image []byte) ([]facematch.Detection, error)
}

// SnapshotBackup copies the persisted store somewhere safe after a save.
type SnapshotBackup interface {
	Backup(ctx context.Context) error
}

// Options configures a Service.
type Options struct {
	Metric      matcher.Metric
	Threshold   *float64            // nil = metric default from config.Builtin
	Concurrency int                 // parallel extractions in AddPersonMultiple
	Bands       config.CompareBands // zero = config.Builtin bands
	Backup      SnapshotBackup      // optional
	Logger      *zap.Logger
}

// Service is the recognition engine. It is safe for concurrent use.
type Service struct {
	extractor   Extractor
	store       *identity.Store
	metric      matcher.Metric
	threshold   float64
	concurrency int
	bands       config.CompareBands
	backup      SnapshotBackup
	logger      *zap.Logger

	// writeMu is held across every mutate-then-save sequence.
	writeMu sync.Mutex
}

// NewService creates a recognition service over an opened store.
func NewService(ext Extractor, store *identity.Store, opts Options) (*Service, error) {
	if opts.Metric == "" {
		opts.Metric = matcher.Cosine
	}
	if !opts.Metric.Valid() {
		return nil, fmt.Errorf("unknown metric %q", string(opts.Metric))
	}
	defaults := config.Builtin()
	threshold := defaults.Threshold(opts.Metric)
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}
	if err := opts.Metric.CheckThreshold(threshold); err != nil {
		return nil, err
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Bands == (config.CompareBands{}) {
		opts.Bands = defaults.Compare
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{
		extractor:   ext,
		store:       store,
		metric:      opts.Metric,
		threshold:   threshold,
		concurrency: opts.Concurrency,
		bands:       opts.Bands,
		backup:      opts.Backup,
		logger:      opts.Logger,
	}, nil
}

// Metric returns the configured metric.
func (s *Service) Metric() matcher.Metric {
	return s.metric
}

// Threshold returns the configured acceptance threshold.
func (s *Service) Threshold() float64 {
	return s.threshold
}

// Store returns the underlying identity store.
func (s *Service) Store() *identity.Store {
	return s.store
}

func (s *Service) search(v embedding.Vector) (matcher.Result, error) {
	start := time.Now()
	res, err := matcher.Search(v, s.store, s.metric, s.threshold)
	metrics.SearchDuration.WithLabelValues(string(s.metric)).Observe(time.Since(start).Seconds())
	return res, err
}

// Identify detects every face in the image and resolves them into one decision.
func (s *Service) Identify(ctx context.Context, image []byte) (facematch.Decision, error) {
	dets, err := s.extractor.ExtractAll(ctx, image)
	if err != nil {
		return facematch.Decision{}, err
	}
	return s.IdentifyFaces(ctx, dets)
}

// IdentifyFaces searches every detection, in order, and resolves the results.
func (s *Service) IdentifyFaces(ctx context.Context, dets []facematch.Detection) (facematch.Decision, error) {
	matches := make([]facematch.FaceMatch, 0, len(dets))
	for i, d := range dets {
		if err := ctx.Err(); err != nil {
			return facematch.Decision{}, err
		}
		res, err := s.search(d.Embedding)
		if err != nil {
			return facematch.Decision{}, fmt.Errorf("face %d: %w", i, err)
		}
		matches = append(matches, facematch.FaceMatch{Region: d.Region, Result: res})
	}

	decision := facematch.Resolve(matches)
	metrics.IdentifyTotal.WithLabelValues(string(decision.Status)).Inc()
	s.logger.Debug("identified",
		zap.String("status", string(decision.Status)),
		zap.String("name", decision.Name),
		zap.Float64("confidence", decision.Confidence),
		zap.Int("faces", len(decision.Faces)),
	)
	return decision, nil
}

// IdentifyEmbedding searches a single unit-normalized embedding.
func (s *Service) IdentifyEmbedding(_ context.Context, v embedding.Vector) (matcher.Result, error) {
	return s.search(v)
}

// Counts are the store counts after a mutation.
type Counts struct {
	PersonEmbeddings int `json:"embeddings_count"`
	TotalPeople      int `json:"total_people"`
	TotalEmbeddings  int `json:"total_embeddings"`
}

func (s *Service) counts(label string) Counts {
	st := s.store.Statistics()
	return Counts{
		PersonEmbeddings: s.store.Count(label),
		TotalPeople:      st.IdentityCount,
		TotalEmbeddings:  st.TotalEmbeddings,
	}
}

// AddPerson enrolls one embedding under label and saves the store.
func (s *Service) AddPerson(ctx context.Context, label string, v embedding.Vector) (Counts, error) {
	s.writeMu.Lock()
	s.warnSimilar(label)
	if _, err := s.store.AddEmbedding(label, v); err != nil {
		s.writeMu.Unlock()
		metrics.EnrollmentsTotal.WithLabelValues("failed").Inc()
		return Counts{}, err
	}
	err := s.store.Save(ctx)
	counts := s.counts(label)
	s.writeMu.Unlock()

	if err != nil {
		return counts, err
	}
	metrics.EnrollmentsTotal.WithLabelValues("added").Inc()
	s.logger.Info("person enrolled", zap.String("label", label), zap.Int("embeddings", counts.PersonEmbeddings))
	s.runBackup(ctx)
	return counts, nil
}

// EnrollImage extracts the primary face from image and enrolls it under label.
func (s *Service) EnrollImage(ctx context.Context, label string, image []byte) (Counts, error) {
	if label == "" {
		return Counts{}, identity.ErrInvalidLabel
	}
	v, err := s.extractor.ExtractSingle(ctx, image)
	if err != nil {
		metrics.EnrollmentsTotal.WithLabelValues("failed").Inc()
		return Counts{}, err
	}
	return s.AddPerson(ctx, label, v)
}

// Failure is one image of a batch that could not be enrolled. Index is 1-based.
type Failure struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// BatchResult is the outcome of AddPersonMultiple.
type BatchResult struct {
	BatchID  string
	Label    string
	Images   int
	Added    int
	Failed   int
	Failures []Failure
	Counts   Counts
}

// AddPersonMultiple extracts the primary face of every image concurrently and
// enrolls the successes under label in input order. A failing image never
// aborts the batch. The store is saved once, and only if something was added.
func (s *Service) AddPersonMultiple(ctx context.Context, label string, images [][]byte) (BatchResult, error) {
	result := BatchResult{BatchID: uuid.NewString(), Label: label, Images: len(images)}
	if label == "" {
		return result, identity.ErrInvalidLabel
	}

	vectors := make([]embedding.Vector, len(images))
	errs := make([]error, len(images))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, img := range images {
		g.Go(func() error {
			vectors[i], errs[i] = s.extractor.ExtractSingle(ctx, img)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return result, err
	}

	s.writeMu.Lock()
	s.warnSimilar(label)
	for i, v := range vectors {
		err := errs[i]
		if err == nil {
			_, err = s.store.AddEmbedding(label, v)
		}
		if err != nil {
			result.Failed++
			result.Failures = append(result.Failures, Failure{Index: i + 1, Reason: failureReason(err)})
			continue
		}
		result.Added++
	}

	var saveErr error
	if result.Added > 0 {
		saveErr = s.store.Save(ctx)
	}
	result.Counts = s.counts(label)
	s.writeMu.Unlock()

	metrics.EnrollmentsTotal.WithLabelValues("added").Add(float64(result.Added))
	metrics.EnrollmentsTotal.WithLabelValues("failed").Add(float64(result.Failed))
	s.logger.Info("batch enrolled",
		zap.String("batch_id", result.BatchID),
		zap.String("label", label),
		zap.Int("added", result.Added),
		zap.Int("failed", result.Failed),
	)

	if saveErr != nil {
		return result, saveErr
	}
	if result.Added > 0 {
		s.runBackup(ctx)
	}
	return result, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, extractor.ErrNoFaceDetected):
		return "No face detected"
	case errors.Is(err, extractor.ErrUndecodableImage):
		return "Could not decode image"
	default:
		return err.Error()
	}
}

// DeletePerson removes label and saves the store. It returns how many
// embeddings were removed, or identity.ErrNotFound.
func (s *Service) DeletePerson(ctx context.Context, label string) (int, error) {
	s.writeMu.Lock()
	existed, removed := s.store.DeleteIdentity(label)
	if !existed {
		s.writeMu.Unlock()
		return 0, fmt.Errorf("%w: %q", identity.ErrNotFound, label)
	}
	err := s.store.Save(ctx)
	s.writeMu.Unlock()

	if err != nil {
		return removed, err
	}
	s.logger.Info("person deleted", zap.String("label", label), zap.Int("embeddings_removed", removed))
	s.runBackup(ctx)
	return removed, nil
}

// RestoreSnapshot replaces the store contents with snap and saves it.
func (s *Service) RestoreSnapshot(ctx context.Context, snap *database.Snapshot) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.store.Restore(snap); err != nil {
		return err
	}
	return s.store.Save(ctx)
}

// GetStatistics returns identity and embedding counts.
func (s *Service) GetStatistics() identity.Statistics {
	return s.store.Statistics()
}

// GetAverageEmbedding returns the normalized mean embedding of label.
func (s *Service) GetAverageEmbedding(label string) (embedding.Vector, error) {
	return s.store.AverageEmbedding(label)
}

// Verdict classifies a two-face comparison.
type Verdict string

const (
	VerdictSamePerson    Verdict = "same_person"
	VerdictPossibleMatch Verdict = "possible_match"
	VerdictDifferent     Verdict = "different_person"
)

// Comparison holds both metrics between two faces.
type Comparison struct {
	Cosine    float64
	Euclidean float64
	Verdict   Verdict
}

// Compare extracts the primary face of both images and compares them.
func (s *Service) Compare(ctx context.Context, imageA, imageB []byte) (Comparison, error) {
	var a, b embedding.Vector
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		if a, err = s.extractor.ExtractSingle(gctx, imageA); err != nil {
			return fmt.Errorf("first image: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if b, err = s.extractor.ExtractSingle(gctx, imageB); err != nil {
			return fmt.Errorf("second image: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Comparison{}, err
	}
	return s.CompareEmbeddings(a, b)
}

// CompareEmbeddings compares two unit-normalized embeddings.
func (s *Service) CompareEmbeddings(a, b embedding.Vector) (Comparison, error) {
	cos, err := matcher.Cosine.Score(a, b)
	if err != nil {
		return Comparison{}, err
	}
	dist, err := matcher.Euclidean.Score(a, b)
	if err != nil {
		return Comparison{}, err
	}

	c := Comparison{Cosine: cos, Euclidean: dist, Verdict: VerdictDifferent}
	switch {
	case cos >= s.bands.SamePerson:
		c.Verdict = VerdictSamePerson
	case cos >= s.bands.PossibleMatch:
		c.Verdict = VerdictPossibleMatch
	}
	return c, nil
}

func (s *Service) warnSimilar(label string) {
	if similar := s.store.SimilarLabels(label); len(similar) > 0 {
		s.logger.Warn("label looks like existing identities, enrolling as a separate person",
			zap.String("label", label),
			zap.Strings("similar", similar),
		)
	}
}

// runBackup is best effort: failures are logged and counted, never returned.
func (s *Service) runBackup(ctx context.Context) {
	if s.backup == nil {
		return
	}
	if err := s.backup.Backup(ctx); err != nil {
		metrics.BackupUploadsTotal.WithLabelValues("error").Inc()
		s.logger.Warn("snapshot backup failed", zap.Error(err))
		return
	}
	metrics.BackupUploadsTotal.WithLabelValues("ok").Inc()
}
