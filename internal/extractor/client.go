// Package extractor talks to the face embedding server: it uploads an image to
// /embed/face and turns the detected faces into normalized embeddings.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kozaktomas/face-recognizer/internal/config"
	"github.com/kozaktomas/face-recognizer/internal/constants"
	"github.com/kozaktomas/face-recognizer/internal/embedding"
	"github.com/kozaktomas/face-recognizer/internal/facematch"
	"github.com/kozaktomas/face-recognizer/internal/metrics"
	"go.uber.org/zap"
)

const defaultBaseURL = "http://localhost:8000"

// ErrNoFaceDetected is returned by ExtractSingle when the image has no usable face.
var ErrNoFaceDetected = errors.New("no face detected")

// Client computes face embeddings using the embedding server
type Client struct {
	baseURL      string
	client       *http.Client
	minDetScore  float64
	maxImageSide int
	logger       *zap.Logger
}

// NewClient creates a new embedding server client
func NewClient(cfg config.ExtractorConfig, logger *zap.Logger) *Client {
	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		client:       &http.Client{Timeout: cfg.Timeout},
		minDetScore:  cfg.MinDetScore,
		maxImageSide: cfg.MaxImageSide,
		logger:       logger,
	}
}

// faceDetection represents a single detected face
type faceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// faceResponse represents the response from the face embedding endpoint
type faceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// postMultipartImage posts the image as the "file" form field and returns the body.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, img *prepared) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image"`)
	h.Set("Content-Type", img.MIME)
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// ExtractAll detects every face in the image and returns them in detection
// order. Faces at or below the minimum detection score are dropped, as are
// near-identical duplicate boxes. Regions are in pixels of the original image.
func (c *Client) ExtractAll(ctx context.Context, image []byte) ([]facematch.Detection, error) {
	img, err := prepareImage(image, c.maxImageSide)
	if err != nil {
		metrics.ExtractorRequestsTotal.WithLabelValues("invalid_image").Inc()
		return nil, err
	}

	start := time.Now()
	body, err := c.postMultipartImage(ctx, "/embed/face", img)
	metrics.ExtractorDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ExtractorRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	var faceResp faceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		metrics.ExtractorRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	dets := make([]facematch.Detection, 0, len(faceResp.Faces))
	for _, f := range faceResp.Faces {
		if f.DetScore <= c.minDetScore {
			continue
		}
		v, err := embedding.FromFloat32(f.Embedding).Normalized()
		if err != nil {
			c.logger.Warn("skipping face with unusable embedding",
				zap.Int("face_index", f.FaceIndex),
				zap.String("model", faceResp.Model),
				zap.Error(err),
			)
			continue
		}
		region := facematch.BBoxFromSlice(f.BBox)
		for i := range region {
			region[i] *= img.Scale
		}
		dets = append(dets, facematch.Detection{Embedding: v, Region: region, DetScore: f.DetScore})
	}
	dets = facematch.SuppressOverlapping(dets, constants.DuplicateIoU)

	if len(dets) == 0 {
		metrics.ExtractorRequestsTotal.WithLabelValues("no_face").Inc()
	} else {
		metrics.ExtractorRequestsTotal.WithLabelValues("ok").Inc()
	}
	c.logger.Debug("faces extracted",
		zap.String("format", img.Info.Format),
		zap.Int("width", img.Info.Width),
		zap.Int("height", img.Info.Height),
		zap.Int("reported", faceResp.FacesCount),
		zap.Int("kept", len(dets)),
		zap.Duration("took", time.Since(start)),
	)
	return dets, nil
}

// ExtractSingle returns the embedding of the first detected face.
func (c *Client) ExtractSingle(ctx context.Context, image []byte) (embedding.Vector, error) {
	dets, err := c.ExtractAll(ctx, image)
	if err != nil {
		return nil, err
	}
	if len(dets) == 0 {
		return nil, ErrNoFaceDetected
	}
	return dets[0].Embedding, nil
}

// Ping checks that the embedding server answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("embedding server unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("embedding server unhealthy (status %d)", resp.StatusCode)
	}
	return nil
}
