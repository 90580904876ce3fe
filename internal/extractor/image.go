package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrUndecodableImage is returned for data that is not a supported image.
var ErrUndecodableImage = errors.New("could not decode image")

// passthroughFormats are sent to the embedding server as-is when small enough.
var passthroughFormats = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
}

// ImageInfo describes an uploaded image.
type ImageInfo struct {
	Format string
	Width  int
	Height int
}

// Inspect reads the image header without decoding pixels.
func Inspect(data []byte) (ImageInfo, error) {
	if len(data) == 0 {
		return ImageInfo{}, fmt.Errorf("%w: empty upload", ErrUndecodableImage)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageInfo{}, fmt.Errorf("%w: %v", ErrUndecodableImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return ImageInfo{}, fmt.Errorf("%w: %s image has no pixels", ErrUndecodableImage, format)
	}
	return ImageInfo{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// prepared is an image ready for upload. Scale maps upload pixels back to
// original pixels.
type prepared struct {
	Data  []byte
	MIME  string
	Info  ImageInfo
	Scale float64
}

// prepareImage validates data and, when it is not JPEG/PNG or exceeds maxSide,
// re-encodes it as a JPEG that fits within maxSide keeping aspect ratio.
func prepareImage(data []byte, maxSide int) (*prepared, error) {
	info, err := Inspect(data)
	if err != nil {
		return nil, err
	}

	tooBig := maxSide > 0 && (info.Width > maxSide || info.Height > maxSide)
	if mime, ok := passthroughFormats[info.Format]; ok && !tooBig {
		return &prepared{Data: data, MIME: mime, Info: info, Scale: 1}, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodableImage, err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	newWidth, newHeight := width, height
	if tooBig {
		if width > height {
			newWidth = maxSide
			newHeight = max(1, int(float64(height)*float64(maxSide)/float64(width)))
		} else {
			newHeight = maxSide
			newWidth = max(1, int(float64(width)*float64(maxSide)/float64(height)))
		}
	}

	out := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(out, out.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &prepared{
		Data:  buf.Bytes(),
		MIME:  "image/jpeg",
		Info:  info,
		Scale: float64(width) / float64(newWidth),
	}, nil
}
