package imaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"llmclass/internal/logging"
	"llmclass/internal/retry"
	"llmclass/internal/services"
)

const (
	// DefaultQuality matches the JPEG quality the reference tools produced.
	DefaultQuality   = 75
	// DefaultMaxPixels bounds width*height before a full decode.
	DefaultMaxPixels = 50_000_000
	maxDownloadBytes = 64 << 20
	downloadTimeout  = 30 * time.Second
)

// Encoded is a base64 JPEG ready to embed in a vision request.
type Encoded struct {
	Base64 string
	Width  int
	Height int
	// Size is the length of the JPEG payload in bytes.
	Size int
}

// Encoder turns image files and URLs into base64 JPEG payloads.
type Encoder struct {
	quality       int
	maxPixels     int
	releaseMemory bool
	httpClient    *http.Client
	logger        *slog.Logger
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithQuality sets the JPEG quality (1-100).
func WithQuality(quality int) Option {
	return func(e *Encoder) {
		if quality >= 1 && quality <= 100 {
			e.quality = quality
		}
	}
}

// WithMaxPixels rejects images whose declared width*height exceeds n.
func WithMaxPixels(n int) Option {
	return func(e *Encoder) {
		if n > 0 {
			e.maxPixels = n
		}
	}
}

// WithReleaseMemory forces a garbage collection after each encoded image so
// large batches keep a flat memory profile.
func WithReleaseMemory(enabled bool) Option {
	return func(e *Encoder) { e.releaseMemory = enabled }
}

// WithHTTPClient overrides the client used by EncodeURL.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Encoder) {
		if client != nil {
			e.httpClient = client
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Encoder) { e.logger = logger }
}

// NewEncoder constructs an encoder.
func NewEncoder(opts ...Option) *Encoder {
	e := &Encoder{
		quality:    DefaultQuality,
		maxPixels:  DefaultMaxPixels,
		httpClient: &http.Client{Timeout: downloadTimeout},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.NewComponentLogger(e.logger, "imaging")
	return e
}

// EncodeFile reads, normalizes and encodes the image at path.
func (e *Encoder) EncodeFile(path string) (Encoded, error) {
	file, err := os.Open(path)
	if err != nil {
		return Encoded{}, services.Wrap(services.ErrInput, "imaging", "open", path, err)
	}
	defer file.Close()
	encoded, err := e.Encode(file)
	if err != nil {
		return Encoded{}, fmt.Errorf("encode %s: %w", path, err)
	}
	return encoded, nil
}

// EncodeURL downloads and encodes a remote image. Non-200 responses fail.
func (e *Encoder) EncodeURL(ctx context.Context, url string) (Encoded, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Encoded{}, services.Wrap(services.ErrInput, "imaging", "download", url, err)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return Encoded{}, services.Wrap(services.ErrBackend, "imaging", "download", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Encoded{}, services.Wrap(services.ErrInput, "imaging", "download", url, retry.NewStatusError(resp, body))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return Encoded{}, services.Wrap(services.ErrBackend, "imaging", "download", url, err)
	}
	if len(data) > maxDownloadBytes {
		return Encoded{}, services.Wrap(services.ErrInput, "imaging", "download", fmt.Sprintf("%s exceeds %s", url, humanize.IBytes(maxDownloadBytes)), nil)
	}
	encoded, err := e.Encode(bytes.NewReader(data))
	if err != nil {
		return Encoded{}, fmt.Errorf("encode %s: %w", url, err)
	}
	return encoded, nil
}

// Encode decodes any registered format (PNG, JPEG, GIF, BMP, WebP), drops the
// alpha channel and re-encodes as JPEG.
func (e *Encoder) Encode(r io.Reader) (Encoded, error) {
	out, format, err := e.encode(r)
	if err != nil {
		return Encoded{}, err
	}
	if e.releaseMemory {
		runtime.GC()
	}
	e.logger.Debug("image encoded",
		logging.String("format", format),
		logging.Int("width", out.Width),
		logging.Int("height", out.Height),
		logging.String("jpeg_size", humanize.IBytes(uint64(out.Size))),
	)
	return out, nil
}

// encode keeps the decoded image and JPEG buffer local so they are
// unreachable once it returns. The header is read first so oversized images
// are refused before any pixel buffer is allocated.
func (e *Encoder) encode(r io.Reader) (Encoded, string, error) {
	var header bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(r, &header))
	if err != nil {
		return Encoded{}, "", services.Wrap(services.ErrInput, "imaging", "decode", "", err)
	}
	if pixels := cfg.Width * cfg.Height; cfg.Width <= 0 || cfg.Height <= 0 || pixels/cfg.Width != cfg.Height || pixels > e.maxPixels {
		msg := fmt.Sprintf("%dx%d exceeds %s pixels", cfg.Width, cfg.Height, humanize.Comma(int64(e.maxPixels)))
		return Encoded{}, "", services.Wrap(services.ErrInput, "imaging", "decode", msg, nil)
	}
	src, format, err := image.Decode(io.MultiReader(&header, r))
	if err != nil {
		return Encoded{}, "", services.Wrap(services.ErrInput, "imaging", "decode", "", err)
	}
	bounds := src.Bounds()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, toRGB(src), &jpeg.Options{Quality: e.quality}); err != nil {
		return Encoded{}, "", services.Wrap(services.ErrInput, "imaging", "jpeg encode", "", err)
	}
	return Encoded{
		Base64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Size:   buf.Len(),
	}, format, nil
}

// toRGB copies src into an opaque RGBA image, discarding alpha rather than
// compositing so colours match the source pixels.
func toRGB(src image.Image) *image.RGBA {
	bounds := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			dst.SetRGBA(x-bounds.Min.X, y-bounds.Min.Y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}
	return dst
}

// DecodeBase64JPEG decodes a payload produced by Encode and returns its
// dimensions.
func DecodeBase64JPEG(payload string) (int, int, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return 0, 0, fmt.Errorf("decode base64: %w", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("decode jpeg: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
