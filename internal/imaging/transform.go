package imaging

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/jzx17/imgqueue/internal/fsx"
	"github.com/jzx17/imgqueue/pkg/types"
)

// DefaultJPEGQuality is used when no quality is configured
const DefaultJPEGQuality = 95

// Format identifies an output codec
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
)

// FormatFor returns the codec for path's extension
func FormatFor(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return FormatJPEG, true
	case ".png":
		return FormatPNG, true
	case ".gif":
		return FormatGIF, true
	case ".bmp":
		return FormatBMP, true
	case ".tif", ".tiff":
		return FormatTIFF, true
	default:
		return "", false
	}
}

// Option configures an Inverter
type Option func(*Inverter)

// WithJPEGQuality sets the JPEG quality; values outside 1..100 keep the default
func WithJPEGQuality(q int) Option {
	return func(inv *Inverter) {
		if q >= 1 && q <= 100 {
			inv.jpegQuality = q
		}
	}
}

// WithLogger sets the logger for per-item timing
func WithLogger(logger *slog.Logger) Option {
	return func(inv *Inverter) {
		if logger != nil {
			inv.logger = logger
		}
	}
}

// Inverter reads an image, inverts it and writes the result atomically. It
// implements types.Transform and is safe for concurrent use.
type Inverter struct {
	jpegQuality int
	logger      *slog.Logger
}

// NewInverter creates an Inverter
func NewInverter(opts ...Option) *Inverter {
	inv := &Inverter{
		jpegQuality: DefaultJPEGQuality,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// JPEGQuality returns the configured quality
func (inv *Inverter) JPEGQuality() int {
	return inv.jpegQuality
}

// Transform implements types.Transform. ctx is only checked before work
// starts; an encode in progress always completes.
func (inv *Inverter) Transform(ctx context.Context, source, destination string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	format, ok := FormatFor(destination)
	if !ok {
		return types.NewItemError("encode", destination, types.ReasonUnsupported,
			fmt.Errorf("no encoder for extension %q", filepath.Ext(destination)))
	}

	start := time.Now()
	img, err := decodeFile(source)
	if err != nil {
		return err
	}

	inverted := Invert(img)

	var encodeErr error
	err = fsx.WriteFileAtomic(destination, 0o644, func(w io.Writer) error {
		if err := inv.encode(w, inverted, format); err != nil {
			encodeErr = err
			return err
		}
		return nil
	})
	if encodeErr != nil {
		return types.NewItemError("encode", destination, types.ReasonEncode, encodeErr)
	}
	if err != nil {
		return types.NewItemError("write", destination, types.ReasonIO, err)
	}

	b := img.Bounds()
	inv.logger.Debug("image inverted",
		slog.String("source", source),
		slog.String("destination", destination),
		slog.Int("width", b.Dx()),
		slog.Int("height", b.Dy()),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func decodeFile(source string) (image.Image, error) {
	f, err := os.Open(source)
	if err != nil {
		return nil, types.NewItemError("read", source, types.ReasonIO, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, types.NewItemError("decode", source, types.ReasonDecode, err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, types.NewItemError("decode", source, types.ReasonDecode, errors.New("image has no pixels"))
	}
	return img, nil
}

func (inv *Inverter) encode(w io.Writer, img image.Image, format Format) error {
	switch format {
	case FormatJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: inv.jpegQuality})
	case FormatPNG:
		return png.Encode(w, img)
	case FormatGIF:
		return gif.Encode(w, img, nil)
	case FormatBMP:
		return bmp.Encode(w, img)
	case FormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

var _ types.Transform = (*Inverter)(nil)
