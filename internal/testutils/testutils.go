// Package testutils provides test fixtures shared across packages
package testutils

import (
	"context"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// Context returns a context that is cancelled when the test ends or after timeout
func Context(t testing.TB, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// NewTestImage returns a w x h RGBA gradient with a half-transparent right half
func NewTestImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := uint8(255)
			if x >= w/2 {
				a = 128
			}
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / max(w-1, 1)),
				G: uint8(y * 255 / max(h-1, 1)),
				B: 40,
				A: a,
			})
		}
	}
	return img
}

// WriteImage encodes img at path, picking the codec from the extension, and
// creates parent directories. Unknown extensions get raw bytes that no
// decoder accepts.
func WriteImage(t testing.TB, path string, img image.Image) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 95})
	case ".png":
		err = png.Encode(f, img)
	case ".gif":
		err = gif.Encode(f, img, nil)
	case ".bmp":
		err = bmp.Encode(f, img)
	case ".tif", ".tiff":
		err = tiff.Encode(f, img, nil)
	default:
		_, err = f.WriteString("not an image")
	}
	require.NoError(t, err)
}

// WriteFile writes raw content at path, creating parent directories
func WriteFile(t testing.TB, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// BuildImageTree creates one small image per relative path under root.
// Paths whose extension is not an image format get plain text content.
func BuildImageTree(t testing.TB, root string, rel ...string) []string {
	t.Helper()
	paths := make([]string, 0, len(rel))
	for _, r := range rel {
		p := filepath.Join(root, filepath.FromSlash(r))
		WriteImage(t, p, NewTestImage(4, 4))
		paths = append(paths, p)
	}
	return paths
}

// ListFiles returns every regular file under root as slash-separated
// relative paths, sorted
func ListFiles(t testing.TB, root string) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	sort.Strings(files)
	return files
}

// RecordingTransform records every call and fails sources listed in Fail.
// A non-nil Gate blocks each call until it is closed or ctx is done.
type RecordingTransform struct {
	Fail map[string]error
	Gate chan struct{}

	calls atomic.Int64
	mu    sync.Mutex
	seen  map[string]int
}

// Transform implements types.Transform
func (r *RecordingTransform) Transform(ctx context.Context, source, destination string) error {
	r.calls.Add(1)
	r.mu.Lock()
	if r.seen == nil {
		r.seen = make(map[string]int)
	}
	r.seen[source]++
	r.mu.Unlock()

	if r.Gate != nil {
		select {
		case <-r.Gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err, ok := r.Fail[source]; ok {
		return err
	}
	return nil
}

// Calls returns the number of Transform invocations
func (r *RecordingTransform) Calls() int64 {
	return r.calls.Load()
}

// Seen returns how many times each source was transformed
func (r *RecordingTransform) Seen() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.seen))
	for k, v := range r.seen {
		out[k] = v
	}
	return out
}
