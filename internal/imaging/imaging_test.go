package imaging

import (
	"context"
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"
	"testing"

	"github.com/jzx17/imgqueue/internal/testutils"
	"github.com/jzx17/imgqueue/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, _, err := image.Decode(f)
	require.NoError(t, err)
	return img
}

func nrgbaAt(img image.Image, x, y int) color.NRGBA {
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}

func TestInvert_NRGBAPreservesAlpha(t *testing.T) {
	src := testutils.NewTestImage(6, 3)
	out, ok := Invert(src).(*image.NRGBA)
	require.True(t, ok)

	for y := 0; y < 3; y++ {
		for x := 0; x < 6; x++ {
			s := src.NRGBAAt(x, y)
			d := out.NRGBAAt(x, y)
			assert.Equal(t, color.NRGBA{R: 255 - s.R, G: 255 - s.G, B: 255 - s.B, A: s.A}, d, "pixel %d,%d", x, y)
		}
	}
}

func TestInvert_Gray(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 3, 1))
	src.Pix = []uint8{0, 100, 255}

	out, ok := Invert(src).(*image.Gray)
	require.True(t, ok)
	assert.Equal(t, []uint8{255, 155, 0}, out.Pix)
	assert.Equal(t, []uint8{0, 100, 255}, src.Pix, "source must not change")
}

func TestInvert_RGBAPremultiplied(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 1))
	src.SetRGBA(0, 0, color.RGBA{R: 255, G: 0, B: 10, A: 255})
	src.SetRGBA(1, 0, color.RGBA{R: 64, G: 0, B: 128, A: 128})

	out, ok := Invert(src).(*image.RGBA)
	require.True(t, ok)
	assert.Equal(t, color.RGBA{R: 0, G: 255, B: 245, A: 255}, out.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{R: 64, G: 128, B: 0, A: 128}, out.RGBAAt(1, 0))
}

func TestInvert_Paletted(t *testing.T) {
	palette := color.Palette{
		color.RGBA{R: 0, G: 0, B: 0, A: 255},
		color.RGBA{R: 200, G: 100, B: 50, A: 255},
	}
	src := image.NewPaletted(image.Rect(0, 0, 2, 1), palette)
	src.SetColorIndex(1, 0, 1)

	out, ok := Invert(src).(*image.Paletted)
	require.True(t, ok)
	assert.Equal(t, src.Pix, out.Pix)
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, nrgbaAt(out, 0, 0))
	assert.Equal(t, color.NRGBA{R: 55, G: 155, B: 205, A: 255}, nrgbaAt(out, 1, 0))
	assert.Equal(t, color.RGBA{R: 0, G: 0, B: 0, A: 255}, src.Palette[0], "source palette must not change")
}

func TestInvert_OtherModelsConvertToNRGBA(t *testing.T) {
	src := image.NewCMYK(image.Rect(0, 0, 1, 1))
	src.Set(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	out, ok := Invert(src).(*image.NRGBA)
	require.True(t, ok)
	before := nrgbaAt(src, 0, 0)
	assert.Equal(t, color.NRGBA{R: 255 - before.R, G: 255 - before.G, B: 255 - before.B, A: 255}, out.NRGBAAt(0, 0))
}

func TestFormatFor(t *testing.T) {
	tests := []struct {
		path string
		want Format
		ok   bool
	}{
		{"a.jpg", FormatJPEG, true},
		{"a.JPEG", FormatJPEG, true},
		{"a.png", FormatPNG, true},
		{"a.gif", FormatGIF, true},
		{"a.bmp", FormatBMP, true},
		{"a.tif", FormatTIFF, true},
		{"a.TIFF", FormatTIFF, true},
		{"a.webp", "", false},
		{"noext", "", false},
	}
	for _, tt := range tests {
		got, ok := FormatFor(tt.path)
		assert.Equal(t, tt.ok, ok, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}
}

func TestInverter_Options(t *testing.T) {
	assert.Equal(t, DefaultJPEGQuality, NewInverter().JPEGQuality())
	assert.Equal(t, 80, NewInverter(WithJPEGQuality(80)).JPEGQuality())
	assert.Equal(t, DefaultJPEGQuality, NewInverter(WithJPEGQuality(0)).JPEGQuality())
	assert.Equal(t, DefaultJPEGQuality, NewInverter(WithJPEGQuality(101)).JPEGQuality())
}

func TestInverter_TransformPNG(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in", "a.png")
	dst := filepath.Join(dir, "out", "a.png")
	testutils.WriteImage(t, src, testutils.NewTestImage(8, 8))

	require.NoError(t, NewInverter().Transform(context.Background(), src, dst))

	in := decode(t, src)
	out := decode(t, dst)
	require.Equal(t, in.Bounds(), out.Bounds())
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			s := nrgbaAt(in, x, y)
			assert.Equal(t, color.NRGBA{R: 255 - s.R, G: 255 - s.G, B: 255 - s.B, A: s.A}, nrgbaAt(out, x, y))
		}
	}
}

func TestInverter_TransformGIFKeepsPalette(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.gif")
	dst := filepath.Join(dir, "out", "a.gif")
	testutils.WriteImage(t, src, testutils.NewTestImage(8, 8))

	require.NoError(t, NewInverter().Transform(context.Background(), src, dst))

	f, err := os.Open(dst)
	require.NoError(t, err)
	defer f.Close()
	out, err := gif.Decode(f)
	require.NoError(t, err)
	_, paletted := out.(*image.Paletted)
	assert.True(t, paletted)

	in := decode(t, src)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			s := nrgbaAt(in, x, y)
			assert.Equal(t, color.NRGBA{R: 255 - s.R, G: 255 - s.G, B: 255 - s.B, A: s.A}, nrgbaAt(out, x, y))
		}
	}
}

func TestInverter_TransformJPEG(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.jpg")
	dst := filepath.Join(dir, "out", "a.jpg")

	uniform := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for i := 0; i < len(uniform.Pix); i += 4 {
		copy(uniform.Pix[i:i+4], []uint8{30, 30, 30, 255})
	}
	testutils.WriteImage(t, src, uniform)

	require.NoError(t, NewInverter().Transform(context.Background(), src, dst))

	c := nrgbaAt(decode(t, dst), 8, 8)
	assert.InDelta(t, 225, int(c.R), 6)
	assert.InDelta(t, 225, int(c.G), 6)
	assert.InDelta(t, 225, int(c.B), 6)
}

func TestInverter_TransformBMPAndTIFF(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.bmp", "b.tiff"} {
		src := filepath.Join(dir, name)
		dst := filepath.Join(dir, "out", name)
		testutils.WriteImage(t, src, testutils.NewTestImage(4, 4))

		require.NoError(t, NewInverter().Transform(context.Background(), src, dst), name)
		out := decode(t, dst)
		assert.Equal(t, image.Rect(0, 0, 4, 4), out.Bounds(), name)
	}
}

func TestInverter_Failures(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.png")
	testutils.WriteImage(t, good, testutils.NewTestImage(2, 2))
	corrupt := filepath.Join(dir, "corrupt.png")
	testutils.WriteFile(t, corrupt, "definitely not a png")

	tests := []struct {
		name   string
		src    string
		dst    string
		reason types.FailureReason
	}{
		{"missing source", filepath.Join(dir, "missing.png"), filepath.Join(dir, "out", "missing.png"), types.ReasonIO},
		{"corrupt source", corrupt, filepath.Join(dir, "out", "corrupt.png"), types.ReasonDecode},
		{"unsupported destination", good, filepath.Join(dir, "out", "good.webp"), types.ReasonUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewInverter().Transform(context.Background(), tt.src, tt.dst)
			require.Error(t, err)
			assert.Equal(t, tt.reason, types.ReasonOf(err))
			assert.NoFileExists(t, tt.dst)
		})
	}
}

func TestInverter_WriteFailureIsIO(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.png")
	testutils.WriteImage(t, src, testutils.NewTestImage(2, 2))

	// a regular file where the destination directory should be
	blocker := filepath.Join(dir, "out")
	testutils.WriteFile(t, blocker, "")

	err := NewInverter().Transform(context.Background(), src, filepath.Join(blocker, "a.png"))
	require.Error(t, err)
	assert.Equal(t, types.ReasonIO, types.ReasonOf(err))
	assert.True(t, types.IsRetryable(err))
}

func TestInverter_CancelledBeforeStart(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.png")
	dst := filepath.Join(dir, "out", "a.png")
	testutils.WriteImage(t, src, testutils.NewTestImage(2, 2))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewInverter().Transform(ctx, src, dst)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, dst)
}
