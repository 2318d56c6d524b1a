// Package imaging implements the pixel inversion transform applied to each work item.
package imaging

import (
	"image"
	"image/color"
)

// Invert returns the colour negative of img. Alpha is preserved. Gray, NRGBA,
// RGBA and paletted images keep their representation; every other model is
// converted to NRGBA first.
func Invert(img image.Image) image.Image {
	switch src := img.(type) {
	case *image.Gray:
		return invertGray(src)
	case *image.Paletted:
		return invertPaletted(src)
	case *image.NRGBA:
		return invertNRGBA(src)
	case *image.RGBA:
		return invertRGBA(src)
	default:
		return invertNRGBA(toNRGBA(img))
	}
}

func invertGray(src *image.Gray) *image.Gray {
	dst := image.NewGray(src.Rect)
	for y := 0; y < src.Rect.Dy(); y++ {
		s := src.Pix[y*src.Stride : y*src.Stride+src.Rect.Dx()]
		d := dst.Pix[y*dst.Stride : y*dst.Stride+dst.Rect.Dx()]
		for i, v := range s {
			d[i] = 255 - v
		}
	}
	return dst
}

// invertPaletted inverts the palette and shares nothing with src
func invertPaletted(src *image.Paletted) *image.Paletted {
	palette := make(color.Palette, len(src.Palette))
	for i, c := range src.Palette {
		n := color.NRGBAModel.Convert(c).(color.NRGBA)
		palette[i] = color.NRGBA{R: 255 - n.R, G: 255 - n.G, B: 255 - n.B, A: n.A}
	}
	dst := image.NewPaletted(src.Rect, palette)
	copy(dst.Pix, src.Pix)
	return dst
}

func invertNRGBA(src *image.NRGBA) *image.NRGBA {
	dst := image.NewNRGBA(src.Rect)
	w := src.Rect.Dx() * 4
	for y := 0; y < src.Rect.Dy(); y++ {
		s := src.Pix[y*src.Stride : y*src.Stride+w]
		d := dst.Pix[y*dst.Stride : y*dst.Stride+w]
		for i := 0; i < w; i += 4 {
			d[i+0] = 255 - s[i+0]
			d[i+1] = 255 - s[i+1]
			d[i+2] = 255 - s[i+2]
			d[i+3] = s[i+3]
		}
	}
	return dst
}

// invertRGBA works on premultiplied values: the negative of c under alpha a
// is a - c.
func invertRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Rect)
	w := src.Rect.Dx() * 4
	for y := 0; y < src.Rect.Dy(); y++ {
		s := src.Pix[y*src.Stride : y*src.Stride+w]
		d := dst.Pix[y*dst.Stride : y*dst.Stride+w]
		for i := 0; i < w; i += 4 {
			a := s[i+3]
			d[i+0] = a - min(s[i+0], a)
			d[i+1] = a - min(s[i+1], a)
			d[i+2] = a - min(s[i+2], a)
			d[i+3] = a
		}
	}
	return dst
}

func toNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(x, y, img.At(x, y))
		}
	}
	return dst
}
