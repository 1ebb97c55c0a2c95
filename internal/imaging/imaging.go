// Package imaging normalises tool photos before they are stored.
package imaging

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"

	"github.com/erazemk/orodjarna/internal/apperr"
)

const (
	// MaxUploadBytes bounds the size of an uploaded photo.
	MaxUploadBytes = 5 << 20
	// MaxDimension is the longest side of a stored photo.
	MaxDimension = 1024
	// JPEGQuality is the quality stored photos are encoded with.
	JPEGQuality = 85
)

var accepted = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Photo is an encoded tool photo.
type Photo struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// NormalizePhoto sniffs the format from the bytes, shrinks the image to fit
// MaxDimension and re-encodes it as JPEG. Bad input is ErrInvalidInput.
func NormalizePhoto(r io.Reader) (*Photo, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidInput, err, "reading photo")
	}
	if len(data) > MaxUploadBytes {
		return nil, apperr.Newf(apperr.CodeInvalidInput, "photo is larger than %d MB", MaxUploadBytes>>20)
	}

	detected := http.DetectContentType(data)
	if !accepted[detected] {
		return nil, apperr.Newf(apperr.CodeInvalidInput, "unsupported photo format %s, use JPEG or PNG", detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidInput, err, "decoding photo")
	}
	img = fit(img, MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "encoding photo")
	}

	b := img.Bounds()
	return &Photo{Data: buf.Bytes(), MIME: "image/jpeg", Width: b.Dx(), Height: b.Dy()}, nil
}

// fit scales img down, keeping its aspect ratio, so neither side exceeds
// maxDim. Smaller images are returned as is.
func fit(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	nw, nh := maxDim, h*maxDim/w
	if h > w {
		nw, nh = w*maxDim/h, maxDim
	}
	nw, nh = max(nw, 1), max(nh, 1)

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func init() {
	image.RegisterFormat("jpeg", "\xff\xd8", jpeg.Decode, jpeg.DecodeConfig)
	image.RegisterFormat("png", "\x89PNG", png.Decode, png.DecodeConfig)
}
