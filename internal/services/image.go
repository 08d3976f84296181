package services

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"

	"github.com/medinfo-ai/medinfo/internal/models"
)

const jpegQuality = 90

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// ImageDecoder validates uploaded report photos and shrinks oversized ones
// before they are sent to the model.
type ImageDecoder struct {
	MaxBytes int64
	MaxEdge  int
}

func NewImageDecoder(maxBytes int64, maxEdge int) *ImageDecoder {
	return &ImageDecoder{MaxBytes: maxBytes, MaxEdge: maxEdge}
}

// Decode reads r fully and returns a JPEG or PNG image. The content type is
// sniffed from the bytes; the client-declared type is not trusted.
func (d *ImageDecoder) Decode(r io.Reader) (*models.Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, d.MaxBytes+1))
	if err != nil {
		return nil, models.WrapError(models.KindInvalidImage, "decode image", "failed to read image", err)
	}
	return d.DecodeBytes(data)
}

func (d *ImageDecoder) DecodeBytes(data []byte) (*models.Image, error) {
	if len(data) == 0 {
		return nil, models.NewError(models.KindInvalidImage, "decode image", "image is empty")
	}
	if int64(len(data)) > d.MaxBytes {
		return nil, models.NewError(models.KindInvalidImage, "decode image",
			fmt.Sprintf("image exceeds %d bytes", d.MaxBytes))
	}

	mimeType := http.DetectContentType(data)
	if !allowedImageTypes[mimeType] {
		return nil, models.WrapError(models.KindInvalidImage, "decode image",
			fmt.Sprintf("unsupported image type %s", mimeType), models.ErrUnsupportedImage)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, models.WrapError(models.KindInvalidImage, "decode image", "failed to decode image", err)
	}

	bounds := img.Bounds()
	if d.MaxEdge <= 0 || (bounds.Dx() <= d.MaxEdge && bounds.Dy() <= d.MaxEdge) {
		return &models.Image{
			MIMEType: mimeType,
			Data:     data,
			Width:    bounds.Dx(),
			Height:   bounds.Dy(),
		}, nil
	}

	resized := d.downscale(img)
	var buf bytes.Buffer
	if mimeType == "image/png" {
		err = png.Encode(&buf, resized)
	} else {
		err = jpeg.Encode(&buf, resized, &jpeg.Options{Quality: jpegQuality})
	}
	if err != nil {
		return nil, models.WrapError(models.KindInvalidImage, "decode image", "failed to re-encode image", err)
	}

	return &models.Image{
		MIMEType: mimeType,
		Data:     buf.Bytes(),
		Width:    resized.Bounds().Dx(),
		Height:   resized.Bounds().Dy(),
	}, nil
}

// downscale fits img inside MaxEdge x MaxEdge keeping the aspect ratio.
func (d *ImageDecoder) downscale(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w >= h {
		h = max(1, h*d.MaxEdge/w)
		w = d.MaxEdge
	} else {
		w = max(1, w*d.MaxEdge/h)
		h = d.MaxEdge
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
