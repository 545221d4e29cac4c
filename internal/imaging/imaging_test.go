package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func solid(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{120, 80, 40, 255})
		}
	}
	return img
}

func encodeJPEG(w, h int) []byte {
	var buf bytes.Buffer
	jpeg.Encode(&buf, solid(w, h), &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func encodePNG(w, h int) []byte {
	var buf bytes.Buffer
	png.Encode(&buf, solid(w, h))
	return buf.Bytes()
}

func TestProcessPhotoJPEG(t *testing.T) {
	p, err := ProcessPhoto(bytes.NewReader(encodeJPEG(100, 60)))
	if err != nil {
		t.Fatalf("ProcessPhoto: %v", err)
	}
	if p.MIME != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", p.MIME)
	}
	if p.Width != 100 || p.Height != 60 {
		t.Errorf("expected 100x60, got %dx%d", p.Width, p.Height)
	}
	if len(p.Data) == 0 {
		t.Error("expected data")
	}
}

func TestProcessPhotoPNGBecomesJPEG(t *testing.T) {
	p, err := ProcessPhoto(bytes.NewReader(encodePNG(40, 40)))
	if err != nil {
		t.Fatalf("ProcessPhoto: %v", err)
	}
	if p.MIME != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", p.MIME)
	}
	if _, err := jpeg.Decode(bytes.NewReader(p.Data)); err != nil {
		t.Errorf("output is not JPEG: %v", err)
	}
}

func TestProcessPhotoFitsLongestSide(t *testing.T) {
	p, err := ProcessPhoto(bytes.NewReader(encodeJPEG(2560, 1280)))
	if err != nil {
		t.Fatalf("ProcessPhoto: %v", err)
	}
	if p.Width != MaxDimension || p.Height != MaxDimension/2 {
		t.Errorf("expected %dx%d, got %dx%d", MaxDimension, MaxDimension/2, p.Width, p.Height)
	}
}

func TestProcessPhotoRejectsText(t *testing.T) {
	_, err := ProcessPhoto(bytes.NewReader([]byte("definitely not a photo")))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestProcessPhotoRejectsGIF(t *testing.T) {
	_, err := ProcessPhoto(bytes.NewReader([]byte("GIF89a\x01\x00\x01\x00")))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestProcessPhotoRejectsOversizedUpload(t *testing.T) {
	data := append(encodeJPEG(10, 10), make([]byte, MaxUploadBytes)...)
	_, err := ProcessPhoto(bytes.NewReader(data))
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}
