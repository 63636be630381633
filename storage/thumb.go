package storage

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// jpegQuality is the encoding quality for JPEG thumbnails.
const jpegQuality = 85

// Thumbnail renders an image scaled to fit inside a size×size box.
// Aspect ratio is preserved and images already inside the box are
// re-encoded at their own size, never upscaled. PNG input stays PNG to
// keep transparency; every other format is encoded as JPEG.
func Thumbnail(data []byte, size int) ([]byte, string, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := src.Bounds()
	width, height := FitBox(bounds.Dx(), bounds.Dy(), size)

	var scaled image.Image = src
	if width != bounds.Dx() || height != bounds.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)
		scaled = dst
	}

	var buf bytes.Buffer
	if format == "png" {
		if err := png.Encode(&buf, scaled); err != nil {
			return nil, "", fmt.Errorf("failed to encode thumbnail: %w", err)
		}
		return buf.Bytes(), "image/png", nil
	}

	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}

// FitBox computes the dimensions of an image scaled to fit inside a
// square box of the given size. Images already inside the box keep
// their dimensions; thumbnails never exceed the original.
func FitBox(width, height, size int) (int, int) {
	if size <= 0 || (width <= size && height <= size) {
		return width, height
	}

	if width >= height {
		h := height * size / width
		if h < 1 {
			h = 1
		}
		return size, h
	}

	w := width * size / height
	if w < 1 {
		w = 1
	}
	return w, size
}

// ThumbPath returns the canonical storage path for a cached thumbnail
// rendition of the named image at the given box size.
func ThumbPath(name string, size int, contentType string) string {
	ext := extensionFromContentType(contentType)
	if ext == "" {
		ext = ".jpg"
	}
	return fmt.Sprintf("thumbs/%d/%s%s", size, name, ext)
}
