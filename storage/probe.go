package storage

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoding
	_ "image/jpeg" // register JPEG decoding
	_ "image/png"  // register PNG decoding

	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"  // register BMP decoding
	_ "golang.org/x/image/tiff" // register TIFF decoding
	_ "golang.org/x/image/webp" // register WebP decoding

	"github.com/docutag/leadimage/models"
)

// ImageInfo describes a probed image file.
type ImageInfo struct {
	Width       int
	Height      int
	ContentType string
	EXIF        *models.EXIFData
}

// Probe reads an image's dimensions and EXIF metadata without decoding
// pixel data. EXIF orientations that rotate by 90 degrees swap the
// reported width and height so callers see display dimensions.
func Probe(data []byte) (*ImageInfo, error) {
	config, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image config: %w", err)
	}

	info := &ImageInfo{
		Width:       config.Width,
		Height:      config.Height,
		ContentType: contentTypeForFormat(format),
	}

	info.EXIF = extractEXIF(data)
	if info.EXIF != nil && OrientationSwapsDims(info.EXIF.Orientation) {
		info.Width, info.Height = info.Height, info.Width
	}

	return info, nil
}

// OrientationSwapsDims reports whether an EXIF orientation value
// involves a 90-degree rotation. Orientations 5 through 8 transpose
// the image, so its stored width and height are swapped on display.
func OrientationSwapsDims(orientation int) bool {
	return orientation >= 5 && orientation <= 8
}

// extractEXIF pulls EXIF metadata out of an image file. Formats
// without EXIF support and files without EXIF blocks yield nil.
func extractEXIF(data []byte) *models.EXIFData {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}

	exifData := &models.EXIFData{}
	found := false

	stringFields := []struct {
		name exif.FieldName
		dest *string
	}{
		{exif.DateTime, &exifData.DateTime},
		{exif.DateTimeOriginal, &exifData.DateTimeOriginal},
		{exif.Make, &exifData.Make},
		{exif.Model, &exifData.Model},
		{exif.Copyright, &exifData.Copyright},
		{exif.Artist, &exifData.Artist},
		{exif.Software, &exifData.Software},
		{exif.ImageDescription, &exifData.ImageDescription},
	}

	for _, field := range stringFields {
		tag, err := x.Get(field.name)
		if err != nil {
			continue
		}
		value, err := tag.StringVal()
		if err != nil || value == "" {
			continue
		}
		*field.dest = value
		found = true
	}

	if tag, err := x.Get(exif.Orientation); err == nil {
		if value, err := tag.Int(0); err == nil {
			exifData.Orientation = value
			found = true
		}
	}

	if lat, long, err := x.LatLong(); err == nil {
		gps := &models.GPSData{
			Latitude:  lat,
			Longitude: long,
		}
		if tag, err := x.Get(exif.GPSAltitude); err == nil {
			if rat, err := tag.Rat(0); err == nil {
				gps.Altitude, _ = rat.Float64()
			}
		}
		exifData.GPS = gps
		found = true
	}

	if !found {
		return nil
	}
	return exifData
}

// contentTypeForFormat maps an image.DecodeConfig format name to a
// MIME content type
func contentTypeForFormat(format string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	case "bmp":
		return "image/bmp"
	case "tiff":
		return "image/tiff"
	default:
		return "image/" + format
	}
}
