// Package raster decodes, resizes, and encodes source images for the
// derivative generator.
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// Format is a raster encoding supported by the codec.
type Format string

const (
	JPEG Format = "jpeg"
	PNG  Format = "png"
	GIF  Format = "gif"
	TIFF Format = "tiff"
	BMP  Format = "bmp"
	WEBP Format = "webp"
)

// jpegQuality and webpQuality are the encoder qualities for lossy formats.
const (
	jpegQuality = 90
	webpQuality = 90
)

// ErrUnsupportedFormat is returned when neither the file extension nor the
// detected format maps to a known encoder.
var ErrUnsupportedFormat = errors.New("unsupported image format")

var formatsByExt = map[string]Format{
	".jpg":  JPEG,
	".jpeg": JPEG,
	".png":  PNG,
	".gif":  GIF,
	".tif":  TIFF,
	".tiff": TIFF,
	".bmp":  BMP,
	".webp": WEBP,
}

var contentTypes = map[Format]string{
	JPEG: "image/jpeg",
	PNG:  "image/png",
	GIF:  "image/gif",
	TIFF: "image/tiff",
	BMP:  "image/bmp",
	WEBP: "image/webp",
}

var imagingFormats = map[Format]imaging.Format{
	JPEG: imaging.JPEG,
	PNG:  imaging.PNG,
	GIF:  imaging.GIF,
	TIFF: imaging.TIFF,
	BMP:  imaging.BMP,
}

// Decode reads a complete image from r, applying the EXIF orientation tag.
// The returned string is the format name reported by the registered decoder
// (for example "jpeg", "png" or "webp").
func Decode(r io.Reader) (image.Image, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("reading image: %w", err)
	}

	_, detected, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", err
	}
	return img, detected, nil
}

// ResizeToFit scales img down so it fits within width x height, preserving
// the aspect ratio. Images already inside the box are returned at their
// original size.
func ResizeToFit(img image.Image, width, height int) image.Image {
	return imaging.Fit(img, width, height, imaging.Lanczos)
}

// Encode writes img to w in the given format.
func Encode(w io.Writer, img image.Image, f Format) error {
	if f == WEBP {
		return webp.Encode(w, img, &webp.Options{Quality: webpQuality})
	}
	imgFormat, ok := imagingFormats[f]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
	return imaging.Encode(w, img, imgFormat, imaging.JPEGQuality(jpegQuality))
}

// FormatForFile picks the output format for a file: the extension wins, and
// detected (as returned by Decode) is used when the extension is unknown.
func FormatForFile(name, detected string) (Format, error) {
	if f, ok := formatsByExt[strings.ToLower(filepath.Ext(name))]; ok {
		return f, nil
	}
	if f := Format(strings.ToLower(detected)); contentTypes[f] != "" {
		return f, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
}

// ContentType returns the MIME type for f, or application/octet-stream.
func ContentType(f Format) string {
	if ct, ok := contentTypes[f]; ok {
		return ct
	}
	return "application/octet-stream"
}
