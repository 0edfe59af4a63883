// Package imaging decodes uploaded pictures, derives thumbnails and content
// versions, and re-encodes images in the format implied by a file name.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"path"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Format names an image container the package knows about.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatGIF  Format = "gif"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
	// FormatWebP can be decoded but not encoded.
	FormatWebP Format = "webp"
)

const jpegQuality = 90

// MaxPixels caps the decoded area of an upload. Headers claiming more are
// rejected before any pixel buffer is allocated.
const MaxPixels = 50_000_000

var (
	// ErrDecode reports bytes that could not be decoded as an image.
	ErrDecode = errors.New("imaging: decode failed")
	// ErrEncode reports an image that could not be written in the requested format.
	ErrEncode = errors.New("imaging: encode failed")
	// ErrUnsupportedFormat is returned when a name maps to no known encoder.
	ErrUnsupportedFormat = fmt.Errorf("%w: unsupported output format", ErrEncode)
)

var formatsByExtension = map[string]Format{
	".png":  FormatPNG,
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".jpe":  FormatJPEG,
	".gif":  FormatGIF,
	".bmp":  FormatBMP,
	".tif":  FormatTIFF,
	".tiff": FormatTIFF,
	".webp": FormatWebP,
}

var contentTypes = map[Format]string{
	FormatPNG:  "image/png",
	FormatJPEG: "image/jpeg",
	FormatGIF:  "image/gif",
	FormatBMP:  "image/bmp",
	FormatTIFF: "image/tiff",
	FormatWebP: "image/webp",
}

// FormatFromName infers the output format from the extension of name.
// A trailing version suffix ("?v=...") is ignored.
func FormatFromName(name string) (Format, error) {
	extension := strings.ToLower(path.Ext(StripVersion(name)))
	format, ok := formatsByExtension[extension]
	if !ok {
		return "", fmt.Errorf("%w: extension %q", ErrUnsupportedFormat, extension)
	}
	return format, nil
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if contentType, ok := contentTypes[f]; ok {
		return contentType
	}
	return "application/octet-stream"
}

// Decode reads a fully buffered image. Images with no pixels or more than
// MaxPixels are rejected as ErrDecode.
func Decode(data []byte) (image.Image, Format, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty payload", ErrDecode)
	}
	config, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if config.Width <= 0 || config.Height <= 0 {
		return nil, "", fmt.Errorf("%w: empty image bounds %dx%d", ErrDecode, config.Width, config.Height)
	}
	if int64(config.Width)*int64(config.Height) > MaxPixels {
		return nil, "", fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrDecode, config.Width, config.Height, MaxPixels)
	}

	decoded, name, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if decoded.Bounds().Empty() {
		return nil, "", fmt.Errorf("%w: empty image bounds", ErrDecode)
	}
	return decoded, Format(name), nil
}

// Encode writes img to w in the given format.
func Encode(w io.Writer, img image.Image, format Format) error {
	var err error
	switch format {
	case FormatPNG:
		err = png.Encode(w, img)
	case FormatJPEG:
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality})
	case FormatGIF:
		err = gif.Encode(w, img, nil)
	case FormatBMP:
		err = bmp.Encode(w, img)
	case FormatTIFF:
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return nil
}

// EncodeBytes encodes img in the given format and returns the buffer.
func EncodeBytes(img image.Image, format Format) ([]byte, error) {
	var buffer bytes.Buffer
	if err := Encode(&buffer, img, format); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// Transcode decodes data and re-encodes it in the format implied by name.
func Transcode(data []byte, name string) ([]byte, Format, error) {
	format, err := FormatFromName(name)
	if err != nil {
		return nil, "", err
	}
	decoded, _, err := Decode(data)
	if err != nil {
		return nil, "", err
	}
	encoded, err := EncodeBytes(decoded, format)
	if err != nil {
		return nil, "", err
	}
	return encoded, format, nil
}
