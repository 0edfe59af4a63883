package imaging

import (
	"image"

	"golang.org/x/image/draw"
)

const (
	ThumbnailMaxWidth  = 100
	ThumbnailMaxHeight = 100
)

// Thumbnail scales src down to fit inside maxWidth x maxHeight, keeping the
// aspect ratio. Images that already fit, or have no pixels, are returned unchanged.
func Thumbnail(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 || (width <= maxWidth && height <= maxHeight) {
		return src
	}

	targetWidth := maxWidth
	targetHeight := height * maxWidth / width
	if targetHeight > maxHeight {
		targetHeight = maxHeight
		targetWidth = width * maxHeight / height
	}
	if targetWidth < 1 {
		targetWidth = 1
	}
	if targetHeight < 1 {
		targetHeight = 1
	}

	dst := image.NewNRGBA(image.Rect(0, 0, targetWidth, targetHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)
	return dst
}
