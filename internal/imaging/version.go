package imaging

import (
	"encoding/base64"
	"encoding/binary"
	"image"
	"image/color"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	// VersionSeparator joins a client supplied name and its content version.
	VersionSeparator = "?v="
	// VersionLength is the number of characters kept from the encoded hash.
	VersionLength = 11
)

// ContentVersion derives a short token from the decoded pixels of img.
//
// The token is a cache-busting heuristic: 11 base64 characters of a 64-bit
// xxhash over the dimensions and NRGBA pixel rows. It is not an integrity check.
func ContentVersion(img image.Image) string {
	bounds := img.Bounds()
	digest := xxhash.New()

	var dimensions [8]byte
	binary.LittleEndian.PutUint32(dimensions[0:4], uint32(bounds.Dx()))
	binary.LittleEndian.PutUint32(dimensions[4:8], uint32(bounds.Dy()))
	_, _ = digest.Write(dimensions[:])

	if nrgba, ok := img.(*image.NRGBA); ok {
		rowWidth := bounds.Dx() * 4
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			offset := nrgba.PixOffset(bounds.Min.X, y)
			_, _ = digest.Write(nrgba.Pix[offset : offset+rowWidth])
		}
	} else {
		row := make([]byte, bounds.Dx()*4)
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			index := 0
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				pixel := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
				row[index] = pixel.R
				row[index+1] = pixel.G
				row[index+2] = pixel.B
				row[index+3] = pixel.A
				index += 4
			}
			_, _ = digest.Write(row)
		}
	}

	var sum [8]byte
	binary.LittleEndian.PutUint64(sum[:], digest.Sum64())
	return base64.StdEncoding.EncodeToString(sum[:])[:VersionLength]
}

// VersionedName appends the content version to a client supplied name.
func VersionedName(name, version string) string {
	return name + VersionSeparator + version
}

// StripVersion removes a trailing "?v=<token>" suffix, if any.
func StripVersion(name string) string {
	if index := strings.Index(name, VersionSeparator); index >= 0 {
		return name[:index]
	}
	return name
}
