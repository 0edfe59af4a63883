package images

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/newsroom/backend/internal/imaging"
)

// Variant picks which stored payload Fetch returns.
type Variant string

const (
	VariantMain      Variant = "main"
	VariantThumbnail Variant = "thumbnail"
)

var (
	// ErrInvalidName indicates an upload without a usable client supplied name.
	ErrInvalidName = errors.New("images: invalid image name")
	// ErrUnknownVariant indicates a Fetch for a payload that does not exist.
	ErrUnknownVariant = errors.New("images: unknown variant")
)

// Image is one stored upload. Rows are written once by Ingest and never updated;
// Main and Thumbnail are always populated together.
type Image struct {
	Name      string    `gorm:"column:name;primaryKey;size:512;not null"`
	StoredAt  time.Time `gorm:"column:stored_at;not null;index:idx_images_stored_at"`
	Main      []byte    `gorm:"column:main;not null"`
	Thumbnail []byte    `gorm:"column:thumbnail;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Image) TableName() string {
	return "images"
}

// IngestResult reports the stored name and the refreshed list of names.
type IngestResult struct {
	Name  string
	Names []string
	// Created is false when a row with the same name already existed.
	Created bool
}

// Asset is a payload ready to be served. Found is false when no row matched.
type Asset struct {
	Found  bool
	Data   []byte
	Format imaging.Format
}

func (v Variant) column() (string, error) {
	switch v {
	case VariantMain:
		return "main", nil
	case VariantThumbnail:
		return "thumbnail", nil
	default:
		return "", ErrUnknownVariant
	}
}
