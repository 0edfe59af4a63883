package posts

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Operation selects how a SaveRequest is applied.
type Operation string

const (
	// OperationCreate inserts a new post with a store assigned id.
	OperationCreate Operation = "create"
	// OperationUpdate overwrites the post with the given id.
	OperationUpdate Operation = "update"
)

var (
	// ErrPostNotFound indicates an update targeted an id with no stored row.
	ErrPostNotFound = errors.New("posts: post not found")
	// ErrInvalidPage indicates a negative pagination offset.
	ErrInvalidPage = errors.New("posts: invalid page")
	// ErrUnknownOperation indicates a SaveRequest without a recognised operation.
	ErrUnknownOperation = errors.New("posts: unknown operation")
	// ErrInvalidPostID indicates an update request with a negative id.
	ErrInvalidPostID = errors.New("posts: invalid post id")
)

// ImageRefs is the ordered list of image names referenced by a post.
// Names are not checked against the image store.
type ImageRefs []string

// Value stores the list as a JSON array.
func (r ImageRefs) Value() (driver.Value, error) {
	if r == nil {
		return "[]", nil
	}
	encoded, err := json.Marshal([]string(r))
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}

// Scan reads a JSON array written by Value.
func (r *ImageRefs) Scan(value interface{}) error {
	var raw []byte
	switch typed := value.(type) {
	case nil:
		*r = ImageRefs{}
		return nil
	case string:
		raw = []byte(typed)
	case []byte:
		raw = typed
	default:
		return fmt.Errorf("posts: cannot scan %T into ImageRefs", value)
	}
	decoded := []string{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("posts: decode image refs: %w", err)
	}
	*r = decoded
	return nil
}

// GormDataType keeps the column portable across sqlite and postgres.
func (ImageRefs) GormDataType() string {
	return "text"
}

// Post is a stored article. Posts are ordered by PostTime, then ID, both descending.
type Post struct {
	ID       int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Title    string    `gorm:"column:title;type:text;not null"`
	Images   ImageRefs `gorm:"column:images;not null"`
	Content  string    `gorm:"column:content;type:text;not null"`
	PostTime time.Time `gorm:"column:post_time;not null;index:idx_posts_post_time"`
}

// TableName provides the explicit table binding for GORM.
func (Post) TableName() string {
	return "posts"
}

// Draft carries the client editable fields of a post.
type Draft struct {
	Title    string
	Images   []string
	Content  string
	PostTime time.Time
}

// SaveRequest describes one upsert. Build it with CreateRequest or UpdateRequest.
type SaveRequest struct {
	Operation Operation
	ID        int64
	Draft     Draft
}

// CreateRequest asks for a new post.
func CreateRequest(draft Draft) SaveRequest {
	return SaveRequest{Operation: OperationCreate, Draft: draft}
}

// UpdateRequest asks for the post with id to be overwritten.
func UpdateRequest(id int64, draft Draft) SaveRequest {
	return SaveRequest{Operation: OperationUpdate, ID: id, Draft: draft}
}

// RequestFromWireID maps the legacy wire convention, where a negative id means
// "not yet persisted", onto an explicit request.
func RequestFromWireID(id int64, draft Draft) SaveRequest {
	if id < 0 {
		return CreateRequest(draft)
	}
	return UpdateRequest(id, draft)
}

func (r SaveRequest) toPost() Post {
	images := ImageRefs(append([]string{}, r.Draft.Images...))
	return Post{
		ID:       r.ID,
		Title:    r.Draft.Title,
		Images:   images,
		Content:  r.Draft.Content,
		PostTime: r.Draft.PostTime.UTC(),
	}
}
