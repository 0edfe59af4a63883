package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/newsroom/backend/internal/posts"
)

// Post times travel without a zone and are interpreted as UTC.
const (
	postTimeLayout      = "2006-01-02T15:04:05.999999999"
	postTimeSpaceLayout = "2006-01-02 15:04:05.999999999"
)

type postTime struct {
	time.Time
}

func (t postTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(postTimeLayout))
}

func (t *postTime) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return fmt.Errorf("posttime must not be null")
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("posttime must be a string: %w", err)
	}
	parsed, err := parsePostTime(raw)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func parsePostTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return parsed.UTC(), nil
	}
	for _, layout := range []string{postTimeLayout, postTimeSpaceLayout} {
		if parsed, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("posttime %q is not a recognised timestamp", raw)
}

type articlePayload struct {
	ID       *int64   `json:"id"`
	Title    string   `json:"title"`
	Images   []string `json:"images"`
	Content  string   `json:"content"`
	PostTime postTime `json:"posttime"`
}

func (p articlePayload) saveRequest() posts.SaveRequest {
	return posts.RequestFromWireID(*p.ID, posts.Draft{
		Title:    p.Title,
		Images:   p.Images,
		Content:  p.Content,
		PostTime: p.PostTime.Time,
	})
}

type articleResponse struct {
	ID       int64    `json:"id"`
	Title    string   `json:"title"`
	Images   []string `json:"images"`
	Content  string   `json:"content"`
	PostTime postTime `json:"posttime"`
}

func newArticleResponses(records []posts.Post) []articleResponse {
	response := make([]articleResponse, 0, len(records))
	for _, record := range records {
		refs := []string(record.Images)
		if refs == nil {
			refs = []string{}
		}
		response = append(response, articleResponse{
			ID:       record.ID,
			Title:    record.Title,
			Images:   refs,
			Content:  record.Content,
			PostTime: postTime{Time: record.PostTime},
		})
	}
	return response
}
