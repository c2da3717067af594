// Package api provides the client and wire types for the video processing
// backend's REST surface.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ID is an opaque backend identifier. The backend sends integer ids; the
// client keeps them as strings.
type ID string

// UnmarshalJSON accepts either a JSON string or a JSON number.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// VideoStatus is the lifecycle state of a video as reported by the backend.
type VideoStatus int

const (
	StatusQueued VideoStatus = iota
	StatusProcessing
	StatusReady
	StatusFailed
)

// String returns the display name of the status.
func (s VideoStatus) String() string {
	switch s {
	case StatusQueued:
		return "Queued"
	case StatusProcessing:
		return "Processing"
	case StatusReady:
		return "Ready"
	case StatusFailed:
		return "Failed"
	}
	return fmt.Sprintf("VideoStatus(%d)", int(s))
}

// WireName returns the value the backend accepts for s. The backend calls a
// queued video "Draft".
func (s VideoStatus) WireName() string {
	if s == StatusQueued {
		return "Draft"
	}
	return s.String()
}

// ParseStatus maps a wire value to a VideoStatus. "Draft" is the backend's
// name for a freshly created video and maps to StatusQueued.
func ParseStatus(s string) (VideoStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "queued", "draft", "":
		return StatusQueued, nil
	case "processing":
		return StatusProcessing, nil
	case "ready":
		return StatusReady, nil
	case "failed":
		return StatusFailed, nil
	}
	return StatusQueued, fmt.Errorf("unknown video status %q", s)
}

func (s VideoStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.WireName())
}

func (s *VideoStatus) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = StatusQueued
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode status: %w", err)
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Video is a media asset as stored by the catalog.
type Video struct {
	ID          ID          `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	VideoURL    string      `json:"video_url,omitempty"`
	FilePath    string      `json:"file_path,omitempty"`
	Duration    float64     `json:"duration"`
	Status      VideoStatus `json:"status"`
	CreatedAt   string      `json:"created_at,omitempty"`
}

// UnmarshalJSON tolerates a null duration, which the backend sends before
// the media has been inspected.
func (v *Video) UnmarshalJSON(data []byte) error {
	type plain Video
	var aux struct {
		plain
		Duration *float64 `json:"duration"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*v = Video(aux.plain)
	if aux.Duration != nil {
		v.Duration = *aux.Duration
	}
	return nil
}

// Source returns the best known location of the media.
func (v Video) Source() string {
	if v.VideoURL != "" {
		return v.VideoURL
	}
	return v.FilePath
}

// VideoCreate is the payload for POST /videos/.
type VideoCreate struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	VideoURL    string   `json:"video_url,omitempty"`
	Duration    *float64 `json:"duration,omitempty"`
}

// VideoUpdate is the payload for PATCH /videos/{id}. Nil fields are left
// unchanged by the backend.
type VideoUpdate struct {
	Title       *string      `json:"title,omitempty"`
	Description *string      `json:"description,omitempty"`
	Status      *VideoStatus `json:"status,omitempty"`
}

// Empty reports whether u changes nothing.
func (u VideoUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Status == nil
}

// Range is a [Start, End] time window in seconds.
type Range struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Length returns End - Start.
func (r Range) Length() float64 { return r.End - r.Start }

func (r Range) String() string {
	return fmt.Sprintf("%.1fs-%.1fs", r.Start, r.End)
}

// SplitRequest is the body of POST /videos/{id}/split.
type SplitRequest struct {
	Segments []Range `json:"segments"`
}

// ProducedSegment is a clip rendered by the backend. Start and End are only
// set when the backend reports the underlying window.
type ProducedSegment struct {
	ID       ID      `json:"id"`
	Filename string  `json:"filename,omitempty"`
	URL      string  `json:"url"`
	Start    float64 `json:"start,omitempty"`
	End      float64 `json:"end,omitempty"`
}

// Window returns the time window the segment was cut from.
func (p ProducedSegment) Window() Range {
	return Range{Start: p.Start, End: p.End}
}

// SplitResponse acknowledges a split job. Completion is reported later
// through the video status and the segment listing, so the per-segment
// entries of the acknowledgement are not decoded.
type SplitResponse struct {
	ParentID ID `json:"parent_id"`
}

// TokenResponse is returned by POST /token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
}

// ListQuery selects a page of videos.
type ListQuery struct {
	Page   int
	Limit  int
	Search string
	Status *VideoStatus
}

// IsLastPage reports whether a page holding n results is the final one.
func IsLastPage(n, limit int) bool {
	return n < limit
}
