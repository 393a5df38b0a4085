// Package articles is the record store for news articles: their content,
// summary documents and the filters used to select them for batch jobs.
package articles

import (
	"time"

	"github.com/teranos/newsdesk/errors"
)

// Status is the publication state of an article
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// Article is one record of the articles table
type Article struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Excerpt     string     `json:"excerpt,omitempty"`
	Content     Content    `json:"content"`
	TLDR        *TLDR      `json:"tldr,omitempty"`
	Status      Status     `json:"status"`
	Category    string     `json:"category,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// DecodeErr is set when a stored column could not be decoded.
	// The other fields hold what was readable.
	DecodeErr error `json:"-"`
}

// Patch lists the fields Update writes. Nil fields are left unchanged.
type Patch struct {
	TLDR   *TLDR
	Status *Status
}

// IsEmpty reports whether the patch changes nothing
func (p Patch) IsEmpty() bool {
	return p.TLDR == nil && p.Status == nil
}

// ErrInvalidFilter is returned for filters that cannot select anything meaningful
// Returned errors also match errors.ErrInvalidRequest.
var ErrInvalidFilter = errors.New("invalid filter")

func invalidFilter(format string, args ...interface{}) error {
	return errors.WrapAs(ErrInvalidFilter, errors.ErrInvalidRequest, format, args...)
}

// Filter selects articles for enumeration. Zero fields match everything.
type Filter struct {
	Status          Status     `json:"status,omitempty"`
	Category        string     `json:"category,omitempty"`
	PublishedAfter  *time.Time `json:"publishedAfter,omitempty"`
	PublishedBefore *time.Time `json:"publishedBefore,omitempty"`
}

// Validate rejects unknown statuses and inverted date ranges
func (f Filter) Validate() error {
	if f.Status != "" && !f.Status.Valid() {
		return errors.WithHint(
			invalidFilter("unknown status %q", f.Status),
			"Use one of: draft, published, archived")
	}
	if f.PublishedAfter != nil && f.PublishedBefore != nil && !f.PublishedAfter.Before(*f.PublishedBefore) {
		return invalidFilter("publishedAfter %s is not before publishedBefore %s",
			f.PublishedAfter.Format(time.RFC3339), f.PublishedBefore.Format(time.RFC3339))
	}
	return nil
}
