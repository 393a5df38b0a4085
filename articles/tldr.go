package articles

import (
	"database/sql/driver"
	"encoding/json"
	"strings"

	"github.com/teranos/newsdesk/errors"
)

// EditorialContext is the generated background block of an article summary
type EditorialContext struct {
	Background   string `json:"background"`
	WhyItMatters string `json:"why_it_matters"`
	WhatToWatch  string `json:"what_to_watch"`
}

// IsComplete reports whether every field is non-blank
func (c *EditorialContext) IsComplete() bool {
	return c != nil &&
		strings.TrimSpace(c.Background) != "" &&
		strings.TrimSpace(c.WhyItMatters) != "" &&
		strings.TrimSpace(c.WhatToWatch) != ""
}

const (
	keySummary   = "summary"
	keyKeyPoints = "key_points"
	keyContext   = "editorial_context"
)

// TLDR is the summary document stored with an article.
// Keys other than the named fields are kept and written back unchanged.
type TLDR struct {
	Summary   string
	KeyPoints []string
	Context   *EditorialContext

	extra map[string]json.RawMessage
}

// HasCompleteContext reports whether the editorial context is already filled in. Nil-safe.
func (t *TLDR) HasCompleteContext() bool {
	return t != nil && t.Context.IsComplete()
}

// WithContext returns a copy of t with the editorial context replaced.
// Every other field, including unknown keys, is carried forward. Nil-safe.
func (t *TLDR) WithContext(c EditorialContext) *TLDR {
	next := &TLDR{Context: &c}
	if t == nil {
		return next
	}
	next.Summary = t.Summary
	if t.KeyPoints != nil {
		next.KeyPoints = append([]string(nil), t.KeyPoints...)
	}
	if len(t.extra) > 0 {
		next.extra = make(map[string]json.RawMessage, len(t.extra))
		for k, v := range t.extra {
			next.extra[k] = v
		}
	}
	return next
}

// UnmarshalJSON decodes the known fields and keeps the rest
func (t *TLDR) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return errors.Wrap(err, "tldr must be a JSON object")
	}
	*t = TLDR{}

	if raw, ok := fields[keySummary]; ok {
		if err := json.Unmarshal(raw, &t.Summary); err != nil {
			return errors.Wrap(err, "tldr summary must be a string")
		}
		delete(fields, keySummary)
	}
	if raw, ok := fields[keyKeyPoints]; ok {
		if err := json.Unmarshal(raw, &t.KeyPoints); err != nil {
			return errors.Wrap(err, "tldr key_points must be an array of strings")
		}
		delete(fields, keyKeyPoints)
	}
	if raw, ok := fields[keyContext]; ok {
		if !isNull(raw) {
			t.Context = &EditorialContext{}
			if err := json.Unmarshal(raw, t.Context); err != nil {
				return errors.Wrap(err, "tldr editorial_context must be an object")
			}
		}
		delete(fields, keyContext)
	}
	if len(fields) > 0 {
		t.extra = fields
	}
	return nil
}

// MarshalJSON writes the known fields over the preserved unknown keys
func (t TLDR) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(t.extra)+3)
	for k, v := range t.extra {
		out[k] = v
	}
	if t.Summary != "" {
		out[keySummary] = t.Summary
	}
	if t.KeyPoints != nil {
		out[keyKeyPoints] = t.KeyPoints
	}
	if t.Context != nil {
		out[keyContext] = t.Context
	}
	return json.Marshal(out)
}

// Value stores the TLDR as its JSON document
func (t TLDR) Value() (driver.Value, error) {
	b, err := t.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// decodeTLDR reads a nullable tldr column
func decodeTLDR(src []byte) (*TLDR, error) {
	if len(src) == 0 || isNull(src) {
		return nil, nil
	}
	var t TLDR
	if err := json.Unmarshal(src, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
