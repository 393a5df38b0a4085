package articles

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/teranos/newsdesk/errors"
)

// Block types understood by Text. Other types round-trip untouched and contribute no text,
// as do known types whose content has an unexpected shape.
const (
	BlockParagraph = "paragraph"
	BlockHeading   = "heading"
	BlockQuote     = "quote"
	BlockList      = "list"
	BlockHTML      = "html"
)

// Block is one element of structured article content.
// Text carries the content of string-valued blocks, Items the entries of a list.
type Block struct {
	Type  string
	Text  string
	Items []string

	raw json.RawMessage // original content of unknown or misshapen blocks
}

type wireBlock struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content,omitempty"`
}

// UnmarshalJSON decodes {"type": ..., "content": ...}
func (b *Block) UnmarshalJSON(data []byte) error {
	var w wireBlock
	if err := json.Unmarshal(data, &w); err != nil {
		return errors.Wrap(err, "invalid content block")
	}
	*b = Block{Type: w.Type}

	if len(w.Content) == 0 || isNull(w.Content) {
		return nil
	}
	switch w.Type {
	case BlockList:
		if err := json.Unmarshal(w.Content, &b.Items); err != nil {
			b.Items = nil
			b.raw = w.Content
		}
	case BlockParagraph, BlockHeading, BlockQuote, BlockHTML:
		if err := json.Unmarshal(w.Content, &b.Text); err != nil {
			b.raw = w.Content
		}
	default:
		b.raw = w.Content
	}
	return nil
}

// MarshalJSON encodes the block in the same shape it was read from
func (b Block) MarshalJSON() ([]byte, error) {
	w := wireBlock{Type: b.Type}
	if b.raw != nil {
		w.Content = b.raw
		return json.Marshal(w)
	}
	var err error
	switch b.Type {
	case BlockList:
		items := b.Items
		if items == nil {
			items = []string{}
		}
		w.Content, err = json.Marshal(items)
	case BlockParagraph, BlockHeading, BlockQuote, BlockHTML:
		w.Content, err = json.Marshal(b.Text)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// PlainText returns the readable text of the block
func (b Block) PlainText() string {
	switch b.Type {
	case BlockParagraph, BlockHeading, BlockQuote:
		return strings.TrimSpace(b.Text)
	case BlockList:
		lines := make([]string, 0, len(b.Items))
		for _, item := range b.Items {
			if item = strings.TrimSpace(item); item != "" {
				lines = append(lines, "- "+item)
			}
		}
		return strings.Join(lines, "\n")
	case BlockHTML:
		return htmlText(b.Text)
	default:
		return ""
	}
}

// htmlText reduces an HTML fragment to whitespace-normalized text
func htmlText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// Content is article body text: either a plain string or a list of blocks.
// The zero value is empty plain content.
type Content struct {
	plain  string
	blocks []Block
	isList bool
}

// PlainContent wraps a plain string body
func PlainContent(s string) Content {
	return Content{plain: s}
}

// BlockContent wraps a structured body
func BlockContent(blocks ...Block) Content {
	return Content{blocks: blocks, isList: true}
}

// IsBlocks reports whether the body is structured
func (c Content) IsBlocks() bool { return c.isList }

// Blocks returns the structured body, nil for plain content
func (c Content) Blocks() []Block { return c.blocks }

// Text extracts the readable body: the plain string, or the non-empty block texts
// separated by blank lines.
func (c Content) Text() string {
	if !c.isList {
		return strings.TrimSpace(c.plain)
	}
	parts := make([]string, 0, len(c.blocks))
	for _, b := range c.blocks {
		if t := b.PlainText(); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

// UnmarshalJSON accepts a JSON string, an array of blocks, or null
func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || isNull(data):
		*c = Content{}
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.Wrap(err, "invalid plain content")
		}
		*c = PlainContent(s)
	case data[0] == '[':
		var blocks []Block
		if err := json.Unmarshal(data, &blocks); err != nil {
			return err
		}
		*c = BlockContent(blocks...)
	default:
		return errors.Newf("content must be a string or an array of blocks, got %.20s", data)
	}
	return nil
}

// MarshalJSON encodes plain content as a string and blocks as an array
func (c Content) MarshalJSON() ([]byte, error) {
	if c.isList {
		blocks := c.blocks
		if blocks == nil {
			blocks = []Block{}
		}
		return json.Marshal(blocks)
	}
	return json.Marshal(c.plain)
}

// Value stores content as its JSON document
func (c Content) Value() (driver.Value, error) {
	b, err := c.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan reads content stored as JSON. Legacy rows holding bare text or a JSON
// scalar such as a number are read as plain content.
func (c *Content) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*c = Content{}
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return errors.Newf("cannot scan %T into content", src)
	}

	trimmed := bytes.TrimSpace(data)
	if !json.Valid(trimmed) || isScalar(trimmed) {
		*c = PlainContent(string(data))
		return nil
	}
	return c.UnmarshalJSON(trimmed)
}

// isScalar reports whether valid JSON data is a number or boolean
func isScalar(data []byte) bool {
	if len(data) == 0 || isNull(data) {
		return false
	}
	switch data[0] {
	case '"', '[', '{':
		return false
	}
	return true
}

func isNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}
