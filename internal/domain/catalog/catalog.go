package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Catalog is a show's table of contents
type Catalog struct {
	ID          FlexString `json:"content_id"`
	Title       string     `json:"title"`
	Subtitle    string     `json:"subtitle"`
	Author      string     `json:"author"`
	Description string     `json:"share_desc"`
	CoverURL    string     `json:"background_img"`
	Parts       []Part     `json:"catalog"`
}

// Part groups articles into a chapter
type Part struct {
	Title    string    `json:"title"`
	Articles []Article `json:"part"`
}

// Article is a single episode with its audio and transcript locations
type Article struct {
	ID         FlexString `json:"article_id"`
	SortNumber FlexInt    `json:"sort_number"`
	Title      string     `json:"title"`
	Duration   string     `json:"duration_str"`
	MediaURL   string     `json:"media_key_full_url"`
	ContentURL string     `json:"content_url"`
}

// Show holds the series-level metadata used for audio tags
type Show struct {
	Title  string `json:"title"`
	Author string `json:"author"`
}

// Subscription is one subscribed show
type Subscription struct {
	ContentID FlexString `json:"content_id"`
	Title     string     `json:"title"`
	Subtitle  string     `json:"subtitle"`
}

// DisplayTitle joins title and subtitle the way listings show them
func (s Subscription) DisplayTitle() string {
	if s.Subtitle == "" {
		return s.Title
	}
	return s.Title + ": " + s.Subtitle
}

// SearchResult is one hit from the keyword search
type SearchResult struct {
	ID          FlexString `json:"id"`
	DataType    string     `json:"data_type"`
	Title       string     `json:"title"`
	Subtitle    string     `json:"subtitle"`
	Author      string     `json:"author"`
	Description string     `json:"share_desc"`
}

// IsContent reports whether the hit is a show rather than an article or user
func (r SearchResult) IsContent() bool {
	return r.DataType == "content"
}

// DisplayTitle joins title and subtitle the way listings show them
func (r SearchResult) DisplayTitle() string {
	if r.Subtitle == "" {
		return r.Title
	}
	return r.Title + ": " + r.Subtitle
}

// Articles returns every article across all parts in catalog order
func (c *Catalog) Articles() []Article {
	var out []Article
	for _, p := range c.Parts {
		out = append(out, p.Articles...)
	}
	return out
}

// FlexInt accepts a JSON number or a numeric string. The API is not
// consistent about which one it sends for sort numbers.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", s, err)
	}
	*f = FlexInt(n)
	return nil
}

func (f FlexInt) Int() int {
	return int(f)
}

func (f FlexInt) String() string {
	return strconv.Itoa(int(f))
}

// FlexString accepts a JSON string or number and keeps its textual form.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid identifier %s: %w", b, err)
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string {
	return string(f)
}
