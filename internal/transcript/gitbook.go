package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"vistopia/internal/domain/catalog"
	"vistopia/internal/fsutil"
)

const (
	bookFileName    = "book.json"
	readmeFileName  = "README.md"
	summaryFileName = "SUMMARY.md"
)

type bookConfig struct {
	Title         string                 `json:"title"`
	Author        string                 `json:"author,omitempty"`
	Description   string                 `json:"description,omitempty"`
	Language      string                 `json:"language"`
	Structure     map[string]string      `json:"structure"`
	PluginsConfig map[string]interface{} `json:"pluginsConfig"`
	PDF           map[string]interface{} `json:"pdf"`
}

// book lays out a GitBook source tree. SUMMARY.md is appended to as each
// article lands on disk, so it always reflects what has been written.
type book struct {
	dir       string
	multiPart bool
	seenParts map[int]bool
}

func newBook(dir string, cat *catalog.Catalog, author, language string) (*book, error) {
	cfg := bookConfig{
		Title:       cat.Title,
		Author:      author,
		Description: cat.Description,
		Language:    language,
		Structure: map[string]string{
			"readme":  readmeFileName,
			"summary": summaryFileName,
		},
		PluginsConfig: map[string]interface{}{
			"theme-default": map[string]interface{}{"showLevel": true},
		},
		PDF: map[string]interface{}{
			"pageNumbers": true,
			"paperSize":   "a4",
		},
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode book config: %w", err)
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(dir, bookFileName), buf.Bytes()); err != nil {
		return nil, err
	}

	var readme strings.Builder
	fmt.Fprintf(&readme, "# %s\n\n", cat.Title)
	if cat.Subtitle != "" {
		fmt.Fprintf(&readme, "> %s\n\n", cat.Subtitle)
	}
	if author != "" {
		fmt.Fprintf(&readme, "%s\n\n", author)
	}
	if cat.Description != "" {
		fmt.Fprintf(&readme, "%s\n", cat.Description)
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(dir, readmeFileName), []byte(readme.String())); err != nil {
		return nil, err
	}

	header := "# Summary\n\n* [" + escapeLinkText(cat.Title) + "](" + readmeFileName + ")\n"
	if err := os.WriteFile(filepath.Join(dir, summaryFileName), []byte(header), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write summary: %w", err)
	}

	return &book{
		dir:       dir,
		multiPart: len(cat.Parts) > 1,
		seenParts: make(map[int]bool),
	}, nil
}

// partDir is the directory, relative to the book root, holding articles
// of part index. Single-part books keep articles at the root.
func (b *book) partDir(index int, part catalog.Part) string {
	if !b.multiPart {
		return ""
	}
	title := part.Title
	if strings.TrimSpace(title) == "" {
		title = fmt.Sprintf("part-%d", index+1)
	}
	return fmt.Sprintf("%02d-%s", index+1, fsutil.SanitizeFilename(title))
}

// beginPart creates the part directory and its chapter entry the first
// time an article of that part is reached.
func (b *book) beginPart(index int, part catalog.Part) error {
	if !b.multiPart || b.seenParts[index] {
		return nil
	}
	b.seenParts[index] = true

	rel := b.partDir(index, part)
	if err := os.MkdirAll(filepath.Join(b.dir, rel), 0o755); err != nil {
		return fmt.Errorf("failed to create part directory: %w", err)
	}

	title := part.Title
	if strings.TrimSpace(title) == "" {
		title = rel
	}
	partReadme := filepath.Join(b.dir, rel, readmeFileName)
	if err := fsutil.WriteFileAtomic(partReadme, []byte("# "+title+"\n")); err != nil {
		return err
	}
	return b.appendSummary(fmt.Sprintf("\n* [%s](%s)\n", escapeLinkText(title), linkTarget(rel+"/"+readmeFileName)))
}

// addArticle records a written article at rel, relative to the book root
func (b *book) addArticle(rel, title string) error {
	indent := ""
	if b.multiPart {
		indent = "    "
	}
	return b.appendSummary(fmt.Sprintf("%s* [%s](%s)\n", indent, escapeLinkText(title), linkTarget(rel)))
}

func (b *book) appendSummary(line string) error {
	f, err := os.OpenFile(filepath.Join(b.dir, summaryFileName), os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open summary: %w", err)
	}
	if _, err := f.WriteString(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to append summary: %w", err)
	}
	return f.Close()
}

var linkReplacer = strings.NewReplacer(" ", "%20", "(", "%28", ")", "%29")

func linkTarget(rel string) string {
	return linkReplacer.Replace(filepath.ToSlash(rel))
}

var linkTextReplacer = strings.NewReplacer("[", `\[`, "]", `\]`)

func escapeLinkText(s string) string {
	return linkTextReplacer.Replace(s)
}
