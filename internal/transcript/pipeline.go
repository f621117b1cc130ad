package transcript

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"vistopia/internal/domain/catalog"
	"vistopia/internal/episode"
	"vistopia/internal/fsutil"

	"github.com/sirupsen/logrus"
)

const (
	// TranscriptDirName is the per-show subdirectory holding transcripts
	TranscriptDirName = "transcript"

	DefaultArticleURL = "https://www.vistopia.com.cn/article/"
	DefaultLanguage   = "zh-hans"

	courseStylesheet         = "/assets/article/course.css"
	absoluteCourseStylesheet = "https://api.vistopia.com.cn/assets/article/course.css"
)

// ContentSource resolves catalogs and article bodies
type ContentSource interface {
	Catalog(ctx context.Context, id int) (*catalog.Catalog, error)
	ContentShow(ctx context.Context, id int) (*catalog.Show, error)
	SectionDetail(ctx context.Context, articleID string) (string, error)
}

// Fetcher streams a URL into w
type Fetcher interface {
	Download(ctx context.Context, rawURL string, w io.Writer) (int64, error)
}

// Runner executes an external program
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs programs with os/exec, logging their output at debug level
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if len(out) > 0 {
		logrus.WithField("command", filepath.Base(name)).Debug(strings.TrimSpace(string(out)))
	}
	if err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(name), err)
	}
	return nil
}

// Config wires a Pipeline
type Config struct {
	Root       string
	ArticleURL string
	Language   string
	Converter  *Converter
	Runner     Runner
}

// Result counts what happened to the selected articles
type Result struct {
	Dir     string
	Saved   int
	Skipped int
	Failed  int
}

// Pipeline saves article transcripts of a show in one of several formats
type Pipeline struct {
	source     ContentSource
	fetcher    Fetcher
	converter  *Converter
	runner     Runner
	root       string
	articleURL string
	language   string
}

func NewPipeline(source ContentSource, fetcher Fetcher, cfg Config) *Pipeline {
	if cfg.ArticleURL == "" {
		cfg.ArticleURL = DefaultArticleURL
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if cfg.Converter == nil {
		cfg.Converter = NewConverter()
	}
	if cfg.Runner == nil {
		cfg.Runner = ExecRunner{}
	}
	return &Pipeline{
		source:     source,
		fetcher:    fetcher,
		converter:  cfg.Converter,
		runner:     cfg.Runner,
		root:       cfg.Root,
		articleURL: cfg.ArticleURL,
		language:   cfg.Language,
	}
}

// selected is one article chosen by the episode set
type selected struct {
	partIndex int
	part      catalog.Part
	article   catalog.Article
}

func selectArticles(cat *catalog.Catalog, episodes episode.Set) []selected {
	var out []selected
	for i, part := range cat.Parts {
		for _, article := range part.Articles {
			if episodes.Contains(article.SortNumber.Int()) {
				out = append(out, selected{partIndex: i, part: part, article: article})
			}
		}
	}
	return out
}

// prepare loads the catalog, locks the show directory and creates the
// transcript directory. The returned func releases the lock.
func (p *Pipeline) prepare(ctx context.Context, id int) (*catalog.Catalog, string, func(), error) {
	cat, err := p.source.Catalog(ctx, id)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to load catalog %d: %w", id, err)
	}

	showDir := fsutil.ShowDir(p.root, cat.Title)
	unlock, err := fsutil.LockDir(showDir)
	if err != nil {
		return nil, "", nil, err
	}

	dir := filepath.Join(showDir, TranscriptDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		unlock()
		return nil, "", nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return cat, dir, unlock, nil
}

func articleLog(a catalog.Article) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"episode": a.SortNumber.Int(),
		"title":   a.Title,
	})
}

// SaveHTML downloads each article's served HTML page and points its
// stylesheet at the absolute asset URL so it renders off-site.
func (p *Pipeline) SaveHTML(ctx context.Context, id int, episodes episode.Set) (*Result, error) {
	cat, dir, unlock, err := p.prepare(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	res := &Result{Dir: dir}
	for _, sel := range selectArticles(cat, episodes) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		a := sel.article
		log := articleLog(a)
		path := filepath.Join(dir, fsutil.SanitizeFilename(a.Title)+".html")

		if fsutil.Exists(path) {
			res.Skipped++
			continue
		}
		if a.ContentURL == "" {
			log.Warn("Article has no content url")
			res.Failed++
			continue
		}

		var buf bytes.Buffer
		if _, err := p.fetcher.Download(ctx, a.ContentURL, &buf); err != nil {
			log.WithError(err).Warn("Failed to download article html")
			res.Failed++
			continue
		}
		page := strings.ReplaceAll(buf.String(), courseStylesheet, absoluteCourseStylesheet)
		if err := fsutil.WriteFileAtomic(path, []byte(page)); err != nil {
			log.WithError(err).Warn("Failed to save article html")
			res.Failed++
			continue
		}
		res.Saved++
		log.WithField("file", path).Info("Saved transcript")
	}
	return res, nil
}

// MarkdownOptions controls SaveMarkdown
type MarkdownOptions struct {
	Episodes episode.Set
	GitBook  bool
}

// SaveMarkdown fetches each article's full body from the reader endpoint,
// converts it to Markdown and writes it under a "# title" heading. With
// GitBook set the transcript directory becomes a GitBook source tree.
func (p *Pipeline) SaveMarkdown(ctx context.Context, id int, opts MarkdownOptions) (*Result, error) {
	cat, dir, unlock, err := p.prepare(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var bk *book
	if opts.GitBook {
		author := cat.Author
		if show, err := p.source.ContentShow(ctx, id); err != nil {
			logrus.WithError(err).Warn("Could not load show details for the book manifest")
		} else if show.Author != "" {
			author = show.Author
		}
		bk, err = newBook(dir, cat, author, p.language)
		if err != nil {
			return nil, err
		}
	}

	res := &Result{Dir: dir}
	for _, sel := range selectArticles(cat, opts.Episodes) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		a := sel.article
		log := articleLog(a)

		rel := fsutil.SanitizeFilename(a.Title) + ".md"
		if bk != nil {
			if err := bk.beginPart(sel.partIndex, sel.part); err != nil {
				return res, err
			}
			if sub := bk.partDir(sel.partIndex, sel.part); sub != "" {
				rel = sub + "/" + rel
			}
		}
		path := filepath.Join(dir, filepath.FromSlash(rel))

		switch {
		case fsutil.Exists(path):
			res.Skipped++
		case p.writeMarkdown(ctx, path, a, log):
			res.Saved++
		default:
			res.Failed++
			continue
		}

		if bk != nil {
			if err := bk.addArticle(rel, a.Title); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

func (p *Pipeline) writeMarkdown(ctx context.Context, path string, a catalog.Article, log *logrus.Entry) bool {
	content, err := p.source.SectionDetail(ctx, a.ID.String())
	if err != nil {
		log.WithError(err).Warn("Failed to fetch article content")
		return false
	}
	if content == "" {
		log.Warn("Article has no content")
		return false
	}

	body, err := p.converter.Convert(content)
	if err != nil {
		log.WithError(err).Warn("Failed to convert article to markdown")
		return false
	}

	doc := "# " + a.Title + "\n\n" + body
	if err := fsutil.WriteFileAtomic(path, []byte(doc)); err != nil {
		log.WithError(err).Warn("Failed to save markdown")
		return false
	}
	log.WithField("file", path).Info("Saved transcript")
	return true
}

// RendererOptions controls SaveWithRenderer
type RendererOptions struct {
	Episodes   episode.Set
	ExecPath   string
	CookieFile string
}

// SaveWithRenderer captures each live article page with an external page
// archiver, authenticated by a browser cookie file.
func (p *Pipeline) SaveWithRenderer(ctx context.Context, id int, opts RendererOptions) (*Result, error) {
	if opts.ExecPath == "" || opts.CookieFile == "" {
		return nil, fmt.Errorf("renderer mode needs both an executable and a cookie file")
	}

	cat, dir, unlock, err := p.prepare(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	res := &Result{Dir: dir}
	for _, sel := range selectArticles(cat, opts.Episodes) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		a := sel.article
		log := articleLog(a)
		path := filepath.Join(dir, fsutil.SanitizeFilename(a.Title)+".html")

		if fsutil.Exists(path) {
			res.Skipped++
			continue
		}

		pageURL := p.articleURL + a.ID.String()
		err := p.runner.Run(ctx, opts.ExecPath, pageURL, path, "--browser-cookies-file="+opts.CookieFile)
		if err != nil {
			log.WithError(err).Warn("Failed to capture page")
			res.Failed++
			continue
		}
		res.Saved++
		log.WithField("file", path).Info("Captured page")
	}
	return res, nil
}
