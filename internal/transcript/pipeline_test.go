package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"vistopia/internal/domain/catalog"
	"vistopia/internal/episode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	cat      *catalog.Catalog
	show     *catalog.Show
	sections map[string]string
	detailed []string
}

func (f *fakeSource) Catalog(ctx context.Context, id int) (*catalog.Catalog, error) {
	return f.cat, nil
}

func (f *fakeSource) ContentShow(ctx context.Context, id int) (*catalog.Show, error) {
	if f.show == nil {
		return nil, errors.New("no show")
	}
	return f.show, nil
}

func (f *fakeSource) SectionDetail(ctx context.Context, articleID string) (string, error) {
	f.detailed = append(f.detailed, articleID)
	return f.sections[articleID], nil
}

type fakeFetcher struct {
	pages map[string]string
	calls int
}

func (f *fakeFetcher) Download(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	f.calls++
	page, ok := f.pages[rawURL]
	if !ok {
		return 0, errors.New("not found")
	}
	n, err := io.WriteString(w, page)
	return int64(n), err
}

type fakeRunner struct {
	calls [][]string
	fail  map[string]bool
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) error {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.fail[args[0]] {
		return errors.New("exit status 1")
	}
	return os.WriteFile(args[1], []byte("<html>captured</html>"), 0o644)
}

func twoPartCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Title:       "八分",
		Subtitle:    "文化节目",
		Description: "每周更新",
		Parts: []catalog.Part{
			{Title: "第一季", Articles: []catalog.Article{
				{ID: "101", SortNumber: 1, Title: "开篇", ContentURL: "http://x/1.html"},
			}},
			{Title: "第二季", Articles: []catalog.Article{
				{ID: "102", SortNumber: 2, Title: "续篇", ContentURL: "http://x/2.html"},
			}},
		},
	}
}

func TestSaveHTMLRewritesStylesheet(t *testing.T) {
	root := t.TempDir()
	fetcher := &fakeFetcher{pages: map[string]string{
		"http://x/1.html": `<link rel="stylesheet" href="/assets/article/course.css"><p>one</p>`,
	}}
	p := NewPipeline(&fakeSource{cat: twoPartCatalog()}, fetcher, Config{Root: root})

	res, err := p.SaveHTML(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Saved)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, filepath.Join(root, "八分", "transcript"), res.Dir)

	data, err := os.ReadFile(filepath.Join(res.Dir, "开篇.html"))
	require.NoError(t, err)
	assert.Equal(t, `<link rel="stylesheet" href="https://api.vistopia.com.cn/assets/article/course.css"><p>one</p>`, string(data))

	res, err = p.SaveHTML(context.Background(), 1, episode.Set{{From: 1, To: 1}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 2, fetcher.calls)
}

func TestSaveMarkdownFlatLayout(t *testing.T) {
	root := t.TempDir()
	src := &fakeSource{
		cat: twoPartCatalog(),
		sections: map[string]string{
			"101": "<h2>小节</h2><p>正文<strong>重点</strong></p>",
		},
	}
	p := NewPipeline(src, &fakeFetcher{}, Config{Root: root})

	res, err := p.SaveMarkdown(context.Background(), 1, MarkdownOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Saved)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []string{"101", "102"}, src.detailed)

	data, err := os.ReadFile(filepath.Join(res.Dir, "开篇.md"))
	require.NoError(t, err)
	assert.Equal(t, "# 开篇\n\n## 小节\n\n正文**重点**\n\n", string(data))

	assert.NoFileExists(t, filepath.Join(res.Dir, "续篇.md"))
	assert.NoFileExists(t, filepath.Join(res.Dir, summaryFileName))
}

var summaryLink = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)

func TestSaveMarkdownGitBookTwoParts(t *testing.T) {
	root := t.TempDir()
	src := &fakeSource{
		cat:  twoPartCatalog(),
		show: &catalog.Show{Title: "八分", Author: "梁文道"},
		sections: map[string]string{
			"101": "<p>一</p>",
			"102": "<p>二</p>",
		},
	}
	p := NewPipeline(src, &fakeFetcher{}, Config{Root: root})

	res, err := p.SaveMarkdown(context.Background(), 1, MarkdownOptions{GitBook: true})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Saved)

	summary, err := os.ReadFile(filepath.Join(res.Dir, summaryFileName))
	require.NoError(t, err)
	assert.Equal(t, "# Summary\n\n"+
		"* [八分](README.md)\n"+
		"\n* [第一季](01-第一季/README.md)\n"+
		"    * [开篇](01-第一季/开篇.md)\n"+
		"\n* [第二季](02-第二季/README.md)\n"+
		"    * [续篇](02-第二季/续篇.md)\n", string(summary))

	for _, m := range summaryLink.FindAllStringSubmatch(string(summary), -1) {
		rel, err := url.PathUnescape(m[2])
		require.NoError(t, err)
		assert.FileExists(t, filepath.Join(res.Dir, filepath.FromSlash(rel)), m[1])
	}

	raw, err := os.ReadFile(filepath.Join(res.Dir, bookFileName))
	require.NoError(t, err)
	var cfg bookConfig
	require.NoError(t, json.Unmarshal(raw, &cfg))
	assert.Equal(t, "八分", cfg.Title)
	assert.Equal(t, "梁文道", cfg.Author)
	assert.Equal(t, DefaultLanguage, cfg.Language)
	assert.Equal(t, summaryFileName, cfg.Structure["summary"])

	readme, err := os.ReadFile(filepath.Join(res.Dir, readmeFileName))
	require.NoError(t, err)
	assert.Equal(t, "# 八分\n\n> 文化节目\n\n梁文道\n\n每周更新\n", string(readme))

	body, err := os.ReadFile(filepath.Join(res.Dir, "02-第二季", "续篇.md"))
	require.NoError(t, err)
	assert.Equal(t, "# 续篇\n\n二\n\n", string(body))
}

func TestSaveMarkdownGitBookSinglePartIsFlat(t *testing.T) {
	root := t.TempDir()
	cat := twoPartCatalog()
	cat.Parts = cat.Parts[:1]
	src := &fakeSource{cat: cat, sections: map[string]string{"101": "<p>一</p>"}}
	p := NewPipeline(src, &fakeFetcher{}, Config{Root: root})

	res, err := p.SaveMarkdown(context.Background(), 1, MarkdownOptions{GitBook: true})
	require.NoError(t, err)

	summary, err := os.ReadFile(filepath.Join(res.Dir, summaryFileName))
	require.NoError(t, err)
	assert.Equal(t, "# Summary\n\n* [八分](README.md)\n* [开篇](开篇.md)\n", string(summary))
	assert.FileExists(t, filepath.Join(res.Dir, "开篇.md"))
}

func TestSaveMarkdownRerunKeepsSummaryComplete(t *testing.T) {
	root := t.TempDir()
	src := &fakeSource{
		cat:      twoPartCatalog(),
		sections: map[string]string{"101": "<p>一</p>", "102": "<p>二</p>"},
	}
	p := NewPipeline(src, &fakeFetcher{}, Config{Root: root})

	first, err := p.SaveMarkdown(context.Background(), 1, MarkdownOptions{GitBook: true})
	require.NoError(t, err)
	before, err := os.ReadFile(filepath.Join(first.Dir, summaryFileName))
	require.NoError(t, err)

	second, err := p.SaveMarkdown(context.Background(), 1, MarkdownOptions{GitBook: true})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Skipped)
	assert.Len(t, src.detailed, 2)

	after, err := os.ReadFile(filepath.Join(second.Dir, summaryFileName))
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestSaveWithRendererContinuesAfterFailure(t *testing.T) {
	root := t.TempDir()
	runner := &fakeRunner{fail: map[string]bool{"https://www.vistopia.com.cn/article/101": true}}
	p := NewPipeline(&fakeSource{cat: twoPartCatalog()}, &fakeFetcher{}, Config{Root: root, Runner: runner})

	res, err := p.SaveWithRenderer(context.Background(), 1, RendererOptions{
		ExecPath:   "/usr/local/bin/single-file",
		CookieFile: "/tmp/cookies.txt",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Saved)
	assert.Equal(t, 1, res.Failed)

	require.Len(t, runner.calls, 2)
	assert.Equal(t, []string{
		"/usr/local/bin/single-file",
		"https://www.vistopia.com.cn/article/102",
		filepath.Join(res.Dir, "续篇.html"),
		"--browser-cookies-file=/tmp/cookies.txt",
	}, runner.calls[1])
	assert.FileExists(t, filepath.Join(res.Dir, "续篇.html"))
}

func TestSaveWithRendererNeedsExecutableAndCookies(t *testing.T) {
	p := NewPipeline(&fakeSource{cat: twoPartCatalog()}, &fakeFetcher{}, Config{Root: t.TempDir()})
	_, err := p.SaveWithRenderer(context.Background(), 1, RendererOptions{ExecPath: "single-file"})
	assert.Error(t, err)
}
