package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"vistopia/internal/domain/catalog"
	"vistopia/internal/episode"
	"vistopia/internal/fsutil"

	"github.com/sirupsen/logrus"
)

// AudioDirName is the per-show subdirectory holding episode audio
const AudioDirName = "audio"

// CatalogSource resolves show metadata
type CatalogSource interface {
	Catalog(ctx context.Context, id int) (*catalog.Catalog, error)
	ContentShow(ctx context.Context, id int) (*catalog.Show, error)
}

// Fetcher streams a URL into w
type Fetcher interface {
	Download(ctx context.Context, rawURL string, w io.Writer) (int64, error)
}

// Tagger writes metadata into downloaded audio
type Tagger interface {
	Tag(path string, md Metadata) error
	EmbedCover(ctx context.Context, path, coverURL string) error
}

// Options selects what SaveShow does for each episode
type Options struct {
	NoTag   bool
	NoCover bool
	// Verify re-downloads existing files that do not decode as MP3.
	Verify   bool
	Episodes episode.Set
}

// Result counts what happened during SaveShow
type Result struct {
	Dir         string
	Downloaded  int
	Skipped     int
	Failed      int
	TagFailures int
}

// Downloader saves a show's audio episodes to disk
type Downloader struct {
	source  CatalogSource
	fetcher Fetcher
	tagger  Tagger
	root    string
	probe   func(path string) (time.Duration, error)
}

func NewDownloader(source CatalogSource, fetcher Fetcher, tagger Tagger, root string) *Downloader {
	return &Downloader{
		source:  source,
		fetcher: fetcher,
		tagger:  tagger,
		root:    root,
		probe:   Probe,
	}
}

// SaveShow downloads every selected episode of show id into
// <root>/<title>/audio, skipping files that already exist.
func (d *Downloader) SaveShow(ctx context.Context, id int, opts Options) (*Result, error) {
	cat, err := d.source.Catalog(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog %d: %w", id, err)
	}

	var show *catalog.Show
	if !opts.NoTag {
		show, err = d.source.ContentShow(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load show %d: %w", id, err)
		}
	}

	showDir := fsutil.ShowDir(d.root, cat.Title)
	unlock, err := fsutil.LockDir(showDir)
	if err != nil {
		return nil, err
	}
	defer unlock()

	dir := filepath.Join(showDir, AudioDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	res := &Result{Dir: dir}
	for _, part := range cat.Parts {
		for _, article := range part.Articles {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			if !opts.Episodes.Contains(article.SortNumber.Int()) {
				continue
			}
			d.saveEpisode(ctx, dir, cat, show, article, opts, res)
		}
	}

	logrus.WithFields(logrus.Fields{
		"show":       cat.Title,
		"downloaded": res.Downloaded,
		"skipped":    res.Skipped,
		"failed":     res.Failed,
	}).Info("Show download finished")

	return res, nil
}

func (d *Downloader) saveEpisode(ctx context.Context, dir string, cat *catalog.Catalog, show *catalog.Show, article catalog.Article, opts Options, res *Result) {
	path := filepath.Join(dir, fsutil.SanitizeFilename(article.Title)+".mp3")
	log := logrus.WithFields(logrus.Fields{
		"episode": article.SortNumber.Int(),
		"title":   article.Title,
	})

	if d.needsDownload(path, opts.Verify, log) {
		if article.MediaURL == "" {
			log.Warn("Episode has no audio url")
			res.Failed++
			return
		}
		err := fsutil.WriteAtomic(path, func(w io.Writer) error {
			_, err := d.fetcher.Download(ctx, article.MediaURL, w)
			return err
		})
		if err != nil {
			log.WithError(err).Warn("Failed to download episode")
			res.Failed++
			return
		}
		res.Downloaded++
		log.WithField("file", path).Info("Downloaded episode")

		if length, err := d.probe(path); err != nil {
			log.WithError(err).Warn("Downloaded file does not decode as MP3")
		} else {
			log.WithField("length", length.Round(time.Second)).Debug("Probed episode audio")
		}
	} else {
		res.Skipped++
		log.WithField("file", path).Debug("Episode already downloaded")
	}

	if !opts.NoTag {
		md := Metadata{
			Title:   article.Title,
			Album:   cat.Title,
			Track:   article.SortNumber.String(),
			Website: article.ContentURL,
		}
		if show != nil {
			md.Artist = show.Author
		}
		if err := d.tagger.Tag(path, md); err != nil {
			log.WithError(err).Warn("Failed to write ID3 tags")
			res.TagFailures++
		}
	}

	if !opts.NoCover && cat.CoverURL != "" {
		if err := d.tagger.EmbedCover(ctx, path, cat.CoverURL); err != nil {
			log.WithError(err).Warn("Failed to embed cover")
			res.TagFailures++
		}
	}
}

func (d *Downloader) needsDownload(path string, verify bool, log *logrus.Entry) bool {
	if !fsutil.Exists(path) {
		return true
	}
	if !verify {
		return false
	}
	if _, err := d.probe(path); err != nil {
		log.WithError(err).Warn("Existing file does not decode, downloading again")
		return true
	}
	return false
}
