package media

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/bogem/id3v2/v2"
)

// Metadata is what gets written into an episode's ID3 tag
type Metadata struct {
	Title   string
	Album   string
	Artist  string
	Track   string
	Website string
}

// ID3Tagger writes ID3v2 frames and embeds cover art. Covers are fetched
// once per URL and reused for every episode.
type ID3Tagger struct {
	fetcher Fetcher

	mu     sync.Mutex
	covers map[string][]byte
}

func NewID3Tagger(fetcher Fetcher) *ID3Tagger {
	return &ID3Tagger{
		fetcher: fetcher,
		covers:  make(map[string][]byte),
	}
}

// Tag sets title, album, artist, track number and the official audio
// source URL on the file at path.
func (t *ID3Tagger) Tag(path string, md Metadata) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open %s for tagging: %w", path, err)
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetTitle(md.Title)
	tag.SetAlbum(md.Album)
	tag.SetArtist(md.Artist)
	tag.AddTextFrame(tag.CommonID("Track number/Position in set"), tag.DefaultEncoding(), md.Track)

	tag.DeleteFrames(websiteFrameID)
	if md.Website != "" {
		tag.AddFrame(websiteFrameID, id3v2.UnknownFrame{Body: []byte(md.Website)})
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("failed to save ID3 tags: %w", err)
	}
	return nil
}

// websiteFrameID is the "official audio source webpage" URL frame
const websiteFrameID = "WOAR"

// EmbedCover replaces any attached picture on path with the image at
// coverURL, marked as a JPEG front cover.
func (t *ID3Tagger) EmbedCover(ctx context.Context, path, coverURL string) error {
	cover, err := t.cover(ctx, coverURL)
	if err != nil {
		return err
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open %s for cover: %w", path, err)
	}
	defer tag.Close()

	pictureID := tag.CommonID("Attached picture")
	tag.DeleteFrames(pictureID)
	tag.AddAttachedPicture(id3v2.PictureFrame{
		Encoding:    id3v2.EncodingUTF8,
		MimeType:    "image/jpeg",
		PictureType: id3v2.PTFrontCover,
		Description: "Cover",
		Picture:     cover,
	})

	if err := tag.Save(); err != nil {
		return fmt.Errorf("failed to save cover: %w", err)
	}
	return nil
}

func (t *ID3Tagger) cover(ctx context.Context, coverURL string) ([]byte, error) {
	t.mu.Lock()
	if data, ok := t.covers[coverURL]; ok {
		t.mu.Unlock()
		return data, nil
	}
	t.mu.Unlock()

	var buf bytes.Buffer
	if _, err := t.fetcher.Download(ctx, coverURL, &buf); err != nil {
		return nil, fmt.Errorf("failed to fetch cover: %w", err)
	}
	data := buf.Bytes()

	t.mu.Lock()
	t.covers[coverURL] = data
	t.mu.Unlock()
	return data, nil
}
