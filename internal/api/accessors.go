package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"vistopia/internal/domain/catalog"

	"github.com/sirupsen/logrus"
)

const (
	subscriptionsEndpoint = "user/subscriptions-list"
	classContentEndpoint  = "class/content"
	sectionDetailEndpoint = "reader/section-detail"
)

// Service exposes the catalog queries used by the commands. Every query is
// memoized per argument for the lifetime of the Service.
type Service struct {
	client *Client

	catalogs      *memo[int, *catalog.Catalog]
	shows         *memo[int, *catalog.Show]
	subscriptions *memo[struct{}, []catalog.Subscription]
	searches      *memo[string, []catalog.SearchResult]
}

func NewService(client *Client) *Service {
	return &Service{
		client:        client,
		catalogs:      newMemo[int, *catalog.Catalog](),
		shows:         newMemo[int, *catalog.Show](),
		subscriptions: newMemo[struct{}, []catalog.Subscription](),
		searches:      newMemo[string, []catalog.SearchResult](),
	}
}

// Catalog returns the table of contents of a show
func (s *Service) Catalog(ctx context.Context, id int) (*catalog.Catalog, error) {
	return s.catalogs.get(id, func() (*catalog.Catalog, error) {
		var c catalog.Catalog
		if err := s.client.Get(ctx, fmt.Sprintf("content/catalog/%d", id), nil, &c); err != nil {
			return nil, err
		}
		return &c, nil
	})
}

// ContentShow returns the series metadata of a show
func (s *Service) ContentShow(ctx context.Context, id int) (*catalog.Show, error) {
	return s.shows.get(id, func() (*catalog.Show, error) {
		var show catalog.Show
		if err := s.client.Get(ctx, fmt.Sprintf("content/content-show/%d", id), nil, &show); err != nil {
			return nil, err
		}
		return &show, nil
	})
}

// Search runs a keyword search
func (s *Service) Search(ctx context.Context, keyword string) ([]catalog.SearchResult, error) {
	return s.searches.get(keyword, func() ([]catalog.SearchResult, error) {
		var page struct {
			Data []catalog.SearchResult `json:"data"`
		}
		params := url.Values{"keyword": {keyword}}
		if err := s.client.Get(ctx, "search/web", params, &page); err != nil {
			return nil, err
		}
		return page.Data, nil
	})
}

// Subscriptions lists the shows the token's user subscribes to. When the
// documented endpoint rejects the request the web class listing is tried once.
func (s *Service) Subscriptions(ctx context.Context) ([]catalog.Subscription, error) {
	return s.subscriptions.get(struct{}{}, func() ([]catalog.Subscription, error) {
		var raw json.RawMessage
		err := s.client.Get(ctx, subscriptionsEndpoint, nil, &raw)
		if err == nil {
			return normalizeSubscriptions(raw)
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			return nil, err
		}

		logrus.Info("Trying the fallback endpoint for the subscriptions list")
		params := url.Values{
			"class_id": {"-1"},
			"sort":     {"1"},
			"page":     {"1"},
		}
		var alt json.RawMessage
		if altErr := s.client.GetWeb(ctx, classContentEndpoint, params, &alt); altErr != nil {
			logrus.WithError(altErr).Warn("Fallback subscriptions endpoint failed")
			return nil, err
		}
		return normalizeSubscriptions(alt)
	})
}

// SectionDetail fetches the full HTML body of an article from the reader
// endpoint. It returns an empty string when the article has no content part.
func (s *Service) SectionDetail(ctx context.Context, articleID string) (string, error) {
	var detail struct {
		Part []struct {
			Content string `json:"content"`
		} `json:"part"`
	}
	params := url.Values{
		"article_id": {articleID},
		"share_uid":  {""},
	}
	if err := s.client.GetWeb(ctx, sectionDetailEndpoint, params, &detail); err != nil {
		return "", err
	}
	if len(detail.Part) == 0 {
		return "", nil
	}
	return detail.Part[0].Content, nil
}

// subscriptionEntry covers both spellings of the show id
type subscriptionEntry struct {
	ContentID catalog.FlexString `json:"content_id"`
	ID        catalog.FlexString `json:"id"`
	Title     string             `json:"title"`
	Subtitle  string             `json:"subtitle"`
}

// normalizeSubscriptions flattens either a bare list or a {"data": [...]}
// page into one ordered list.
func normalizeSubscriptions(raw json.RawMessage) ([]catalog.Subscription, error) {
	raw = bytes.TrimSpace(raw)

	var entries []subscriptionEntry
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("failed to decode subscriptions: %w", err)
		}
	} else {
		var page struct {
			Data []subscriptionEntry `json:"data"`
		}
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, fmt.Errorf("failed to decode subscriptions page: %w", err)
		}
		entries = page.Data
	}

	subs := make([]catalog.Subscription, 0, len(entries))
	for _, e := range entries {
		id := e.ContentID
		if id == "" {
			id = e.ID
		}
		subs = append(subs, catalog.Subscription{
			ContentID: id,
			Title:     e.Title,
			Subtitle:  e.Subtitle,
		})
	}
	return subs, nil
}
