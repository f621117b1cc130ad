package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"vistopia/internal/config"
	"vistopia/internal/episode"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/content/catalog/7":
			fmt.Fprintf(w, `{"status":"success","data":{"title":"八分","author":"梁文道","catalog":[
				{"title":"第一部","part":[
					{"article_id":"101","sort_number":"1","title":"开篇","duration_str":"10:00","content_url":"%[1]s/page/101"},
					{"article_id":"102","sort_number":"2","title":"续篇","duration_str":"12:30","content_url":"%[1]s/page/102"}
				]}]}}`, srv.URL)
		case "/api/v1/search/web":
			w.Write([]byte(`{"status":"success","data":{"data":[
				{"id":7,"data_type":"content","title":"八分","subtitle":"文化","author":"梁文道","share_desc":"每周"},
				{"id":8,"data_type":"article","title":"不该出现"}]}}`))
		case "/api/v1/user/subscriptions-list":
			w.Write([]byte(`{"status":"success","data":{"data":[{"content_id":7,"title":"八分","subtitle":"文化"}]}}`))
		case "/page/101", "/page/102":
			w.Write([]byte(`<link href="/assets/article/course.css"><p>page</p>`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestApp(t *testing.T, srv *httptest.Server) (*App, string) {
	t.Helper()
	out := t.TempDir()
	a := New()
	require.NoError(t, a.Configure(config.Config{
		Token:      "tok",
		APIBaseURL: srv.URL + "/api/v1/",
		WebBaseURL: srv.URL + "/web/api/v1/",
		OutputDir:  out,
	}))
	return a, out
}

func run(a *App, args ...string) (string, error) {
	root := &cobra.Command{Use: "vistopia", SilenceUsage: true, SilenceErrors: true}
	a.AddCommands(root)

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestShowContentListsEpisodes(t *testing.T) {
	a, _ := newTestApp(t, newTestServer(t))

	out, err := run(a, "show-content", "--id", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "八分")
	assert.Contains(t, out, "开篇")
	assert.Contains(t, out, "12:30")
	assert.Contains(t, out, "2 episodes")
}

func TestSearchShowsOnlyContent(t *testing.T) {
	a, _ := newTestApp(t, newTestServer(t))

	out, err := run(a, "search", "-k", "八分")
	require.NoError(t, err)
	assert.Contains(t, out, "八分: 文化")
	assert.NotContains(t, out, "不该出现")
	assert.Contains(t, out, "1 shows")
}

func TestSubscriptionsListsShows(t *testing.T) {
	a, _ := newTestApp(t, newTestServer(t))

	out, err := run(a, "subscriptions")
	require.NoError(t, err)
	assert.Contains(t, out, "八分: 文化")
}

func TestSaveTranscriptHTML(t *testing.T) {
	a, root := newTestApp(t, newTestServer(t))

	out, err := run(a, "save-transcript", "--id", "7", "--format", "html", "--episode-id", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Saving transcripts of show 7")
	assert.Contains(t, out, "1 saved")

	dir := filepath.Join(root, "八分", "transcript")
	data, err := os.ReadFile(filepath.Join(dir, "续篇.html"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "https://api.vistopia.com.cn/assets/article/course.css")
	assert.NoFileExists(t, filepath.Join(dir, "开篇.html"))
}

func TestSaveTranscriptValidatesFlags(t *testing.T) {
	a, _ := newTestApp(t, newTestServer(t))

	_, err := run(a, "save-transcript", "--id", "7", "--format", "pdf")
	assert.ErrorContains(t, err, "unknown format")

	_, err = run(a, "save-transcript", "--id", "7", "--single-file-exec-path", "single-file")
	assert.ErrorContains(t, err, "must be given together")

	_, err = run(a, "save-transcript", "--id", "7", "--episode-id", "5-2")
	assert.ErrorIs(t, err, episode.ErrInvalidRange)
}

func TestSaveShowRejectsBadRange(t *testing.T) {
	a, _ := newTestApp(t, newTestServer(t))

	_, err := run(a, "save-show", "--id", "7", "--episode-id", "x")
	assert.ErrorIs(t, err, episode.ErrInvalidRange)
}

func TestCommandsNeedConfiguration(t *testing.T) {
	_, err := run(New(), "subscriptions")
	assert.ErrorContains(t, err, "not configured")
}

func TestConfigureRejectsRelativeBaseURL(t *testing.T) {
	err := New().Configure(config.Config{APIBaseURL: "api/v1"})
	assert.Error(t, err)
}
