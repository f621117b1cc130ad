package app

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"vistopia/internal/api"
	"vistopia/internal/cli/scheme/colours"
	"vistopia/internal/cli/table"
	"vistopia/internal/config"
	"vistopia/internal/episode"
	"vistopia/internal/media"
	"vistopia/internal/transcript"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// App wires the API accessors, the media downloader and the transcript
// pipeline behind the CLI commands.
type App struct {
	service     *api.Service
	downloader  *media.Downloader
	transcripts *transcript.Pipeline
}

func New() *App {
	return &App{}
}

// Configure builds the clients from cfg. It must run before any command.
func (a *App) Configure(cfg config.Config) error {
	if cfg.Token == "" {
		logrus.Warnf("No API token configured, set --token or %s", config.TokenEnv)
	}

	client, err := api.NewClient(api.Options{
		Token:      cfg.Token,
		BaseURL:    cfg.APIBaseURL,
		WebBaseURL: cfg.WebBaseURL,
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
	})
	if err != nil {
		return err
	}

	a.service = api.NewService(client)
	a.downloader = media.NewDownloader(a.service, client, media.NewID3Tagger(client), cfg.OutputDir)
	a.transcripts = transcript.NewPipeline(a.service, client, transcript.Config{
		Root:       cfg.OutputDir,
		ArticleURL: cfg.ArticleURL,
		Language:   cfg.Language,
	})
	return nil
}

// AddCommands attaches every subcommand to root
func (a *App) AddCommands(root *cobra.Command) {
	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "🔍 Search shows by keyword",
		Args:  cobra.NoArgs,
		RunE:  a.Search,
	}
	searchCmd.Flags().StringP("keyword", "k", "", "Search keyword")
	_ = searchCmd.MarkFlagRequired("keyword")

	subscriptionsCmd := &cobra.Command{
		Use:   "subscriptions",
		Short: "📋 List subscribed shows",
		Args:  cobra.NoArgs,
		RunE:  a.Subscriptions,
	}

	showContentCmd := &cobra.Command{
		Use:   "show-content",
		Short: "📖 List the episodes of a show",
		Args:  cobra.NoArgs,
		RunE:  a.ShowContent,
	}
	showContentCmd.Flags().Int("id", 0, "Show content id")
	_ = showContentCmd.MarkFlagRequired("id")

	saveShowCmd := &cobra.Command{
		Use:   "save-show",
		Short: "🎧 Download a show's audio with cover art and ID3 tags",
		Args:  cobra.NoArgs,
		RunE:  a.SaveShow,
	}
	saveShowCmd.Flags().Int("id", 0, "Show content id")
	saveShowCmd.Flags().Bool("no-tag", false, "Do not add ID3 tags")
	saveShowCmd.Flags().Bool("no-cover", false, "Do not embed cover art")
	saveShowCmd.Flags().Bool("verify", false, "Download again any existing file that does not decode")
	saveShowCmd.Flags().String("episode-id", "", "Episodes in the form '1-3,4,8'")
	_ = saveShowCmd.MarkFlagRequired("id")

	saveTranscriptCmd := &cobra.Command{
		Use:   "save-transcript",
		Short: "📝 Download a show's transcripts",
		Args:  cobra.NoArgs,
		RunE:  a.SaveTranscript,
	}
	saveTranscriptCmd.Flags().Int("id", 0, "Show content id")
	saveTranscriptCmd.Flags().String("episode-id", "", "Episodes in the form '1-3,4,8'")
	saveTranscriptCmd.Flags().String("format", "markdown", "Output format: markdown or html")
	saveTranscriptCmd.Flags().Bool("no-gitbook", false, "Do not lay markdown out as a GitBook")
	saveTranscriptCmd.Flags().String("single-file-exec-path", "", "Path to the single-file CLI tool")
	saveTranscriptCmd.Flags().String("cookie-file-path", "", "Path to the browser cookie file (single-file mode only)")
	_ = saveTranscriptCmd.MarkFlagRequired("id")

	root.AddCommand(searchCmd, subscriptionsCmd, showContentCmd, saveShowCmd, saveTranscriptCmd)
}

func (a *App) ready() error {
	if a.service == nil {
		return errors.New("app is not configured")
	}
	return nil
}

func (a *App) Search(cmd *cobra.Command, args []string) error {
	if err := a.ready(); err != nil {
		return err
	}
	keyword, _ := cmd.Flags().GetString("keyword")

	hits, err := a.service.Search(cmd.Context(), keyword)
	if err != nil {
		return err
	}

	var rows [][]string
	for _, hit := range hits {
		if !hit.IsContent() {
			continue
		}
		rows = append(rows, []string{hit.ID.String(), hit.Author, hit.DisplayTitle(), hit.Description})
	}

	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		colours.Warning.Fprintf(out, "🔍 No shows found for %q\n", keyword)
		return nil
	}
	fmt.Fprintln(out, table.Render([]string{"ID", "Author", "Title", "Description"}, rows, []table.Alignment{table.AlignRight}))
	colours.Muted.Fprintf(out, "%d shows\n", len(rows))
	return nil
}

func (a *App) Subscriptions(cmd *cobra.Command, args []string) error {
	if err := a.ready(); err != nil {
		return err
	}

	subs, err := a.service.Subscriptions(cmd.Context())
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(subs))
	for _, s := range subs {
		rows = append(rows, []string{s.ContentID.String(), s.DisplayTitle()})
	}

	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		colours.Warning.Fprintln(out, "📭 No subscriptions")
		return nil
	}
	fmt.Fprintln(out, table.Render([]string{"ID", "Title"}, rows, []table.Alignment{table.AlignRight}))
	colours.Muted.Fprintf(out, "%d subscriptions\n", len(rows))
	return nil
}

func (a *App) ShowContent(cmd *cobra.Command, args []string) error {
	if err := a.ready(); err != nil {
		return err
	}
	id, _ := cmd.Flags().GetInt("id")

	cat, err := a.service.Catalog(cmd.Context(), id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	colours.Title.Fprintf(out, "📚 %s\n", cat.Title)
	if cat.Author != "" {
		colours.Author.Fprintf(out, "✍️  %s\n", cat.Author)
	}

	var rows [][]string
	for _, part := range cat.Parts {
		for _, article := range part.Articles {
			rows = append(rows, []string{article.SortNumber.String(), article.Title, article.Duration})
		}
	}
	fmt.Fprintln(out, table.Render([]string{"#", "Title", "Duration"}, rows, []table.Alignment{table.AlignRight}))
	colours.Muted.Fprintf(out, "%d episodes\n", len(rows))
	return nil
}

func (a *App) SaveShow(cmd *cobra.Command, args []string) error {
	if err := a.ready(); err != nil {
		return err
	}
	flags := cmd.Flags()
	id, _ := flags.GetInt("id")
	noTag, _ := flags.GetBool("no-tag")
	noCover, _ := flags.GetBool("no-cover")
	verify, _ := flags.GetBool("verify")

	episodes, err := parseEpisodes(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	colours.Progress.Fprintf(out, "⏳ Saving audio of show %d\n", id)
	res, err := a.downloader.SaveShow(cmd.Context(), id, media.Options{
		NoTag:    noTag,
		NoCover:  noCover,
		Verify:   verify,
		Episodes: episodes,
	})
	if err != nil {
		return err
	}

	colours.Success.Fprintf(out, "✅ %d downloaded, %d already present -> %s\n", res.Downloaded, res.Skipped, res.Dir)
	if res.Failed > 0 || res.TagFailures > 0 {
		colours.Warning.Fprintf(out, "⚠️  %d failed downloads, %d tagging problems (see log)\n", res.Failed, res.TagFailures)
	}
	return nil
}

func (a *App) SaveTranscript(cmd *cobra.Command, args []string) error {
	if err := a.ready(); err != nil {
		return err
	}
	flags := cmd.Flags()
	id, _ := flags.GetInt("id")
	format, _ := flags.GetString("format")
	noGitBook, _ := flags.GetBool("no-gitbook")
	execPath, _ := flags.GetString("single-file-exec-path")
	cookieFile, _ := flags.GetString("cookie-file-path")

	episodes, err := parseEpisodes(cmd)
	if err != nil {
		return err
	}

	format = strings.ToLower(strings.TrimSpace(format))
	if format != "markdown" && format != "html" {
		return fmt.Errorf("unknown format %q, use markdown or html", format)
	}
	if (execPath == "") != (cookieFile == "") {
		return errors.New("--single-file-exec-path and --cookie-file-path must be given together")
	}

	colours.Progress.Fprintf(cmd.OutOrStdout(), "⏳ Saving transcripts of show %d\n", id)
	ctx := cmd.Context()
	var res *transcript.Result
	switch {
	case execPath != "":
		res, err = a.transcripts.SaveWithRenderer(ctx, id, transcript.RendererOptions{
			Episodes:   episodes,
			ExecPath:   execPath,
			CookieFile: cookieFile,
		})
	case format == "html":
		res, err = a.transcripts.SaveHTML(ctx, id, episodes)
	default:
		res, err = a.transcripts.SaveMarkdown(ctx, id, transcript.MarkdownOptions{
			Episodes: episodes,
			GitBook:  !noGitBook,
		})
	}
	if err != nil {
		return err
	}

	reportTranscripts(cmd.OutOrStdout(), res)
	return nil
}

func reportTranscripts(out io.Writer, res *transcript.Result) {
	colours.Success.Fprintf(out, "✅ %d saved, %d already present -> %s\n", res.Saved, res.Skipped, res.Dir)
	if res.Failed > 0 {
		colours.Warning.Fprintf(out, "⚠️  %d articles could not be saved (see log)\n", res.Failed)
	}
}

func parseEpisodes(cmd *cobra.Command) (episode.Set, error) {
	raw, _ := cmd.Flags().GetString("episode-id")
	return episode.ParseRanges(raw)
}
