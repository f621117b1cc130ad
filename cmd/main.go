package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"vistopia/internal/app"
	"vistopia/internal/cli/scheme/colours"
	"vistopia/internal/config"
	"vistopia/internal/logging"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	vistopia := app.New()

	var cfgFile string
	rootCmd := &cobra.Command{
		Use:   "vistopia",
		Short: "🎙️ Archive shows from Vistopia",
		Long: `
┌─────────────────────────────────────┐
│  🎙️ vistopia                         │
│  Audio and transcripts, offline     │
└─────────────────────────────────────┘

Search the catalogue, list your subscriptions and save whole shows as
tagged MP3 files or Markdown/GitBook transcripts.
		`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Init(cfgFile); err != nil {
				return err
			}
			flags := cmd.Root().PersistentFlags()
			for key, name := range map[string]string{
				"token":      "token",
				"log.level":  "verbosity",
				"output.dir": "output",
			} {
				if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
					return fmt.Errorf("bind --%s: %w", name, err)
				}
			}

			cfg := config.Load()
			if err := logging.Setup(cmd.ErrOrStderr(), cfg.LogLevel); err != nil {
				return err
			}
			return vistopia.Configure(cfg)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default $HOME/.vistopia/vistopia.yaml)")
	pf.StringP("token", "t", "", "API token (or "+config.TokenEnv+")")
	pf.StringP("verbosity", "v", "info", "Log level: debug, info, warn, error")
	pf.StringP("output", "o", "downloads", "Directory shows are saved under")

	vistopia.AddCommands(rootCmd)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if ctx.Err() != nil {
			fmt.Println("\n" + colours.Warning.Sprint("👋 Interrupted"))
		}
		colours.Error.Printf("❌ Error: %v\n", err)
		os.Exit(1)
	}
}
