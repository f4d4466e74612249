package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/justchokingaround/nextup/internal/autoplay"
	"github.com/justchokingaround/nextup/internal/config"
	"github.com/justchokingaround/nextup/internal/database"
	"github.com/justchokingaround/nextup/internal/events"
	"github.com/justchokingaround/nextup/internal/history"
	"github.com/justchokingaround/nextup/internal/jellyfin"
	"github.com/justchokingaround/nextup/internal/player"
	"github.com/justchokingaround/nextup/internal/player/mpv"
	"github.com/justchokingaround/nextup/internal/session"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile   string
	logLevel  string
	debugMode bool

	// Global config and logger
	cfg    *config.Config
	flags  *config.Flags
	logger *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "nextup",
	Short: "Play Jellyfin library items in mpv with progress sync and autoplay",
	Long: `nextup plays Jellyfin library items in mpv and keeps the server in
sync: it reports playback progress, marks items watched, resumes from the
server-side position, and queues the next episode (crossing seasons) into
mpv's playlist automatically.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// config init must work before any config exists
		if cmd.Name() == "init" && cmd.Parent() != nil && cmd.Parent().Name() == "config" {
			return nil
		}

		if err := config.InitializeDirs(); err != nil {
			return fmt.Errorf("failed to initialize directories: %w", err)
		}

		var err error
		var v *viper.Viper
		cfg, v, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if debugMode {
			cfg.Advanced.Debug = true
			if logLevel == "" {
				cfg.Logging.Level = "debug"
			}
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}

		logger, err = config.InitLogger(&cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		flags = config.NewFlags(cfg)

		// Preference flags take effect live when the config file changes
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			logger.Info("config file changed", "name", e.Name)
			var reloaded config.Config
			if err := v.Unmarshal(&reloaded); err != nil {
				logger.Error("failed to reload config", "error", err)
				return
			}
			flags.Update(reloaded.Playback)
		})

		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch <item-id>",
	Short: "Play a library item in mpv with tracking and autoplay",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		itemID := args[0]

		if cfg.Server.Token == "" {
			return fmt.Errorf("no server token configured, set server.token in %s", config.DefaultConfigPath())
		}

		return runWatch(cmd.Context(), itemID)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent playback history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		db, err := database.Init(&cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}

		records, err := history.NewService(db).Recent(limit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No playback history yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tTITLE\tEPISODE\tPROGRESS\tWATCHED")
		for _, rec := range records {
			title := rec.ItemName
			if rec.SeriesName != "" {
				title = rec.SeriesName + " - " + rec.ItemName
			}
			episode := ""
			if rec.Episode > 0 {
				episode = fmt.Sprintf("S%02dE%02d", rec.Season, rec.Episode)
			}
			watched := ""
			if rec.Watched {
				watched = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%.0f%%\t%s\n",
				rec.EndedAt.Format("2006-01-02 15:04"), title, episode, rec.ProgressPercent, watched)
		}
		return w.Flush()
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage nextup configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.InitializeDirs(); err != nil {
			return err
		}
		v := viper.New()
		config.SetDefaults(v)
		path := config.DefaultConfigPath()
		if err := v.SafeWriteConfigAs(path); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		fmt.Printf("Wrote default config to %s\n", path)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.DefaultConfigPath())
	},
}

// runWatch wires the whole playback stack together and blocks until the
// player exits
func runWatch(ctx context.Context, itemID string) error {
	api := jellyfin.NewClient(jellyfin.ClientConfig{
		Timeout: cfg.Server.Timeout,
		Debug:   cfg.Advanced.Debug,
		Logger:  logger,
	})

	server := cfg.Server.URL
	token := cfg.Server.Token

	item, err := api.Item(ctx, server, token, itemID)
	if err != nil {
		return fmt.Errorf("failed to fetch item %s: %w", itemID, err)
	}

	var hist *history.Service
	if db, err := database.Init(&cfg.Database); err != nil {
		logger.Warn("local history unavailable", "error", err)
	} else {
		hist = history.NewService(db)
	}

	mpvPlayer, err := mpv.New(mpv.Options{
		Debug:          cfg.Advanced.Debug,
		LoadUserConfig: cfg.Playback.LoadUserConfig,
	})
	if err != nil {
		return err
	}

	tracker := session.NewTracker(api, mpvPlayer, flags, hist, logger)
	resolver := autoplay.NewResolver(api)
	orchestrator := autoplay.NewOrchestrator(api, resolver, mpvPlayer, flags, hist, logger)
	router := events.NewRouter(tracker, orchestrator, server, token, logger)
	router.Bind(mpvPlayer)

	title := item.Name
	if item.IsEpisode() && item.SeriesName != "" {
		seasonNumber, episodeNumber := 0, 0
		if item.ParentIndexNumber != nil {
			seasonNumber = *item.ParentIndexNumber
		}
		if item.IndexNumber != nil {
			episodeNumber = *item.IndexNumber
		}
		title = fmt.Sprintf("%s S%02dE%02d - %s", item.SeriesName, seasonNumber, episodeNumber, item.Name)
	}
	if !flags.VideoTitle() {
		title = ""
	}

	streamURL := api.StreamURL(server, token, itemID)
	if err := mpvPlayer.Launch(ctx, streamURL, player.LaunchOptions{Title: title}); err != nil {
		return fmt.Errorf("failed to launch mpv: %w", err)
	}

	logger.Info("playback launched", "item", itemID, "title", item.Name)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-mpvPlayer.Done():
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
		_ = mpvPlayer.Stop(ctx)
	case <-ctx.Done():
		_ = mpvPlayer.Stop(context.Background())
	}

	// Final teardown: the shutdown callback normally stops the session, this
	// covers the signal and context paths
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := tracker.Stop(stopCtx); err != nil {
		logger.Warn("final session stop failed", "error", err)
	}

	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug mode")

	historyCmd.Flags().Int("limit", 20, "number of records to show")

	configCmd.AddCommand(configInitCmd, configPathCmd)
	rootCmd.AddCommand(watchCmd, historyCmd, configCmd)
}
