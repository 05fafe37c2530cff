// player-scheduler keeps a VLC instance playing a playlist assembled from
// time-gated media directories.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"player-scheduler/internal/config"
	"player-scheduler/internal/logger"
	"player-scheduler/internal/media"
	"player-scheduler/internal/mixing"
	"player-scheduler/internal/playlist"
	"player-scheduler/internal/scheduler"
	"player-scheduler/internal/server"
	"player-scheduler/internal/source"
	"player-scheduler/internal/system"
	"player-scheduler/internal/vlc"
)

// Build-time variables set via -ldflags.
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "player-scheduler",
		Short:         "player-scheduler: time-gated playlist scheduler for VLC",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to scheduler.yaml (default: $"+config.EnvConfigPath+" or ./scheduler.yaml)")

	rootCmd.AddCommand(runCmd(&configPath))
	rootCmd.AddCommand(checkCmd(&configPath))
	rootCmd.AddCommand(configCmd(&configPath))
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// runCmd starts the player, the rebuild triggers and the playback loop.
func runCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start scheduling playback",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger.Init(cfg.LogLevel, cfg.LogPretty)
			log := logger.Component("main")
			log.Info().Str("version", version).Str("built", buildTime).Msg("player-scheduler starting")

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg)
		},
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Component("main")

	filter := media.NewFilter(cfg.MediaExtensions, cfg.PlaylistExtensions)
	enum := source.NewEnumerator(filter, cfg.DatePattern(),
		source.WithLogger(logger.Component("enumerator")))

	mix, err := mixing.ByName[source.Item](cfg.MixingFunction)
	if err != nil {
		return err
	}
	primarySources, specialSources, err := cfg.ToSources()
	if err != nil {
		return err
	}

	primary := playlist.New("primary", primarySources, enum, playlist.Options{
		Mix:                      mix,
		IgnorePlayingTimeIfEmpty: cfg.IgnorePlayingTimeIfEmpty,
		Logger:                   logger.Component("playlist"),
	})
	var special *playlist.Playlist
	if len(specialSources) > 0 {
		special = playlist.New("special", specialSources, enum, playlist.Options{
			Mix:    mix,
			Logger: logger.Component("playlist"),
		})
	}

	player, ensurer, cleanup, err := newPlayer(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	injector := scheduler.NewInjector(logger.Component("injector"))
	coord := scheduler.NewCoordinator(primary, special, injector, logger.Component("coordinator"))

	clock, err := scheduler.NewClock(coord.RebuildSchedule(), nil, logger.Component("clock"))
	if err != nil {
		return err
	}

	loop := scheduler.NewLoop(player, coord.Results(), injector, scheduler.LoopOptions{
		Filter:             filter,
		ImageDuration:      cfg.ImagePlayDuration,
		SettleDelay:        cfg.SettleDelay,
		FileErrorThreshold: cfg.FileErrorThreshold,
	}, logger.Component("loop"))

	orch := scheduler.NewOrchestrator(ensurer, coord, clock, injector, loop, scheduler.WatchOptions{
		Match:    filter.IsSupported,
		Debounce: cfg.RebuildDelay,
	}, logger.Component("orchestrator"))

	if cfg.Control.Listen != "" {
		srv := server.New(cfg.Control.Listen, orch, logger.Component("server"))
		orch.AddTask(srv.Run)
	}

	if err := orch.Run(ctx); err != nil {
		if errors.Is(err, vlc.ErrPlayerExited) {
			return fmt.Errorf("VLC exited, stopping: %w", err)
		}
		return err
	}
	log.Info().Msg("shutdown complete")
	return nil
}

// newPlayer builds the configured backend. The returned ensurer is nil
// when the backend needs no launch step.
func newPlayer(cfg *config.Config) (vlc.Player, scheduler.Ensurer, func(), error) {
	switch cfg.Player.Backend {
	case config.BackendLibVLC:
		lib, err := vlc.NewLibVLC(cfg.Player.Options, logger.Component("libvlc"))
		if err != nil {
			return nil, nil, nil, err
		}
		return lib, nil, lib.Release, nil

	default:
		client := vlc.NewHTTPClient(cfg.Player.Host, cfg.Player.Port, cfg.Player.Password)
		launcher := vlc.NewLauncher(launchSettings(cfg), client, logger.Component("launcher"))
		return client, launcher, launcher.Stop, nil
	}
}

func launchSettings(cfg *config.Config) vlc.LaunchSettings {
	return vlc.LaunchSettings{
		Launch:    cfg.Player.Launch,
		Path:      cfg.Player.Path,
		Host:      cfg.Player.Host,
		Port:      cfg.Player.Port,
		Password:  cfg.Player.Password,
		ExtraIntf: cfg.Player.ExtraIntf,
		Options:   cfg.Player.Options,
		Debug:     cfg.Debug,
	}
}

// checkCmd validates the configuration, reports on every source directory
// and probes the player.
func checkCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration, sources and player connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger.Init(cfg.LogLevel, cfg.LogPretty)

			primary, special, err := cfg.ToSources()
			if err != nil {
				return err
			}
			filter := media.NewFilter(cfg.MediaExtensions, cfg.PlaylistExtensions)
			enum := source.NewEnumerator(filter, cfg.DatePattern())

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SOURCE\tFILES\tMOUNT\tDISK USED\tDISK FREE\tSTATUS")
			failed := 0
			for _, r := range system.CheckSources(append(primary, special...), enum) {
				status := "ok"
				if !r.OK() {
					status = r.Err
					failed++
				}
				if r.Disk == nil {
					fmt.Fprintf(tw, "%s\t%d\t-\t-\t-\t%s\n", r.Path, r.Files, status)
					continue
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\t%.1f%%\t%d MB\t%s\n",
					r.Path, r.Files, r.Disk.Mount, r.Disk.UsedPct, r.Disk.FreeBytes/1024/1024, status)
			}
			tw.Flush()

			if cfg.Player.Backend == config.BackendHTTP {
				client := vlc.NewHTTPClient(cfg.Player.Host, cfg.Player.Port, cfg.Player.Password)
				if err := client.Probe(cmd.Context()); err != nil {
					fmt.Fprintf(out, "VLC at %s: not reachable (%v)\n", client.BaseURL(), err)
				} else {
					fmt.Fprintf(out, "VLC at %s: reachable\n", client.BaseURL())
				}
				if cfg.Player.Launch {
					if path, err := resolveVLC(cfg.Player.Path); err != nil {
						fmt.Fprintf(out, "VLC executable: %v\n", err)
						failed++
					} else {
						fmt.Fprintf(out, "VLC executable: %s\n", path)
					}
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d problem(s) found", failed)
			}
			return nil
		},
	}
}

func resolveVLC(path string) (string, error) {
	if path == "" {
		return vlc.FindVLC()
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("invalid path to VLC: %w", err)
	}
	return path, nil
}

// configCmd prints the effective configuration.
func configCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return cfg.Dump(cmd.OutOrStdout())
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "player-scheduler %s\nBuilt: %s\n", version, buildTime)
		},
	}
}
