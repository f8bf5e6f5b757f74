package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	edgecache "github.com/skillforge/edgecache"
	"github.com/skillforge/edgecache/internal/cliconfig"
	"github.com/skillforge/edgecache/pkg/log"
	"github.com/skillforge/edgecache/plugins/manifestwatch"
)

const helpBanner = `
 ██████████ ██████████     █████████  ██████████  █████████    █████████    █████████  █████   █████ ██████████
░░███░░░░░█░░███░░░░███   ███░░░░░███░░███░░░░░█ ███░░░░░███  ███░░░░░███  ███░░░░░███░░███   ░░███ ░░███░░░░░█
 ░███  █ ░  ░███   ░░███ ███     ░░░  ░███  █ ░ ░███    ░░░  ░███    ░███ ░███    ░░░  ░███    ░███  ░███  █ ░
 ░██████    ░███    ░███░███          ░██████   ░███         ░███████████ ░███         ░███████████  ░██████
 ░███░░█    ░███    ░███░███    █████ ░███░░█   ░███         ░███░░░░░███ ░███         ░███░░░░░███  ░███░░█
 ░███ ░   █ ░███    ███ ░░███  ░░███  ░███ ░   █░░███     ███░███    ░███ ░░███     ███░███    ░███  ░███ ░   █
 ██████████ ██████████   ░░█████████  ██████████ ░░█████████ █████   █████ ░░█████████ █████   █████ ██████████
░░░░░░░░░░ ░░░░░░░░░░     ░░░░░░░░░  ░░░░░░░░░░   ░░░░░░░░░ ░░░░░   ░░░░░   ░░░░░░░░░ ░░░░░   ░░░░░ ░░░░░░░░░░
`

const helpDescription = `
Keep your learning platform usable when the network is not.

Highlights:
  - Serves cached lessons and assets when the origin is unreachable.
  - Queues progress and analytics events offline and replays them on reconnect.
  - Installs new asset generations atomically; learners never see a half deploy.
  - Configure via file, env, or flags; watch the manifest for zero-restart deploys.
`

var longHelp = strings.TrimSpace(helpBanner) + "\n\n" + strings.TrimSpace(helpDescription)

var exampleUsage = strings.TrimSpace(`
  edgecache --origin-url https://lms.example.com --data-dir /var/lib/edgecache --manifest /etc/edgecache/manifest.toml
  edgecache --config $HOME/.edgecache/config.toml --listen :8787
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := edgecache.DefaultConfig()
	var cfgPath string
	var watchManifest bool

	zlog := cliconfig.Logger()

	root := &cobra.Command{
		Use:     "edgecache",
		Short:   "Keep your learning platform usable when the network is not",
		Long:    longHelp,
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load config file first (default $HOME/.edgecache/config.toml), then apply flag overrides
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			// Build set of changed flags
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			// Apply environment variables (EDGECACHE_*)
			// These override file config but are overridden by flags (checked via changed map)
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			cfg.SetDefaults()
			if err := cfg.Validate(); err != nil {
				return err
			}

			// Log configuration (masking API key)
			logCfg := cfg
			if len(logCfg.AuthKey) > 0 {
				logCfg.AuthKey = "*****"
			}
			zlog.Info().Interface("config", logCfg).Msg("configuration")

			opts := []edgecache.Option{
				edgecache.WithLogger(log.NewZerologAdapterWithLogger(zlog)),
			}
			if watchManifest {
				opts = append(opts, manifestwatch.WithManifestWatch(manifestwatch.DefaultConfig()))
			}

			eng, err := edgecache.New(cfg, opts...)
			if err != nil {
				return fmt.Errorf("create edgecache: %w", err)
			}

			// Setup signal handling for graceful shutdown
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			if err := eng.Start(ctx); err != nil {
				return fmt.Errorf("start edgecache: %w", err)
			}

			<-sigCh
			zlog.Info().Msg("received signal, stopping...")

			if err := eng.Stop(); err != nil {
				return fmt.Errorf("stop edgecache: %w", err)
			}
			return nil
		},
	}

	// Flags
	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.edgecache/config.toml)")
	root.Flags().StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "local address the edge proxy listens on")
	root.Flags().StringVar(&cfg.OriginURL, "origin-url", cfg.OriginURL, "base URL of the learning platform origin")
	root.Flags().StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory for the cache and sync queue database")
	root.Flags().StringVar(&cfg.ManifestPath, "manifest", cfg.ManifestPath, "path to the asset manifest (TOML)")
	root.Flags().StringVar(&cfg.OfflinePath, "offline-path", cfg.OfflinePath, "route served when a navigation cannot be satisfied")
	root.Flags().StringVar(&cfg.HealthPath, "health-path", cfg.HealthPath, "origin path probed for connectivity")
	root.Flags().StringVar(&cfg.AuthKey, "auth-key", cfg.AuthKey, "API key for authenticated event delivery")

	root.Flags().StringVar(&cfg.ProgressPath, "progress-path", cfg.ProgressPath, "request path treated as progress sync")
	root.Flags().StringVar(&cfg.AnalyticsPath, "analytics-path", cfg.AnalyticsPath, "request path treated as analytics sync")

	root.Flags().DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "HTTP timeout for origin requests")
	root.Flags().DurationVar(&cfg.ProbeInterval, "probe-interval", cfg.ProbeInterval, "connectivity probe interval while offline")
	root.Flags().DurationVar(&cfg.SyncBackoffInitial, "sync-backoff-initial", cfg.SyncBackoffInitial, "initial retry delay for failed event delivery")
	root.Flags().DurationVar(&cfg.SyncBackoffMax, "sync-backoff-max", cfg.SyncBackoffMax, "maximum retry delay for failed event delivery")
	root.Flags().IntVar(&cfg.MaxSyncAttempts, "max-sync-attempts", cfg.MaxSyncAttempts, "delivery attempts before an event is dropped")
	root.Flags().IntVar(&cfg.RefreshConcurrency, "refresh-concurrency", cfg.RefreshConcurrency, "maximum concurrent background cache refreshes")
	root.Flags().BoolVar(&cfg.ActivateOnDeploy, "activate-on-deploy", cfg.ActivateOnDeploy, "activate a freshly installed generation immediately")
	root.Flags().BoolVar(&watchManifest, "watch-manifest", true, "reload the manifest when it changes on disk")

	if err := root.Execute(); err != nil {
		zlog.Error().Err(err).Msg("edgecache")
		os.Exit(1)
	}
}
