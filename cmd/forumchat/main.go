// Command forumchat is a terminal client for the forum chat server: a thread
// list, live posts over a websocket, and a few admin subcommands.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aeolun/forumchat/pkg/client"
	"github.com/aeolun/forumchat/pkg/client/ui"
	"github.com/aeolun/forumchat/pkg/forum"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// app holds the global flags and the collaborators subcommands share
type app struct {
	configPath string
	serverURL  string

	// newStore builds the API client for a loaded config
	newStore func(cfg client.Config) client.ThreadStore
}

func main() {
	// A missing .env is fine
	_ = godotenv.Load()

	a := &app{newStore: newAPIStore}
	if err := a.rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newAPIStore(cfg client.Config) client.ThreadStore {
	return client.NewAPIClient(cfg.Server.URL)
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "forumchat",
		Short:         "Terminal client for the forum chat server",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", client.DefaultConfigPath, "path to the config file")
	root.PersistentFlags().StringVar(&a.serverURL, "server", "", "forum server URL (overrides the config file)")

	root.AddCommand(a.threadsCmd())
	return root
}

// loadConfig reads the config file and applies the --server flag
func (a *app) loadConfig() (client.Config, error) {
	cfg, err := client.LoadConfig(a.configPath)
	if err != nil {
		return client.Config{}, err
	}
	if a.serverURL != "" {
		cfg.Server.URL = a.serverURL
		if err := cfg.Validate(); err != nil {
			return client.Config{}, err
		}
	}
	return cfg, nil
}

// runTUI starts the interactive client and, when configured, the metrics
// listener. Both stop when either fails or the user quits.
func (a *app) runTUI(ctx context.Context) error {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return errors.New("forumchat needs an interactive terminal; use the threads subcommands for scripting")
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	logger, logFile, err := openLogger(cfg)
	if err != nil {
		return err
	}
	defer logFile.Close()

	statePath, err := cfg.StatePath()
	if err != nil {
		return err
	}
	state, err := client.OpenState(statePath)
	if err != nil {
		return err
	}
	defer state.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := client.NewMetrics(reg)

	api := client.NewAPIClient(cfg.Server.URL)
	api.SetLogger(logger.With().Str("component", "api").Logger())
	api.SetMetrics(metrics)

	wsURL, err := cfg.RealtimeEndpoint()
	if err != nil {
		return err
	}
	channel := client.NewChannel(wsURL)
	if cfg.Server.Transport == client.TransportSocketIO {
		channel.UseSocketIO(cfg.Server.Namespace)
	}
	channel.SetLogger(logger.With().Str("component", "realtime").Logger())
	channel.SetMetrics(metrics)
	defer channel.Close()

	model := ui.NewModel(ui.Options{
		API:            api,
		Channel:        channel,
		State:          state,
		Validator:      forum.NewValidator(cfg.ForumLimits()),
		Logger:         logger.With().Str("component", "ui").Logger(),
		Metrics:        metrics,
		RequestTimeout: cfg.RequestTimeout(),
		Notify:         cfg.Notifications.Enabled,
		IdleThreshold:  cfg.IdleThreshold(),
		ServerAddress:  displayAddress(cfg.Server.URL),
	})

	logger.Info().Str("server", cfg.Server.URL).Str("realtime", wsURL).Msg("starting forumchat")

	g, ctx := errgroup.WithContext(ctx)

	var metricsServer *http.Server
	if cfg.Metrics.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info().Str("addr", cfg.Metrics.Listen).Msg("serving metrics")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "metrics listener")
			}
			return nil
		})
	}

	g.Go(func() error {
		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
		_, runErr := p.Run()

		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("metrics shutdown")
			}
		}

		if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
			return errors.Wrap(runErr, "run UI")
		}
		return nil
	})

	err = g.Wait()
	logger.Info().Err(err).Msg("forumchat stopped")
	return err
}

// openLogger creates the file logger; the terminal belongs to the UI
func openLogger(cfg client.Config) (zerolog.Logger, io.Closer, error) {
	path, err := cfg.LogPath()
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return zerolog.Nop(), nil, errors.Wrap(err, "failed to create log directory")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return zerolog.Nop(), nil, errors.Wrap(err, "failed to open log file")
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Client.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(f).Level(level).With().Timestamp().Logger()
	return logger, f, nil
}

// displayAddress strips the scheme for the header
func displayAddress(serverURL string) string {
	addr := serverURL
	if i := strings.Index(addr, "://"); i >= 0 {
		addr = addr[i+3:]
	}
	return strings.TrimRight(addr, "/")
}
