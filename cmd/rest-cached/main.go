// Command rest-cached runs the outbound HTTP cache daemon: the admin and
// metrics endpoint plus the background refresh sweeper.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/restcache/rest-cache/internal/admin"
	"github.com/restcache/rest-cache/internal/config"
	"github.com/restcache/rest-cache/pkg/cache"
	"github.com/restcache/rest-cache/pkg/client"
	"github.com/restcache/rest-cache/pkg/logging"
	"github.com/restcache/rest-cache/pkg/store"
	"github.com/restcache/rest-cache/pkg/sweeper"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:     "rest-cached",
		Short:   "Caching layer for outbound HTTP calls",
		Version: version,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newSweepCmd(&configPath))

	return root
}

// components holds the wired-up runtime pieces shared by the commands.
type components struct {
	cfg     config.Config
	store   *store.Store
	engine  *cache.Engine
	client  *client.Client
	sweeper *sweeper.Sweeper
}

func setup(configPath string) (*components, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open cache store: %w", err)
	}

	expiry := cache.DefaultExpiryPolicy()
	if cfg.DefaultTTLSeconds > 0 {
		expiry.Default = time.Duration(cfg.DefaultTTLSeconds) * time.Second
	}
	for status, secs := range cfg.StatusTTLSeconds {
		expiry.Recommended[status] = time.Duration(secs) * time.Second
	}

	failureMode := cache.FailureMetadataOnly
	if cfg.FailureMode == "skip" {
		failureMode = cache.FailureSkip
	}

	engine, err := cache.New(cache.Config{
		Store:       st,
		Policy:      cache.Policy{Exclusions: cfg.Exclusions},
		Expiry:      expiry,
		FailureMode: failureMode,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	cl, err := client.New(client.Config{
		Engine:    engine,
		Timeout:   time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		UserAgent: cfg.UserAgent,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	sw, err := sweeper.New(sweeper.Config{
		Store:   st,
		Engine:  engine,
		Fetcher: cl,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	return &components{cfg: cfg, store: st, engine: engine, client: cl, sweeper: sw}, nil
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the cache daemon: admin endpoint, metrics and refresh sweeper",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer c.store.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			go c.sweeper.Start(ctx, time.Duration(c.cfg.SweepIntervalSeconds)*time.Second)

			r := chi.NewRouter()
			r.Mount("/cache", admin.New(ctx, c.store, c.sweeper).Router())
			r.Handle("/metrics", promhttp.Handler())
			r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				fmt.Fprint(w, "OK")
			})

			server := &http.Server{Addr: c.cfg.Listen, Handler: r}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = server.Shutdown(shutdownCtx)
			}()

			log.Info().Str("listen", c.cfg.Listen).Str("db", c.cfg.DBPath).Msg("Starting rest-cached")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		},
	}
}

func newSweepCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one refresh sweep and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer c.store.Close()

			return c.sweeper.RunSweep(cmd.Context())
		},
	}
}
