package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Pusher91/fieldbutton/internal/bitrix"
	"github.com/Pusher91/fieldbutton/internal/config"
	"github.com/Pusher91/fieldbutton/internal/domain"
	"github.com/Pusher91/fieldbutton/internal/fieldtype"
	"github.com/Pusher91/fieldbutton/internal/metrics"
	"github.com/Pusher91/fieldbutton/internal/registrar"
	"github.com/Pusher91/fieldbutton/internal/server"
	"github.com/Pusher91/fieldbutton/internal/store"
)

const appName = "fieldbutton"

type globalFlags struct {
	configPath string
	envFiles   []string
}

func rootCmd() *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Bitrix24 custom field registrar",
		Long: `fieldbutton registers the "Archivo electrónico" custom field type with a
Bitrix24 portal and serves the render.js script that draws it as a button.

Without a subcommand it runs the HTTP service.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), flags, cmd.OutOrStdout())
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML); defaults to ./fieldbutton.yaml when present")
	cmd.PersistentFlags().StringSliceVar(&flags.envFiles, "env-file", []string{".env"}, "dotenv files loaded before reading the environment")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP service",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context(), flags, cmd.OutOrStdout())
			},
		},
		registerCmd(&flags),
		versionCmd(),
	)

	return cmd
}

func versionCmd() *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			if short {
				fmt.Fprintln(cmd.OutOrStdout(), version)
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, version)
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "Print version number only")
	return cmd
}

func registerCmd(flags *globalFlags) *cobra.Command {
	var (
		domainName string
		auth       string
		handlerURL string
		endpoints  []string
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register the field type once and exit",
		Long: `Register the field type against a Bitrix24 portal using the same
candidate endpoints, timeout and audit log as the HTTP service.

Exits non-zero when every candidate endpoint fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if len(endpoints) > 0 {
				cfg.Bitrix.Endpoints = endpoints
			}

			deps, err := buildDeps(cfg, logger)
			if err != nil {
				return err
			}
			defer deps.close(logger)

			opts := []registrar.Option{
				registrar.WithObserver(deps.metrics),
				registrar.WithLogger(logger),
			}
			if deps.repo != nil {
				opts = append(opts, registrar.WithRecorder(deps.repo))
			}
			reg := registrar.New(deps.client, registrar.Config{
				Endpoints:     cfg.Bitrix.Endpoints,
				DefaultDomain: cfg.Bitrix.Domain,
				Field:         deps.field,
			}, opts...)

			res, err := reg.Register(cmd.Context(), domain.RegistrationRequest{
				Domain:     domainName,
				AuthToken:  auth,
				HandlerURL: handlerURL,
			})
			if err != nil {
				return describeFailure(err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	cmd.Flags().StringVar(&domainName, "domain", "", "Bitrix24 portal host (defaults to bitrix.domain)")
	cmd.Flags().StringVar(&auth, "auth", "", "Bitrix24 auth token")
	cmd.Flags().StringVar(&handlerURL, "handler-url", "", "Public URL of render.js")
	cmd.Flags().StringSliceVar(&endpoints, "endpoint", nil, "REST method to try, in order (repeatable; overrides bitrix.endpoints)")
	_ = cmd.MarkFlagRequired("auth")
	_ = cmd.MarkFlagRequired("handler-url")

	return cmd
}

func describeFailure(err error) error {
	var (
		vErr   *domain.ValidationError
		apiErr *bitrix.APIError
		tErr   *bitrix.TransportError
	)
	switch {
	case errors.As(err, &vErr):
		return fmt.Errorf("invalid request: %w", err)
	case errors.As(err, &apiErr):
		return fmt.Errorf("bitrix rejected the field type via %s: %s", apiErr.Endpoint, apiErr.Payload)
	case errors.As(err, &tErr):
		return fmt.Errorf("could not reach bitrix: %w", err)
	default:
		return err
	}
}

func loadConfig(flags globalFlags, logOut io.Writer) (*config.Config, *slog.Logger, error) {
	if err := config.LoadDotEnv(flags.envFiles...); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(config.NewViper(), flags.configPath, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger := config.NewLogger(cfg, logOut)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

type deps struct {
	field   domain.FieldDefinition
	client  *bitrix.Client
	cache   *store.RegistrationCache
	repo    *store.RegistrationRepo
	metrics *metrics.Metrics
}

func buildDeps(cfg *config.Config, logger *slog.Logger) (*deps, error) {
	field, err := fieldtype.Load(cfg.FieldTypeFile)
	if err != nil {
		return nil, fmt.Errorf("load field type: %w", err)
	}

	d := &deps{
		field:   field,
		metrics: metrics.New(),
		client: bitrix.New(
			bitrix.WithScheme(cfg.Bitrix.Scheme),
			bitrix.WithTimeout(cfg.Bitrix.Timeout),
			bitrix.WithLogger(logger),
		),
	}

	if cfg.Cache.Enabled {
		d.cache = store.NewRegistrationCache(cfg.Cache.Size, cfg.Cache.TTL)
	}

	if cfg.DataDir != "" {
		repo, err := store.NewRegistrationRepo(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open data dir: %w", err)
		}
		d.repo = repo
	}

	return d, nil
}

func (d *deps) close(logger *slog.Logger) {
	if d.repo == nil {
		return
	}
	if err := d.repo.Close(); err != nil {
		logger.Warn("Failed to close registration log", "error", err)
	}
}

func runServe(ctx context.Context, flags globalFlags, logOut io.Writer) error {
	cfg, logger, err := loadConfig(flags, logOut)
	if err != nil {
		return err
	}

	deps, err := buildDeps(cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close(logger)

	opts := server.Options{
		Client:         deps.client,
		Endpoints:      cfg.Bitrix.Endpoints,
		DefaultDomain:  cfg.Bitrix.Domain,
		Field:          deps.field,
		Repo:           deps.repo,
		Metrics:        deps.metrics,
		PublicURL:      cfg.PublicURL,
		ExposeActivity: cfg.API.Enabled,
		Version:        version,
		Development:    cfg.IsDevelopment(),
		RateMax:        cfg.RateLimit.Max,
		RateWindow:     cfg.RateLimit.Window,
		Logger:         logger,
	}
	if deps.cache != nil {
		opts.Cache = deps.cache
	}

	srv, err := server.New(opts)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	httpSrv.RegisterOnShutdown(srv.CloseStreams)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, os.Interrupt)
	defer stop()

	reg := srv.Registrar()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening",
			"addr", httpSrv.Addr,
			"env", cfg.Env,
			"version", version,
			"bitrix_domain", cfg.Bitrix.Domain,
			"field_type", reg.Field().ID,
			"endpoints", reg.Endpoints())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
