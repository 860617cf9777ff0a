package cli

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/beatlab/internal/api"
	"github.com/roach88/beatlab/internal/blob"
	"github.com/roach88/beatlab/internal/config"
	"github.com/roach88/beatlab/internal/generate"
	"github.com/roach88/beatlab/internal/schema"
	"github.com/roach88/beatlab/internal/store"
)

const shutdownTimeout = 10 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr     string
	Database string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the project, asset and generation API",
		Long: `Start the HTTP API: projects, shares, assets, signed object downloads,
audio uploads and AI generation. Requests are authenticated with a bearer
token that identifies the owner.

Example:
  beatlab serve --addr :8080 --db ./beatlab.db
  BEATLAB_OPENAI_API_KEY=... beatlab serve -c beatlab.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, logger, err := setup(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	if opts.Addr != "" {
		cfg.Server.Addr = opts.Addr
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}

	logger.Info("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	handler, err := newAPI(cfg, st, logger)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signalContext(cmd, logger)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()
	logger.Info("server listening", "addr", ln.Addr().String())
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", ln.Addr())

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "server error", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "shutdown", err)
	}
	logger.Info("server stopped gracefully")
	return nil
}

// newAPI wires storage, signing, validation and generation into the API
// handler.
func newAPI(cfg config.Config, st *store.Store, logger *slog.Logger) (http.Handler, error) {
	bucket, err := blob.NewFS(cfg.Storage.Root)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open object storage", err)
	}

	secret := []byte(cfg.Storage.SigningSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate signing secret: %w", err)
		}
		logger.Warn("no signing secret configured; signed URLs will not survive a restart")
	}
	signer, err := blob.NewSigner(secret, cfg.Server.PublicURL)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create URL signer", err)
	}

	validator, err := schema.Default()
	if err != nil {
		return nil, fmt.Errorf("load project schema: %w", err)
	}

	apiOpts := []api.Option{
		api.WithLogger(logger),
		api.WithAllowedOrigins(cfg.Server.AllowedOrigins...),
		api.WithMaxUpload(cfg.Server.MaxUploadBytes),
		api.WithSignTTL(cfg.Storage.SignedURLTTL.Std()),
	}
	if cfg.AI.APIKey != "" {
		provider := generate.NewOpenAI(cfg.AI.APIKey,
			generate.WithBaseURL(cfg.AI.BaseURL),
			generate.WithModel(cfg.AI.Model),
			generate.WithHTTPClient(&http.Client{Timeout: cfg.AI.Timeout.Std()}),
		)
		gen := generate.New(provider, generate.WithLogStore(st), generate.WithLogger(logger))
		apiOpts = append(apiOpts, api.WithGenerator(gen))
		logger.Info("ai generation enabled", "model", provider.Model())
	} else {
		logger.Info("ai generation disabled: no API key configured")
	}

	return api.New(st, bucket, signer, validator, apiOpts...), nil
}
