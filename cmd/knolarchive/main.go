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

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"github.com/conorfennell/knolarchive/internal/cards"
	"github.com/conorfennell/knolarchive/internal/config"
	"github.com/conorfennell/knolarchive/internal/content"
	"github.com/conorfennell/knolarchive/internal/events"
	"github.com/conorfennell/knolarchive/internal/gitsource"
	"github.com/conorfennell/knolarchive/internal/importer"
	"github.com/conorfennell/knolarchive/internal/logging"
	"github.com/conorfennell/knolarchive/internal/metrics"
	"github.com/conorfennell/knolarchive/internal/storage"
	"github.com/conorfennell/knolarchive/internal/web"
)

const usage = `Usage: knolarchive [flags] <command>

Commands:
  serve                     Run the JSON HTTP API
  import                    Import every configured source once
  add-source <path-or-url>  Register a local directory or git URL
  types                     Print the card type schemas as JSON
  validate <type> <file>    Validate a JSON content file against a card type

Flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("knolarchive", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	config.RegisterFlags(fs)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return err
	}
	logger, err := logging.New(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	// Commands that need no database.
	switch fs.Arg(0) {
	case "types":
		return printTypes(stdout)
	case "validate":
		if fs.NArg() != 3 {
			return errors.New("usage: knolarchive validate <type> <file>")
		}
		return validateFile(stdout, fs.Arg(1), fs.Arg(2))
	case "serve", "import", "add-source":
	case "":
		fs.Usage()
		return errors.New("no command given")
	default:
		return fmt.Errorf("unknown command %q", fs.Arg(0))
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.registerConfiguredSources(ctx); err != nil {
		return err
	}

	switch fs.Arg(0) {
	case "serve":
		return a.serve(ctx)
	case "import":
		return a.runImport(ctx, stdout)
	default:
		if fs.NArg() != 2 {
			return errors.New("usage: knolarchive add-source <path-or-url>")
		}
		source, err := a.importer.AddSource(ctx, fs.Arg(1), cfg.Import.Owner)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Source %d added: %s (%s)\n", source.ID, source.Path, source.Type)
		return nil
	}
}

// app wires the long-lived components together.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	db       *storage.DB
	nc       *nats.Conn
	registry *prometheus.Registry
	cards    *cards.Service
	importer *importer.Importer
}

func newApp(cfg config.Config, logger *slog.Logger) (*app, error) {
	db, err := storage.Open(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logger.Info("database opened", "path", cfg.DB.Path)
	a := &app{cfg: cfg, logger: logger, db: db}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(a.registry)
	if err != nil {
		a.close()
		return nil, err
	}

	var publisher events.Publisher = events.LogPublisher{Logger: logger}
	if cfg.NATS.URL != "" {
		nc, err := events.Connect(cfg.NATS.URL, "knolarchive", logger)
		if err != nil {
			a.close()
			return nil, err
		}
		a.nc = nc
		publisher = events.NewNATSPublisher(nc, cfg.NATS.Subject)
		logger.Info("publishing events to NATS", "url", cfg.NATS.URL, "subject", cfg.NATS.Subject)
	}

	a.cards = cards.NewService(db, cards.Options{
		Publisher:      publisher,
		Metrics:        m,
		Logger:         logger,
		Workers:        cfg.Batch.Workers,
		PublishTimeout: cfg.Events.Timeout,
	})
	a.importer = importer.New(db, a.cards, importer.Options{
		Git:    &gitsource.Syncer{BaseDir: cfg.Import.Repos, Logger: logger},
		Logger: logger,
		Owner:  cfg.Import.Owner,
	})
	return a, nil
}

func (a *app) close() {
	if a.nc != nil {
		if err := a.nc.Drain(); err != nil {
			a.logger.Warn("failed to drain NATS connection", "error", err)
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", "error", err)
	}
}

// registerConfiguredSources adds the import.sources entries that are not
// stored yet.
func (a *app) registerConfiguredSources(ctx context.Context) error {
	for _, path := range a.cfg.Import.Sources {
		if _, err := a.importer.AddSource(ctx, path, a.cfg.Import.Owner); err != nil {
			return fmt.Errorf("failed to register source %s: %w", path, err)
		}
	}
	return nil
}

func (a *app) serve(ctx context.Context) error {
	srv := &http.Server{
		Addr: a.cfg.HTTP.Addr,
		Handler: web.NewServer(web.Deps{
			Cards:    a.cards,
			Sources:  a.db,
			Importer: a.importer,
			Gatherer: a.registry,
			Logger:   a.logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		a.logger.Info("starting server", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (a *app) runImport(ctx context.Context, stdout io.Writer) error {
	reports, err := a.importer.Run(ctx)
	if err != nil {
		return err
	}
	var failures int
	for _, r := range reports {
		fmt.Fprintf(stdout, "%s: parsed %d, created %d, skipped %d, orphaned %d, errors %d\n",
			r.Path, r.Parsed, r.Created, r.Skipped, r.Orphaned, len(r.Errors))
		for _, e := range r.Errors {
			fmt.Fprintf(stdout, "- %s\n", e)
		}
		failures += len(r.Errors)
	}
	if failures > 0 {
		return fmt.Errorf("import finished with %d errors", failures)
	}
	return nil
}

func printTypes(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(content.Describe())
}

func validateFile(w io.Writer, cardType, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	_, canonical, err := content.Normalize(cardType, raw)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", canonical)
	return err
}
