package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/erazemk/shoplist/internal/api"
	"github.com/erazemk/shoplist/internal/cache"
	"github.com/erazemk/shoplist/internal/config"
	"github.com/erazemk/shoplist/internal/db"
	"github.com/erazemk/shoplist/internal/store"
)

var version = "dev"

// levelRouter is a slog.Handler that routes INFO/WARN to stdout and ERROR+ to stderr.
type levelRouter struct {
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// setupLogger configures structured logging. INFO/WARN go to stdout, ERROR goes
// to stderr. If logPath is non-empty, all levels are also written to that file.
// Returns a cleanup function that closes the log file (if opened).
func setupLogger(logPath string) (func(), error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var cleanup func()

	stdoutW := io.Writer(os.Stdout)
	stderrW := io.Writer(os.Stderr)

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdoutW = io.MultiWriter(os.Stdout, f)
		stderrW = io.MultiWriter(os.Stderr, f)
	}

	handler := &levelRouter{
		stdout: slog.NewTextHandler(stdoutW, opts),
		stderr: slog.NewTextHandler(stderrW, opts),
	}
	slog.SetDefault(slog.New(handler))
	return cleanup, nil
}

// parseFlags applies command line overrides on top of the environment.
func parseFlags(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("shoplist", flag.ContinueOnError)

	fs.StringVar(&cfg.Database.Path, "db", cfg.Database.Path, "")
	fs.StringVar(&cfg.Database.Path, "d", cfg.Database.Path, "")

	fs.StringVar(&cfg.Server.Addr, "addr", cfg.Server.Addr, "")
	fs.StringVar(&cfg.Server.Addr, "a", cfg.Server.Addr, "")

	fs.StringVar(&cfg.Server.LogFile, "log", cfg.Server.LogFile, "")
	fs.StringVar(&cfg.Server.LogFile, "l", cfg.Server.LogFile, "")

	fs.BoolVar(&cfg.Database.Seed, "seed", cfg.Database.Seed, "")
	fs.BoolVar(&cfg.Database.Seed, "s", cfg.Database.Seed, "")

	fs.StringVar(&cfg.Redis.URL, "redis", cfg.Redis.URL, "")
	fs.StringVar(&cfg.Redis.URL, "r", cfg.Redis.URL, "")

	fs.DurationVar(&cfg.Redis.TTL, "cache-ttl", cfg.Redis.TTL, "")

	fs.Func("cors", "", func(s string) error {
		cfg.Server.CORSOrigins = config.SplitList(s)
		return nil
	})

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: shoplist [flags]

Flags:
  -d, -db <path>          SQLite database path (default: shoplist.sqlite3)
  -a, -addr <host:port>   listen address (default: :5000)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -s, -seed               populate an empty database with example data
  -r, -redis <url>        Redis URL for the page cache (default: no cache)
  -cache-ttl <duration>   page cache TTL (default: 60s)
  -cors <origins>         comma separated allowed origins (default: *)
  -h, -help               show this help and exit

Every flag can also be set in the environment or a .env file:
SHOPLIST_DB, SHOPLIST_ADDR, SHOPLIST_LOG, SHOPLIST_SEED, SHOPLIST_CORS_ORIGINS,
REDIS_URL (or REDIS_ADDR, REDIS_PASSWORD, REDIS_DB) and CACHE_TTL.
`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() > 0 {
		fs.Usage()
		return fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	return nil
}

func main() {
	cfg := config.Load()

	if err := parseFlags(cfg, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Set up structured logging: INFO/WARN → stdout, ERROR → stderr.
	// Optionally also write to a log file.
	closeLog, err := setupLogger(cfg.Server.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if closeLog != nil {
		defer closeLog()
	}

	if _, err := os.Stat(cfg.Database.Path); os.IsNotExist(err) {
		slog.Info("creating database", "path", cfg.Database.Path)
	}

	// Open database, creating the file if needed.
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	// Ensure schema exists (idempotent).
	if err := db.EnsureSchema(database); err != nil {
		slog.Error("failed to ensure database schema", "error", err)
		os.Exit(1)
	}

	slog.Info("database ready", "path", cfg.Database.Path)

	if cfg.Database.Seed {
		seeded, err := store.Seed(context.Background(), database)
		if err != nil {
			slog.Error("failed to seed database", "error", err)
			os.Exit(1)
		}
		if seeded {
			slog.Info("database populated with example data")
		}
	}

	pageCache, closeCache := setupCache(cfg)
	if closeCache != nil {
		defer closeCache()
	}

	handler := api.NewRouter(database, api.Options{
		Cache:       pageCache,
		CORSOrigins: cfg.Server.CORSOrigins,
		Version:     version,
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Server.Addr, "version", version)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped, closing database")
}

// setupCache connects to Redis when configured. An unreachable server disables
// the cache instead of preventing startup.
func setupCache(cfg *config.Config) (*cache.PageCache, func()) {
	opts, err := cfg.RedisOptions()
	if err != nil || opts == nil {
		return nil, nil
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable, page cache disabled", "addr", opts.Addr, "error", err)
		client.Close()
		return nil, nil
	}

	slog.Info("page cache enabled", "addr", opts.Addr, "ttl", cfg.Redis.TTL)
	return cache.New(client, cfg.Redis.TTL), func() { client.Close() }
}
