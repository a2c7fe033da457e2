package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/erazemk/assetdesk/internal/api"
	"github.com/erazemk/assetdesk/internal/auth"
	"github.com/erazemk/assetdesk/internal/cache"
	"github.com/erazemk/assetdesk/internal/config"
	"github.com/erazemk/assetdesk/internal/db"
	"github.com/erazemk/assetdesk/internal/logger"
	"github.com/erazemk/assetdesk/internal/model"
	"github.com/erazemk/assetdesk/internal/notify"
	"github.com/erazemk/assetdesk/internal/store"
)

const purgeInterval = time.Hour

type flags struct {
	config string
	db     string
	addr   string
	user   string
	log    string
}

func parseFlags(args []string) (*flags, map[string]bool, error) {
	fs := flag.NewFlagSet("assetdesk", flag.ContinueOnError)

	f := &flags{}
	fs.StringVar(&f.config, "config", "", "")
	fs.StringVar(&f.config, "c", "", "")
	fs.StringVar(&f.db, "db", "", "")
	fs.StringVar(&f.db, "d", "", "")
	fs.StringVar(&f.addr, "addr", "", "")
	fs.StringVar(&f.addr, "a", "", "")
	fs.StringVar(&f.user, "user", "", "")
	fs.StringVar(&f.user, "u", "", "")
	fs.StringVar(&f.log, "log", "", "")
	fs.StringVar(&f.log, "l", "", "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: assetdesk [flags]

Flags:
  -c, -config <path>      YAML config file (optional)
  -d, -db <path>          SQLite database path (default: assetdesk.db)
  -a, -addr <host:port>   listen address (default: :8080)
  -u, -user <name>        admin username on first run (default: admin)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -h, -help               show this help and exit

Settings can also come from a .env file and the environment
(DB_PATH, ADDR, NOTIFIER, SMTP_HOST, KAFKA_BROKERS, REDIS_ADDR, ...).
`)
	}

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return nil, nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	set := map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return f, set, nil
}

// applyFlags overrides configuration with flags given on the command line.
func (f *flags) applyFlags(cfg *config.Config, set map[string]bool) {
	if set["db"] || set["d"] {
		cfg.DBPath = f.db
	}
	if set["addr"] || set["a"] {
		cfg.Addr = f.addr
	}
	if set["user"] || set["u"] {
		cfg.AdminUser = f.user
	}
	if set["log"] || set["l"] {
		cfg.LogPath = f.log
	}
}

func main() {
	f, set, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(f.config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	f.applyFlags(cfg, set)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Environment, cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("exiting", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	if err := db.EnsureSchema(database); err != nil {
		return fmt.Errorf("ensuring database schema: %w", err)
	}
	log.Info("database ready", zap.String("path", cfg.DBPath))

	if err := ensureAdmin(ctx, database, cfg.AdminUser); err != nil {
		return err
	}

	secret, err := store.GetJWTSecret(ctx, database)
	if err != nil {
		return fmt.Errorf("loading JWT secret: %w", err)
	}
	tokens := auth.NewTokens(secret, cfg.TokenExpiry.Duration)

	catalog, closeCache := openCatalog(ctx, cfg, database, log)
	defer closeCache()

	notifier, err := newNotifier(ctx, cfg, database, log)
	if err != nil {
		return err
	}
	if c, ok := notifier.(interface{ Close() error }); ok {
		defer c.Close()
	}
	notify.VerifyOnStartup(ctx, notifier, log)

	dispatcher := notify.NewDispatcher(database, notifier, notify.DispatcherConfig{
		MaxAttempts:  cfg.Outbox.MaxAttempts,
		RetryDelay:   cfg.Outbox.RetryDelay.Duration,
		PollInterval: cfg.Outbox.PollInterval.Duration,
		BatchSize:    cfg.Outbox.BatchSize,
	}, log)

	handler := api.NewRouter(api.Deps{
		DB:               database,
		Tokens:           tokens,
		Catalog:          catalog,
		Notifier:         notifier,
		Outbox:           dispatcher,
		AssignmentPolicy: cfg.AssignmentPolicy,
		FrontendURL:      cfg.FrontendURL,
		TestRecipient:    cfg.SMTP.TestRecipient,
		Log:              log,
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server started",
			zap.String("addr", cfg.Addr),
			zap.String("environment", cfg.Environment),
			zap.String("assignment_policy", cfg.AssignmentPolicy),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return dispatcher.Run(gctx)
	})

	g.Go(func() error {
		purgeRevokedTokens(gctx, database, log)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped, closing database")
	return nil
}

// ensureAdmin creates the first admin operator when there are none and
// prints its generated password once.
func ensureAdmin(ctx context.Context, database *sql.DB, username string) error {
	n, err := store.CountOperators(ctx, database)
	if err != nil {
		return fmt.Errorf("counting operators: %w", err)
	}
	if n > 0 {
		return nil
	}

	password, err := auth.RandomPassword()
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if _, err := store.CreateOperator(ctx, database, username, hash, model.RoleAdmin); err != nil {
		return fmt.Errorf("creating admin operator: %w", err)
	}

	fmt.Println("Admin account created:")
	fmt.Printf("  Username: %s\n", username)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("The admin can change it after logging in.")
	fmt.Println()
	return nil
}

// openCatalog connects the product cache when Redis is configured. A Redis
// that cannot be reached disables the cache instead of stopping startup.
func openCatalog(ctx context.Context, cfg *config.Config, database *sql.DB, log *zap.Logger) (*cache.Catalog, func()) {
	if cfg.Redis.Addr == "" {
		return cache.NewCatalog(database, nil, 0, log), func() {}
	}

	rdb, err := cache.Connect(ctx, cache.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Warn("product cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		return cache.NewCatalog(database, nil, 0, log), func() {}
	}

	log.Info("product cache enabled", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", cfg.Redis.TTL.Duration))
	return cache.NewCatalog(database, rdb, cfg.Redis.TTL.Duration, log), func() { rdb.Close() }
}

func newNotifier(ctx context.Context, cfg *config.Config, database *sql.DB, log *zap.Logger) (notify.Notifier, error) {
	switch cfg.Notifier {
	case config.NotifierSMTP:
		n, err := notify.NewSMTPNotifier(cfg.SMTP, log)
		if err != nil {
			return nil, fmt.Errorf("configuring smtp notifier: %w", err)
		}
		return n, nil
	case config.NotifierKafka:
		source, err := store.GetInstanceID(ctx, database)
		if err != nil {
			return nil, fmt.Errorf("loading instance id: %w", err)
		}
		n, err := notify.NewKafkaNotifier(cfg.Kafka, source, log)
		if err != nil {
			return nil, fmt.Errorf("configuring kafka notifier: %w", err)
		}
		return n, nil
	default:
		return notify.NewLogNotifier(log), nil
	}
}

// purgeRevokedTokens periodically drops revocations of tokens that have
// expired anyway.
func purgeRevokedTokens(ctx context.Context, database *sql.DB, log *zap.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.PurgeRevokedTokens(ctx, database, time.Now())
			if err != nil {
				log.Warn("purging revoked tokens", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Info("purged revoked tokens", zap.Int64("count", n))
			}
		}
	}
}
