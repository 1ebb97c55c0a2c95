package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/orodjarna/internal/api"
	"github.com/erazemk/orodjarna/internal/auth"
	"github.com/erazemk/orodjarna/internal/config"
	"github.com/erazemk/orodjarna/internal/console"
	"github.com/erazemk/orodjarna/internal/db"
	"github.com/erazemk/orodjarna/internal/lifecycle"
	"github.com/erazemk/orodjarna/internal/metrics"
	"github.com/erazemk/orodjarna/internal/model"
	"github.com/erazemk/orodjarna/internal/scan"
	"github.com/erazemk/orodjarna/internal/store"
)

const usage = `Usage: orodjarna <command> [flags]

Commands:
  init    create the database and the admin account
  serve   run the management API
  scan    run the scan console
  check   reconcile every tool against the export log

Flags:
  -d, -db <path>          SQLite database path (default: orodjarna.sqlite3)
  -a, -addr <host:port>   listen address, serve only (default: :8080)
  -u, -user <name>        admin username on first run (default: Admin)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -level <level>          log level: debug, info, warn, error (default: info)
  -h, -help               show this help and exit

Every flag can also be set in the environment or a .env file, e.g.
ORODJARNA_DB, ORODJARNA_ADDR, ORODJARNA_LOG_LEVEL, ORODJARNA_TOKEN_TTL.
`

// errProblems makes check exit non-zero.
var errProblems = errors.New("reconciliation found problems")

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cmd, args := os.Args[1], os.Args[2:]
	var run func(*config.Config) error
	switch cmd {
	case "init":
		run = cmdInit
	case "serve":
		run = cmdServe
	case "scan":
		run = cmdScan
	case "check":
		run = cmdCheck
	case "-h", "-help", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n%s", cmd, usage)
		os.Exit(1)
	}

	if err := parseFlags(cmd, args, cfg); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	level, _ := cfg.Level()
	closeLog, err := setupLogger(cfg.LogPath, level, cmd == "scan")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	err = run(cfg)
	if closeLog != nil {
		closeLog()
	}
	if err != nil {
		if err != errProblems {
			slog.Error(cmd+" failed", "error", err)
		}
		os.Exit(1)
	}
}

// parseFlags applies command-line flags on top of cfg.
func parseFlags(cmd string, args []string, cfg *config.Config) error {
	fs := flag.NewFlagSet("orodjarna "+cmd, flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(os.Stdout, usage) }

	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "")
	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "")

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "")
	fs.StringVar(&cfg.Addr, "a", cfg.Addr, "")

	fs.StringVar(&cfg.AdminUser, "user", cfg.AdminUser, "")
	fs.StringVar(&cfg.AdminUser, "u", cfg.AdminUser, "")

	fs.StringVar(&cfg.LogPath, "log", cfg.LogPath, "")
	fs.StringVar(&cfg.LogPath, "l", cfg.LogPath, "")

	fs.StringVar(&cfg.LogLevel, "level", cfg.LogLevel, "")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	return cfg.Validate()
}

func cmdInit(cfg *config.Config) error {
	if _, err := os.Stat(cfg.DBPath); err == nil {
		return fmt.Errorf("database file %s already exists", cfg.DBPath)
	}

	database, password, err := initDatabase(cfg.DBPath, cfg.AdminUser)
	if err != nil {
		return err
	}
	database.Close()

	printInitResult(cfg.DBPath, cfg.AdminUser, password)
	return nil
}

func cmdServe(cfg *config.Config) error {
	// Check if DB exists, auto-init if not.
	if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
		database, password, err := initDatabase(cfg.DBPath, cfg.AdminUser)
		if err != nil {
			return fmt.Errorf("initializing database: %w", err)
		}
		database.Close()

		printInitResult(cfg.DBPath, cfg.AdminUser, password)
		fmt.Println()
	}

	database, err := openDatabase(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	st := store.New(database)

	// Load JWT secret from database (auto-generated on first run).
	jwtSecret, err := st.GetJWTSecret(context.Background())
	if err != nil {
		return fmt.Errorf("loading jwt secret: %w", err)
	}

	deps := api.Deps{
		Store:   st,
		Scanner: scan.NewResolver(st),
		Tokens:  auth.NewIssuer(jwtSecret, cfg.TokenTTL),
	}
	if cfg.Metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		deps.Metrics = metrics.New(reg)
		deps.Gatherer = reg
	}
	deps.Lifecycle = lifecycle.New(st, lifecycle.WithMetrics(deps.Metrics))

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewRouter(deps),
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

	slog.Info("server started", "addr", cfg.Addr, "metrics", cfg.Metrics)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving: %w", err)
	}

	slog.Info("server stopped, closing database")
	return nil
}

func cmdScan(cfg *config.Config) error {
	database, err := openExisting(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	st := store.New(database)
	con := console.New(scan.NewResolver(st), lifecycle.New(st),
		console.WithDefaultPurpose(cfg.DefaultPurpose))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := con.Run(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func cmdCheck(cfg *config.Config) error {
	database, err := openExisting(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sum, err := lifecycle.New(store.New(database)).ReconcileAll(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Checked %d tools, repaired %d.\n", sum.Checked, sum.Repaired)
	for _, w := range sum.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	if len(sum.Problems) == 0 {
		return nil
	}
	fmt.Printf("%d tools need attention:\n", len(sum.Problems))
	for _, p := range sum.Problems {
		fmt.Printf("  %s %s: %s\n", model.ShortCode(p.ToolID), p.ToolName, p.Reason)
	}
	return errProblems
}

// openExisting opens a database that must already exist.
func openExisting(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("database %s not found, run orodjarna init first", path)
	}
	return openDatabase(path)
}

// openDatabase opens the database and applies pending migrations.
func openDatabase(path string) (*sql.DB, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(context.Background(), database); err != nil {
		database.Close()
		return nil, err
	}

	version, _ := db.Version(context.Background(), database)
	slog.Info("database ready", "path", path, "schema_version", version)
	return database, nil
}

// initDatabase creates a new database, applies the schema, and creates the admin user.
func initDatabase(path, adminUsername string) (*sql.DB, string, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("opening database: %w", err)
	}

	fail := func(err error) (*sql.DB, string, error) {
		database.Close()
		os.Remove(path)
		return nil, "", err
	}

	if err := db.Migrate(context.Background(), database); err != nil {
		return fail(fmt.Errorf("running migrations: %w", err))
	}

	password, err := generatePassword(16)
	if err != nil {
		return fail(fmt.Errorf("generating password: %w", err))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fail(fmt.Errorf("hashing password: %w", err))
	}

	ctx := context.Background()
	if _, err := store.New(database).CreateUser(ctx, adminUsername, string(hash), model.RoleAdmin); err != nil {
		return fail(fmt.Errorf("creating admin user: %w", err))
	}

	return database, password, nil
}

// printInitResult prints the database initialization result to stdout.
func printInitResult(dbPath, username, password string) {
	fmt.Printf("Database created: %s\n", dbPath)
	fmt.Println("Schema initialized.")
	fmt.Println()
	fmt.Println("Admin account created:")
	fmt.Printf("  Username: %s\n", username)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("The admin can change it after logging in.")
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
