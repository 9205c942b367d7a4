// cmd/haven/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"haven/client"
	"haven/internal/config"
	"haven/internal/logging"
	"haven/internal/snapshot"
	"haven/internal/storage"
	"haven/internal/termview"

	"github.com/dgraph-io/badger/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var logger, _ = zap.NewDevelopment()

var flags struct {
	configPath string
	apiURL     string
	logLevel   string
	dbPath     string
	offline    bool
	width      int
}

var rootCmd = &cobra.Command{
	Use:   "haven",
	Short: "Haven reviews commits from the terminal",
	Long: `Haven talks to a Haven review backend: it lists commits, renders their
diffs in unified or split layout with inline comments, and posts comments
and review verdicts. Diffs and comments are kept locally so they can be
read with --offline when the backend is down.`,
	SilenceUsage:      true,
	PersistentPreRunE: PersistentPreRunE,
}

var PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
	var err error
	if flags.logLevel == "" {
		logger, err = zap.NewDevelopment()
	} else {
		var l *logging.Logger
		l, err = logging.NewLogger(flags.logLevel)
		if l != nil {
			logger = l.Logger
		}
	}
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	return nil
}

// app holds what a command needs to reach the backend and the snapshot.
type app struct {
	cfg    *config.Config
	client *client.Client
	db     *badger.DB
	store  *snapshot.Store
	source *snapshot.Source
	out    *termview.Printer
}

func setup() (*app, error) {
	path := flags.configPath
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if flags.apiURL != "" {
		cfg.Backend.BaseURL = flags.apiURL
	}
	if flags.dbPath != "" {
		cfg.Database.Path = flags.dbPath
	}

	db, err := storage.OpenDB(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	store, err := snapshot.New(db, snapshot.Options{
		CacheSize:       cfg.Cache.Size,
		CompressMinSize: cfg.Cache.CompressMinSize,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	c := client.New(cfg.Backend.BaseURL,
		client.WithTimeout(time.Duration(cfg.Backend.Timeout)),
		client.WithLogger(logger),
	)

	return &app{
		cfg:    cfg,
		client: c,
		db:     db,
		store:  store,
		source: snapshot.NewSource(c, store, flags.offline, logger),
		out:    termview.New(os.Stdout, terminalWidth()),
	}, nil
}

func (a *app) Close() error {
	if err := a.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// withApp runs fn with a ready app and closes it afterwards.
func withApp(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd.Context(), a, args)
	}
}

func terminalWidth() int {
	if flags.width > 0 {
		return flags.width
	}
	if n, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && n > 0 {
		return n
	}
	return 120
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid commit id %q", s)
	}
	return id, nil
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default config/config.<HAVEN_ENV>.json)")
	pf.StringVar(&flags.apiURL, "api-url", "", "backend base URL (overrides config and HAVEN_API_URL)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flags.dbPath, "db", "", "snapshot database directory")
	pf.BoolVar(&flags.offline, "offline", false, "read diffs and comments from the local snapshot only")
	pf.IntVar(&flags.width, "width", 0, "output width (default $COLUMNS or 120)")
}

func main() {
	defer logger.Sync()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
