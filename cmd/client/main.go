// Command devtrack is the DevTrack tracker client: an interactive terminal
// UI plus one-shot commands for scripting.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/atinyakov/devtrack/internal/client/api"
	"github.com/atinyakov/devtrack/internal/client/session"
	"github.com/atinyakov/devtrack/internal/client/storage"
	"github.com/atinyakov/devtrack/internal/config"
	"github.com/atinyakov/devtrack/internal/logger"
)

var (
	version   string
	buildDate string
)

// Command annotations read by setup.
const (
	annotSkipSetup = "devtrack/skip-setup"
	annotLogToFile = "devtrack/log-to-file"
)

var errNotLoggedIn = errors.New("not logged in; run `devtrack login` first")

type rootFlags struct {
	config  string
	url     string
	wsURL   string
	store   string
	logFile string
	verbose bool
}

// cli carries everything the commands share once setup has run.
type cli struct {
	flags rootFlags

	opts   *config.Options
	log    *logger.Logger
	client *api.Client
	store  *session.Store
	closer io.Closer
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "devtrack",
		Short: "DevTrack project, task and bug tracker client",
		Long: `devtrack talks to a DevTrack backend.

Run without a subcommand to open the interactive UI. The one-shot
commands share the session saved by "devtrack login".`,
		SilenceUsage:      true,
		Annotations:       map[string]string{annotLogToFile: "true"},
		PersistentPreRunE: c.setup,
		PersistentPostRun: func(*cobra.Command, []string) { c.teardown() },
		RunE:              c.runUI,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.flags.config, "config", "", "path to a JSON config file")
	pf.StringVar(&c.flags.url, "url", "", "backend base URL (overrides DEVTRACK_API_URL)")
	pf.StringVar(&c.flags.wsURL, "ws-url", "", "live update base URL (derived from --url when empty)")
	pf.StringVar(&c.flags.store, "store", "", "session store: file, sqlite or redis")
	pf.StringVar(&c.flags.logFile, "log-file", "", "where the interactive UI writes its log")
	pf.BoolVarP(&c.flags.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		c.uiCmd(),
		c.loginCmd(),
		c.registerCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.projectsCmd(),
		c.tasksCmd(),
		c.bugsCmd(),
		c.analyticsCmd(),
		c.watchCmd(),
		versionCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Show build version and date",
		Annotations: map[string]string{annotSkipSetup: "true"},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "DevTrack Client\nVersion: %s\nBuild Date: %s\n", orNA(version), orNA(buildDate))
		},
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// loadOptions layers the persistent flags over config.Load.
func (c *cli) loadOptions(cmd *cobra.Command) (*config.Options, error) {
	opts, err := config.Load(c.flags.config)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("url") {
		opts.APIURL = c.flags.url
		if !flags.Changed("ws-url") {
			opts.WSURL = ""
		}
	}
	if flags.Changed("ws-url") {
		opts.WSURL = c.flags.wsURL
	}
	if flags.Changed("store") {
		opts.Store = c.flags.store
	}
	if flags.Changed("log-file") {
		opts.LogFile = c.flags.logFile
	}
	if c.flags.verbose {
		opts.LogLevel = "debug"
	}
	if err := opts.Sanitize(); err != nil {
		return nil, err
	}
	return opts, nil
}

// setup loads configuration and wires logger, storage, API client and
// session. The session is restored before any command runs.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations[annotSkipSetup] != "" {
		return nil
	}

	opts, err := c.loadOptions(cmd)
	if err != nil {
		return err
	}
	c.opts = opts

	c.log = logger.New()
	if cmd.Annotations[annotLogToFile] != "" {
		if err := os.MkdirAll(filepath.Dir(opts.LogFile), 0o700); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		err = c.log.InitWithOutput(opts.LogLevel, opts.LogFile)
	} else {
		// one-shot output stays readable unless asked for
		level := "warn"
		if c.flags.verbose {
			level = "debug"
		}
		err = c.log.Init(level)
	}
	if err != nil {
		return err
	}

	if opts.Store != config.StoreRedis {
		if err := os.MkdirAll(filepath.Dir(opts.StatePath), 0o700); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	slots, closer, err := storage.Open(cmd.Context(), opts)
	if err != nil {
		return err
	}
	c.closer = closer

	var store *session.Store
	apiOpts := []api.Option{
		api.WithLogger(c.log.Log),
		api.WithTimeout(opts.Timeout.Duration),
		api.WithTokenSource(api.TokenFunc(func() string { return store.Token() })),
	}
	if opts.CAFile != "" {
		apiOpts = append(apiOpts, api.WithCAFile(opts.CAFile))
	}
	client, err := api.New(opts.APIURL, apiOpts...)
	if err != nil {
		return err
	}
	store = session.New(client, slots, c.log.Log)
	store.Restore(cmd.Context())

	c.client, c.store = client, store
	c.log.Log.Debug("client ready",
		zap.String("api_url", opts.APIURL),
		zap.String("ws_url", opts.WSURL),
		zap.String("store", opts.Store))
	return nil
}

func (c *cli) teardown() {
	if c.closer != nil {
		if err := c.closer.Close(); err != nil {
			c.log.Log.Warn("close session store", zap.Error(err))
		}
	}
	if c.log != nil {
		_ = c.log.Log.Sync()
	}
}

// requireLogin returns the restored identity or errNotLoggedIn.
func (c *cli) requireLogin() error {
	if !c.store.Snapshot().Authenticated() {
		return errNotLoggedIn
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(&cli{}).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
