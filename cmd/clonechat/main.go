// Command clonechat is the terminal client of the digital clone backend.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"digital-clone/frontend/internal/apiclient"
	"digital-clone/frontend/internal/session"
	"digital-clone/frontend/pkg/config"
	"digital-clone/frontend/pkg/logger"
	"digital-clone/frontend/pkg/resilience"

	"github.com/spf13/cobra"
)

var (
	apiURL      string
	sessionFile string
	logFile     string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "clonechat",
	Short: "Chat with your digital clones from the terminal",
	Long: `clonechat talks to the digital clone backend.

Sign in once with 'clonechat login', then open a chat with
'clonechat chat <clone-id>'. The session token is kept in a local file.`,
	SilenceUsage: true,
}

func init() {
	cfg := config.New()

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", cfg.Backend.URL, "Backend base URL")
	rootCmd.PersistentFlags().StringVar(&sessionFile, "session-file", cfg.Session.File, "Where the session token is stored")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password (read from stdin when empty)")
	registerCmd.Flags().StringVar(&registerName, "name", "", "Display name")
	registerCmd.Flags().StringVar(&loginEmail, "email", "", "Account email")
	registerCmd.Flags().StringVar(&loginPassword, "password", "", "Account password (read from stdin when empty)")

	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd, clonesCmd, chatCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// app is what every subcommand works with
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	store   *session.Store
	api     *apiclient.Client
	closeFn func()
}

// newApp hydrates the stored session and binds an API client to it.
// Logs go to --log-file when set; quiet discards them otherwise.
func newApp(ctx context.Context, quiet bool) (*app, error) {
	cfg := config.New()

	var out io.Writer = os.Stderr
	closeFn := func() {}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		closeFn = func() { _ = f.Close() }
	} else if quiet {
		out = io.Discard
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	log := logger.New(logger.Config{Level: level, Output: out})
	logger.SetGlobal(log)

	store := session.NewStore(session.NewFilePersister(sessionFile), log)
	if err := store.Hydrate(ctx); err != nil {
		closeFn()
		return nil, err
	}

	breaker := apiclient.NewBreaker(resilience.Config{
		Name:             "backend",
		FailureThreshold: cfg.Backend.FailureThreshold,
		SuccessThreshold: cfg.Backend.SuccessThreshold,
		RetryTimeout:     cfg.Backend.RetryTimeout,
	}, log)
	api := apiclient.New(strings.TrimRight(apiURL, "/"),
		apiclient.WithHTTPClient(&http.Client{Timeout: cfg.Backend.Timeout}),
		apiclient.WithBreaker(breaker),
		apiclient.WithLogger(log),
	)

	return &app{cfg: cfg, log: log, store: store, api: api.WithTokens(store), closeFn: closeFn}, nil
}

func (a *app) Close() { a.closeFn() }
