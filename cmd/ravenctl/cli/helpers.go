package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/raven-automation/ravenctl/internal/api"
	"github.com/raven-automation/ravenctl/internal/config"
	"github.com/raven-automation/ravenctl/internal/logging"
)

// Env bundles the per-invocation client context: config, transport, and the
// bootstrapped session store.
type Env struct {
	Cfg       config.Config
	Transport *api.Transport
	Store     *api.Store
	Logger    zerolog.Logger
}

// loadEnv builds the client context from config and flags and performs the
// session bootstrap. The persisted session cookie is seeded before the
// bootstrap so consecutive invocations share one server-side session.
func loadEnv(cmd *cobra.Command) (*Env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Host = host
	}
	if insecure, _ := cmd.Flags().GetBool("insecure"); insecure {
		cfg.Insecure = true
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}

	if cfg.Host == "" {
		return nil, fmt.Errorf("no server host configured; pass --host or set it in ~/%s/%s", config.ConfigDirName, config.ConfigFileName)
	}

	logger := logging.NewLogger(cfg.LogLevel)

	transport, err := api.NewTransport(cfg.Host, cfg.Insecure, logger)
	if err != nil {
		return nil, fmt.Errorf("building transport: %w", err)
	}
	transport.SetSessionCookie(cfg.SessionCookie)

	store := api.NewStore(transport, logger)
	store.Bootstrap(cmd.Context())

	return &Env{
		Cfg:       cfg,
		Transport: transport,
		Store:     store,
		Logger:    logger,
	}, nil
}

// Ready returns an error unless the session bootstrap succeeded.
func (e *Env) Ready() error {
	snap := e.Store.Snapshot()
	if snap.Phase != api.PhaseReady {
		return fmt.Errorf("API not reachable at %s: %s", e.Cfg.Host, snap.Reason)
	}
	return nil
}

// RequireUser returns an error unless a user is logged in.
func (e *Env) RequireUser() error {
	if err := e.Ready(); err != nil {
		return err
	}
	if !e.Store.Snapshot().Auth.Authenticated() {
		return fmt.Errorf("not logged in; run 'ravenctl login' first")
	}
	return nil
}

// SaveSession persists the current session cookie (and any host/log-level
// overrides applied this invocation) back to the config file.
func (e *Env) SaveSession() error {
	cookie := e.Transport.SessionCookie()
	if cookie != "" {
		e.Cfg.SessionCookie = cookie
	}
	return config.Save(e.Cfg)
}

// promptPassword reads a password from the terminal without echo.
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	passBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	fmt.Fprintln(os.Stderr)
	return string(passBytes), nil
}

// promptLine reads one line of input with a prompt.
func promptLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// orDash renders optional string fields in tables.
func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
