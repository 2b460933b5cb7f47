package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/sharepoint-upload/internal/auth"
	"github.com/tonimelisma/sharepoint-upload/internal/config"
	"github.com/tonimelisma/sharepoint-upload/internal/failure"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagSite       string
	flagLibrary    string
	flagFolder     string
	flagAuthMode   string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spupload",
		Short: "Upload files to SharePoint document libraries",
		Long: `Upload one local file into a SharePoint document library folder
through Microsoft Graph, creating missing folders on the way.`,
		Version: version,
		// Silence Cobra's default error/usage printing; exitOnError handles it.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagSite, "site", "", "site URL (e.g. https://contoso.sharepoint.com/sites/team)")
	cmd.PersistentFlags().StringVar(&flagLibrary, "library", "", "document library name")
	cmd.PersistentFlags().StringVar(&flagFolder, "folder", "", "folder path inside the library (empty = library root)")
	cmd.PersistentFlags().StringVar(&flagAuthMode, "auth-mode", "",
		"certificate, interactive, chained or client_credentials (default: inferred)")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newUploadCmd())
	cmd.AddCommand(newResolveCmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())

	return cmd
}

// cliOverrides collects the flags the user actually set. Unset flags stay nil
// so the config file and environment keep their values.
func cliOverrides(cmd *cobra.Command) config.CLIOverrides {
	cli := config.CLIOverrides{ConfigPath: flagConfigPath}

	flags := cmd.Flags()

	if flags.Changed("site") {
		cli.SiteURL = &flagSite
	}

	if flags.Changed("library") {
		cli.Library = &flagLibrary
	}

	if flags.Changed("folder") {
		cli.Folder = &flagFolder
	}

	if flags.Changed("auth-mode") {
		cli.AuthMode = &flagAuthMode
	}

	return cli
}

// loadConfig resolves the full configuration for commands that talk to a
// site. Any problem is a ConfigurationError raised before the network is
// touched.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Resolve(config.ReadEnvOverrides(), cliOverrides(cmd))
	if err != nil {
		return nil, failure.Configuration("load configuration", err)
	}

	return cfg, nil
}

// loadAuthConfig layers configuration without requiring a target, for
// commands that only need a credential (login) or a record path (logout).
func loadAuthConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Layer(config.ReadEnvOverrides(), cliOverrides(cmd))
	if err != nil {
		return nil, failure.Configuration("load configuration", err)
	}

	return cfg, nil
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. Config-file log level provides the baseline; --verbose and
// --quiet override it because CLI flags always win. The returned close
// function releases the log file, if any.
func buildLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	level := slog.LevelInfo

	format, logFile := "auto", ""

	if cfg != nil {
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}

		format, logFile = cfg.LogFormat, cfg.LogFile
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	var (
		w       io.Writer = os.Stderr
		closeFn           = func() {}
	)

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, failure.Configuration("open log file", err)
		}

		w = f
		closeFn = func() { f.Close() }
	}

	return slog.New(newLogHandler(w, format, level)), closeFn, nil
}

// newLogHandler picks the handler for format. "auto" means text on a
// terminal and JSON anywhere else.
func newLogHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	if format == "json" || (format == "auto" && !isTerminal(w)) {
		return slog.NewJSONHandler(w, opts)
	}

	return slog.NewTextHandler(w, opts)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// newHTTPClient builds the client shared by token requests and Graph calls.
// There is no overall request timeout: a large chunk may take as long as the
// link needs.
func newHTTPClient(cfg *config.Config) *http.Client {
	connect, data := cfg.Durations()

	transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // stdlib default
	transport.DialContext = (&net.Dialer{Timeout: connect}).DialContext
	transport.TLSHandshakeTimeout = connect
	transport.ResponseHeaderTimeout = data

	return &http.Client{Transport: transport}
}

// authConfig maps the resolved configuration onto the credential settings.
func authConfig(cfg *config.Config, httpClient *http.Client) auth.Config {
	return auth.Config{
		Mode:                  auth.Mode(cfg.EffectiveAuthMode()),
		TenantID:              cfg.TenantID,
		ClientID:              cfg.ClientID,
		AuthorityHost:         cfg.AuthorityHost,
		CertificatePath:       cfg.CertificatePath,
		CertificatePassword:   cfg.CertificatePassword,
		CertificateThumbprint: cfg.CertificateThumbprint,
		StoreName:             cfg.StoreName,
		StoreLocation:         cfg.StoreLocation,
		StoreDir:              cfg.CertStoreDir,
		RecordPath:            cfg.AuthRecordFile,
		RedirectPort:          cfg.RedirectPort,
		OpenURL:               openBrowser,
		HTTPClient:            httpClient,
	}
}

// exitOnError prints the translated failure report to stderr and exits 1.
// Every failure kind maps to the same exit code.
func exitOnError(err error) {
	var fe *failure.Error
	if errors.As(err, &fe) {
		fmt.Fprintf(os.Stderr, "Error: %s\n", fe.Error())
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", failure.Translate("spupload", err))
	}

	os.Exit(1)
}
