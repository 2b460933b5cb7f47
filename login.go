package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/sharepoint-upload/internal/auth"
	"github.com/tonimelisma/sharepoint-upload/internal/authrecord"
	"github.com/tonimelisma/sharepoint-upload/internal/config"
	"github.com/tonimelisma/sharepoint-upload/internal/failure"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in through the browser and save the authentication record",
		Long: `Run the interactive browser login once and save the authentication
record, so later uploads in interactive or chained mode refresh silently.`,
		Args: cobra.NoArgs,
		RunE: runLogin,
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved authentication record",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	cfg, err := loadAuthConfig(cmd)
	if err != nil {
		return err
	}

	// Login is always interactive, whatever auth_mode says.
	cfg.AuthMode = config.AuthModeInteractive

	if err := config.ValidateAuth(cfg); err != nil {
		return failure.Configuration("load configuration", err)
	}

	logger, closeLog, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	logger.Info("login started",
		slog.String("tenant_id", cfg.TenantID),
		slog.String("record", cfg.AuthRecordFile),
	)

	p := auth.NewInteractiveProvider(authConfig(cfg, newHTTPClient(cfg)), logger)

	if _, err := p.Login(cmd.Context(), cfg.Scopes); err != nil {
		return failure.Auth("interactive login", err)
	}

	logger.Info("login successful")
	statusf("Login successful. Authentication record saved to %s\n", cfg.AuthRecordFile)

	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	cfg, err := loadAuthConfig(cmd)
	if err != nil {
		return err
	}

	if cfg.AuthRecordFile == "" {
		return failure.Configuration("logout", errors.New("auth_record_file: not set"))
	}

	logger, closeLog, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	if err := authrecord.Delete(cfg.AuthRecordFile); err != nil {
		return failure.Auth("logout", err)
	}

	logger.Info("logout successful", slog.String("record", cfg.AuthRecordFile))
	statusf("Logged out.\n")

	return nil
}

// openBrowser opens url in the system browser. Anything the launcher prints
// goes to stderr so stdout stays clean for the command's result.
func openBrowser(url string) error {
	browser.Stdout = os.Stderr

	return browser.OpenURL(url)
}
