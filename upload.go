package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/sharepoint-upload/internal/auth"
	"github.com/tonimelisma/sharepoint-upload/internal/config"
	"github.com/tonimelisma/sharepoint-upload/internal/failure"
	"github.com/tonimelisma/sharepoint-upload/internal/graph"
	"github.com/tonimelisma/sharepoint-upload/internal/resolve"
	"github.com/tonimelisma/sharepoint-upload/internal/upload"
)

func newUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a file into a library folder",
		Long: `Upload a local file into the configured site, library and folder.
Missing folders are created. An existing file with the same name is replaced.
Prints the web URL of the uploaded file.`,
		Args: cobra.ExactArgs(1),
		RunE: runUpload,
	}
}

// session is what every networked command needs: configuration, a logger,
// a credential provider and a Graph client sharing one HTTP client.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	provider auth.Provider
	client   *graph.Client
	close    func()
}

// newSession loads configuration, acquires a token and builds the Graph
// client. The token is acquired before anything else touches the network,
// so a credential problem is reported as such and not as a lookup failure.
func newSession(ctx context.Context, cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := buildLogger(cfg)
	if err != nil {
		return nil, err
	}

	httpClient := newHTTPClient(cfg)

	provider, err := auth.New(authConfig(cfg, httpClient), logger)
	if err != nil {
		closeLog()
		return nil, failure.Configuration("select credential provider", err)
	}

	if _, err := provider.Acquire(ctx, cfg.Scopes); err != nil {
		closeLog()
		return nil, failure.Auth("acquire token", err)
	}

	ts := auth.NewTokenSource(ctx, provider, cfg.Scopes, logger)
	client := graph.NewClient(cfg.GraphURL, httpClient, ts, logger, "spupload/"+version)

	return &session{cfg: cfg, logger: logger, provider: provider, client: client, close: closeLog}, nil
}

// uploadOutput is the JSON schema for `upload --json`.
type uploadOutput struct {
	WebURL       string `json:"web_url"`
	ItemID       string `json:"item_id"`
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	Chunked      bool   `json:"chunked"`
	QuickXorHash string `json:"quick_xor_hash"`
	Verified     bool   `json:"verified"`
}

func runUpload(cmd *cobra.Command, args []string) error {
	localPath := args[0]
	ctx := cmd.Context()

	// The file is checked before configuration so a typo in the path is
	// reported even when the config is incomplete.
	if err := checkLocalFile(localPath); err != nil {
		return err
	}

	s, err := newSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	target, err := resolve.New(s.client, s.logger).Resolve(ctx, s.cfg.SiteURL, s.cfg.Library, s.cfg.Folder)
	if err != nil {
		return err
	}

	engine, err := upload.NewEngine(s.client, upload.Options{
		ChunkSize: s.cfg.ChunkSizeBytes(),
		Progress:  newProgress(os.Stderr, flagQuiet || flagJSON),
	}, s.logger)
	if err != nil {
		return err
	}

	res, err := engine.Upload(ctx, target.DriveID, target.FolderID, localPath)
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(os.Stdout, uploadOutput{
			WebURL:       res.WebURL,
			ItemID:       res.ItemID,
			Name:         res.Name,
			Size:         res.Size,
			Chunked:      res.Chunked,
			QuickXorHash: res.QuickXorHash,
			Verified:     res.Verified,
		})
	}

	statusf("Uploaded %s (%s)\n", res.Name, formatSize(res.Size))
	fmt.Println(res.WebURL)

	return nil
}

// checkLocalFile reports a missing or non-regular file as a
// ConfigurationError.
func checkLocalFile(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return failure.Configuration("check local file", err)
	}

	if !fi.Mode().IsRegular() {
		return failure.Configuration("check local file", fmt.Errorf("%q is not a regular file", path))
	}

	return nil
}
