package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/sharepoint-upload/internal/resolve"
)

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the configured site, library and folder to ids",
		Long: `Resolve the configured site, library and folder the same way upload does,
creating missing folders, and print the ids. Useful when an upload fails
while locating its destination.`,
		Args: cobra.NoArgs,
		RunE: runResolve,
	}
}

// resolveOutput is the JSON schema for `resolve --json`.
type resolveOutput struct {
	SiteURL  string `json:"site_url"`
	Library  string `json:"library"`
	Folder   string `json:"folder"`
	SiteID   string `json:"site_id"`
	DriveID  string `json:"drive_id"`
	FolderID string `json:"folder_id"`
}

func runResolve(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	s, err := newSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	target, err := resolve.New(s.client, s.logger).Resolve(ctx, s.cfg.SiteURL, s.cfg.Library, s.cfg.Folder)
	if err != nil {
		return err
	}

	out := resolveOutput{
		SiteURL:  s.cfg.SiteURL,
		Library:  s.cfg.Library,
		Folder:   s.cfg.Folder,
		SiteID:   target.SiteID,
		DriveID:  target.DriveID,
		FolderID: target.FolderID,
	}

	if flagJSON {
		return printJSON(os.Stdout, out)
	}

	printResolveText(out)

	return nil
}

func printResolveText(out resolveOutput) {
	folder := out.Folder
	if folder == "" {
		folder = "(library root)"
	}

	fmt.Printf("Site:     %s\n", out.SiteURL)
	fmt.Printf("Library:  %s\n", out.Library)
	fmt.Printf("Folder:   %s\n", folder)
	fmt.Printf("Site ID:  %s\n", out.SiteID)
	fmt.Printf("Drive ID: %s\n", out.DriveID)
	fmt.Printf("Item ID:  %s\n", out.FolderID)
}
