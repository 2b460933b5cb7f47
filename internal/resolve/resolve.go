// Package resolve turns a site URL, library name and folder path into the
// Graph identifiers an upload needs, creating missing folders on the way.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/tonimelisma/sharepoint-upload/internal/failure"
	"github.com/tonimelisma/sharepoint-upload/internal/graph"
)

// ErrNotFound is wrapped by resolution failures for a library that does not
// exist on the site.
var ErrNotFound = errors.New("resolve: not found")

// ErrNotFolder is wrapped when a folder path segment names a file.
var ErrNotFolder = errors.New("resolve: not a folder")

// Graph is the subset of the Graph client the resolver uses.
type Graph interface {
	SiteByPath(ctx context.Context, host, sitePath string) (*graph.Site, error)
	SiteDrives(ctx context.Context, siteID string) ([]graph.Drive, error)
	ChildByName(ctx context.Context, driveID, parentID, name string) (*graph.Item, error)
	CreateFolder(ctx context.Context, driveID, parentID, name string) (*graph.Item, error)
}

// Target identifies the folder an upload goes to.
type Target struct {
	SiteID   string
	DriveID  string
	FolderID string
}

// Resolver maps human-facing names to Graph identifiers. Results are
// memoized for the life of the Resolver; nothing is cached across runs.
type Resolver struct {
	api    Graph
	logger *slog.Logger

	mu      sync.Mutex
	targets map[string]Target
}

// New creates a Resolver.
func New(api Graph, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{api: api, logger: logger, targets: make(map[string]Target)}
}

// Resolve resolves site, library and folder in order. A second call with the
// same arguments returns the memoized target without network calls.
func (r *Resolver) Resolve(ctx context.Context, siteURL, library, folderPath string) (Target, error) {
	key := siteURL + "\x00" + library + "\x00" + strings.Join(SplitFolderPath(folderPath), "/")

	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.targets[key]; ok {
		return t, nil
	}

	siteID, err := r.ResolveSite(ctx, siteURL)
	if err != nil {
		return Target{}, err
	}

	driveID, err := r.ResolveLibrary(ctx, siteID, library)
	if err != nil {
		return Target{}, err
	}

	folderID, err := r.EnsureFolder(ctx, driveID, folderPath)
	if err != nil {
		return Target{}, err
	}

	t := Target{SiteID: siteID, DriveID: driveID, FolderID: folderID}
	r.targets[key] = t

	r.logger.Info("upload target resolved",
		slog.String("site_id", siteID),
		slog.String("drive_id", driveID),
		slog.String("folder_id", folderID),
	)

	return t, nil
}

// ResolveSite looks up the site addressed by siteURL. A missing site and one
// the caller may not read are indistinguishable here; both come back as a
// ResolutionFailure carrying the server's message.
func (r *Resolver) ResolveSite(ctx context.Context, siteURL string) (string, error) {
	op := fmt.Sprintf("resolve site %q", siteURL)

	host, sitePath, err := SplitSiteURL(siteURL)
	if err != nil {
		return "", failure.Resolution(op, err)
	}

	site, err := r.api.SiteByPath(ctx, host, sitePath)
	if err != nil {
		return "", wrap(op, err)
	}

	if site.ID == "" {
		return "", failure.Resolution(op, errors.New("site response has no id"))
	}

	r.logger.Debug("site resolved", slog.String("site_id", site.ID), slog.String("name", site.DisplayName))

	return site.ID, nil
}

// ResolveLibrary finds the library whose name equals name exactly,
// case-sensitively. There is no partial or fuzzy fallback.
func (r *Resolver) ResolveLibrary(ctx context.Context, siteID, name string) (string, error) {
	op := fmt.Sprintf("resolve library %q", name)

	drives, err := r.api.SiteDrives(ctx, siteID)
	if err != nil {
		return "", wrap(op, err)
	}

	names := make([]string, 0, len(drives))

	for _, d := range drives {
		if d.Name == name {
			r.logger.Debug("library resolved", slog.String("drive_id", d.ID), slog.String("name", d.Name))
			return d.ID, nil
		}

		names = append(names, d.Name)
	}

	return "", failure.Resolution(op,
		fmt.Errorf("%w: no library named %q on the site (available: %s)", ErrNotFound, name, strings.Join(names, ", ")))
}

// EnsureFolder walks folderPath from the library root, creating each missing
// segment. An empty path returns the root sentinel without any call. Running
// it again over an existing path only issues lookups.
func (r *Resolver) EnsureFolder(ctx context.Context, driveID, folderPath string) (string, error) {
	parent := graph.RootID

	for _, seg := range SplitFolderPath(folderPath) {
		id, err := r.ensureSegment(ctx, driveID, parent, seg)
		if err != nil {
			return "", err
		}

		parent = id
	}

	return parent, nil
}

func (r *Resolver) ensureSegment(ctx context.Context, driveID, parentID, name string) (string, error) {
	item, err := r.api.ChildByName(ctx, driveID, parentID, name)
	if err == nil {
		return folderID(name, item)
	}

	if !errors.Is(err, graph.ErrNotFound) {
		return "", wrap(fmt.Sprintf("look up folder %q", name), err)
	}

	r.logger.Info("creating folder", slog.String("name", name), slog.String("parent_id", parentID))

	created, err := r.api.CreateFolder(ctx, driveID, parentID, name)
	if err == nil {
		return created.ID, nil
	}

	if !graph.IsNameConflict(err) {
		return "", wrap(fmt.Sprintf("create folder %q", name), err)
	}

	// Someone else created it between our lookup and create.
	r.logger.Info("folder created concurrently, re-resolving", slog.String("name", name))

	item, err = r.api.ChildByName(ctx, driveID, parentID, name)
	if err != nil {
		return "", wrap(fmt.Sprintf("look up folder %q", name), err)
	}

	return folderID(name, item)
}

func folderID(name string, item *graph.Item) (string, error) {
	if !item.IsFolder {
		return "", failure.Resolution(fmt.Sprintf("ensure folder %q", name),
			fmt.Errorf("%w: %q exists but is not a folder", ErrNotFolder, name))
	}

	return item.ID, nil
}

// SplitFolderPath splits p on "/" and drops empty segments, so leading,
// trailing and doubled slashes are ignored. Segments are NFC-normalized.
func SplitFolderPath(p string) []string {
	var segs []string

	for _, s := range strings.Split(p, "/") {
		if s == "" {
			continue
		}

		segs = append(segs, norm.NFC.String(s))
	}

	return segs
}

// SplitSiteURL returns the host and server-relative path of a site URL.
func SplitSiteURL(siteURL string) (host, sitePath string, err error) {
	u, err := url.Parse(strings.TrimSpace(siteURL))
	if err != nil {
		return "", "", fmt.Errorf("invalid site URL: %w", err)
	}

	if u.Scheme != "https" && u.Scheme != "http" {
		return "", "", fmt.Errorf("site URL %q is not an http(s) URL", siteURL)
	}

	if u.Hostname() == "" {
		return "", "", fmt.Errorf("site URL %q has no host", siteURL)
	}

	return strings.ToLower(u.Hostname()), strings.Trim(u.Path, "/"), nil
}

// wrap classifies err as a ResolutionFailure unless it already carries a
// failure kind (a token failure stays an AuthFailure).
func wrap(op string, err error) error {
	if failure.KindOf(err) != 0 {
		return err
	}

	return failure.Resolution(op, err)
}
