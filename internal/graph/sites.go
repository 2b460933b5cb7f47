package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// siteResponse mirrors the Graph API site JSON.
type siteResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	WebURL      string `json:"webUrl"`
}

// driveResponse mirrors the Graph API drive JSON response.
type driveResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	DriveType string `json:"driveType"`
	WebURL    string `json:"webUrl"`
}

// drivesListResponse wraps one page of GET /sites/{id}/drives.
type drivesListResponse struct {
	Value    []driveResponse `json:"value"`
	NextLink string          `json:"@odata.nextLink"` //nolint:tagliatelle // OData annotation key
}

func (d *driveResponse) toDrive() Drive {
	return Drive{
		ID:        d.ID,
		Name:      d.Name,
		DriveType: d.DriveType,
		WebURL:    d.WebURL,
	}
}

// SitePathKey builds the "{host}:/{path}" key Graph uses to address a site by
// its URL. An empty path addresses the tenant root site by host alone.
func SitePathKey(host, sitePath string) string {
	sitePath = strings.Trim(sitePath, "/")
	if sitePath == "" {
		return host
	}

	return host + ":/" + encodePathSegments(sitePath)
}

// SiteByPath looks up a site by host name and server-relative path.
// A missing site and a site the caller cannot read both come back as
// ErrNotFound or ErrForbidden depending on the tenant; Graph does not let
// us tell them apart reliably.
func (c *Client) SiteByPath(ctx context.Context, host, sitePath string) (*Site, error) {
	key := SitePathKey(host, sitePath)

	c.logger.Info("looking up site",
		slog.String("host", host),
		slog.String("path", sitePath),
	)

	resp, err := c.Do(ctx, http.MethodGet, "/sites/"+key, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var sr siteResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("graph: decoding site response: %w", err)
	}

	c.logger.Debug("found site",
		slog.String("site_id", sr.ID),
		slog.String("web_url", sr.WebURL),
	)

	return &Site{
		ID:          sr.ID,
		Name:        sr.Name,
		DisplayName: sr.DisplayName,
		WebURL:      sr.WebURL,
	}, nil
}

// SiteDrives lists every document library of a site, following paging links.
func (c *Client) SiteDrives(ctx context.Context, siteID string) ([]Drive, error) {
	c.logger.Info("listing site libraries", slog.String("site_id", siteID))

	var drives []Drive

	path := fmt.Sprintf("/sites/%s/drives", siteID)
	page := 1

	for path != "" {
		pageDrives, next, err := c.siteDrivesPage(ctx, path)
		if err != nil {
			return nil, err
		}

		c.logger.Debug("fetched libraries page",
			slog.Int("page", page),
			slog.Int("count", len(pageDrives)),
		)

		drives = append(drives, pageDrives...)
		path = next
		page++
	}

	c.logger.Info("listed site libraries", slog.Int("count", len(drives)))

	return drives, nil
}

func (c *Client) siteDrivesPage(ctx context.Context, path string) ([]Drive, string, error) {
	resp, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	var dlr drivesListResponse
	if err := json.NewDecoder(resp.Body).Decode(&dlr); err != nil {
		return nil, "", fmt.Errorf("graph: decoding drives response: %w", err)
	}

	drives := make([]Drive, 0, len(dlr.Value))
	for i := range dlr.Value {
		drives = append(drives, dlr.Value[i].toDrive())
	}

	if dlr.NextLink == "" {
		return drives, "", nil
	}

	next, err := c.stripBaseURL(dlr.NextLink)
	if err != nil {
		return nil, "", err
	}

	return drives, next, nil
}

// stripBaseURL removes the client's base URL prefix from a full URL,
// returning the path + query string for use with Do().
// Returns an error if the URL doesn't start with the expected base.
func (c *Client) stripBaseURL(fullURL string) (string, error) {
	if !strings.HasPrefix(fullURL, c.baseURL) {
		return "", fmt.Errorf("graph: nextLink URL %q does not match base URL %q", fullURL, c.baseURL)
	}

	return fullURL[len(c.baseURL):], nil
}
