package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// ChunkAlignment is the required alignment for upload chunk sizes (320 KiB).
// All chunks except the final one must be a multiple of this value.
const ChunkAlignment = 320 * 1024

// SimpleUploadLimit is the size at which uploads must switch from a single
// PUT to an upload session (4 MiB). A file of exactly this size already
// goes through a session.
const SimpleUploadLimit = 4 * 1024 * 1024

// Upload session request/response types for Graph API JSON serialization.
type createUploadSessionRequest struct {
	Item uploadSessionItem `json:"item"`
}

type uploadSessionItem struct {
	ConflictBehavior string `json:"@microsoft.graph.conflictBehavior"` //nolint:tagliatelle // Graph API annotation key
	Name             string `json:"name,omitempty"`
}

type uploadSessionResponse struct {
	UploadURL          string   `json:"uploadUrl"`
	ExpirationDateTime string   `json:"expirationDateTime"`
	NextExpectedRanges []string `json:"nextExpectedRanges"`
}

// SimpleUpload uploads a small file with a single PUT addressed by name under
// parentID. The server replaces any existing item with the same name.
func (c *Client) SimpleUpload(
	ctx context.Context, driveID, parentID, name, contentType string, r io.Reader, size int64,
) (*Item, error) {
	c.logger.Info("simple upload",
		slog.String("drive_id", driveID),
		slog.String("parent_id", parentID),
		slog.String("name", name),
		slog.Int64("size", size),
	)

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	path := fmt.Sprintf("/drives/%s/items/%s:/%s:/content", url.PathEscape(driveID), url.PathEscape(parentID), url.PathEscape(name))

	resp, err := c.do(ctx, http.MethodPut, path, contentType, r)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return decodeItem(resp, "simple upload")
}

// CreateUploadSession creates a resumable upload session for name under
// parentID with conflictBehavior "replace".
func (c *Client) CreateUploadSession(
	ctx context.Context, driveID, parentID, name string, size int64,
) (*UploadSession, error) {
	c.logger.Info("creating upload session",
		slog.String("drive_id", driveID),
		slog.String("parent_id", parentID),
		slog.String("name", name),
		slog.Int64("size", size),
	)

	path := fmt.Sprintf("/drives/%s/items/%s:/%s:/createUploadSession",
		url.PathEscape(driveID), url.PathEscape(parentID), url.PathEscape(name))

	reqBody := createUploadSessionRequest{
		Item: uploadSessionItem{ConflictBehavior: "replace", Name: name},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("graph: marshaling upload session request: %w", err)
	}

	resp, err := c.Do(ctx, http.MethodPost, path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var usr uploadSessionResponse
	if decErr := json.NewDecoder(resp.Body).Decode(&usr); decErr != nil {
		return nil, fmt.Errorf("graph: decoding upload session response: %w", decErr)
	}

	return &UploadSession{
		UploadURL:          usr.UploadURL,
		ExpirationTime:     c.parseExpiration(usr.ExpirationDateTime),
		NextExpectedRanges: usr.NextExpectedRanges,
	}, nil
}

// UploadChunk PUTs one byte range to an upload session.
// Returns the completed Item on the final chunk (200/201) and nil for an
// accepted intermediate chunk (202).
// The session URL is pre-authenticated, so no Authorization header is sent.
func (c *Client) UploadChunk(
	ctx context.Context, session *UploadSession, chunk io.Reader,
	offset, length, total int64,
) (*Item, error) {
	c.logger.Debug("uploading chunk",
		slog.Int64("offset", offset),
		slog.Int64("length", length),
		slog.Int64("total", total),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, session.UploadURL, chunk)
	if err != nil {
		return nil, fmt.Errorf("graph: creating chunk upload request: %w", err)
	}

	req.Header.Set("Content-Range", ContentRange(offset, length, total))
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("User-Agent", c.userAgent)
	req.ContentLength = length

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("chunk upload request failed",
			slog.Int64("offset", offset),
			slog.String("error", err.Error()),
		)

		return nil, fmt.Errorf("graph: chunk upload request failed: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusAccepted:
		defer resp.Body.Close()

		// Drain body to reuse connection.
		if _, drainErr := io.Copy(io.Discard, resp.Body); drainErr != nil {
			return nil, fmt.Errorf("graph: draining chunk response body: %w", drainErr)
		}

		return nil, nil

	case http.StatusOK, http.StatusCreated:
		defer resp.Body.Close()

		item, decErr := decodeItem(resp, "final chunk")
		if decErr != nil {
			return nil, decErr
		}

		c.logger.Debug("upload session complete",
			slog.String("item_id", item.ID),
			slog.String("item_name", item.Name),
		)

		return item, nil

	default:
		return nil, newGraphError(resp)
	}
}

// ContentRange formats the Content-Range header for a chunk.
func ContentRange(offset, length, total int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", offset, offset+length-1, total)
}

func (c *Client) parseExpiration(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.logger.Warn("invalid upload session expiration, using zero time",
			slog.String("raw", raw),
			slog.String("error", err.Error()),
		)

		return time.Time{}
	}

	return t
}
