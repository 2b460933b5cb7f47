// Package upload places one local file into a resolved library folder.
//
// Files under graph.SimpleUploadLimit go up in a single PUT. Larger files go
// through an upload session: the file is sent in sequential, 320 KiB-aligned
// chunks, strictly in order, and the final chunk's response describes the
// created item. Nothing is retried; a failed chunk abandons the session and
// the server expires it.
package upload

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rclone/rclone/backend/onedrive/quickxorhash"
	"golang.org/x/text/unicode/norm"

	"github.com/tonimelisma/sharepoint-upload/internal/failure"
	"github.com/tonimelisma/sharepoint-upload/internal/graph"
)

// DefaultChunkSize is the session chunk size used when none is configured
// (16 x 320 KiB = 5 MiB).
const DefaultChunkSize = 16 * graph.ChunkAlignment

// MaxChunkSize is the largest chunk the upload session endpoint accepts.
const MaxChunkSize = 60 * 1024 * 1024

var (
	// ErrNoUploadURL means the session response had no usable upload URL.
	ErrNoUploadURL = errors.New("upload: session response has no usable uploadUrl")
	// ErrNoWebURL means the final response described an item without webUrl.
	ErrNoWebURL = errors.New("upload: response has no webUrl")
	// ErrIncomplete means every byte was sent but the session never completed.
	ErrIncomplete = errors.New("upload: session did not complete after the final chunk")
	// ErrEarlyCompletion means the session completed before the final chunk.
	ErrEarlyCompletion = errors.New("upload: session completed before the final chunk")
)

// API is the subset of the Graph client the engine uses.
type API interface {
	SimpleUpload(ctx context.Context, driveID, parentID, name, contentType string, r io.Reader, size int64) (*graph.Item, error)
	CreateUploadSession(ctx context.Context, driveID, parentID, name string, size int64) (*graph.UploadSession, error)
	UploadChunk(ctx context.Context, session *graph.UploadSession, chunk io.Reader, offset, length, total int64) (*graph.Item, error)
}

// ProgressFunc is called after each chunk with bytes sent so far and the
// file size.
type ProgressFunc func(sent, total int64)

// Options configures an Engine.
type Options struct {
	// ChunkSize is the session chunk size; 0 means DefaultChunkSize.
	ChunkSize int64
	// Progress, if set, is called as bytes are acknowledged.
	Progress ProgressFunc
}

// Result describes the uploaded item.
type Result struct {
	WebURL  string
	ItemID  string
	Name    string
	Size    int64
	Chunked bool
	// QuickXorHash is the locally computed content hash, base64-encoded.
	QuickXorHash string
	// Verified is true when the server reported the same hash.
	Verified bool
}

// Engine uploads files.
type Engine struct {
	api       API
	chunkSize int64
	progress  ProgressFunc
	logger    *slog.Logger
}

// ValidateChunkSize checks that size is a positive multiple of
// graph.ChunkAlignment no larger than MaxChunkSize.
func ValidateChunkSize(size int64) error {
	switch {
	case size <= 0:
		return fmt.Errorf("chunk size %d must be positive", size)
	case size%graph.ChunkAlignment != 0:
		return fmt.Errorf("chunk size %d is not a multiple of %d (320 KiB)", size, graph.ChunkAlignment)
	case size > MaxChunkSize:
		return fmt.Errorf("chunk size %d exceeds maximum %d (60 MiB)", size, MaxChunkSize)
	default:
		return nil
	}
}

// NewEngine creates an Engine. An invalid chunk size is a ConfigurationError.
func NewEngine(api API, opts Options, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	chunkSize := opts.ChunkSize
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}

	if err := ValidateChunkSize(chunkSize); err != nil {
		return nil, failure.Configuration("configure upload", err)
	}

	progress := opts.Progress
	if progress == nil {
		progress = func(int64, int64) {}
	}

	return &Engine{api: api, chunkSize: chunkSize, progress: progress, logger: logger}, nil
}

// Upload sends localPath into folderID of driveID under the file's base name,
// replacing any existing item of that name. The file is checked before any
// network call. Returns the item's web URL; a response without one is an
// UploadFailure even if the transfer itself succeeded.
func (e *Engine) Upload(ctx context.Context, driveID, folderID, localPath string) (Result, error) {
	op := fmt.Sprintf("upload %q", localPath)

	f, err := os.Open(localPath)
	if err != nil {
		return Result{}, failure.Upload(op, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Result{}, failure.Upload(op, err)
	}

	if !info.Mode().IsRegular() {
		return Result{}, failure.Upload(op, fmt.Errorf("%s is not a regular file", localPath))
	}

	name := norm.NFC.String(filepath.Base(localPath))
	size := info.Size()

	e.logger.Info("uploading file",
		slog.String("path", localPath),
		slog.String("name", name),
		slog.Int64("size", size),
		slog.String("folder_id", folderID),
	)

	h := quickxorhash.New()

	var (
		item    *graph.Item
		chunked = size >= graph.SimpleUploadLimit
	)

	if chunked {
		item, err = e.uploadChunked(ctx, driveID, folderID, name, f, size, h)
	} else {
		item, err = e.uploadDirect(ctx, driveID, folderID, name, f, size, h)
	}

	if err != nil {
		return Result{}, wrap(op, err)
	}

	if item.WebURL == "" {
		return Result{}, failure.Upload(op, fmt.Errorf("%w (item id %q)", ErrNoWebURL, item.ID))
	}

	res := Result{
		WebURL:       item.WebURL,
		ItemID:       item.ID,
		Name:         name,
		Size:         size,
		Chunked:      chunked,
		QuickXorHash: base64.StdEncoding.EncodeToString(h.Sum(nil)),
	}

	e.verify(&res, item)

	e.logger.Info("upload complete",
		slog.String("item_id", res.ItemID),
		slog.String("web_url", res.WebURL),
		slog.Bool("chunked", res.Chunked),
	)

	return res, nil
}

// uploadDirect sends the whole file in one request. The file is small enough
// to hold in memory, which also gives the request a known length.
func (e *Engine) uploadDirect(
	ctx context.Context, driveID, folderID, name string, f io.Reader, size int64, h hash.Hash,
) (*graph.Item, error) {
	data, err := io.ReadAll(io.LimitReader(f, graph.SimpleUploadLimit))
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	if int64(len(data)) != size {
		return nil, fmt.Errorf("file changed while reading: read %d bytes, expected %d", len(data), size)
	}

	h.Write(data) //nolint:errcheck // hash.Hash.Write never fails

	contentType := mimetype.Detect(data).String()

	e.logger.Debug("direct upload", slog.String("content_type", contentType))

	item, err := e.api.SimpleUpload(ctx, driveID, folderID, name, contentType, bytes.NewReader(data), size)
	if err != nil {
		return nil, err
	}

	e.progress(size, size)

	return item, nil
}

// uploadChunked creates a session and sends the file in order, one chunk at
// a time.
func (e *Engine) uploadChunked(
	ctx context.Context, driveID, folderID, name string, f io.ReaderAt, size int64, h hash.Hash,
) (*graph.Item, error) {
	session, err := e.api.CreateUploadSession(ctx, driveID, folderID, name, size)
	if err != nil {
		return nil, fmt.Errorf("creating upload session: %w", err)
	}

	if !usableURL(session.UploadURL) {
		return nil, ErrNoUploadURL
	}

	e.logger.Debug("upload session created",
		slog.Time("expires", session.ExpirationTime),
		slog.Int64("chunk_size", e.chunkSize),
	)

	var item *graph.Item

	for offset := int64(0); offset < size; {
		length := min(e.chunkSize, size-offset)
		chunk := io.TeeReader(io.NewSectionReader(f, offset, length), h)

		got, err := e.api.UploadChunk(ctx, session, chunk, offset, length, size)
		if err != nil {
			return nil, fmt.Errorf("sending %s: %w", graph.ContentRange(offset, length, size), err)
		}

		offset += length
		e.progress(offset, size)

		switch {
		case got != nil && offset < size:
			return nil, fmt.Errorf("%w (at byte %d of %d)", ErrEarlyCompletion, offset, size)
		case got == nil && offset == size:
			return nil, ErrIncomplete
		case got != nil:
			item = got
		}
	}

	return item, nil
}

func (e *Engine) verify(res *Result, item *graph.Item) {
	switch {
	case item.QuickXorHash == "":
		e.logger.Debug("server reported no content hash, skipping verification")
	case item.QuickXorHash == res.QuickXorHash:
		res.Verified = true
	default:
		e.logger.Warn("content hash mismatch after upload",
			slog.String("item_id", item.ID),
			slog.String("local_hash", res.QuickXorHash),
			slog.String("remote_hash", item.QuickXorHash),
		)
	}

	if item.Size != 0 && item.Size != res.Size {
		e.logger.Warn("uploaded size differs from local size",
			slog.Int64("local_size", res.Size),
			slog.Int64("remote_size", item.Size),
		)
	}
}

func usableURL(raw string) bool {
	if raw == "" {
		return false
	}

	u, err := url.Parse(raw)

	return err == nil && (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
}

// wrap classifies err as an UploadFailure unless it already carries a
// failure kind.
func wrap(op string, err error) error {
	if failure.KindOf(err) != 0 {
		return err
	}

	return failure.Upload(op, err)
}
