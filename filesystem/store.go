// Package filesystem provides a local blob store for kilncat photo
// content. Writes are atomic using temp files, refs are sandboxed under an
// os.Root to prevent path traversal, and reads are granted through
// HMAC-signed URLs served by the http package.
package filesystem

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clayloft/kilncat"
)

// Store implements kilncat.BlobStorage over a sandboxed directory.
type Store struct {
	root    *os.Root
	signer  *kilncat.URLSigner
	baseURL string
}

// NewBlobStore creates a Store rooted at root. Signed URLs are issued
// against baseURL, which must be the externally reachable origin of the
// http server (scheme and host, no trailing slash).
func NewBlobStore(root *os.Root, signer *kilncat.URLSigner, baseURL string) (*Store, error) {
	if root == nil {
		return nil, errors.New("new blob store: root cannot be nil")
	}
	if signer == nil {
		return nil, errors.New("new blob store: signer cannot be nil")
	}
	if baseURL == "" {
		return nil, errors.New("new blob store: base url cannot be empty")
	}
	return &Store{root: root, signer: signer, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Get opens a blob for reading. Returns kilncat.ErrNotFound if it does not
// exist.
func (s *Store) Get(ctx context.Context, ref string) (io.ReadSeekCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !kilncat.IsValidBlobKey(ref) {
		return nil, fmt.Errorf("get blob: invalid ref %q: %w", ref, kilncat.ErrNotFound)
	}

	f, err := s.root.Open(ref)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, kilncat.ErrNotFound
		}
		return nil, fmt.Errorf("get blob: %w", err)
	}

	return f, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// Put atomically writes content under key using a temp file and rename, so
// a failed or canceled write never leaves a retrievable blob behind.
// Intermediate directories are created as needed. The returned ref equals
// the key.
func (s *Store) Put(ctx context.Context, key, contentType string, content io.Reader) (kilncat.PutResult, error) {
	if err := ctx.Err(); err != nil {
		return kilncat.PutResult{}, err
	}
	if !kilncat.IsValidBlobKey(key) {
		return kilncat.PutResult{}, fmt.Errorf("put blob: invalid key %q: %w", key, kilncat.ErrInvalidInput)
	}

	tmpFile := tmpFileName()
	t, createErr := s.root.Create(tmpFile)
	if createErr != nil {
		return kilncat.PutResult{}, fmt.Errorf("put blob: could not open temp file: %w", createErr)
	}

	success := false
	defer func() {
		if closeErr := t.Close(); closeErr != nil {
			slog.Warn("failed to close tmp file", "err", closeErr)
		}
		if !success {
			if rmErr := s.root.Remove(t.Name()); rmErr != nil {
				slog.Warn("failed to remove tmp file", "err", rmErr)
			}
		}
	}()

	h := sha256.New()
	w := io.MultiWriter(h, t)

	sizeBytes, err := io.Copy(w, &ctxReader{ctx: ctx, r: content})
	if err != nil {
		return kilncat.PutResult{}, fmt.Errorf("put blob: could not copy contents: %w", err)
	}

	if err := t.Sync(); err != nil {
		return kilncat.PutResult{}, fmt.Errorf("put blob: could not sync written file: %w", err)
	}

	destDir := filepath.Dir(key)
	if destDir != "." {
		if err := s.root.MkdirAll(destDir, 0o755); err != nil {
			return kilncat.PutResult{}, fmt.Errorf("put blob: could not create intermediate directories: %w", err)
		}
	}

	if renameErr := s.root.Rename(tmpFile, key); renameErr != nil {
		return kilncat.PutResult{}, fmt.Errorf("put blob: failed to rename file: %w", renameErr)
	}

	success = true
	return kilncat.PutResult{
		Ref:       key,
		SizeBytes: sizeBytes,
		ETag:      hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// Delete removes a blob. A missing blob is a no-op success, so delete
// paths stay idempotent and compensation never fails on already-clean
// state.
func (s *Store) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !kilncat.IsValidBlobKey(ref) {
		return fmt.Errorf("delete blob: invalid ref %q: %w", ref, kilncat.ErrInvalidInput)
	}

	if err := s.root.Remove(ref); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// SignedURL returns a time-limited URL granting a GET of one blob through
// the http blob route.
func (s *Store) SignedURL(ref string, ttl time.Duration) (string, error) {
	if !kilncat.IsValidBlobKey(ref) {
		return "", fmt.Errorf("signed url: invalid ref %q: %w", ref, kilncat.ErrInvalidInput)
	}

	path := kilncat.BlobPathPrefix + ref
	q, err := s.signer.Sign(path, time.Now(), ttl)
	if err != nil {
		return "", fmt.Errorf("signed url: %w", err)
	}

	return s.baseURL + path + "?" + q.Encode(), nil
}

func tmpFileName() string {
	return fmt.Sprintf(".t%s", uuid.New().String())
}
