// Package store persists feed snapshots, fetch trackers, and geocode cache
// entries in a namespaced key-value layout: one coarse namespace per feed,
// one row per location key plus the "latest" and "fetch-tracker" rows.
//
// Backends: Google Cloud Storage (one object per row) for deployment, or a
// local directory for development and tests. All coordination between
// concurrent request handlers goes through this store; there is no shared
// in-process state.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"
)

// ErrNotFound is returned by Get when no row exists for the key.
var ErrNotFound = errors.New("store: key not found")

// KV is the point-lookup/upsert surface the caches are built on.
type KV interface {
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	Put(ctx context.Context, namespace, key string, data []byte) error
	Exists(ctx context.Context, namespace, key string) (bool, error)
}

// Store is a KV backed by either Cloud Storage or a local directory. When
// localPath is set the bucket is never touched.
type Store struct {
	client    *storage.Client
	logger    *slog.Logger
	bucket    string
	localPath string
}

// New creates a store. Pass a non-empty localPath for filesystem mode, or a
// client and bucket for Cloud Storage mode.
func New(client *storage.Client, bucket, localPath string, logger *slog.Logger) *Store {
	return &Store{
		client:    client,
		logger:    logger,
		bucket:    bucket,
		localPath: localPath,
	}
}

// rowName builds a stable object/file name from a namespace and key.
// Location keys contain spaces; everything outside [A-Za-z0-9._-] is
// flattened so the name is safe for both object stores and filesystems.
func rowName(namespace, key string) string {
	sanitize := func(s string) string {
		return strings.Map(func(r rune) rune {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
				return r
			case r == '.' || r == '_' || r == '-':
				return r
			case r == ' ':
				return '-'
			default:
				return '_'
			}
		}, s)
	}
	return sanitize(namespace) + "/" + sanitize(key) + ".json"
}

// Get returns the row's bytes, or ErrNotFound.
func (s *Store) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	name := rowName(namespace, key)

	if s.localPath != "" {
		data, err := os.ReadFile(filepath.Join(s.localPath, name))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("read local row: %w", err)
		}
		return data, nil
	}

	var data []byte
	err := retry.Do(
		func() error {
			r, openErr := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
			if openErr != nil {
				if errors.Is(openErr, storage.ErrObjectNotExist) {
					return retry.Unrecoverable(ErrNotFound)
				}
				return fmt.Errorf("open storage reader: %w", openErr)
			}
			defer func() {
				if closeErr := r.Close(); closeErr != nil {
					s.logger.Warn("close storage reader failed", "error", closeErr)
				}
			}()

			var readErr error
			data, readErr = io.ReadAll(r)
			if readErr != nil {
				return fmt.Errorf("read from storage: %w", readErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.MaxJitter(time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("retrying store read", "attempt", n, "row", name, "error", retryErr)
		}),
	)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load after retries: %w", err)
	}
	return data, nil
}

// Put upserts the row.
func (s *Store) Put(ctx context.Context, namespace, key string, data []byte) error {
	name := rowName(namespace, key)

	if s.localPath != "" {
		path := filepath.Join(s.localPath, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return fmt.Errorf("create namespace dir: %w", err)
		}
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return fmt.Errorf("write local row: %w", err)
		}
		return nil
	}

	err := retry.Do(
		func() error {
			w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
			if _, writeErr := w.Write(data); writeErr != nil {
				if closeErr := w.Close(); closeErr != nil {
					s.logger.Warn("close storage writer after error failed", "error", closeErr)
				}
				return fmt.Errorf("write to storage: %w", writeErr)
			}
			if closeErr := w.Close(); closeErr != nil {
				return fmt.Errorf("close storage writer: %w", closeErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.MaxJitter(time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("retrying store write", "attempt", n, "row", name, "error", retryErr)
		}),
	)
	if err != nil {
		return fmt.Errorf("save after retries: %w", err)
	}
	return nil
}

// Exists reports whether the row is present without reading its contents.
func (s *Store) Exists(ctx context.Context, namespace, key string) (bool, error) {
	name := rowName(namespace, key)

	if s.localPath != "" {
		if _, err := os.Stat(filepath.Join(s.localPath, name)); err != nil {
			if os.IsNotExist(err) {
				return false, nil
			}
			return false, fmt.Errorf("stat local row: %w", err)
		}
		return true, nil
	}

	_, err := s.client.Bucket(s.bucket).Object(name).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat storage row: %w", err)
	}
	return true, nil
}

// Noop is the degraded store used when no backend is configured: every
// lookup misses and every write is dropped, so feed serving always falls
// through to a live fetch and geocoding is effectively uncached.
type Noop struct{}

func (Noop) Get(context.Context, string, string) ([]byte, error)  { return nil, ErrNotFound }
func (Noop) Put(context.Context, string, string, []byte) error    { return nil }
func (Noop) Exists(context.Context, string, string) (bool, error) { return false, nil }
