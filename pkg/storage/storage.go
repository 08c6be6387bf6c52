// Package storage is the document store used for application uploads.
// Keys are opaque strings generated by the caller; backends never derive
// keys themselves.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/cscportal/portal-backend/pkg/config"
	"github.com/cscportal/portal-backend/pkg/logger"
)

var (
	// ErrStorageUnavailable is returned by every call on an unconfigured store
	// and wraps transport failures of configured ones.
	ErrStorageUnavailable = errors.New("document storage unavailable")
	// ErrInvalidKey rejects empty, absolute or traversing keys.
	ErrInvalidKey = errors.New("invalid storage key")
	// ErrNotFound is returned when a stored object does not exist.
	ErrNotFound = errors.New("stored object not found")
)

// Store puts blobs and mints time-limited read URLs for them.
type Store interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Describer is implemented by stores that can report their backend for /health.
type Describer interface {
	Driver() string
}

// New builds the store selected by cfg.Driver.
func New(ctx context.Context, cfg *config.StorageConfig, log *logger.Logger) (Store, error) {
	switch cfg.Driver {
	case config.StorageDriverNone, "":
		log.Warn().Msg("document storage not configured, uploads will be skipped")
		return Unconfigured{}, nil
	case config.StorageDriverLocal:
		return NewLocalStore(cfg.Local.Dir, cfg.Local.BaseURL, cfg.Local.SigningSecret)
	case config.StorageDriverS3:
		return NewS3Store(ctx, S3Options{
			Bucket:               cfg.S3.Bucket,
			Region:               cfg.S3.Region,
			Endpoint:             cfg.S3.Endpoint,
			AccessKeyID:          cfg.S3.AccessKeyID,
			SecretAccessKey:      cfg.S3.SecretAccessKey,
			Prefix:               cfg.S3.Prefix,
			UsePathStyle:         cfg.S3.UsePathStyle,
			ServerSideEncryption: cfg.S3.ServerSideEncryption,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Unconfigured is the store used when no backend is set up.
// Every operation fails with ErrStorageUnavailable.
type Unconfigured struct{}

func (Unconfigured) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	return ErrStorageUnavailable
}

func (Unconfigured) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "", ErrStorageUnavailable
}

func (Unconfigured) Driver() string { return config.StorageDriverNone }

// cleanKey validates a caller-supplied key and returns it in canonical form.
func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." {
			return "", ErrInvalidKey
		}
	}
	cleaned := path.Clean(key)
	if cleaned != key {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}
