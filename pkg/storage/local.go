package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cscportal/portal-backend/pkg/config"
)

const downloadAudience = "portal-file"

// downloadClaims is the capability embedded in a local signed URL.
type downloadClaims struct {
	jwt.RegisteredClaims
	Key string `json:"key"`
}

// LocalStore keeps documents on the filesystem. Signed URLs point back at
// the portal's /files endpoint and carry an HS256 token bound to the key.
type LocalStore struct {
	dir     string
	baseURL string
	secret  []byte
	now     func() time.Time
}

// NewLocalStore creates dir if needed and returns a store rooted at it.
func NewLocalStore(dir, baseURL, secret string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("local storage directory is required")
	}
	if secret == "" {
		return nil, fmt.Errorf("local storage signing secret is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStore{
		dir:     abs,
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  []byte(secret),
		now:     time.Now,
	}, nil
}

// Put writes body to a temporary file and renames it into place.
func (s *LocalStore) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fullPath, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return fmt.Errorf("%w: mkdir: %v", ErrStorageUnavailable, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrStorageUnavailable, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write file: %v", ErrStorageUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close file: %v", ErrStorageUnavailable, err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return fmt.Errorf("%w: rename file: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// SignedURL returns <baseURL>/files/<token>. The object must exist.
func (s *LocalStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: stat: %v", ErrStorageUnavailable, err)
	}

	now := s.now()
	claims := downloadClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{downloadAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Key: key,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign download token: %w", err)
	}
	return s.baseURL + "/files/" + url.PathEscape(token), nil
}

// Download is an opened stored object.
type Download struct {
	io.ReadSeekCloser
	Name        string
	ContentType string
	ModTime     time.Time
}

// Open validates a download token and opens the object it grants.
func (s *LocalStore) Open(token string) (*Download, error) {
	claims := &downloadClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(downloadAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	fullPath, err := s.resolve(claims.Key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: open: %v", ErrStorageUnavailable, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat: %v", ErrStorageUnavailable, err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(fullPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &Download{
		ReadSeekCloser: f,
		Name:           filepath.Base(fullPath),
		ContentType:    contentType,
		ModTime:        info.ModTime(),
	}, nil
}

func (s *LocalStore) Driver() string { return config.StorageDriverLocal }

// resolve maps a key to a path inside the store directory.
func (s *LocalStore) resolve(key string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	full := filepath.Join(s.dir, filepath.FromSlash(key))
	if !strings.HasPrefix(full, s.dir+string(filepath.Separator)) {
		return "", ErrInvalidKey
	}
	return full, nil
}
