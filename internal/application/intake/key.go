package intake

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"
)

const (
	keyTimeLayout   = "20060102150405"
	maxNameLength   = 100
	maxExtLength    = 16
	randomKeyBytes  = 8
	fallbackName    = "file"
	defaultMimeType = "application/octet-stream"
)

// StorageKey builds an unguessable, collision-free object key:
//
//	applications/<user>/<app>/<yyyymmddHHMMSS>_<slot>[_<sub>]_<random hex>_<sanitized name>
func StorageKey(userID, applicationID string, now time.Time, slot, sub int, filename string) (string, error) {
	var nonce [randomKeyBytes]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("generate storage key: %w", err)
	}

	position := fmt.Sprintf("%d", slot)
	if sub != NoSubIndex {
		position = fmt.Sprintf("%d_%d", slot, sub)
	}

	name := fmt.Sprintf("%s_%s_%s_%s",
		now.UTC().Format(keyTimeLayout), position, hex.EncodeToString(nonce[:]), SanitizeFilename(filename))

	return path.Join("applications", pathSegment(userID), pathSegment(applicationID), name), nil
}

// ResponseStorageKey builds the key of a staff upload; it has no slot position.
func ResponseStorageKey(applicationID string, now time.Time, filename string) (string, error) {
	var nonce [randomKeyBytes]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("generate storage key: %w", err)
	}

	name := fmt.Sprintf("%s_%s_%s",
		now.UTC().Format(keyTimeLayout), hex.EncodeToString(nonce[:]), SanitizeFilename(filename))

	return path.Join("applications", "responses", pathSegment(applicationID), name), nil
}

// SanitizeFilename keeps only the base name and the characters [A-Za-z0-9._-],
// with leading dots removed so no key names a hidden file.
func SanitizeFilename(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	clean := strings.TrimLeft(b.String(), ".")
	if clean == "" {
		return fallbackName
	}

	if len(clean) > maxNameLength {
		ext := path.Ext(clean)
		if len(ext) > maxExtLength {
			ext = ""
		}
		clean = clean[:maxNameLength-len(ext)] + ext
	}
	return clean
}

func pathSegment(id string) string {
	s := SanitizeFilename(id)
	if s == fallbackName && id != fallbackName {
		return "unknown"
	}
	return s
}

// Sniff returns the content type to store body under. A declared specific
// type wins; otherwise the first bytes are inspected. The returned reader
// replays the inspected bytes.
func Sniff(body io.Reader, declared string) (string, io.Reader, error) {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != defaultMimeType {
		return declared, body, nil
	}

	var head [512]byte
	n, err := io.ReadFull(body, head[:])
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}

	return http.DetectContentType(head[:n]), io.MultiReader(bytes.NewReader(head[:n]), body), nil
}
