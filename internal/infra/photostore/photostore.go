// Package photostore keeps uploaded report photos as content-addressed blobs
// in a local directory. Identical uploads share one file.
package photostore

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/greencredits/greencredits/internal/domain"
)

// DefaultMaxBytes is the upload size limit.
const DefaultMaxBytes = 5 << 20

// URLPrefix is where the API serves stored photos.
const URLPrefix = "/uploads/"

var extensions = map[string]string{
	"image/jpeg":               ".jpg",
	"image/png":                ".png",
	"image/gif":                ".gif",
	"image/webp":               ".webp",
	"image/bmp":                ".bmp",
	"image/x-icon":             ".ico",
	"image/vnd.microsoft.icon": ".ico",
}

// blob names are <sha256 hex><ext>; anything else is rejected before it
// reaches the filesystem.
var blobName = regexp.MustCompile(`^[0-9a-f]{64}\.[a-z]{2,4}$`)

// Photo describes a stored blob.
type Photo struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Digest      string `json:"digest"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// Store manages the blob directory.
type Store struct {
	dir      string
	maxBytes int64
}

// New creates a store rooted at dir. maxBytes <= 0 means DefaultMaxBytes.
func New(dir string, maxBytes int64) *Store {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Store{dir: dir, maxBytes: maxBytes}
}

// Init ensures the directory exists.
func (s *Store) Init() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", s.dir, err)
	}
	return nil
}

// Dir returns the blob directory.
func (s *Store) Dir() string { return s.dir }

// MaxBytes returns the upload size limit.
func (s *Store) MaxBytes() int64 { return s.maxBytes }

// BlobPath returns the filesystem path for a blob name.
func (s *Store) BlobPath(name string) string {
	return filepath.Join(s.dir, name)
}

// Save reads an upload, checks it is an image within the size limit and
// stores it under its digest. declaredType is the client's Content-Type and
// may be empty; the bytes themselves must sniff as an image either way.
func (s *Store) Save(r io.Reader, declaredType string) (Photo, error) {
	if declaredType != "" && !strings.HasPrefix(declaredType, "image/") {
		return Photo{}, fmt.Errorf("%w: declared %s", domain.ErrNotAnImage, declaredType)
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return Photo{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return Photo{}, fmt.Errorf("%w: limit %s", domain.ErrPhotoTooLarge, domain.HumanSize(s.maxBytes))
	}

	contentType := http.DetectContentType(data)
	ext, ok := extensions[contentType]
	if !ok {
		return Photo{}, fmt.Errorf("%w: detected %s", domain.ErrNotAnImage, contentType)
	}

	digest := domain.SHA256Hex(data)
	name := digest + ext
	photo := Photo{
		Name:        name,
		URL:         URLPrefix + name,
		Digest:      "sha256:" + digest,
		ContentType: contentType,
		Size:        int64(len(data)),
	}

	path := s.BlobPath(name)
	if _, err := os.Stat(path); err == nil {
		return photo, nil
	}
	if err := s.Init(); err != nil {
		return Photo{}, err
	}

	// Write to a temp file then rename, so a reader never sees half a blob.
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return Photo{}, fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		tmp.Close()
		return Photo{}, fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Photo{}, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return Photo{}, fmt.Errorf("commit blob: %w", err)
	}
	return photo, nil
}

// Open returns a reader for a stored blob.
func (s *Store) Open(name string) (*os.File, error) {
	if !blobName.MatchString(name) {
		return nil, domain.ErrPhotoNotFound
	}
	f, err := os.Open(s.BlobPath(name))
	if os.IsNotExist(err) {
		return nil, domain.ErrPhotoNotFound
	}
	return f, err
}

// Verify re-hashes a stored blob and reports whether it still matches its
// name.
func (s *Store) Verify(name string) (bool, error) {
	f, err := s.Open(name)
	if err != nil {
		return false, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return false, err
	}
	want := strings.TrimSuffix(name, filepath.Ext(name))
	return hex.EncodeToString(h.Sum(nil)) == want, nil
}
