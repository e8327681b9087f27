// Package media keeps uploaded images on local disk under a single root.
//
// Layout:
//
//	<root>/profileImages/<YYYY-MM-DD>/<uuid>.<ext>
//	<root>/captures/<YYYY-MM-DD>/<uuid>.<ext>
//	<root>/appsIcon/<YYYY-MM-DD>/<uuid>.<ext>
//	<root>/temp_images/user_<id>_screenshot.<ext>
//
// Stored references are slash-separated paths relative to the root, which is
// also how /media/ serves them.
package media

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Category string

const (
	ProfileImages Category = "profileImages"
	Captures      Category = "captures"
	AppIcons      Category = "appsIcon"
	TempImages    Category = "temp_images"
)

var ErrBadPath = errors.New("media: path escapes root")

type Store struct {
	root string
	now  func() time.Time
}

func New(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("media root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("media root: %w", err)
	}
	return &Store{root: abs, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *Store) Root() string { return s.root }

// Save writes data under a fresh name in today's directory of the category
// and returns the relative reference.
func (s *Store) Save(cat Category, ext string, data []byte) (string, error) {
	rel := path.Join(string(cat), s.now().Format(time.DateOnly), uuid.NewString()+"."+cleanExt(ext))
	if err := s.write(rel, data); err != nil {
		return "", err
	}
	return rel, nil
}

// SaveTemp writes the analysis copy of a screenshot. A second upload by the
// same account replaces the first.
func (s *Store) SaveTemp(accountID uuid.UUID, ext string, data []byte) (string, error) {
	rel := TempScreenshotPath(accountID, ext)
	if err := s.write(rel, data); err != nil {
		return "", err
	}
	return rel, nil
}

func TempScreenshotPath(accountID uuid.UUID, ext string) string {
	return path.Join(string(TempImages), fmt.Sprintf("user_%s_screenshot.%s", accountID, cleanExt(ext)))
}

// Abs resolves a relative reference to a filesystem path inside the root.
func (s *Store) Abs(rel string) (string, error) {
	clean := path.Clean("/" + rel)
	if clean == "/" {
		return "", ErrBadPath
	}
	p := filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(clean, "/")))
	if !strings.HasPrefix(p, s.root+string(filepath.Separator)) {
		return "", ErrBadPath
	}
	return p, nil
}

// Remove deletes a stored file; a missing file is not an error.
func (s *Store) Remove(rel string) error {
	p, err := s.Abs(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("media remove: %w", err)
	}
	return nil
}

func (s *Store) write(rel string, data []byte) error {
	p, err := s.Abs(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("media mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return fmt.Errorf("media write: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("media write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("media write: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("media write: %w", err)
	}
	return nil
}

func cleanExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" || strings.ContainsAny(ext, `/\.`) {
		return "bin"
	}
	return ext
}
