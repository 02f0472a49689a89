// Package avatar stores profile pictures on the local filesystem. Every
// stored path is relative and rooted at StoredPrefix; Delete refuses any
// path that would resolve outside the avatar directory.
package avatar

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/member-portal/internal/apperr"
)

// StoredPrefix begins every avatar path persisted on a principal.
const StoredPrefix = "uploads/avatars/"

// legacyPrefix is stripped from paths written by older deployments.
const legacyPrefix = "backend/"

// Store writes and removes avatar files under <uploadDir>/avatars.
type Store struct {
	dir      string // resolved absolute avatar directory
	maxBytes int64
	allowed  map[string]bool
	log      *zap.Logger
}

// NewStore creates the avatar directory under uploadDir when needed and
// resolves it to an absolute, symlink-free path.
func NewStore(uploadDir string, maxBytes int64, allowedExt []string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dir := filepath.Join(uploadDir, "avatars")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create avatar dir: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	allowed := make(map[string]bool, len(allowedExt))
	for _, e := range allowedExt {
		allowed[strings.ToLower(e)] = true
	}
	return &Store{dir: resolved, maxBytes: maxBytes, allowed: allowed, log: log}, nil
}

// Dir is the resolved avatar directory.
func (s *Store) Dir() string { return s.dir }

// MaxBytes is the upload size cap.
func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Check validates an upload before anything is written: the extension must
// be allowed, the size within the cap and the content must match the
// extension.
func (s *Store) Check(ext string, data []byte) error {
	ext = strings.ToLower(ext)
	if !s.allowed[ext] {
		return apperr.Validationf("file", "file type %q is not allowed", ext)
	}
	if int64(len(data)) > s.maxBytes {
		return apperr.Validationf("file", "file exceeds the size limit of %d bytes", s.maxBytes)
	}
	if len(data) == 0 {
		return apperr.Validation("file", "file is empty")
	}
	if !ValidateImage(data, ext) {
		return apperr.Validation("file", "file content does not match its extension")
	}
	return nil
}

// Save writes data to a new randomly named file and returns its stored
// path. Callers run Check first.
func (s *Store) Save(ext string, data []byte) (string, error) {
	name := uuid.NewString() + strings.ToLower(ext)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write avatar: %w", err)
	}
	return StoredPrefix + name, nil
}

// Delete removes the file behind a stored avatar path. It never fails the
// caller: anything that is not a regular file directly inside the avatar
// directory is left alone and false is returned.
func (s *Store) Delete(stored string) bool {
	name, ok := s.fileName(stored)
	if !ok {
		s.log.Debug("avatar delete refused", zap.String("path", stored))
		return false
	}
	target := filepath.Join(s.dir, name)
	resolved, err := filepath.EvalSymlinks(target)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Debug("avatar resolve failed", zap.String("path", stored), zap.Error(err))
		}
		return false
	}
	if filepath.Dir(resolved) != s.dir {
		s.log.Warn("avatar path escapes avatar dir", zap.String("path", stored))
		return false
	}
	info, err := os.Lstat(resolved)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	if err := os.Remove(resolved); err != nil {
		s.log.Debug("avatar remove failed", zap.String("path", stored), zap.Error(err))
		return false
	}
	return true
}

// fileName extracts the bare file name from a stored path, rejecting
// anything that is not exactly StoredPrefix followed by one path element.
func (s *Store) fileName(stored string) (string, bool) {
	stored = strings.ReplaceAll(strings.TrimSpace(stored), `\`, "/")
	if stored == "" || strings.Contains(stored, "..") || strings.ContainsRune(stored, 0) {
		return "", false
	}
	if strings.HasPrefix(stored, "/") || filepath.IsAbs(stored) || filepath.VolumeName(stored) != "" {
		return "", false
	}
	stored = strings.TrimPrefix(stored, legacyPrefix)
	if !strings.HasPrefix(stored, StoredPrefix) {
		return "", false
	}
	name := strings.TrimPrefix(stored, StoredPrefix)
	if name == "" || name == "." || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}
