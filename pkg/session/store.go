package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/harun/wapair/internal/observability"
	"github.com/harun/wapair/internal/tracing"
	"github.com/rs/zerolog/log"
)

// Area identifies where a session directory lives.
type Area string

const (
	AreaPending   Area = "pending"
	AreaPersisted Area = "persisted"
)

// Info describes a session directory found on disk.
type Info struct {
	ID      string    `json:"id"`
	Area    Area      `json:"area"`
	Path    string    `json:"path"`
	ModTime time.Time `json:"mod_time"`
}

// Store manages the pending and persisted session roots.
type Store struct {
	pendingRoot   string
	persistedRoot string
}

// NewStore creates a store over the given roots. Directories are not
// touched until EnsureRootDirs is called.
func NewStore(pendingRoot, persistedRoot string) *Store {
	return &Store{
		pendingRoot:   filepath.Clean(pendingRoot),
		persistedRoot: filepath.Clean(persistedRoot),
	}
}

// PendingRoot returns the pending area root.
func (s *Store) PendingRoot() string {
	return s.pendingRoot
}

// PersistedRoot returns the persisted area root.
func (s *Store) PersistedRoot() string {
	return s.persistedRoot
}

// EnsureRootDirs creates both roots if they are missing.
func (s *Store) EnsureRootDirs() error {
	for _, dir := range []string{s.pendingRoot, s.persistedRoot} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return &StoreError{Op: "init", Err: fmt.Errorf("failed to create %s: %w", dir, err)}
		}
	}
	return nil
}

// ValidateID rejects ids that are not safe to use as a directory name.
func ValidateID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: empty", ErrInvalidID)
	case id == "." || strings.Contains(id, ".."):
		return fmt.Errorf("%w: %q contains '..'", ErrInvalidID, id)
	case strings.ContainsAny(id, `/\`):
		return fmt.Errorf("%w: %q contains path separators", ErrInvalidID, id)
	case strings.Contains(id, "\x00"):
		return fmt.Errorf("%w: contains null bytes", ErrInvalidID)
	}
	return nil
}

// PendingPath returns the pending directory for id.
func (s *Store) PendingPath(id string) string {
	return filepath.Join(s.pendingRoot, id)
}

// PersistedPath returns the persisted directory for id.
func (s *Store) PersistedPath(id string) string {
	return filepath.Join(s.persistedRoot, id)
}

// IsPending reports whether a pending directory exists for id.
func (s *Store) IsPending(id string) bool {
	return isDir(s.PendingPath(id))
}

// IsPersisted reports whether a persisted directory exists for id.
func (s *Store) IsPersisted(id string) bool {
	return isDir(s.PersistedPath(id))
}

// CreatePending creates a fresh pending directory named id and returns its path.
// It fails if the directory already exists.
func (s *Store) CreatePending(id string) (string, error) {
	if err := ValidateID(id); err != nil {
		return "", &StoreError{Op: "create", ID: id, Err: err}
	}

	path := s.PendingPath(id)
	if err := os.Mkdir(path, 0700); err != nil {
		return "", &StoreError{Op: "create", ID: id, Err: err}
	}

	log.Debug().Str("session_id", id).Str("path", path).Msg("Pending session created")
	return path, nil
}

// Promote copies the pending directory for id into the persisted area and
// then removes the pending tree. It returns false without error when there is
// nothing pending, which covers a repeated call after a completed promotion.
//
// Two Promote calls racing on the same id are not guarded.
func (s *Store) Promote(ctx context.Context, id string) (bool, error) {
	ctx, span := tracing.StartSpan(
		ctx,
		"wapair.session",
		"session.promote",
		tracing.SessionAttr(id),
	)
	defer span.End()
	start := time.Now()

	fail := func(err error) (bool, error) {
		tracing.Fail(span, err)
		observability.RecordPromotion("error", time.Since(start))
		return false, &StoreError{Op: "promote", ID: id, Err: err}
	}

	if err := ValidateID(id); err != nil {
		return fail(err)
	}

	src := s.PendingPath(id)
	if !isDir(src) {
		observability.RecordPromotion("noop", time.Since(start))
		return false, nil
	}

	dst := s.PersistedPath(id)
	if err := copyTree(src, dst); err != nil {
		return fail(fmt.Errorf("failed to copy session: %w", err))
	}
	if err := os.RemoveAll(src); err != nil {
		return fail(fmt.Errorf("failed to remove pending session: %w", err))
	}

	observability.RecordPromotion("promoted", time.Since(start))
	logger := tracing.LoggerFromContext(tracing.WithSessionID(ctx, id), log.Logger)
	logger.Info().
		Str("path", dst).
		Msg("Session promoted")
	return true, nil
}

// DeletePending removes the pending directory for id. A missing directory is
// not an error.
func (s *Store) DeletePending(id string) error {
	if err := ValidateID(id); err != nil {
		return &StoreError{Op: "delete", ID: id, Err: err}
	}
	if err := os.RemoveAll(s.PendingPath(id)); err != nil {
		return &StoreError{Op: "delete", ID: id, Err: err}
	}
	return nil
}

// Credentials returns the credentials hook for id.
func (s *Store) Credentials(id string) *Credentials {
	return &Credentials{id: id, store: s}
}

// ListPending lists pending session directories, oldest first.
func (s *Store) ListPending() ([]Info, error) {
	return s.list(s.pendingRoot, AreaPending)
}

// ListPersisted lists persisted session directories, oldest first.
func (s *Store) ListPersisted() ([]Info, error) {
	return s.list(s.persistedRoot, AreaPersisted)
}

func (s *Store) list(root string, area Area) ([]Info, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &StoreError{Op: "list", Err: err}
	}

	infos := make([]Info, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || ValidateID(entry.Name()) != nil {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		infos = append(infos, Info{
			ID:      entry.Name(),
			Area:    area,
			Path:    filepath.Join(root, entry.Name()),
			ModTime: fi.ModTime(),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ModTime.Before(infos[j].ModTime)
	})
	return infos, nil
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// copyTree copies src into dst recursively, keeping file modes.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0700)
		case info.Mode().IsRegular():
			return copyFile(path, target, info.Mode().Perm())
		default:
			// sockets, symlinks and devices are not part of credential state
			return nil
		}
	})
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
