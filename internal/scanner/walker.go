// Package scanner enumerates source trees and decides what happens to each file.
package scanner

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"

	domainerrors "github.com/listenupapp/listenup-transcoder/internal/errors"
)

// Scanner lists the regular files of a directory tree.
type Scanner struct {
	logger *slog.Logger
}

// NewScanner creates a new scanner.
func NewScanner(logger *slog.Logger) *Scanner {
	return &Scanner{
		logger: logger,
	}
}

// Scan returns every regular file under root as a path relative to root, in
// directory enumeration order. Symlinks to files are listed, symlinks to
// directories are not followed, and dangling or looping symlinks are skipped.
//
// Any unreadable directory aborts the traversal with an IO error and no partial list.
func (s *Scanner) Scan(ctx context.Context, root string) ([]string, error) {
	var files []string
	if err := s.walk(ctx, root, "", &files); err != nil {
		return nil, err
	}
	return files, nil
}

// Count returns the number of files Scan would list.
func (s *Scanner) Count(ctx context.Context, root string) (int, error) {
	files, err := s.Scan(ctx, root)
	if err != nil {
		return 0, err
	}
	return len(files), nil
}

func (s *Scanner) walk(ctx context.Context, root, rel string, files *[]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Join(root, rel)
	f, err := os.Open(dir)
	if err != nil {
		return domainerrors.IOf(err, "open directory %s", dir)
	}
	// File.ReadDir keeps the filesystem's order; os.ReadDir would sort.
	entries, err := f.ReadDir(-1)
	f.Close()
	if err != nil {
		return domainerrors.IOf(err, "read directory %s", dir)
	}

	for _, entry := range entries {
		childRel := filepath.Join(rel, entry.Name())
		mode := entry.Type()

		switch {
		case mode.IsDir():
			if err := s.walk(ctx, root, childRel, files); err != nil {
				return err
			}

		case mode&fs.ModeSymlink != 0:
			target := filepath.Join(root, childRel)
			info, err := os.Stat(target)
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ELOOP) {
				s.logger.Warn("skipping unresolvable symlink", "path", target, "error", err)
				continue
			}
			if err != nil {
				return domainerrors.IOf(err, "stat %s", target)
			}
			if info.Mode().IsRegular() {
				*files = append(*files, childRel)
			} else {
				s.logger.Debug("not following symlink", "path", target)
			}

		case mode.IsRegular():
			*files = append(*files, childRel)

		default:
			s.logger.Debug("skipping special file", "path", filepath.Join(root, childRel), "mode", mode.String())
		}
	}

	return nil
}
