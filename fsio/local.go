package fsio

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Local services intents on the local filesystem.
type Local struct {
	Logger *slog.Logger
}

var _ Executor = (*Local)(nil)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func (l *Local) logger() *slog.Logger {
	if l == nil || l.Logger == nil {
		return discardLogger
	}
	return l.Logger
}

func checkPath(name string) (string, error) {
	if strings.Contains(name, "\x00") {
		return "", fmt.Errorf("fsio: invalid character in path %q", name)
	}
	if !filepath.IsAbs(name) {
		return "", fmt.Errorf("fsio: expected absolute path, got %q", name)
	}
	return filepath.Clean(name), nil
}

func stateNotFound(intent Intent) error {
	return fmt.Errorf("fsio: %v state not found", intent)
}

// Execute implements Executor.
func (l *Local) Execute(s *State, intent Intent) error {
	logger := l.logger().With("intent", intent.String())

	switch intent {
	case CreateDir:
		name, ok := s.CreateDir.Pending()
		if !ok {
			return stateNotFound(intent)
		}
		p, err := checkPath(name)
		if err != nil {
			return err
		}
		logger.Debug("creating directory", "path", p)
		if err := os.Mkdir(p, 0755); err != nil {
			return err
		}
		s.CreateDir.Complete(struct{}{})

	case ReadDir:
		name, ok := s.ReadDir.Pending()
		if !ok {
			return stateNotFound(intent)
		}
		p, err := checkPath(name)
		if err != nil {
			return err
		}
		logger.Debug("reading directory", "path", p)
		entries, err := os.ReadDir(p)
		if err != nil {
			return err
		}
		list := make([]DirEntry, 0, len(entries))
		for _, entry := range entries {
			isDir := entry.IsDir()
			if entry.Type()&fs.ModeSymlink != 0 {
				fi, err := os.Stat(filepath.Join(p, entry.Name()))
				if err != nil {
					logger.Debug("ignoring broken directory entry", "name", entry.Name(), "err", err)
					continue
				}
				isDir = fi.IsDir()
			}
			list = append(list, DirEntry{Path: filepath.Join(p, entry.Name()), IsDir: isDir})
		}
		s.ReadDir.Complete(list)

	case RemoveDir:
		name, ok := s.RemoveDir.Pending()
		if !ok {
			return stateNotFound(intent)
		}
		p, err := checkPath(name)
		if err != nil {
			return err
		}
		// RemoveAll succeeds on missing paths, callers expect an error
		if _, err := os.Stat(p); err != nil {
			return err
		}
		logger.Debug("removing directory", "path", p)
		if err := os.RemoveAll(p); err != nil {
			return err
		}
		s.RemoveDir.Complete(struct{}{})

	case CreateFiles:
		files, ok := s.CreateFiles.Pending()
		if !ok {
			return stateNotFound(intent)
		}
		for name, content := range files {
			p, err := checkPath(name)
			if err != nil {
				return err
			}
			logger.Debug("creating file", "path", p)
			if err := os.WriteFile(p, content, 0644); err != nil {
				return err
			}
		}
		s.CreateFiles.Complete(struct{}{})

	case ReadFiles:
		names, ok := s.ReadFiles.Pending()
		if !ok {
			return stateNotFound(intent)
		}
		contents := make(map[string][]byte, len(names))
		for _, name := range names {
			p, err := checkPath(name)
			if err != nil {
				return err
			}
			logger.Debug("reading file", "path", p)
			b, err := os.ReadFile(p)
			if errors.Is(err, fs.ErrNotExist) {
				continue
			} else if err != nil {
				return err
			}
			contents[name] = b
		}
		s.ReadFiles.Complete(contents)

	case MoveFiles:
		moves, ok := s.MoveFiles.Pending()
		if !ok {
			return stateNotFound(intent)
		}
		for src, dst := range moves {
			srcPath, err := checkPath(src)
			if err != nil {
				return err
			}
			dstPath, err := checkPath(dst)
			if err != nil {
				return err
			}
			logger.Debug("moving file", "src", srcPath, "dst", dstPath)
			if err := os.Rename(srcPath, dstPath); err != nil {
				return err
			}
		}
		s.MoveFiles.Complete(struct{}{})

	case RemoveFiles:
		names, ok := s.RemoveFiles.Pending()
		if !ok {
			return stateNotFound(intent)
		}
		for _, name := range names {
			p, err := checkPath(name)
			if err != nil {
				return err
			}
			logger.Debug("removing file", "path", p)
			if err := os.Remove(p); err != nil {
				return err
			}
		}
		s.RemoveFiles.Complete(struct{}{})

	default:
		return fmt.Errorf("fsio: unknown intent %v", intent)
	}
	return nil
}
