// Package filestore owns the shared upload directory: streaming writes of
// uploaded files, enumeration, range-friendly reads, and deletion.
package filestore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// ChunkSize is the buffer size used for streaming copies in and out of the
// store.
const ChunkSize = 1 << 20 // 1 MiB

var (
	// ErrNotFound reports that no stored file matches the requested name.
	ErrNotFound = errors.New("file not found")

	// ErrInvalidName reports a filename that is empty or would escape the
	// upload directory.
	ErrInvalidName = errors.New("invalid file name")
)

// FileInfo describes one stored file as reported by the filesystem at
// request time; the store keeps no metadata of its own.
type FileInfo struct {
	Name     string
	Size     int64
	Modified time.Time
}

// Store manages files inside a single flat directory. Files are identified
// by their sanitized name; re-uploading a name overwrites the previous
// content. Writes to the same name are serialized so two simultaneous
// uploads cannot interleave.
type Store struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: dir, locks: make(map[string]*sync.Mutex)}, nil
}

// Dir returns the upload directory path.
func (s *Store) Dir() string {
	return s.dir
}

// CleanName normalizes a client-supplied filename to a bare base name and
// rejects anything that could traverse outside the upload directory.
func CleanName(name string) (string, error) {
	// Browsers on Windows may send full paths with backslashes.
	name = strings.ReplaceAll(name, `\`, "/")
	name = filepath.Base(name)
	if name == "" || name == "." || name == ".." || name == string(filepath.Separator) {
		return "", ErrInvalidName
	}
	return name, nil
}

func (s *Store) nameLock(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	return l
}

// Save streams r into a file called name, overwriting any previous file of
// that name, and returns the number of bytes written. The copy happens in
// ChunkSize slices so arbitrarily large uploads never buffer whole in
// memory.
func (s *Store) Save(name string, r io.Reader) (int64, error) {
	name, err := CleanName(name)
	if err != nil {
		return 0, err
	}

	lock := s.nameLock(name)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}

	n, err := io.CopyBuffer(f, r, make([]byte, ChunkSize))
	if err != nil {
		f.Close()
		return n, fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return n, fmt.Errorf("close file: %w", err)
	}
	return n, nil
}

// List enumerates the regular files directly under the upload directory,
// sorted by name for deterministic output.
func (s *Store) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read upload dir: %w", err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// File removed between ReadDir and Stat; skip it.
			continue
		}
		files = append(files, FileInfo{
			Name:     entry.Name(),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Open opens a stored file for reading along with its current size. The
// caller owns the returned file and must close it. Returns ErrNotFound if
// the name is absent, ErrInvalidName if it fails sanitization.
func (s *Store) Open(name string) (*os.File, int64, error) {
	name, err := CleanName(name)
	if err != nil {
		return nil, 0, err
	}

	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("open file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat file: %w", err)
	}
	return f, info.Size(), nil
}

// Delete removes a stored file. Returns ErrNotFound when the name is absent
// so callers can distinguish "deleted" from "was never there".
func (s *Store) Delete(name string) error {
	name, err := CleanName(name)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}
