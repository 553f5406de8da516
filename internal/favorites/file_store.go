// internal/favorites/file_store.go
package favorites

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	favoritesFile = "serverbrowser_favorites.txt"
	historyFile   = "serverbrowser_history.txt"
)

// FileStore keeps the lists as newline-delimited text files in one
// directory, the legacy on-disk layout.
type FileStore struct {
	dir string
}

// NewFileStore uses dir for both list files, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create favorites directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(list List) string {
	if list == History {
		return filepath.Join(s.dir, historyFile)
	}
	return filepath.Join(s.dir, favoritesFile)
}

func (s *FileStore) lines(list List) ([]string, error) {
	data, err := os.ReadFile(s.path(list))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read favorites file: %w", err)
	}
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, strings.TrimSpace(line))
		}
	}
	return out, nil
}

func (s *FileStore) write(list List, lines []string) error {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if err := os.WriteFile(s.path(list), []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write favorites file: %w", err)
	}
	return nil
}

// Count returns the number of stored records.
func (s *FileStore) Count(_ context.Context, list List) (int, error) {
	lines, err := s.lines(list)
	if err != nil {
		return 0, err
	}
	return len(lines), nil
}

// Get returns the record at position i.
func (s *FileStore) Get(_ context.Context, list List, i int) (Record, bool, error) {
	lines, err := s.lines(list)
	if err != nil {
		return Record{}, false, err
	}
	if i < 0 || i >= len(lines) {
		return Record{}, false, nil
	}
	r, err := ParseRecord(lines[i])
	if err != nil {
		return Record{}, false, err
	}
	return r, true, nil
}

// Add appends the record unless it is already present, returning the
// resulting count either way.
func (s *FileStore) Add(_ context.Context, list List, r Record) (int, error) {
	lines, err := s.lines(list)
	if err != nil {
		return 0, err
	}
	entry := r.String()
	for _, line := range lines {
		if line == entry {
			return len(lines), nil
		}
	}
	lines = append(lines, entry)
	if err := s.write(list, lines); err != nil {
		return 0, err
	}
	return len(lines), nil
}

// Remove deletes the record; returns whether one was removed.
func (s *FileStore) Remove(_ context.Context, list List, r Record) (bool, error) {
	lines, err := s.lines(list)
	if err != nil {
		return false, err
	}
	entry := r.String()
	kept := lines[:0]
	removed := false
	for _, line := range lines {
		if line == entry && !removed {
			removed = true
			continue
		}
		kept = append(kept, line)
	}
	if !removed {
		return false, nil
	}
	return true, s.write(list, kept)
}
