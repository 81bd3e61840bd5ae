package registry

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// FileStore persists the registry to a shared text file, one entry per line.
//
// The file is a shared mutable resource across OS processes with no
// distributed locking. Writes go through a temporary file and an atomic
// rename, which narrows (but cannot eliminate) the window in which two
// processes overwrite each other's entries.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the file at path. The parent
// directory is created if it does not exist; the file itself is not touched
// until the first Write.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, os.ErrInvalid
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &FileStore{path: path}, nil
}

// Path returns the registry file location.
func (s *FileStore) Path() string {
	return s.path
}

// Read returns all well-formed entries from the registry file. Corrupt
// lines are dropped without aborting the parse of the rest of the file.
// The caller decides whether an open failure is fatal.
func (s *FileStore) Read() ([]Entry, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		e, err := ParseEntry(line)
		if err != nil {
			// Corrupt lines are dropped; peers re-assert their entries
			// on the next refresh anyway.
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return entries, err
	}
	return entries, nil
}

// Write replaces the registry file with the given entries sorted by
// (pid, site). The new contents are staged in a temporary file in the same
// directory and renamed into place so readers never observe a half-written
// registry.
func (s *FileStore) Write(entries []Entry) error {
	SortEntries(entries)

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".registry-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	w := bufio.NewWriter(tmp)
	for _, e := range entries {
		if _, err := w.WriteString(FormatEntry(e)); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return err
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	// Peers must be able to read the registry.
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// Ensure FileStore implements Store.
var _ Store = (*FileStore)(nil)
