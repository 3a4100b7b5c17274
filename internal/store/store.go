// Package store persists session records as one JSON file per domain.
//
// Writes are atomic: records land in a temp file that is fsynced and then
// renamed over the final path, so a crash mid-write never leaves a partial
// record behind.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ssokeeper/ssokeeper/pkg/models"
)

var (
	// ErrNotFound means no record exists for the domain
	ErrNotFound = errors.New("store: session not found")
	// ErrCorrupt means a record file exists but cannot be decoded
	ErrCorrupt = errors.New("store: corrupt session record")
	// ErrIO wraps filesystem failures during reads and writes
	ErrIO = errors.New("store: io failure")
)

const recordExt = ".json"

// FileStore keeps one record per domain under a single root directory
type FileStore struct {
	root string
}

// NewFileStore creates the root directory (0700) if needed
func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		return nil, errors.New("store: root directory required")
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", ErrIO, root, err)
	}
	return &FileStore{root: root}, nil
}

// Root returns the directory records are stored in
func (s *FileStore) Root() string {
	return s.root
}

// Path returns the record file path for a domain
func (s *FileStore) Path(domain string) string {
	return filepath.Join(s.root, models.FileKey(domain)+recordExt)
}

// Save writes the record for rec.Domain, replacing any previous one.
// The record is fully written or not written at all.
func (s *FileStore) Save(rec *models.SessionRecord) error {
	if rec == nil || rec.Domain == "" {
		return errors.New("store: record with domain required")
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode record for %s: %w", rec.Domain, err)
	}

	path := s.Path(rec.Domain)
	tmp := path + ".tmp"
	if err := writeFileSync(tmp, data); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: write %s: %v", ErrIO, tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: rename %s: %v", ErrIO, path, err)
	}
	return nil
}

// Load reads the record for a domain. A file that exists but does not decode
// to a usable record yields ErrCorrupt; the file itself is left untouched.
func (s *FileStore) Load(domain string) (*models.SessionRecord, error) {
	data, err := os.ReadFile(s.Path(domain))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, domain)
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrIO, domain, err)
	}

	var rec models.SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, domain, err)
	}
	if rec.Domain == "" || rec.CreatedAt.IsZero() {
		return nil, fmt.Errorf("%w: %s: missing required fields", ErrCorrupt, domain)
	}
	return &rec, nil
}

// List returns metadata for every readable record, sorted by domain.
// Corrupt files are skipped with a warning, never deleted.
func (s *FileStore) List() ([]models.SessionSummary, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("%w: read dir %s: %v", ErrIO, s.root, err)
	}

	summaries := make([]models.SessionSummary, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, recordExt) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.root, name))
		if err != nil {
			slog.Warn("skipping unreadable session record", "file", name, "error", err)
			continue
		}
		var rec models.SessionRecord
		if err := json.Unmarshal(data, &rec); err != nil || rec.Domain == "" {
			slog.Warn("skipping corrupt session record", "file", name)
			continue
		}
		summaries = append(summaries, rec.Summary())
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Domain < summaries[j].Domain
	})
	return summaries, nil
}

// Delete removes the record for a domain. Deleting a record that does not
// exist is not an error; the bool reports whether a record was removed.
func (s *FileStore) Delete(domain string) (bool, error) {
	err := os.Remove(s.Path(domain))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: delete %s: %v", ErrIO, domain, err)
	}
	return true, nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
