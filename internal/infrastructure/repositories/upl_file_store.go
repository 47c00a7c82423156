package repositories

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"uplregistry/internal/domain/upl/entities"
	"uplregistry/pkg/security"
)

// UplFileStore is the default keyed document store: one JSON file per
// UPL under a directory, loaded in full at startup. Every mutating call
// writes a temp file and renames it over the target, so a crash mid
// write never leaves a torn document on disk; the directory itself is
// fsynced after the rename so the new directory entry survives a crash
// too. This is the Go analogue of the directory-of-documents collection
// the core treats as an external keyed store.
type UplFileStore struct {
	dir    string
	logger zerolog.Logger
}

func NewUplFileStore(dir string, logger zerolog.Logger) (*UplFileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating upl store directory %s: %w", dir, err)
	}
	return &UplFileStore{dir: dir, logger: logger}, nil
}

// pathFor rejects any id that would escape the store directory: ids
// normally come from the checksum-validated generator, but this also
// guards document stores rehydrated from an untrusted export.
func (s *UplFileStore) pathFor(id entities.UplId) (string, error) {
	candidate := filepath.Join(s.dir, string(id)+".json")
	if err := security.ValidatePath(candidate, s.dir); err != nil {
		return "", fmt.Errorf("rejecting upl id %q: %w", id, err)
	}
	return candidate, nil
}

func (s *UplFileStore) LoadAll() (map[entities.UplId]*entities.Upl, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading upl store directory %s: %w", s.dir, err)
	}

	result := make(map[entities.UplId]*entities.Upl, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}
		var upl entities.Upl
		if err := json.Unmarshal(data, &upl); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", entry.Name(), err)
		}
		result[upl.ID] = &upl
	}
	return result, nil
}

func (s *UplFileStore) Insert(upl *entities.Upl) error {
	return s.writeAtomic(upl)
}

func (s *UplFileStore) Save(upl *entities.Upl) error {
	return s.writeAtomic(upl)
}

func (s *UplFileStore) Remove(id entities.UplId) error {
	target, err := s.pathFor(id)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing upl %s: %w", id, err)
	}
	return nil
}

func (s *UplFileStore) writeAtomic(upl *entities.Upl) error {
	data, err := json.Marshal(upl)
	if err != nil {
		return fmt.Errorf("encoding upl %s: %w", upl.ID, err)
	}

	target, err := s.pathFor(upl.ID)
	if err != nil {
		return err
	}
	tmp := target + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("creating temp file for upl %s: %w", upl.ID, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing upl %s: %w", upl.ID, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("syncing upl %s: %w", upl.ID, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing upl %s: %w", upl.ID, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("committing upl %s: %w", upl.ID, err)
	}
	if dir, err := os.Open(s.dir); err == nil {
		_ = dir.Sync()
		_ = dir.Close()
	}
	return nil
}
