package apply

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/afero"

	"github.com/ShayCichocki/orca/pkg/models"
)

// Rollback restores the files recorded in data: snapshotted files get their
// original content back, files that did not exist are deleted, and created
// directories are removed when empty. It continues past failures and
// returns them joined. Rolling back twice is harmless.
func (m *Manager) Rollback(data *models.RollbackData) error {
	if data == nil {
		return nil
	}
	var errs []error
	unsafe := func(rel string) bool {
		if err := models.CheckPath(rel); err != nil {
			errs = append(errs, fmt.Errorf("rollback: %w", err))
			return true
		}
		return false
	}

	paths := make([]string, 0, len(data.OriginalContents))
	for p := range data.OriginalContents {
		if unsafe(p) {
			continue
		}
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, rel := range paths {
		abs := m.abs(rel)
		mode := os.FileMode(0644)
		if info, err := m.fs.Stat(abs); err == nil {
			mode = info.Mode().Perm()
		}
		if err := afero.WriteFile(m.fs, abs, []byte(data.OriginalContents[rel]), mode); err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", rel, err))
		}
	}

	for _, rel := range data.DeletedFiles {
		if _, kept := data.OriginalContents[rel]; kept || unsafe(rel) {
			continue
		}
		if err := m.fs.Remove(m.abs(rel)); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("remove %s: %w", rel, err))
		}
	}

	for _, rel := range data.CreatedDirs {
		if unsafe(rel) {
			continue
		}
		abs := m.abs(rel)
		if _, err := m.fs.Stat(abs); os.IsNotExist(err) {
			continue
		}
		empty, err := afero.IsEmpty(m.fs, abs)
		if err != nil {
			errs = append(errs, fmt.Errorf("remove directory %s: %w", rel, err))
			continue
		}
		if !empty {
			continue
		}
		if err := m.fs.Remove(abs); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("remove directory %s: %w", rel, err))
		}
	}

	m.debugLog("[apply] rollback: %d restored, %d removed, %d errors", len(paths), len(data.DeletedFiles), len(errs))
	return errors.Join(errs...)
}
