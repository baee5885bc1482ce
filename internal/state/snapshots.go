package state

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/ShayCichocki/orca/pkg/models"
)

// SaveSnapshot replaces the stored snapshot of a run.
func (db *DB) SaveSnapshot(runID string, data *models.RollbackData) error {
	return db.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM snapshots WHERE run_id = ?`, runID); err != nil {
			return fmt.Errorf("clear snapshot: %w", err)
		}
		insert := `INSERT INTO snapshots (run_id, path, content, is_new, is_dir) VALUES (?, ?, ?, ?, ?)`
		for path, content := range data.OriginalContents {
			if _, err := tx.Exec(insert, runID, path, content, false, false); err != nil {
				return fmt.Errorf("save snapshot of %s: %w", path, err)
			}
		}
		for _, path := range data.DeletedFiles {
			if _, ok := data.OriginalContents[path]; ok {
				continue
			}
			if _, err := tx.Exec(insert, runID, path, nil, true, false); err != nil {
				return fmt.Errorf("save snapshot of %s: %w", path, err)
			}
		}
		for _, dir := range data.CreatedDirs {
			if _, err := tx.Exec(insert, runID, dir, nil, false, true); err != nil {
				return fmt.Errorf("save snapshot of %s: %w", dir, err)
			}
		}
		return nil
	})
}

// GetSnapshot returns the stored snapshot of a run, or nil if there is none.
func (db *DB) GetSnapshot(runID string) (*models.RollbackData, error) {
	rows, err := db.Query(`SELECT path, content, is_new, is_dir FROM snapshots WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	defer rows.Close()

	data := &models.RollbackData{OriginalContents: make(map[string]string)}
	found := false
	for rows.Next() {
		var path string
		var content sql.NullString
		var isNew, isDir bool
		if err := rows.Scan(&path, &content, &isNew, &isDir); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		found = true
		switch {
		case isDir:
			data.CreatedDirs = append(data.CreatedDirs, path)
		case isNew:
			data.DeletedFiles = append(data.DeletedFiles, path)
		default:
			data.OriginalContents[path] = content.String
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	sort.Strings(data.DeletedFiles)
	sortDeepestFirst(data.CreatedDirs)
	return data, nil
}

// sortDeepestFirst orders directories so children come before parents.
func sortDeepestFirst(dirs []string) {
	sort.Slice(dirs, func(i, j int) bool {
		di, dj := depth(dirs[i]), depth(dirs[j])
		if di != dj {
			return di > dj
		}
		return dirs[i] < dirs[j]
	})
}

func depth(p string) int {
	n := 0
	for i := 0; i < len(p); i++ {
		if p[i] == '/' {
			n++
		}
	}
	return n
}
