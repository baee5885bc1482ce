// Package apply writes validated change sets to disk as a transaction and
// restores the previous content when any write fails.
package apply

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/ShayCichocki/orca/pkg/models"
)

var (
	// ErrValidationFailed indicates apply was refused because the change
	// set did not pass validation and the gate was not overridden.
	ErrValidationFailed = errors.New("validation failed")
	// ErrReviewRequired indicates the request requires review and no
	// approval was given.
	ErrReviewRequired = errors.New("review required")
	// ErrNotPrepared indicates Apply was called on a transaction that has
	// already run.
	ErrNotPrepared = errors.New("transaction is not prepared")
)

// ApplyError reports a failed apply. The change set was rolled back
// unless RollbackErr is set.
type ApplyError struct {
	Path        string
	Err         error
	RolledBack  bool
	RollbackErr error
}

func (e *ApplyError) Error() string {
	if e.RollbackErr != nil {
		return fmt.Sprintf("apply %s: %v (rollback incomplete: %v)", e.Path, e.Err, e.RollbackErr)
	}
	return fmt.Sprintf("apply %s: %v (rolled back)", e.Path, e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}

// State is the phase of an apply transaction.
type State string

const (
	StatePrepared   State = "prepared"
	StateApplying   State = "applying"
	StateApplied    State = "applied"
	StateRolledBack State = "rolled-back"
)

// Policy decides whether a change set may be applied.
type Policy struct {
	// AllowInvalid applies change sets that failed validation.
	AllowInvalid bool
	// RequireReview makes apply wait for Approve.
	RequireReview bool
	// Approve is asked when review is required. Nil means no approval.
	Approve func(cs *models.ChangeSet) bool
}

// Authorize returns ErrValidationFailed or ErrReviewRequired when the
// policy does not allow cs to be applied.
func (p Policy) Authorize(cs *models.ChangeSet) error {
	if !cs.Validation.Valid && !p.AllowInvalid {
		return fmt.Errorf("%w: %d errors", ErrValidationFailed, len(cs.Validation.Errors))
	}
	if p.RequireReview && (p.Approve == nil || !p.Approve(cs)) {
		return ErrReviewRequired
	}
	return nil
}

// Manager applies change sets to the project at root. It is the only
// writer of project files.
type Manager struct {
	fs       afero.Fs
	root     string
	debugLog func(format string, args ...interface{})
}

// NewManager creates a manager writing through fs.
func NewManager(fs afero.Fs, root string) *Manager {
	return &Manager{
		fs:       fs,
		root:     root,
		debugLog: func(format string, args ...interface{}) {},
	}
}

// SetDebugLog sets the debug logging function.
func (m *Manager) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		m.debugLog = fn
	}
}

func (m *Manager) abs(rel string) string {
	return filepath.Join(m.root, filepath.FromSlash(rel))
}

// Apply authorizes, prepares and applies cs in one step. On success cs is
// marked applied and carries its rollback data.
func (m *Manager) Apply(cs *models.ChangeSet, p Policy) error {
	if err := p.Authorize(cs); err != nil {
		return err
	}
	txn, err := m.Prepare(cs)
	if err != nil {
		return err
	}
	return txn.Apply()
}

// Txn is one apply operation over a change set.
type Txn struct {
	m     *Manager
	cs    *models.ChangeSet
	data  *models.RollbackData
	modes map[string]os.FileMode

	mu    sync.Mutex
	state State
}

// Prepare snapshots every file the change set touches. Existing files have
// their content recorded; missing new files are recorded for deletion along
// with the directories that will be created for them.
func (m *Manager) Prepare(cs *models.ChangeSet) (*Txn, error) {
	data := &models.RollbackData{OriginalContents: make(map[string]string)}
	modes := make(map[string]os.FileMode)
	dirs := make(map[string]bool)
	seen := make(map[string]bool)

	for _, fe := range cs.Edits {
		if err := models.CheckPath(fe.FilePath); err != nil {
			return nil, fmt.Errorf("prepare: %w", err)
		}
	}
	for _, fe := range cs.Edits {
		if seen[fe.FilePath] {
			continue
		}
		seen[fe.FilePath] = true

		abs := m.abs(fe.FilePath)
		info, err := m.fs.Stat(abs)
		switch {
		case err == nil:
			content, err := afero.ReadFile(m.fs, abs)
			if err != nil {
				return nil, fmt.Errorf("snapshot %s: %w", fe.FilePath, err)
			}
			data.OriginalContents[fe.FilePath] = string(content)
			modes[fe.FilePath] = info.Mode().Perm()
		case os.IsNotExist(err):
			if !fe.IsNewFile {
				return nil, fmt.Errorf("snapshot %s: %w", fe.FilePath, err)
			}
			data.DeletedFiles = append(data.DeletedFiles, fe.FilePath)
			for dir := path.Dir(fe.FilePath); dir != "." && dir != "/"; dir = path.Dir(dir) {
				if _, err := m.fs.Stat(m.abs(dir)); err == nil {
					break
				}
				dirs[dir] = true
			}
		default:
			return nil, fmt.Errorf("snapshot %s: %w", fe.FilePath, err)
		}
	}

	for dir := range dirs {
		data.CreatedDirs = append(data.CreatedDirs, dir)
	}
	sort.Slice(data.CreatedDirs, func(i, j int) bool {
		a, b := data.CreatedDirs[i], data.CreatedDirs[j]
		if da, db := strings.Count(a, "/"), strings.Count(b, "/"); da != db {
			return da > db
		}
		return a < b
	})

	m.debugLog("[apply] prepared %s: %d snapshots, %d new files, %d new dirs", cs.ID, len(data.OriginalContents), len(data.DeletedFiles), len(data.CreatedDirs))
	return &Txn{m: m, cs: cs, data: data, modes: modes, state: StatePrepared}, nil
}

// State returns the transaction phase.
func (t *Txn) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// RollbackData returns the snapshot taken by Prepare.
func (t *Txn) RollbackData() *models.RollbackData {
	return t.data
}

// Apply writes every file edit in order. If any write fails the snapshot
// is restored and an *ApplyError is returned.
func (t *Txn) Apply() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StatePrepared {
		return fmt.Errorf("%w: state is %s", ErrNotPrepared, t.state)
	}
	t.state = StateApplying

	for _, fe := range t.cs.Edits {
		if err := t.write(fe); err != nil {
			t.m.debugLog("[apply] %s failed: %v, rolling back", fe.FilePath, err)
			rbErr := t.m.Rollback(t.data)
			t.state = StateRolledBack
			return &ApplyError{
				Path:        fe.FilePath,
				Err:         err,
				RolledBack:  rbErr == nil,
				RollbackErr: rbErr,
			}
		}
	}

	t.state = StateApplied
	t.cs.Applied = true
	t.cs.RollbackData = t.data
	t.m.debugLog("[apply] applied %s: %d files", t.cs.ID, len(t.cs.Edits))
	return nil
}

func (t *Txn) write(fe models.FileEdit) error {
	abs := t.m.abs(fe.FilePath)
	live := ""
	if _, existed := t.data.OriginalContents[fe.FilePath]; existed && !fe.IsNewFile {
		content, err := afero.ReadFile(t.m.fs, abs)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		live = string(content)
	}

	rendered, err := fe.Render(live)
	if err != nil {
		return err
	}

	mode, ok := t.modes[fe.FilePath]
	if !ok {
		mode = 0644
		if err := t.m.fs.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	if err := afero.WriteFile(t.m.fs, abs, []byte(rendered), mode); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}
