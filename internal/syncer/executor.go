package syncer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tildaslashalef/vaultsync/internal/loggy"
)

// Executor performs decided actions and records their outcome in the state
// store. In dry-run mode it logs intended actions and mutates neither the
// filesystem nor the store.
type Executor struct {
	state  *StateStore
	dryRun bool
	logger *loggy.Logger
}

// NewExecutor creates an action executor bound to a state store.
func NewExecutor(state *StateStore, dryRun bool, logger *loggy.Logger) *Executor {
	return &Executor{
		state:  state,
		dryRun: dryRun,
		logger: logger,
	}
}

// Execute performs a single change. Conflicts are logged and left alone;
// they are counted by the caller, not treated as errors.
func (e *Executor) Execute(ch Change) error {
	switch ch.Action {
	case ActionSkip:
		return nil

	case ActionDeleteTarget:
		return e.remove(ch, ch.TargetPath)

	case ActionDeleteSource:
		return e.remove(ch, ch.SourcePath)

	case ActionCopyToVault:
		return e.copy(ch, ch.SourcePath, ch.TargetPath)

	case ActionCopyToRepo:
		return e.copy(ch, ch.TargetPath, ch.SourcePath)

	case ActionConflict:
		e.logger.Warn("Conflict, manual resolution needed",
			"file", ch.RelPath,
			"source", ch.SourcePath,
			"target", ch.TargetPath,
		)
		return nil

	default:
		return fmt.Errorf("unhandled action %v for %s", ch.Action, ch.RelPath)
	}
}

// remove deletes one side of the pair and drops the paired state entry.
func (e *Executor) remove(ch Change, path string) error {
	if e.dryRun {
		e.logger.Info("[dry-run] Would delete", "path", path)
		return nil
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("deleting %s: %w", path, err)
	}

	e.state.Delete(ch.SourcePath, ch.TargetPath)
	e.logger.Info("Deleted", "path", path, "action", ch.Action.String())
	return nil
}

// copy replicates the winning file's bytes and modification time to the
// losing side and upserts the state entry for the pair of paths.
func (e *Executor) copy(ch Change, from, to string) error {
	if e.dryRun {
		e.logger.Info("[dry-run] Would copy", "from", from, "to", to)
		return nil
	}

	if err := copyFile(from, to); err != nil {
		return fmt.Errorf("copying %s: %w", ch.RelPath, err)
	}

	info, err := os.Stat(from)
	if err != nil {
		return fmt.Errorf("stat after copy %s: %w", from, err)
	}

	e.state.Put(ch.SourcePath, ch.TargetPath, Fingerprint(from), info.ModTime())
	e.logger.Info("Synced", "file", ch.Filename(), "action", ch.Action.String())
	return nil
}

// copyFile copies bytes and preserves the source's modification time,
// creating intermediate directories as needed.
func copyFile(from, to string) error {
	src, err := os.Open(from)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(to), 0755); err != nil {
		return err
	}

	dst, err := os.OpenFile(to, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}

	return os.Chtimes(to, info.ModTime(), info.ModTime())
}
