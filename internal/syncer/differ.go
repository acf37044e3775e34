package syncer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/tildaslashalef/vaultsync/internal/loggy"
)

// Differ lists the matching files on both sides of a pair and classifies
// every relative path into an action.
type Differ struct {
	patterns []string
	ignore   *IgnoreMatcher
	window   time.Duration
	logger   *loggy.Logger
}

// NewDiffer creates a differ. patterns are doublestar globs matched against
// slash-separated relative paths; window is the modification-time tolerance
// within which two timestamps count as equal.
func NewDiffer(patterns []string, ignore *IgnoreMatcher, window time.Duration, logger *loggy.Logger) *Differ {
	return &Differ{
		patterns: patterns,
		ignore:   ignore,
		window:   window,
		logger:   logger,
	}
}

// DiffOptions tunes one invocation of the decision procedure.
type DiffOptions struct {
	// Force bypasses the decision procedure and copies every source-side
	// file to the vault regardless of target state.
	Force bool
}

// Diff runs the decision procedure for one pair. It returns the decided
// changes in sorted relative-path order, plus descriptions of per-file
// errors encountered while reading file metadata. Errors never abort the
// pair.
func (d *Differ) Diff(pair SyncPair, state *StateStore, opts DiffOptions) ([]Change, []string) {
	sourceSet, err := ListFiles(pair.SourceDir, d.patterns, d.ignore, d.logger)
	if err != nil {
		return nil, []string{fmt.Sprintf("listing %s: %v", pair.SourceDir, err)}
	}
	targetSet, err := ListFiles(pair.TargetDir, d.patterns, d.ignore, d.logger)
	if err != nil {
		return nil, []string{fmt.Sprintf("listing %s: %v", pair.TargetDir, err)}
	}

	union := make(map[string]struct{}, len(sourceSet)+len(targetSet))
	for rel := range sourceSet {
		union[rel] = struct{}{}
	}
	for rel := range targetSet {
		union[rel] = struct{}{}
	}

	relPaths := make([]string, 0, len(union))
	for rel := range union {
		relPaths = append(relPaths, rel)
	}
	sort.Strings(relPaths)

	var changes []Change
	var errs []string

	for _, rel := range relPaths {
		rec := FileRecord{
			RelPath:    rel,
			SourcePath: filepath.Join(pair.SourceDir, filepath.FromSlash(rel)),
			TargetPath: filepath.Join(pair.TargetDir, filepath.FromSlash(rel)),
		}
		_, rec.InSource = sourceSet[rel]
		_, rec.InTarget = targetSet[rel]

		action, err := d.classify(&rec, state, opts)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", rel, err))
			continue
		}

		changes = append(changes, Change{
			RelPath:    rel,
			SourcePath: rec.SourcePath,
			TargetPath: rec.TargetPath,
			Action:     action,
		})
	}

	return changes, errs
}

// classify applies the per-file decision procedure, filling in hashes and
// timestamps on the record as they are needed.
func (d *Differ) classify(rec *FileRecord, state *StateStore, opts DiffOptions) (Action, error) {
	if opts.Force {
		// Source-is-truth escape hatch: everything present on the repo
		// side is pushed to the vault, everything else left alone.
		if rec.InSource {
			return ActionCopyToVault, nil
		}
		return ActionSkip, nil
	}

	switch {
	case !rec.InSource && !rec.InTarget:
		return ActionSkip, nil

	case !rec.InSource:
		// Source gone. Propagate the deletion only if we synced this
		// pair of paths before; otherwise the vault-side file is newly
		// discovered and authoritative.
		if state.Has(rec.SourcePath, rec.TargetPath) {
			return ActionDeleteTarget, nil
		}
		return ActionCopyToRepo, nil

	case !rec.InTarget:
		// Target gone. Same disambiguation in the other direction.
		if state.Has(rec.SourcePath, rec.TargetPath) {
			return ActionDeleteSource, nil
		}
		return ActionCopyToVault, nil
	}

	// Both exist: compare content, then timestamps.
	rec.SourceHash = Fingerprint(rec.SourcePath)
	rec.TargetHash = Fingerprint(rec.TargetPath)
	if rec.SourceHash == "" || rec.TargetHash == "" {
		return ActionSkip, fmt.Errorf("unreadable file")
	}

	if rec.SourceHash == rec.TargetHash {
		return ActionSkip, nil
	}

	srcInfo, err := os.Stat(rec.SourcePath)
	if err != nil {
		return ActionSkip, fmt.Errorf("stat source: %w", err)
	}
	dstInfo, err := os.Stat(rec.TargetPath)
	if err != nil {
		return ActionSkip, fmt.Errorf("stat target: %w", err)
	}
	rec.SourceMtime = srcInfo.ModTime()
	rec.TargetMtime = dstInfo.ModTime()

	delta := rec.SourceMtime.Sub(rec.TargetMtime)
	if delta < 0 {
		delta = -delta
	}
	if delta <= d.window {
		// Differing content with no timestamp basis to pick a winner.
		// Guessing wrong here is silent data loss, so we refuse.
		return ActionConflict, nil
	}

	if rec.SourceMtime.After(rec.TargetMtime) {
		return ActionCopyToVault, nil
	}
	return ActionCopyToRepo, nil
}

// ListFiles enumerates the non-ignored files under dir that match the
// given doublestar patterns, keyed by slash-separated relative path. A
// missing dir yields an empty set.
func ListFiles(dir string, patterns []string, ignore *IgnoreMatcher, logger *loggy.Logger) (map[string]struct{}, error) {
	files := make(map[string]struct{})

	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return files, nil
		}
		return nil, err
	}

	err := filepath.WalkDir(dir, func(p string, entry os.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtree; skip it rather than failing the pair.
			logger.Warn("Skipping unreadable path", "path", p, "error", err)
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if entry.IsDir() {
			if p != dir && ignore.ShouldIgnore(p) {
				return filepath.SkipDir
			}
			return nil
		}

		if ignore.ShouldIgnore(p) {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if matchesPattern(rel, patterns) {
			files[rel] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// matchesPattern reports whether the relative path matches any pattern.
func matchesPattern(rel string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}
