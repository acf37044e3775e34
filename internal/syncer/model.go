// Package syncer implements bidirectional synchronization between
// documentation trees living in project repositories and their mirrors
// inside an Obsidian vault.
package syncer

import (
	"fmt"
	"path/filepath"
	"time"
)

// Environment selects which folder mapping applies to a sync pair.
type Environment string

const (
	EnvProduction  Environment = "production"
	EnvDevelopment Environment = "development"
	EnvCompany     Environment = "company"
)

// Vault layout conventions. These mirror the directory structure of
// existing vaults and must not change without a migration of those trees.
const (
	vaultProductsArea = "02-PRODUCTS"
	vaultProjectsArea = "06-PROJECTS"
	vaultCompanyArea  = "01-COMPANY"

	docsProductionDir  = "docs/master-production"
	docsDevelopmentDir = "docs/master-development"
	docsCompanyDir     = "docs/master"
)

// SyncPair identifies one directory-to-directory relationship under sync.
// Pairs are rebuilt by the Discoverer on every pass and are immutable for
// the duration of that pass.
type SyncPair struct {
	Org         string      // owning organization or "companies"
	Project     string      // project name, or the company name for company pairs
	Environment Environment // selects the naming convention
	SourceDir   string      // absolute path of the repo-side docs tree
	TargetDir   string      // absolute path of the vault-side mirror
	Branch      string      // current git branch of the project repo, if any
}

// Name returns the pair identity used in logs, results and the state file,
// e.g. "thalamus-ai/synaptica" or "companies/Thalamus".
func (p SyncPair) Name() string {
	return p.Org + "/" + p.Project
}

// Key returns the identity used for last-sync bookkeeping,
// e.g. "thalamus-ai/synaptica:production".
func (p SyncPair) Key() string {
	return fmt.Sprintf("%s:%s", p.Name(), p.Environment)
}

// FileRecord captures the observed state of one relative path on both
// sides of a pair. Built fresh from filesystem reads, never persisted.
type FileRecord struct {
	RelPath     string
	SourcePath  string
	TargetPath  string
	InSource    bool
	InTarget    bool
	SourceHash  string
	TargetHash  string
	SourceMtime time.Time
	TargetMtime time.Time
}

// Action is the closed set of outcomes the decision procedure can produce
// for a single file. The Executor switches exhaustively over these values.
type Action int

const (
	// ActionSkip leaves both sides untouched.
	ActionSkip Action = iota

	// ActionCopyToVault copies the repo-side file to the vault.
	ActionCopyToVault

	// ActionCopyToRepo copies the vault-side file back into the repo.
	ActionCopyToRepo

	// ActionDeleteTarget propagates a repo-side deletion to the vault.
	ActionDeleteTarget

	// ActionDeleteSource propagates a vault-side deletion to the repo.
	ActionDeleteSource

	// ActionConflict marks a file that differs on both sides with no
	// timestamp basis to pick a winner. Never resolved automatically.
	ActionConflict
)

// String returns a human-readable label for the action.
func (a Action) String() string {
	switch a {
	case ActionSkip:
		return "skip"
	case ActionCopyToVault:
		return "repo-to-vault"
	case ActionCopyToRepo:
		return "vault-to-repo"
	case ActionDeleteTarget:
		return "delete-target"
	case ActionDeleteSource:
		return "delete-source"
	case ActionConflict:
		return "conflict"
	default:
		return fmt.Sprintf("unknown(%d)", int(a))
	}
}

// Change is one decided action for one relative path within a pair.
type Change struct {
	RelPath    string
	SourcePath string
	TargetPath string
	Action     Action
}

// Filename returns just the filename portion of the relative path.
func (c Change) Filename() string {
	return filepath.Base(c.RelPath)
}

// SyncResult accumulates the outcome of syncing one pair in one pass.
type SyncResult struct {
	ID          string      `json:"id"` // pair-scoped ULID correlating log lines
	Pair        string      `json:"pair"`
	Environment Environment `json:"environment"`
	Branch      string      `json:"branch,omitempty"`
	Synced      int         `json:"files_synced"`
	Skipped     int         `json:"files_skipped"`
	Conflicted  int         `json:"files_conflicted"`
	Errors      []string    `json:"errors,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

// Summary aggregates the results of one full pass across all pairs.
type Summary struct {
	RunID      string
	Results    []SyncResult
	Synced     int
	Skipped    int
	Conflicted int
	Errored    int
	Started    time.Time
	Duration   time.Duration
}

// Add folds a pair result into the aggregate counters.
func (s *Summary) Add(r SyncResult) {
	s.Results = append(s.Results, r)
	s.Synced += r.Synced
	s.Skipped += r.Skipped
	s.Conflicted += r.Conflicted
	s.Errored += len(r.Errors)
}
