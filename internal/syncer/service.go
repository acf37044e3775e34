package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/tildaslashalef/vaultsync/internal/config"
	"github.com/tildaslashalef/vaultsync/internal/loggy"
	"github.com/tildaslashalef/vaultsync/internal/ulid"
)

// Service orchestrates sync passes: discovery, per-pair diff and execute,
// result aggregation and state persistence. Passes are strictly
// sequential; there is no overlap between pairs or between passes.
type Service struct {
	cfg    *config.Config
	disc   *Discoverer
	differ *Differ
	logger *loggy.Logger
}

// RunOptions selects the scope and behavior of one pass.
type RunOptions struct {
	Org     string // restrict to one organization
	Project string // restrict to one project within Org
	DryRun  bool   // log intended actions without mutating anything
	Force   bool   // push every source-side file to the vault
}

// NewService creates the sync orchestrator.
func NewService(cfg *config.Config, logger *loggy.Logger) *Service {
	ignore := NewIgnoreMatcher(cfg.Sync.IgnorePatterns...)
	return &Service{
		cfg:    cfg,
		disc:   NewDiscoverer(cfg.Sync, logger),
		differ: NewDiffer(cfg.Sync.Patterns, ignore, cfg.Sync.ModTimeWindow, logger),
		logger: logger,
	}
}

// Discoverer exposes the pair discoverer for collaborators that mirror the
// same document set elsewhere.
func (s *Service) Discoverer() *Discoverer {
	return s.disc
}

// RunOnce executes one full pass over the selected pairs and persists the
// state store at the end. The context is honored between pairs.
func (s *Service) RunOnce(ctx context.Context, opts RunOptions) (*Summary, error) {
	pairs, err := s.selectPairs(opts)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		RunID:   ulid.RunID(),
		Started: time.Now(),
	}

	state := LoadStateStore(s.cfg.Sync.StatePath, s.logger)
	exec := NewExecutor(state, opts.DryRun, s.logger)

	s.logger.Info("Starting sync pass",
		"run_id", summary.RunID,
		"pairs", len(pairs),
		"dry_run", opts.DryRun,
		"force", opts.Force,
	)

	for _, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Add(s.syncPair(pair, state, exec, opts))
	}

	summary.Duration = time.Since(summary.Started)

	if !opts.DryRun {
		if err := state.Save(); err != nil {
			s.logger.Error("Could not persist sync state", "error", err)
			return summary, fmt.Errorf("persisting state: %w", err)
		}
	}

	s.logger.Info("Sync pass finished",
		"run_id", summary.RunID,
		"synced", summary.Synced,
		"skipped", summary.Skipped,
		"conflicts", summary.Conflicted,
		"errors", summary.Errored,
		"duration", summary.Duration,
	)

	return summary, nil
}

// Watch repeats full passes on a fixed interval until the context is
// cancelled. Cancellation is honored at the sleep boundary and between
// pairs; an interrupted copy is healed by the next pass's hash comparison.
func (s *Service) Watch(ctx context.Context, opts RunOptions) error {
	interval := s.cfg.Sync.Interval
	s.logger.Info("Watching for changes", "interval", interval)

	for {
		if _, err := s.RunOnce(ctx, opts); err != nil && err != context.Canceled {
			s.logger.Error("Sync pass failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// LastSyncTimes reads the persisted per-pair timestamps without performing
// a sync.
func (s *Service) LastSyncTimes() map[string]time.Time {
	return LoadStateStore(s.cfg.Sync.StatePath, s.logger).LastSyncTimes()
}

// selectPairs resolves the run scope to a concrete pair list.
func (s *Service) selectPairs(opts RunOptions) ([]SyncPair, error) {
	switch {
	case opts.Project != "":
		if opts.Org == "" {
			return nil, fmt.Errorf("project filter requires an organization")
		}
		return s.disc.DiscoverProject(opts.Org, opts.Project)
	case opts.Org != "":
		return s.disc.DiscoverOrg(opts.Org)
	default:
		return s.disc.Discover(), nil
	}
}

// syncPair diffs and executes one pair, returning its result. Per-file
// errors are collected, never aborting the pair.
func (s *Service) syncPair(pair SyncPair, state *StateStore, exec *Executor, opts RunOptions) SyncResult {
	result := SyncResult{
		ID:          ulid.PairID(),
		Pair:        pair.Name(),
		Environment: pair.Environment,
		Branch:      pair.Branch,
		Timestamp:   time.Now(),
	}

	log := s.logger.With("pair", pair.Name(), "env", string(pair.Environment), "pair_id", result.ID)
	log.Info("Syncing pair", "source", pair.SourceDir, "target", pair.TargetDir)

	changes, errs := s.differ.Diff(pair, state, DiffOptions{Force: opts.Force})
	result.Errors = append(result.Errors, errs...)

	for _, ch := range changes {
		switch ch.Action {
		case ActionSkip:
			result.Skipped++
		case ActionConflict:
			_ = exec.Execute(ch)
			result.Conflicted++
		default:
			if err := exec.Execute(ch); err != nil {
				log.Error("Sync action failed", "file", ch.RelPath, "error", err)
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", ch.RelPath, err))
				continue
			}
			result.Synced++
		}
	}

	if !opts.DryRun {
		state.TouchPair(pair.Key())
	}

	return result
}
