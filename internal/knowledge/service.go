package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tildaslashalef/vaultsync/internal/config"
	"github.com/tildaslashalef/vaultsync/internal/loggy"
	"github.com/tildaslashalef/vaultsync/internal/syncer"
	"github.com/tildaslashalef/vaultsync/internal/ulid"
)

// Service mirrors the repo-side docs of every discovered pair into an
// Open WebUI knowledge collection. It keeps its own state document
// (local path → remote file ID and content hash) so unchanged files are
// skipped and locally deleted files are detached remotely.
type Service struct {
	cfg      config.KnowledgeConfig
	client   *Client
	disc     *syncer.Discoverer
	patterns []string
	ignore   *syncer.IgnoreMatcher
	logger   *loggy.Logger
}

// MirrorOptions selects the scope and behavior of one mirroring run.
type MirrorOptions struct {
	Org     string
	Project string
	DryRun  bool
}

// NewService creates the knowledge mirror service.
func NewService(cfg *config.Config, disc *syncer.Discoverer, logger *loggy.Logger) *Service {
	return &Service{
		cfg:      cfg.Knowledge,
		client:   NewClient(cfg.Knowledge, logger),
		disc:     disc,
		patterns: cfg.Sync.Patterns,
		ignore:   syncer.NewIgnoreMatcher(cfg.Sync.IgnorePatterns...),
		logger:   logger,
	}
}

// List returns all remote knowledge collections.
func (s *Service) List(ctx context.Context) ([]KnowledgeBase, error) {
	return s.client.ListKnowledge(ctx)
}

// Mirror runs one mirroring pass over the selected pairs, persisting the
// upload state once at the end.
func (s *Service) Mirror(ctx context.Context, opts MirrorOptions) (*MirrorSummary, error) {
	if !s.cfg.Enabled {
		return nil, fmt.Errorf("knowledge mirroring is disabled (no API key configured)")
	}

	pairs, err := s.selectPairs(opts)
	if err != nil {
		return nil, err
	}

	targets, err := LoadTargets(s.cfg.TargetsFile)
	if err != nil {
		return nil, err
	}

	summary := &MirrorSummary{
		RunID:   ulid.RunID(),
		Started: time.Now(),
	}

	state := s.loadState()

	s.logger.Info("Starting knowledge mirror",
		"run_id", summary.RunID,
		"pairs", len(pairs),
		"dry_run", opts.DryRun,
	)

	for _, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		name, description := s.collectionFor(pair, targets)
		if name == "" {
			continue // skipped by targets file
		}
		summary.Add(s.mirrorPair(ctx, pair, name, description, state, opts.DryRun))
	}

	summary.Duration = time.Since(summary.Started)

	if !opts.DryRun {
		if err := s.saveState(state); err != nil {
			s.logger.Error("Could not persist upload state", "error", err)
			return summary, fmt.Errorf("persisting upload state: %w", err)
		}
	}

	s.logger.Info("Knowledge mirror finished",
		"run_id", summary.RunID,
		"uploaded", summary.Uploaded,
		"skipped", summary.Skipped,
		"removed", summary.Removed,
		"errors", summary.Errored,
		"duration", summary.Duration,
	)

	return summary, nil
}

// mirrorPair uploads changed files of one pair and detaches deleted ones.
func (s *Service) mirrorPair(ctx context.Context, pair syncer.SyncPair, name, description string, state map[string]remoteFile, dryRun bool) MirrorResult {
	result := MirrorResult{
		Pair:       pair.Key(),
		Collection: name,
	}

	log := s.logger.With("pair", pair.Name(), "collection", name)

	files, err := syncer.ListFiles(pair.SourceDir, s.patterns, s.ignore, s.logger)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("listing %s: %v", pair.SourceDir, err))
		return result
	}

	kbID := ""
	if !dryRun {
		kbID, err = s.getOrCreateKnowledge(ctx, name, description)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			return result
		}
	}

	relPaths := make([]string, 0, len(files))
	for rel := range files {
		relPaths = append(relPaths, rel)
	}
	sort.Strings(relPaths)

	current := make(map[string]struct{}, len(relPaths))

	for _, rel := range relPaths {
		abs := filepath.Join(pair.SourceDir, filepath.FromSlash(rel))
		current[abs] = struct{}{}

		hash := syncer.Fingerprint(abs)
		if hash == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: unreadable file", rel))
			continue
		}

		// In dry-run mode the collection is never resolved, so the hash
		// match alone decides whether an upload would happen.
		known, ok := state[abs]
		if ok && known.Hash == hash && (dryRun || known.KnowledgeID == kbID) {
			result.Skipped++
			continue
		}

		if dryRun {
			log.Info("[dry-run] Would upload", "file", rel)
			result.Uploaded++
			continue
		}

		fileID, err := s.uploadAndLink(ctx, kbID, abs, known)
		if err != nil {
			log.Error("Upload failed", "file", rel, "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", rel, err))
			continue
		}

		state[abs] = remoteFile{
			Hash:        hash,
			FileID:      fileID,
			KnowledgeID: kbID,
			UploadedAt:  time.Now(),
		}
		result.Uploaded++
		log.Info("Uploaded", "file", rel, "upload_id", ulid.UploadID(), "file_id", fileID)
	}

	// Detach files that vanished locally since the last run.
	prefix := pair.SourceDir + string(os.PathSeparator)
	for abs, known := range state {
		if !strings.HasPrefix(abs, prefix) {
			continue
		}
		if _, ok := current[abs]; ok {
			continue
		}

		if dryRun {
			log.Info("[dry-run] Would remove", "file", filepath.Base(abs))
			result.Removed++
			continue
		}

		if err := s.client.RemoveFileFromKnowledge(ctx, known.KnowledgeID, known.FileID); err != nil {
			log.Warn("Could not detach deleted file", "file", abs, "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", abs, err))
			continue
		}
		delete(state, abs)
		result.Removed++
		log.Info("Removed", "file", filepath.Base(abs))
	}

	return result
}

// uploadAndLink pushes one file and links it into the collection. When a
// previous remote copy exists it is detached first so the collection never
// holds two versions of the same document.
func (s *Service) uploadAndLink(ctx context.Context, kbID, path string, previous remoteFile) (string, error) {
	if previous.FileID != "" && previous.KnowledgeID != "" {
		if err := s.client.RemoveFileFromKnowledge(ctx, previous.KnowledgeID, previous.FileID); err != nil {
			// The stale copy stays behind but the fresh one still wins.
			s.logger.Warn("Could not detach previous version", "file", path, "error", err)
		}
	}

	fileID, err := s.client.UploadFile(ctx, path)
	if err != nil {
		return "", err
	}

	if err := s.client.AddFileToKnowledge(ctx, kbID, fileID); err != nil {
		return "", err
	}

	return fileID, nil
}

// getOrCreateKnowledge finds a collection by name or creates it.
func (s *Service) getOrCreateKnowledge(ctx context.Context, name, description string) (string, error) {
	existing, err := s.client.ListKnowledge(ctx)
	if err != nil {
		return "", err
	}

	for _, kb := range existing {
		if kb.Name == name {
			return kb.ID, nil
		}
	}

	kb, err := s.client.CreateKnowledge(ctx, name, description)
	if err != nil {
		return "", err
	}

	s.logger.Info("Created knowledge collection", "name", name, "id", kb.ID)
	return kb.ID, nil
}

// collectionFor derives the collection name and description for a pair,
// honoring overrides from the targets file. An empty name means skip.
func (s *Service) collectionFor(pair syncer.SyncPair, targets map[string]Target) (string, string) {
	if t, ok := targets[pair.Key()]; ok {
		if t.Skip {
			return "", ""
		}
		if t.Name != "" {
			return t.Name, t.Description
		}
	}

	project := strings.ToUpper(pair.Project)
	switch pair.Environment {
	case syncer.EnvProduction:
		return project + " - Production", fmt.Sprintf("Locked production docs for %s", pair.Name())
	case syncer.EnvDevelopment:
		return project + " - Development", fmt.Sprintf("Working development docs for %s", pair.Name())
	default:
		return pair.Project + " - Company Docs", fmt.Sprintf("Company documentation for %s", pair.Project)
	}
}

// selectPairs resolves the run scope to a concrete pair list.
func (s *Service) selectPairs(opts MirrorOptions) ([]syncer.SyncPair, error) {
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

// uploadStateDocument is the on-disk shape of the upload state.
type uploadStateDocument struct {
	Files map[string]remoteFile `json:"files"`
}

// loadState reads the upload state, degrading to empty on any problem.
func (s *Service) loadState() map[string]remoteFile {
	data, err := os.ReadFile(s.cfg.StatePath)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Could not read upload state, starting empty", "error", err)
		}
		return make(map[string]remoteFile)
	}

	var doc uploadStateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("Could not parse upload state, starting empty", "error", err)
		return make(map[string]remoteFile)
	}
	if doc.Files == nil {
		return make(map[string]remoteFile)
	}
	return doc.Files
}

// saveState writes the upload state back to disk.
func (s *Service) saveState(files map[string]remoteFile) error {
	data, err := json.MarshalIndent(uploadStateDocument{Files: files}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling upload state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.cfg.StatePath), 0755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	return os.WriteFile(s.cfg.StatePath, data, 0644)
}
