package syncer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"

	"github.com/tildaslashalef/vaultsync/internal/config"
	"github.com/tildaslashalef/vaultsync/internal/loggy"
)

// Discoverer walks the configured organization and company roots and
// enumerates the concrete sync pairs for one pass. Discovery never mutates
// the filesystem; missing roots simply contribute no pairs.
type Discoverer struct {
	cfg    config.SyncConfig
	logger *loggy.Logger
}

// NewDiscoverer creates a new pair discoverer.
func NewDiscoverer(cfg config.SyncConfig, logger *loggy.Logger) *Discoverer {
	return &Discoverer{
		cfg:    cfg,
		logger: logger,
	}
}

// Discover enumerates every sync pair under the configured roots. Given
// the same filesystem state it returns the same pairs in the same order:
// organizations sorted, then projects sorted within each, then companies
// sorted.
func (d *Discoverer) Discover() []SyncPair {
	var pairs []SyncPair

	orgs := make([]string, len(d.cfg.Orgs))
	copy(orgs, d.cfg.Orgs)
	sort.Strings(orgs)

	for _, org := range orgs {
		orgPath := filepath.Join(d.cfg.RepoBase, org)
		if _, err := os.Stat(orgPath); err != nil {
			d.logger.Warn("Organization root not found", "org", org, "path", orgPath)
			continue
		}
		pairs = append(pairs, d.discoverOrg(org)...)
	}

	companies := make([]string, 0, len(d.cfg.Companies))
	for name := range d.cfg.Companies {
		companies = append(companies, name)
	}
	sort.Strings(companies)

	for _, company := range companies {
		if pair, ok := d.companyPair(company); ok {
			pairs = append(pairs, pair)
		}
	}

	return pairs
}

// DiscoverOrg enumerates the pairs of a single organization.
func (d *Discoverer) DiscoverOrg(org string) ([]SyncPair, error) {
	orgPath := filepath.Join(d.cfg.RepoBase, org)
	if _, err := os.Stat(orgPath); err != nil {
		return nil, fmt.Errorf("organization not found: %s", orgPath)
	}
	return d.discoverOrg(org), nil
}

// DiscoverProject enumerates the pairs of a single org/project.
func (d *Discoverer) DiscoverProject(org, project string) ([]SyncPair, error) {
	projectPath := filepath.Join(d.cfg.RepoBase, org, project)
	if _, err := os.Stat(projectPath); err != nil {
		return nil, fmt.Errorf("project not found: %s", projectPath)
	}

	pairs := d.projectPairs(org, projectPath)
	if len(pairs) == 0 {
		return nil, fmt.Errorf("no docs folders found under %s", projectPath)
	}
	return pairs, nil
}

// discoverOrg lists immediate subdirectories of the org root; a
// subdirectory qualifies when it carries a production and/or development
// docs folder.
func (d *Discoverer) discoverOrg(org string) []SyncPair {
	orgPath := filepath.Join(d.cfg.RepoBase, org)

	entries, err := os.ReadDir(orgPath)
	if err != nil {
		d.logger.Warn("Could not list organization", "org", org, "error", err)
		return nil
	}

	var pairs []SyncPair
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		pairs = append(pairs, d.projectPairs(org, filepath.Join(orgPath, entry.Name()))...)
	}

	return pairs
}

// projectPairs yields up to two pairs for one project directory, one per
// environment whose docs folder exists.
func (d *Discoverer) projectPairs(org, projectPath string) []SyncPair {
	project := filepath.Base(projectPath)
	vaultFolder := d.vaultFolder(org)
	branch := headBranch(projectPath)

	var pairs []SyncPair

	prodDir := filepath.Join(projectPath, filepath.FromSlash(docsProductionDir))
	if _, err := os.Stat(prodDir); err == nil {
		pairs = append(pairs, SyncPair{
			Org:         org,
			Project:     project,
			Environment: EnvProduction,
			SourceDir:   prodDir,
			TargetDir:   filepath.Join(d.cfg.VaultBase, vaultFolder, vaultProductsArea, project, "master"),
			Branch:      branch,
		})
	}

	devDir := filepath.Join(projectPath, filepath.FromSlash(docsDevelopmentDir))
	if _, err := os.Stat(devDir); err == nil {
		pairs = append(pairs, SyncPair{
			Org:         org,
			Project:     project,
			Environment: EnvDevelopment,
			SourceDir:   devDir,
			TargetDir:   filepath.Join(d.cfg.VaultBase, vaultFolder, vaultProjectsArea, project, "master"),
			Branch:      branch,
		})
	}

	return pairs
}

// companyPair yields the single company pair when the company's master
// docs folder exists.
func (d *Discoverer) companyPair(company string) (SyncPair, bool) {
	sourceDir := filepath.Join(d.cfg.CompaniesBase, company, filepath.FromSlash(docsCompanyDir))
	if _, err := os.Stat(sourceDir); err != nil {
		d.logger.Debug("Company docs not found", "company", company, "path", sourceDir)
		return SyncPair{}, false
	}

	vaultFolder := d.cfg.Companies[company]
	return SyncPair{
		Org:         "companies",
		Project:     company,
		Environment: EnvCompany,
		SourceDir:   sourceDir,
		TargetDir:   filepath.Join(d.cfg.VaultBase, vaultFolder, vaultCompanyArea, "master"),
	}, true
}

// vaultFolder maps an organization to its vault folder, defaulting to the
// organization's own name.
func (d *Discoverer) vaultFolder(org string) string {
	if folder, ok := d.cfg.VaultFolders[org]; ok {
		return folder
	}
	return org
}

// headBranch returns the current branch of the git repository at path, or
// the empty string when path is not a repository or HEAD is detached.
func headBranch(path string) string {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return ""
	}

	head, err := repo.Head()
	if err != nil || !head.Name().IsBranch() {
		return ""
	}

	return head.Name().Short()
}
