// Copyright 2025 Chainguard, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config describes a corpus of repositories in YAML and assembles a
// sack from it.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chainguard-dev/clog"
	"go.lsp.dev/uri"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/sets"

	"chainguard.dev/pkgq/pkg/index"
	"chainguard.dev/pkgq/pkg/sack"
)

// Repository names one repository of the corpus and where its packages come
// from.
type Repository struct {
	// Required: The name of the repository, used by the reponame filter.
	Name string `json:"name" yaml:"name"`
	// Optional: Path to the index, plain or a gzip'd tarball. Relative paths
	// are resolved against the directory of the configuration file.
	Index string `json:"index,omitempty" yaml:"index,omitempty"`
	// Optional: Paths to .PKGINFO package descriptors added after the
	// packages of the index. A repository needs an index, packages, or both.
	Packages []string `json:"packages,omitempty" yaml:"packages,omitempty"`
	// Optional: Whether this repository holds the installed packages.
	System bool `json:"system,omitempty" yaml:"system,omitempty"`
	// Optional: Whether the repository takes part in queries. Defaults to true.
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// IsEnabled reports the effective enabled state.
func (r Repository) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// Configuration is the corpus configuration.
type Configuration struct {
	// Repositories in load order. Query results are ordered by this order.
	Repositories []Repository `json:"repositories" yaml:"repositories"`

	dir string
}

// Load reads a configuration file.
func (c *Configuration) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read configuration file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	c.dir = filepath.Dir(path)
	return nil
}

// Validate checks that repository names are present and unique, that every
// repository has a source of packages, and that at most one is the system
// repository.
func (c *Configuration) Validate() error {
	if len(c.Repositories) == 0 {
		return errors.New("configuration has no repositories")
	}

	seen := sets.New[string]()
	system := ""
	for i, repo := range c.Repositories {
		if repo.Name == "" {
			return fmt.Errorf("repository %d has no name", i)
		}
		if seen.Has(repo.Name) {
			return fmt.Errorf("repository %q: %w", repo.Name, sack.ErrDuplicateRepository)
		}
		seen.Insert(repo.Name)

		if repo.Index == "" && len(repo.Packages) == 0 {
			return fmt.Errorf("repository %q has no index or packages", repo.Name)
		}
		if repo.System {
			if system != "" {
				return fmt.Errorf("repositories %q and %q: %w", system, repo.Name, sack.ErrMultipleSystemRepositories)
			}
			system = repo.Name
		}
	}
	return nil
}

// IndexPath resolves the index path of repo, or returns "" when repo has no
// index.
func (c *Configuration) IndexPath(repo Repository) string {
	if repo.Index == "" {
		return ""
	}
	return c.resolve(repo.Index)
}

// PackagePaths resolves the package descriptor paths of repo.
func (c *Configuration) PackagePaths(repo Repository) []string {
	paths := make([]string, 0, len(repo.Packages))
	for _, p := range repo.Packages {
		paths = append(paths, c.resolve(p))
	}
	return paths
}

// resolve makes path absolute against the configuration directory. Paths may
// also be given as file:// URIs.
func (c *Configuration) resolve(path string) string {
	if strings.HasPrefix(path, "file://") {
		path = uri.URI(path).Filename()
	}
	if filepath.IsAbs(path) || c.dir == "" {
		return path
	}
	return filepath.Join(c.dir, path)
}

// Sack validates the configuration, reads the packages of every repository
// concurrently and loads the repositories into a new sack in configuration
// order.
func (c *Configuration) Sack(ctx context.Context) (*sack.Sack, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	log := clog.FromContext(ctx)

	indexes := make([]*index.Index, len(c.Repositories))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, repo := range c.Repositories {
		eg.Go(func() error {
			idx, err := c.loadIndex(egCtx, repo)
			if err != nil {
				return fmt.Errorf("repository %q: %w", repo.Name, err)
			}
			indexes[i] = idx
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	s := sack.New()
	for i, cfg := range c.Repositories {
		role := sack.RoleAvailable
		if cfg.System {
			role = sack.RoleSystem
		}
		repo, err := indexes[i].Repository(cfg.Name, sack.WithRole(role))
		if err != nil {
			return nil, fmt.Errorf("repository %q: %w", cfg.Name, err)
		}
		if err := s.Load(ctx, repo); err != nil {
			return nil, err
		}
	}

	for _, cfg := range c.Repositories {
		if cfg.IsEnabled() {
			continue
		}
		if err := s.Disable(cfg.Name); err != nil {
			return nil, err
		}
		log.Debugf("repository %s disabled by configuration", cfg.Name)
	}
	return s, nil
}

// loadIndex reads the index of repo, if any, and appends its package
// descriptors.
func (c *Configuration) loadIndex(ctx context.Context, repo Repository) (*index.Index, error) {
	idx := new(index.Index)
	if path := c.IndexPath(repo); path != "" {
		var err error
		if idx, err = index.Load(ctx, path); err != nil {
			return nil, err
		}
	}
	for _, path := range c.PackagePaths(repo) {
		p, err := readPackageInfo(path)
		if err != nil {
			return nil, err
		}
		idx.Packages = append(idx.Packages, p)
	}
	return idx, nil
}

func readPackageInfo(path string) (*sack.Package, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open package descriptor: %w", err)
	}
	defer f.Close()

	p, err := index.ParsePackageInfo(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}
