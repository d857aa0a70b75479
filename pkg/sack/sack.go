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

// Package sack holds the package corpus a query runs against: repositories
// of package records, their visibility, and reverse relation lookups.
package sack

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/chainguard-dev/clog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Sack is an ordered set of repositories. Mutating a Sack while queries
// over it are evaluating is not supported.
type Sack struct {
	repos  []*Repository
	byName map[string]*Repository

	// generation changes on every mutation; derived views are rebuilt
	// lazily when it moves.
	generation uint64
	viewGen    uint64
	visible    []*Package
	pos        map[*Package]int
	relations  *RelationIndex
}

// New returns an empty Sack.
func New() *Sack {
	return &Sack{
		byName:     map[string]*Repository{},
		generation: 1,
	}
}

// Load appends a repository. Repository names are unique, only one
// repository may play the system role, and a repository belongs to at most
// one Sack.
func (s *Sack) Load(ctx context.Context, repo *Repository) error {
	if repo == nil {
		return errors.New("loading repository: repository is nil")
	}

	ctx, span := otel.Tracer("pkgq").Start(ctx, "Load", trace.WithAttributes(
		attribute.String("repository", repo.Name()),
		attribute.Int("packages", repo.Len()),
	))
	defer span.End()

	if _, ok := s.byName[repo.Name()]; ok {
		return fmt.Errorf("loading repository %s: %w", repo.Name(), ErrDuplicateRepository)
	}
	if repo.owner != nil {
		return fmt.Errorf("loading repository %s: %w", repo.Name(), ErrRepositoryInUse)
	}
	if repo.System() {
		if sys := s.System(); sys != nil {
			return fmt.Errorf("loading repository %s, %s is already the system repository: %w", repo.Name(), sys.Name(), ErrMultipleSystemRepositories)
		}
	}

	repo.owner = s
	s.repos = append(s.repos, repo)
	s.byName[repo.Name()] = repo
	s.generation++

	clog.FromContext(ctx).Infof("loaded repository %s (%s) with %d packages", repo.Name(), repo.Role(), repo.Len())
	return nil
}

// Enable makes the named repository visible to queries.
func (s *Sack) Enable(name string) error { return s.setEnabled(name, true) }

// Disable hides the named repository from queries. Results already computed
// by existing queries are not affected.
func (s *Sack) Disable(name string) error { return s.setEnabled(name, false) }

func (s *Sack) setEnabled(name string, enabled bool) error {
	repo, ok := s.byName[name]
	if !ok {
		return fmt.Errorf("repository %s: %w", name, ErrUnknownRepository)
	}
	if repo.enabled != enabled {
		repo.enabled = enabled
		s.generation++
	}
	return nil
}

// Generation identifies the current state of the Sack.
func (s *Sack) Generation() uint64 { return s.generation }

// Repository returns the named repository or nil.
func (s *Sack) Repository(name string) *Repository { return s.byName[name] }

// Repositories returns the repositories in load order.
func (s *Sack) Repositories() []*Repository { return slices.Clone(s.repos) }

// System returns the system repository, or nil when none was loaded.
func (s *Sack) System() *Repository {
	for _, r := range s.repos {
		if r.System() {
			return r
		}
	}
	return nil
}

// Installed returns the packages of the system repository when it exists and
// is enabled.
func (s *Sack) Installed() []*Package {
	sys := s.System()
	if sys == nil || !sys.Enabled() {
		return nil
	}
	return sys.pkgs
}

func (s *Sack) refresh() {
	if s.viewGen == s.generation {
		return
	}
	s.visible = nil
	for _, r := range s.repos {
		if r.enabled {
			s.visible = append(s.visible, r.pkgs...)
		}
	}
	s.pos = make(map[*Package]int, len(s.visible))
	for i, p := range s.visible {
		s.pos[p] = i
	}
	s.relations = nil
	s.viewGen = s.generation
}

// Packages returns the visible packages: those of enabled repositories, in
// load order and then repository order. The returned slice is shared and
// must not be modified.
func (s *Sack) Packages() []*Package {
	s.refresh()
	return s.visible
}

// SortPackages orders pkgs by their position within Packages. Packages that
// are not visible sort last, in their original order.
func (s *Sack) SortPackages(pkgs []*Package) {
	s.refresh()
	slices.SortStableFunc(pkgs, func(a, b *Package) int {
		ia, oka := s.pos[a]
		ib, okb := s.pos[b]
		switch {
		case oka && okb:
			return ia - ib
		case oka:
			return -1
		case okb:
			return 1
		default:
			return 0
		}
	})
}

// Relations returns the reverse relation index over the visible packages.
func (s *Sack) Relations() *RelationIndex {
	s.refresh()
	if s.relations == nil {
		s.relations = newRelationIndex(s.visible)
	}
	return s.relations
}
