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

package sack

import (
	"errors"
	"fmt"
	"slices"
)

// SystemRepoName is the conventional name of the installed-package repository.
const SystemRepoName = "@System"

// Role is the part a repository plays in the corpus.
type Role int

const (
	// RoleAvailable repositories hold packages that could be installed.
	RoleAvailable Role = iota
	// RoleSystem marks the repository of installed packages. A Sack holds
	// at most one.
	RoleSystem
)

func (r Role) String() string {
	switch r {
	case RoleAvailable:
		return "available"
	case RoleSystem:
		return "system"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Repository is a named, ordered collection of packages.
type Repository struct {
	name    string
	role    Role
	enabled bool
	pkgs    []*Package

	owner *Sack
}

type repoOpts struct {
	role    Role
	enabled bool
}

// RepositoryOption configures NewRepository.
type RepositoryOption func(*repoOpts) error

// WithRole sets the role of the repository. The default is RoleAvailable.
func WithRole(role Role) RepositoryOption {
	return func(o *repoOpts) error {
		if role != RoleAvailable && role != RoleSystem {
			return fmt.Errorf("unknown repository role %d", role)
		}
		o.role = role
		return nil
	}
}

// WithEnabled sets the initial enabled state. Repositories start enabled.
func WithEnabled(enabled bool) RepositoryOption {
	return func(o *repoOpts) error {
		o.enabled = enabled
		return nil
	}
}

// NewRepository creates a repository owning pkgs. A package can only belong
// to one repository.
func NewRepository(name string, pkgs []*Package, options ...RepositoryOption) (*Repository, error) {
	if name == "" {
		return nil, errors.New("repository name must not be empty")
	}
	o := repoOpts{role: RoleAvailable, enabled: true}
	for _, opt := range options {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}

	r := &Repository{
		name:    name,
		role:    o.role,
		enabled: o.enabled,
		pkgs:    make([]*Package, 0, len(pkgs)),
	}
	for i, p := range pkgs {
		if p == nil {
			return nil, fmt.Errorf("repository %s: package %d is nil", name, i)
		}
		if p.repo != nil {
			return nil, fmt.Errorf("repository %s: package %s already belongs to repository %s", name, p, p.repo.name)
		}
		if p.Name == "" {
			return nil, fmt.Errorf("repository %s: package %d has no name", name, i)
		}
	}
	for _, p := range pkgs {
		p.repo = r
		r.pkgs = append(r.pkgs, p)
	}
	return r, nil
}

func (r *Repository) Name() string { return r.name }
func (r *Repository) Role() Role   { return r.role }

// System reports whether this is the installed-package repository.
func (r *Repository) System() bool { return r.role == RoleSystem }

func (r *Repository) Enabled() bool { return r.enabled }

// Packages returns the packages in repository order.
func (r *Repository) Packages() []*Package { return slices.Clone(r.pkgs) }

func (r *Repository) Len() int { return len(r.pkgs) }

func (r *Repository) String() string { return r.name }
