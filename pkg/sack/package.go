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
	"strconv"
	"time"

	purl "github.com/package-url/packageurl-go"

	"chainguard.dev/pkgq/pkg/evr"
)

// Package describes a single package record. A Package must not be modified
// once it has been added to a Repository.
type Package struct {
	Name    string
	Epoch   uint64
	Version string
	Release string
	Arch    string

	Summary     string
	Description string
	URL         string
	License     string
	SourceRPM   string
	Location    string
	Files       []string

	Provides  []Relation
	Requires  []Relation
	Obsoletes []Relation
	Conflicts []Relation

	Checksum  []byte
	BuildTime time.Time

	repo *Repository
}

// EVR returns the package's epoch, version and release.
func (p *Package) EVR() evr.EVR {
	return evr.EVR{Epoch: p.Epoch, Version: p.Version, Release: p.Release}
}

// String returns the NEVRA of the package, name-[epoch:]version-release.arch.
func (p *Package) String() string {
	return p.Name + "-" + p.EVR().String() + "." + p.Arch
}

// SelfProvide is the implicit "name = evr" every package provides.
func (p *Package) SelfProvide() Relation {
	return Relation{Name: p.Name, Op: OpEQ, EVR: p.EVR()}
}

// Relations returns the explicit relations of the given kind.
func (p *Package) Relations(kind Kind) []Relation {
	switch kind {
	case KindProvides:
		return p.Provides
	case KindRequires:
		return p.Requires
	case KindObsoletes:
		return p.Obsoletes
	case KindConflicts:
		return p.Conflicts
	default:
		return nil
	}
}

// AllProvides returns the explicit provides followed by the self-provide.
func (p *Package) AllProvides() []Relation {
	out := make([]Relation, 0, len(p.Provides)+1)
	out = append(out, p.Provides...)
	return append(out, p.SelfProvide())
}

// Copy returns a copy of p that belongs to no repository.
func (p *Package) Copy() *Package {
	cp := *p
	cp.repo = nil
	return &cp
}

// Repository returns the repository the package belongs to, or nil.
func (p *Package) Repository() *Repository { return p.repo }

// RepoName returns the name of the owning repository, or "".
func (p *Package) RepoName() string {
	if p.repo == nil {
		return ""
	}
	return p.repo.Name()
}

// Installed reports whether the package belongs to the system repository.
func (p *Package) Installed() bool {
	return p.repo != nil && p.repo.System()
}

// PackageURL renders the package as an rpm package URL.
func (p *Package) PackageURL(namespace string) string {
	version := p.Version
	if p.Release != "" {
		version += "-" + p.Release
	}
	qualifiers := map[string]string{"arch": p.Arch}
	if p.Epoch != 0 {
		qualifiers["epoch"] = strconv.FormatUint(p.Epoch, 10)
	}
	if repo := p.RepoName(); repo != "" {
		qualifiers["repository_id"] = repo
	}
	return purl.NewPackageURL(purl.TypeRPM, namespace, p.Name, version, purl.QualifiersFromMap(qualifiers), "").ToString()
}
