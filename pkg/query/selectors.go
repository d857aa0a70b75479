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

package query

import (
	"k8s.io/apimachinery/pkg/util/sets"

	"chainguard.dev/pkgq/pkg/arch"
	"chainguard.dev/pkgq/pkg/evr"
	"chainguard.dev/pkgq/pkg/sack"
)

type latestKey struct {
	name, arch string
}

type latestGroup struct {
	best    evr.EVR
	members []*sack.Package
}

// selectLatest keeps, per name (or name and arch), every package at the
// group's highest version. Groups come out in order of first appearance.
func selectLatest(pkgs []*sack.Package, perArch bool) []*sack.Package {
	var order []latestKey
	groups := map[latestKey]*latestGroup{}
	for _, p := range pkgs {
		k := latestKey{name: p.Name}
		if perArch {
			k.arch = p.Arch
		}
		g, ok := groups[k]
		if !ok {
			groups[k] = &latestGroup{best: p.EVR(), members: []*sack.Package{p}}
			order = append(order, k)
			continue
		}
		switch c := evr.Compare(p.EVR(), g.best); {
		case c > 0:
			g.best, g.members = p.EVR(), []*sack.Package{p}
		case c == 0:
			g.members = append(g.members, p)
		}
	}

	out := make([]*sack.Package, 0, len(order))
	for _, k := range order {
		out = append(out, groups[k].members...)
	}
	return out
}

func byName(pkgs []*sack.Package) map[string][]*sack.Package {
	out := map[string][]*sack.Package{}
	for _, p := range pkgs {
		out[p.Name] = append(out[p.Name], p)
	}
	return out
}

// replaceable reports whether some package in others has p's name, a
// compatible arch and a version on the wanted side of p's.
func replaceable(p *sack.Package, others []*sack.Package, wantSign int) bool {
	for _, o := range others {
		if !arch.Compatible(p.Arch, o.Arch) {
			continue
		}
		c := evr.Compare(p.EVR(), o.EVR())
		if (wantSign > 0 && c > 0) || (wantSign < 0 && c < 0) {
			return true
		}
	}
	return false
}

// selectUpDown applies an upgrade or downgrade criterion. The installed
// baseline is the visible system repository, narrowed to restrict when set.
func selectUpDown(s *sack.Sack, candidates []*sack.Package, key Key, restrict sets.Set[*sack.Package]) []*sack.Package {
	var installed, available []*sack.Package
	for _, p := range s.Installed() {
		if restrict == nil || restrict.Has(p) {
			installed = append(installed, p)
		}
	}
	for _, p := range s.Packages() {
		if !p.Installed() {
			available = append(available, p)
		}
	}
	installedByName, availableByName := byName(installed), byName(available)

	out := make([]*sack.Package, 0, len(candidates))
	for _, p := range candidates {
		var keep bool
		switch key {
		case KeyUpgradable:
			keep = p.Installed() && replaceable(p, availableByName[p.Name], -1)
		case KeyDowngradable:
			keep = p.Installed() && replaceable(p, availableByName[p.Name], 1)
		case KeyUpgrades:
			keep = !p.Installed() && replaceable(p, installedByName[p.Name], 1)
		case KeyDowngrade:
			keep = !p.Installed() && replaceable(p, installedByName[p.Name], -1)
		}
		if keep {
			out = append(out, p)
		}
	}
	return out
}
