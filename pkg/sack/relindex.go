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
	"fmt"
	"slices"

	"k8s.io/apimachinery/pkg/util/sets"
)

// Kind selects one of a package's relation lists.
type Kind int

const (
	KindProvides Kind = iota
	KindRequires
	KindObsoletes
	KindConflicts

	numKinds
)

func (k Kind) String() string {
	switch k {
	case KindProvides:
		return "provides"
	case KindRequires:
		return "requires"
	case KindObsoletes:
		return "obsoletes"
	case KindConflicts:
		return "conflicts"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

type relEntry struct {
	pkg *Package
	rel Relation
}

// RelationIndex answers reverse relation lookups ("which visible packages
// provide X") over a fixed set of packages.
type RelationIndex struct {
	byName [numKinds]map[string][]relEntry
	pos    map[*Package]int
}

func newRelationIndex(pkgs []*Package) *RelationIndex {
	ri := &RelationIndex{pos: make(map[*Package]int, len(pkgs))}
	for k := range ri.byName {
		ri.byName[k] = map[string][]relEntry{}
	}
	for i, p := range pkgs {
		ri.pos[p] = i
		for kind := KindProvides; kind < numKinds; kind++ {
			rels := p.Relations(kind)
			if kind == KindProvides {
				rels = p.AllProvides()
			}
			for _, rel := range rels {
				ri.byName[kind][rel.Name] = append(ri.byName[kind][rel.Name], relEntry{pkg: p, rel: rel})
			}
		}
	}
	return ri
}

// What returns the packages with a relation of the given kind that
// intersects rel, in corpus order. Provides lookups include every package's
// implicit self-provide.
func (ri *RelationIndex) What(kind Kind, rel Relation) []*Package {
	if kind < 0 || kind >= numKinds {
		return nil
	}
	var out []*Package
	seen := sets.New[*Package]()
	for _, e := range ri.byName[kind][rel.Name] {
		if seen.Has(e.pkg) || !e.rel.Intersects(rel) {
			continue
		}
		seen.Insert(e.pkg)
		out = append(out, e.pkg)
	}
	return out
}

// Matching returns the packages with a relation of the given kind whose name
// satisfies match, in corpus order.
func (ri *RelationIndex) Matching(kind Kind, match func(name string) bool) []*Package {
	if kind < 0 || kind >= numKinds {
		return nil
	}
	found := sets.New[*Package]()
	for name, entries := range ri.byName[kind] {
		if !match(name) {
			continue
		}
		for _, e := range entries {
			found.Insert(e.pkg)
		}
	}
	return ri.ordered(found)
}

func (ri *RelationIndex) ordered(set sets.Set[*Package]) []*Package {
	out := set.UnsortedList()
	slices.SortFunc(out, func(a, b *Package) int { return ri.pos[a] - ri.pos[b] })
	return out
}

func (ri *RelationIndex) WhatProvides(rel Relation) []*Package  { return ri.What(KindProvides, rel) }
func (ri *RelationIndex) WhatRequires(rel Relation) []*Package  { return ri.What(KindRequires, rel) }
func (ri *RelationIndex) WhatObsoletes(rel Relation) []*Package { return ri.What(KindObsoletes, rel) }
func (ri *RelationIndex) WhatConflicts(rel Relation) []*Package { return ri.What(KindConflicts, rel) }
