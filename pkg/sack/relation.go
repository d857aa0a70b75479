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
	"regexp"
	"sync"

	"chainguard.dev/pkgq/pkg/evr"
)

// Op is a bitmask of the orderings a versioned relation admits.
type Op uint8

const (
	OpNone Op = 0
	OpEQ   Op = 1 << 0
	OpLT   Op = 1 << 1
	OpGT   Op = 1 << 2
	OpLE      = OpLT | OpEQ
	OpGE      = OpGT | OpEQ
)

func (o Op) String() string {
	switch o {
	case OpNone:
		return ""
	case OpEQ:
		return "="
	case OpLT:
		return "<"
	case OpLE:
		return "<="
	case OpGT:
		return ">"
	case OpGE:
		return ">="
	default:
		return fmt.Sprintf("Op(%d)", uint8(o))
	}
}

func parseOp(s string) (Op, error) {
	switch s {
	case "":
		return OpNone, nil
	case "=", "==":
		return OpEQ, nil
	case "<":
		return OpLT, nil
	case "<=":
		return OpLE, nil
	case ">":
		return OpGT, nil
	case ">=":
		return OpGE, nil
	default:
		return OpNone, fmt.Errorf("unknown relation operator %q", s)
	}
}

// Relation is a named capability, optionally constrained to a version range,
// such as "semolina >= 2".
type Relation struct {
	Name string
	Op   Op
	EVR  evr.EVR
}

// relationRegex layout: [full, name, op, evr]
var relationRegex = regexp.MustCompile(`^\s*([^\s<>=!]+)\s*(?:(<=|>=|==|=|<|>)\s*(\S+))?\s*$`)

var parsedRelations sync.Map // map[string]Relation

// ParseRelation parses "name" or "name op evr".
func ParseRelation(s string) (Relation, error) {
	if cached, ok := parsedRelations.Load(s); ok {
		return cached.(Relation), nil
	}

	parts := relationRegex.FindStringSubmatch(s)
	if parts == nil {
		return Relation{}, fmt.Errorf("invalid relation %q", s)
	}
	op, err := parseOp(parts[2])
	if err != nil {
		return Relation{}, fmt.Errorf("invalid relation %q: %w", s, err)
	}
	rel := Relation{Name: parts[1], Op: op}
	if op != OpNone {
		v, err := evr.Parse(parts[3])
		if err != nil {
			return Relation{}, fmt.Errorf("invalid relation %q: %w", s, err)
		}
		rel.EVR = v
	}

	parsedRelations.Store(s, rel)
	return rel, nil
}

// MustParseRelation is like ParseRelation but panics on error.
func MustParseRelation(s string) Relation {
	rel, err := ParseRelation(s)
	if err != nil {
		panic(err)
	}
	return rel
}

// ParseRelations parses each string in turn, stopping at the first error.
func ParseRelations(ss ...string) ([]Relation, error) {
	rels := make([]Relation, 0, len(ss))
	for _, s := range ss {
		rel, err := ParseRelation(s)
		if err != nil {
			return nil, err
		}
		rels = append(rels, rel)
	}
	return rels, nil
}

// MustParseRelations is like ParseRelations but panics on error.
func MustParseRelations(ss ...string) []Relation {
	rels, err := ParseRelations(ss...)
	if err != nil {
		panic(err)
	}
	return rels
}

// Versioned reports whether the relation carries a version constraint.
func (r Relation) Versioned() bool { return r.Op != OpNone }

func (r Relation) String() string {
	if !r.Versioned() {
		return r.Name
	}
	return fmt.Sprintf("%s %s %s", r.Name, r.Op, r.EVR)
}

// Intersects reports whether some version satisfies both r and other. An
// unversioned relation intersects every relation of the same name. When only
// one side names a release, releases take no part in the comparison.
func (r Relation) Intersects(other Relation) bool {
	if r.Name != other.Name {
		return false
	}
	if !r.Versioned() || !other.Versioned() {
		return true
	}

	var c int
	if r.EVR.Release == "" || other.EVR.Release == "" {
		c = evr.CompareNoRelease(r.EVR, other.EVR)
	} else {
		c = evr.Compare(r.EVR, other.EVR)
	}

	switch {
	case c == 0:
		return r.Op&other.Op != 0
	case c < 0:
		return r.Op&OpGT != 0 || other.Op&OpLT != 0
	default:
		return r.Op&OpLT != 0 || other.Op&OpGT != 0
	}
}
