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

// Package query builds and evaluates filters over the packages of a Sack.
//
// A Query is an immutable chain of criteria plus a private result cache.
// Filter returns a new Query sharing the receiver's chain; Filterm grows the
// receiver in place and drops its cache. Evaluation happens on the first
// observation (Run, Count, Empty, At, All, Packages) and is cached on the
// instance.
//
// A Query given as a filter value is held by reference and evaluated when
// the outer query is. Filterm on that subquery before the outer query is
// observed changes what the outer query selects; pass a Clone, or force the
// subquery first, to fix its result at filter time.
package query

import (
	"context"
	"iter"
	"slices"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"

	"chainguard.dev/pkgq/pkg/sack"
)

// node is one filter call's worth of criteria. Nodes are never modified
// once linked.
type node struct {
	parent *node
	crits  []Criterion
}

// Query is a lazily evaluated filter over a Sack. A Query must not be used
// from several goroutines at once.
type Query struct {
	sack *sack.Sack
	tail *node

	evaluated bool
	result    []*sack.Package
}

// New returns a query selecting every visible package of s.
func New(s *sack.Sack) *Query {
	return &Query{sack: s}
}

// Arg is an argument to Filter and Filterm.
type Arg struct {
	key   string
	value any
	icase bool
}

// By filters on key, in the form "<attribute>[__<comparator>][__not]".
func By(key string, value any) Arg { return Arg{key: key, value: value} }

// ICase makes the textual comparisons of a whole filter call
// case-insensitive.
var ICase = Arg{icase: true}

// Sack returns the corpus the query runs against.
func (q *Query) Sack() *sack.Sack { return q.sack }

// Clone returns a query with the same criteria. If q has been evaluated the
// clone starts out evaluated with the same result. Cloning never evaluates.
func (q *Query) Clone() *Query {
	return &Query{
		sack:      q.sack,
		tail:      q.tail,
		evaluated: q.evaluated,
		result:    q.result,
	}
}

// Filter returns a new query narrowed by args. The receiver, including its
// cached result, is unchanged.
func (q *Query) Filter(args ...Arg) (*Query, error) {
	crits, err := criteria(args)
	if err != nil {
		return nil, err
	}
	out := &Query{sack: q.sack, tail: q.tail}
	if len(crits) > 0 {
		out.tail = &node{parent: q.tail, crits: crits}
	}
	return out, nil
}

// Filterm narrows q in place by args and drops any cached result.
func (q *Query) Filterm(args ...Arg) error {
	crits, err := criteria(args)
	if err != nil {
		return err
	}
	for _, c := range crits {
		for _, sub := range c.subs {
			if sub.references(q) {
				return queryErrorf(c.name, "cyclic subquery")
			}
		}
	}
	if len(crits) > 0 {
		q.tail = &node{parent: q.tail, crits: crits}
	}
	q.evaluated, q.result = false, nil
	return nil
}

func criteria(args []Arg) ([]Criterion, error) {
	icase := slices.ContainsFunc(args, func(a Arg) bool { return a.icase })

	var crits []Criterion
	present := sets.New[Key]()
	for _, a := range args {
		if a.icase && a.key == "" {
			continue
		}
		c, err := NewCriterion(a.key, a.value, icase)
		if err != nil {
			return nil, err
		}
		present.Insert(c.key)
		crits = append(crits, c)
	}

	if present.HasAll(KeyLatest, KeyLatestPerArch) {
		return nil, valueErrorf("", "incompatible keyword filters: latest and latest_per_arch")
	}
	if present.HasAll(KeyUpgrades, KeyDowngrade) {
		return nil, valueErrorf("", "incompatible keyword filters: upgrades and downgrade")
	}
	return crits, nil
}

// references reports whether target is q or is reachable through q's
// subqueries.
func (q *Query) references(target *Query) bool {
	seen := sets.New[*Query]()
	var walk func(*Query) bool
	walk = func(cur *Query) bool {
		if cur == target {
			return true
		}
		if seen.Has(cur) {
			return false
		}
		seen.Insert(cur)
		for n := cur.tail; n != nil; n = n.parent {
			for _, c := range n.crits {
				if slices.ContainsFunc(c.subs, walk) {
					return true
				}
			}
		}
		return false
	}
	return walk(q)
}

// Criteria returns the criteria of q in the order they were added.
func (q *Query) Criteria() []Criterion {
	var nodes []*node
	for n := q.tail; n != nil; n = n.parent {
		nodes = append(nodes, n)
	}
	var out []Criterion
	for _, n := range slices.Backward(nodes) {
		out = append(out, n.crits...)
	}
	return out
}

func (q *Query) String() string {
	crits := q.Criteria()
	parts := make([]string, 0, len(crits))
	for _, c := range crits {
		parts = append(parts, c.String())
	}
	return "query(" + strings.Join(parts, " ") + ")"
}

// Evaluated reports whether q holds a cached result.
func (q *Query) Evaluated() bool { return q.evaluated }

// Result returns the cached result, or nil when q has not been evaluated.
// The returned slice must not be modified.
func (q *Query) Result() []*sack.Package {
	if !q.evaluated {
		return nil
	}
	return q.result
}

// Run evaluates q if needed and returns a copy of its result.
func (q *Query) Run(ctx context.Context) []*sack.Package {
	return slices.Clone(q.run(ctx))
}

func (q *Query) run(ctx context.Context) []*sack.Package {
	if q.evaluated {
		return q.result
	}
	return newEvaluator().evaluateTop(ctx, q)
}

// Packages is Run with a background context.
func (q *Query) Packages() []*sack.Package { return q.Run(context.Background()) }

// Count evaluates q if needed and returns the number of matches.
func (q *Query) Count() int { return len(q.run(context.Background())) }

// Empty evaluates q if needed and reports whether nothing matched.
func (q *Query) Empty() bool { return q.Count() == 0 }

// At evaluates q if needed and returns the i-th match. It panics when i is
// out of range.
func (q *Query) At(i int) *sack.Package { return q.run(context.Background())[i] }

// All evaluates q once and iterates over its matches.
func (q *Query) All() iter.Seq[*sack.Package] {
	return func(yield func(*sack.Package) bool) {
		for _, p := range q.run(context.Background()) {
			if !yield(p) {
				return
			}
		}
	}
}
