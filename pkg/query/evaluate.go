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
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/chainguard-dev/clog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/apimachinery/pkg/util/sets"

	"chainguard.dev/pkgq/pkg/evr"
	"chainguard.dev/pkgq/pkg/sack"
)

// evaluator computes query results. One evaluator serves a top-level
// evaluation and every subquery it forces.
type evaluator struct {
	active sets.Set[*Query]
}

func newEvaluator() *evaluator {
	return &evaluator{active: sets.New[*Query]()}
}

func (e *evaluator) evaluateTop(ctx context.Context, q *Query) []*sack.Package {
	ctx, span := otel.Tracer("pkgq").Start(ctx, "Evaluate", trace.WithAttributes(
		attribute.String("query", q.String()),
	))
	defer span.End()

	res := e.evaluate(ctx, q)
	span.SetAttributes(attribute.Int("results", len(res)))
	return res
}

func (e *evaluator) evaluate(ctx context.Context, q *Query) []*sack.Package {
	if q.evaluated {
		return q.result
	}
	log := clog.FromContext(ctx)
	if e.active.Has(q) {
		log.Warnf("cyclic subquery %s, treating it as empty", q)
		return nil
	}
	e.active.Insert(q)
	defer e.active.Delete(q)

	crits := q.Criteria()

	// Subqueries are forced first and keep their results even when this
	// query turns out empty.
	for _, c := range crits {
		for _, sub := range c.subs {
			e.evaluate(ctx, sub)
		}
	}

	visible := q.sack.Packages()
	candidates := slices.Clone(visible)
	var latest, updown []Criterion
	for _, c := range crits {
		if c.inert() {
			continue
		}
		switch c.key {
		case KeyEmpty:
			candidates = candidates[:0]
		case KeyLatest, KeyLatestPerArch:
			latest = append(latest, c)
		case KeyUpgrades, KeyUpgradable, KeyDowngradable, KeyDowngrade:
			updown = append(updown, c)
		default:
			match := e.matcher(ctx, q.sack, c)
			candidates = slices.DeleteFunc(candidates, func(p *sack.Package) bool { return !match(p) })
		}
	}
	for _, c := range latest {
		candidates = selectLatest(candidates, c.key == KeyLatestPerArch)
	}
	for _, c := range updown {
		var baseline sets.Set[*sack.Package]
		if c.hasSet {
			baseline = e.packageSet(ctx, c)
		}
		candidates = selectUpDown(q.sack, candidates, c.key, baseline)
	}

	if candidates == nil {
		candidates = []*sack.Package{}
	}
	q.result, q.evaluated = candidates, true
	log.Debugf("evaluated %s: %d of %d packages", q, len(candidates), len(visible))
	return candidates
}

func (e *evaluator) packageSet(ctx context.Context, c Criterion) sets.Set[*sack.Package] {
	set := sets.New(c.pkgs...)
	for _, sub := range c.subs {
		set.Insert(e.evaluate(ctx, sub)...)
	}
	return set
}

func (e *evaluator) matcher(ctx context.Context, s *sack.Sack, c Criterion) func(*sack.Package) bool {
	var match func(*sack.Package) bool
	switch c.key.class() {
	case classText:
		match = func(p *sack.Package) bool { return slices.ContainsFunc(textValues(c.key, p), c.matchText) }
	case classNumeric:
		match = func(p *sack.Package) bool {
			return slices.ContainsFunc(c.nums, func(n int64) bool { return c.cmp.holds(compareEpoch(p.Epoch, n)) })
		}
	case classVersion:
		match = c.matchVersion
	case classRelation:
		match = e.relationMatches(ctx, s, c).Has
	case classPackages:
		match = e.packageSet(ctx, c).Has
	default:
		match = func(*sack.Package) bool { return true }
	}
	if c.not {
		return func(p *sack.Package) bool { return !match(p) }
	}
	return match
}

func textValues(k Key, p *sack.Package) []string {
	switch k {
	case KeyName:
		return []string{p.Name}
	case KeyArch:
		return []string{p.Arch}
	case KeyNEVRA:
		return []string{p.String()}
	case KeySummary:
		return []string{p.Summary}
	case KeyDescription:
		return []string{p.Description}
	case KeyURL:
		return []string{p.URL}
	case KeyLicense:
		return []string{p.License}
	case KeySourceRPM:
		return []string{p.SourceRPM}
	case KeyLocation:
		return []string{p.Location}
	case KeyRepoName:
		return []string{p.RepoName()}
	case KeyFile:
		return p.Files
	default:
		return nil
	}
}

func (c Criterion) folds() bool { return c.icase && c.key.class() == classText }

func (c Criterion) matchText(s string) bool {
	if c.folds() {
		s = strings.ToLower(s)
	}
	switch c.cmp {
	case CmpEQ:
		return slices.Contains(c.strs, s)
	case CmpGlob:
		for _, g := range c.globs {
			if g.Match(s) {
				return true
			}
		}
		return false
	case CmpSubstr:
		return slices.ContainsFunc(c.strs, func(sub string) bool { return strings.Contains(s, sub) })
	default:
		return false
	}
}

func (c Criterion) matchVersion(p *sack.Package) bool {
	if c.key == KeyEVR {
		pe := p.EVR()
		switch c.cmp {
		case CmpGlob, CmpSubstr:
			return c.matchText(pe.String())
		case CmpEQ:
			return slices.Contains(c.evrs, pe)
		default:
			return slices.ContainsFunc(c.evrs, func(v evr.EVR) bool { return c.cmp.holds(evr.Compare(pe, v)) })
		}
	}

	attr := p.Version
	if c.key == KeyRelease {
		attr = p.Release
	}
	switch c.cmp {
	case CmpEQ, CmpGlob, CmpSubstr:
		return c.matchText(attr)
	default:
		return slices.ContainsFunc(c.strs, func(v string) bool { return c.cmp.holds(evr.CompareVersions(attr, v)) })
	}
}

func compareEpoch(epoch uint64, n int64) int {
	if n < 0 {
		return 1
	}
	return cmp.Compare(epoch, uint64(n))
}

func relationKind(k Key) sack.Kind {
	switch k {
	case KeyRequires:
		return sack.KindRequires
	case KeyObsoletes:
		return sack.KindObsoletes
	case KeyConflicts:
		return sack.KindConflicts
	default:
		return sack.KindProvides
	}
}

// relationMatches collects the visible packages whose relations of the
// criterion's kind match one of its values. A package set value matches the
// relations its members satisfy: obsoletes against their names and
// versions, conflicts against everything they provide.
func (e *evaluator) relationMatches(ctx context.Context, s *sack.Sack, c Criterion) sets.Set[*sack.Package] {
	ri := s.Relations()
	kind := relationKind(c.key)
	out := sets.New[*sack.Package]()
	for _, rel := range c.rels {
		out.Insert(ri.What(kind, rel)...)
	}
	for _, g := range c.globs {
		out.Insert(ri.Matching(kind, g.Match)...)
	}
	if !c.hasSet {
		return out
	}
	for p := range e.packageSet(ctx, c) {
		switch c.key {
		case KeyObsoletes:
			out.Insert(ri.WhatObsoletes(p.SelfProvide())...)
		case KeyConflicts:
			for _, prov := range p.AllProvides() {
				out.Insert(ri.WhatConflicts(prov)...)
			}
		}
	}
	return out
}
