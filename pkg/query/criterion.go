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
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/gobwas/glob"

	"chainguard.dev/pkgq/pkg/evr"
	"chainguard.dev/pkgq/pkg/sack"
)

// Criterion is a single validated filter: an attribute, a comparator, an
// optional negation and a set of values matched disjunctively.
type Criterion struct {
	key   Key
	name  string
	cmp   Comparator
	not   bool
	icase bool

	strs  []string
	globs []glob.Glob
	nums  []int64
	evrs  []evr.EVR
	rels  []sack.Relation

	// package-set values; subqueries are resolved at evaluation
	pkgs   []*sack.Package
	subs   []*Query
	hasSet bool

	flag bool
}

// NewCriterion parses key as "<attribute>[__<comparator>][__not]" and
// validates value against it. Values may be scalars, slices, arrays or sets
// (any map type, keyed by the values). When icase is set, textual
// attributes compare case-insensitively.
func NewCriterion(key string, value any, icase bool) (Criterion, error) {
	k, cmp, not, err := parseKey(key)
	if err != nil {
		return Criterion{}, err
	}
	c := Criterion{key: k, name: key, cmp: cmp, not: not, icase: icase}

	switch k.class() {
	case classText:
		err = c.setText(value)
	case classNumeric:
		err = c.setNumeric(value)
	case classVersion:
		err = c.setVersion(value)
	case classRelation:
		err = c.setRelation(value)
	case classPackages:
		err = c.setPackages(value)
	case classFlag:
		err = c.setFlag(value)
	}
	if err != nil {
		return Criterion{}, err
	}
	return c, nil
}

func (c Criterion) Key() Key               { return c.key }
func (c Criterion) Comparator() Comparator { return c.cmp }
func (c Criterion) Negated() bool          { return c.not }
func (c Criterion) ICase() bool            { return c.icase }

// inert criteria were given a false flag and select everything.
func (c Criterion) inert() bool {
	return c.key.class() == classFlag && !c.flag
}

func (c Criterion) String() string {
	var vals []string
	vals = append(vals, c.strs...)
	for _, n := range c.nums {
		vals = append(vals, fmt.Sprint(n))
	}
	for _, r := range c.rels {
		vals = append(vals, r.String())
	}
	for _, p := range c.pkgs {
		vals = append(vals, p.String())
	}
	for range c.subs {
		vals = append(vals, "<query>")
	}
	if c.key.class() == classFlag && !c.hasSet {
		vals = append(vals, fmt.Sprint(c.flag))
	}
	return fmt.Sprintf("%s=%s", c.name, strings.Join(vals, ","))
}

// elements expands a value into its members. Maps are treated as sets of
// their keys.
func elements(value any) []any {
	switch v := value.(type) {
	case string, bool, *Query, *sack.Package, sack.Relation:
		return []any{v}
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, 0, rv.Len())
		for i := range rv.Len() {
			out = append(out, rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		out := make([]any, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			out = append(out, k.Interface())
		}
		return out
	default:
		return []any{value}
	}
}

func asInt(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch {
	case !rv.IsValid():
		return 0, false
	case rv.CanInt():
		return rv.Int(), true
	case rv.CanUint():
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	default:
		return 0, false
	}
}

// asFlag accepts a bool or an integer, where nonzero means true.
func asFlag(v any) (bool, bool) {
	if b, ok := v.(bool); ok {
		return b, true
	}
	if n, ok := asInt(v); ok {
		return n != 0, true
	}
	return false, false
}

// stringValues checks that every element of value is a string.
func (c *Criterion) stringValues(value any) ([]string, error) {
	if value == nil {
		return nil, valueErrorf(c.name, "missing value")
	}
	elems := elements(value)
	out := make([]string, 0, len(elems))
	for _, e := range elems {
		switch v := e.(type) {
		case string:
			out = append(out, v)
		case sack.Relation:
			return nil, queryErrorf(c.name, "relation %q given where a plain value is required", v)
		case *Query, *sack.Package:
			return nil, valueErrorf(c.name, "package set given where a plain value is required")
		default:
			return nil, valueErrorf(c.name, "expected a string value, got %T", e)
		}
	}
	return out, nil
}

func (c *Criterion) compileGlobs() error {
	c.globs = make([]glob.Glob, 0, len(c.strs))
	for _, s := range c.strs {
		g, err := compileGlob(s)
		if err != nil {
			return valueErrorf(c.name, "invalid glob %q: %v", s, err)
		}
		c.globs = append(c.globs, g)
	}
	return nil
}

func (c *Criterion) setText(value any) error {
	if c.cmp.ordering() {
		return valueErrorf(c.name, "comparator %s is not defined for %s", c.cmp, c.key)
	}
	strs, err := c.stringValues(value)
	if err != nil {
		return err
	}
	if c.icase {
		for i := range strs {
			strs[i] = strings.ToLower(strs[i])
		}
	}
	c.strs = strs
	if c.cmp == CmpGlob {
		return c.compileGlobs()
	}
	return nil
}

func (c *Criterion) setNumeric(value any) error {
	if c.cmp == CmpGlob || c.cmp == CmpSubstr {
		return valueErrorf(c.name, "comparator %s is not defined for %s", c.cmp, c.key)
	}
	if value == nil {
		return valueErrorf(c.name, "missing value")
	}
	for _, e := range elements(value) {
		if rel, ok := e.(sack.Relation); ok {
			return queryErrorf(c.name, "relation %q given where a plain value is required", rel)
		}
		n, ok := asInt(e)
		if !ok {
			return valueErrorf(c.name, "expected an integer value, got %T", e)
		}
		c.nums = append(c.nums, n)
	}
	return nil
}

func (c *Criterion) setVersion(value any) error {
	strs, err := c.stringValues(value)
	if err != nil {
		return err
	}
	c.strs = strs
	switch {
	case c.cmp == CmpGlob:
		return c.compileGlobs()
	case c.key == KeyEVR && c.cmp != CmpSubstr:
		for _, s := range strs {
			e, err := evr.Parse(s)
			if err != nil {
				return valueErrorf(c.name, "%v", err)
			}
			c.evrs = append(c.evrs, e)
		}
	}
	return nil
}

func (c *Criterion) setRelation(value any) error {
	if c.cmp.ordering() {
		return queryErrorf(c.name, "inequality not defined over relation targets")
	}
	if c.cmp == CmpSubstr {
		return valueErrorf(c.name, "comparator %s is not defined for %s", c.cmp, c.key)
	}
	if value == nil {
		return valueErrorf(c.name, "missing value")
	}
	setsAllowed := (c.key == KeyObsoletes || c.key == KeyConflicts) && c.cmp == CmpEQ
	for _, e := range elements(value) {
		switch v := e.(type) {
		case string:
			if c.cmp == CmpGlob {
				c.strs = append(c.strs, v)
				continue
			}
			rel, err := sack.ParseRelation(v)
			if err != nil {
				return valueErrorf(c.name, "%v", err)
			}
			c.rels = append(c.rels, rel)
		case sack.Relation:
			if c.cmp == CmpGlob {
				return valueErrorf(c.name, "glob takes a pattern, not relation %q", v)
			}
			c.rels = append(c.rels, v)
		case *Query, *sack.Package:
			if !setsAllowed {
				return valueErrorf(c.name, "package set given where a relation is required")
			}
			if err := c.addPackage(v); err != nil {
				return err
			}
		default:
			return valueErrorf(c.name, "expected a relation value, got %T", e)
		}
	}
	if c.cmp == CmpGlob {
		return c.compileGlobs()
	}
	return nil
}

func (c *Criterion) addPackage(v any) error {
	c.hasSet = true
	switch v := v.(type) {
	case *Query:
		if v == nil {
			return valueErrorf(c.name, "nil query")
		}
		c.subs = append(c.subs, v)
	case *sack.Package:
		if v == nil {
			return valueErrorf(c.name, "nil package")
		}
		c.pkgs = append(c.pkgs, v)
	}
	return nil
}

// packages checks that every element of value is a package or a query.
func (c *Criterion) packages(value any) error {
	if value == nil {
		return valueErrorf(c.name, "missing value")
	}
	c.hasSet = true
	for _, e := range elements(value) {
		switch v := e.(type) {
		case *Query, *sack.Package:
			if err := c.addPackage(v); err != nil {
				return err
			}
		case sack.Relation:
			return queryErrorf(c.name, "relation %q given where a package set is required", v)
		default:
			return valueErrorf(c.name, "expected a package set, got %T", e)
		}
	}
	return nil
}

func (c *Criterion) setPackages(value any) error {
	if c.cmp != CmpEQ {
		return valueErrorf(c.name, "comparator %s is not defined for %s", c.cmp, c.key)
	}
	return c.packages(value)
}

func (c *Criterion) setFlag(value any) error {
	if c.cmp != CmpEQ || c.not {
		return valueErrorf(c.name, "%s takes no comparator", c.key)
	}
	if b, ok := asFlag(value); ok {
		if c.key == KeyEmpty && !b {
			return valueErrorf(c.name, "the only valid value is true")
		}
		c.flag = b
		return nil
	}
	switch c.key {
	case KeyUpgrades, KeyDowngrade:
		if _, isString := value.(string); isString {
			return valueErrorf(c.name, "expected a flag or package set, got string %q", value)
		}
		if err := c.packages(value); err != nil {
			return err
		}
		c.flag = true
		return nil
	default:
		return valueErrorf(c.name, "expected a boolean value, got %T", value)
	}
}
