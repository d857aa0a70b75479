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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/util/sets"

	"chainguard.dev/pkgq/pkg/sack"
)

func TestFilters(t *testing.T) {
	s := newSack(t, systemRepo)

	tests := []struct {
		name string
		args []Arg
		want []string
	}{{
		name: "name",
		args: []Arg{By("name", "flying")},
		want: []string{"flying-2-9.noarch"},
	}, {
		name: "name eq",
		args: []Arg{By("name__eq", "flying")},
		want: []string{"flying-2-9.noarch"},
	}, {
		name: "case sensitive",
		args: []Arg{By("name", "FLYING")},
		want: []string{},
	}, {
		name: "icase",
		args: []Arg{ICase, By("name", "FLYING")},
		want: []string{"flying-2-9.noarch"},
	}, {
		name: "icase glob",
		args: []Arg{By("name__glob", "FLY*"), ICase},
		want: []string{"flying-2-9.noarch"},
	}, {
		name: "list",
		args: []Arg{By("name", []string{"flying", "penny"})},
		want: []string{"flying-2-9.noarch", "penny-4-1.noarch"},
	}, {
		name: "substr list",
		args: []Arg{By("name__substr", []string{"ool", "enny-li"})},
		want: []string{"fool-1-3.noarch", "penny-lib-4-1.x86_64"},
	}, {
		name: "substr set",
		args: []Arg{By("name__substr", sets.New("ool", "enny-li"))},
		want: []string{"fool-1-3.noarch", "penny-lib-4-1.x86_64"},
	}, {
		name: "epoch gt",
		args: []Arg{By("epoch__gt", 4)},
		want: []string{"baby-6:5.0-11.x86_64"},
	}, {
		name: "epoch uint",
		args: []Arg{By("epoch", uint64(6))},
		want: []string{"baby-6:5.0-11.x86_64"},
	}, {
		name: "version gte",
		args: []Arg{By("version__gte", "5.0")},
		want: []string{"baby-6:5.0-11.x86_64", "jay-5.0-0.x86_64", "tour-6.1-0.noarch"},
	}, {
		name: "version glob",
		args: []Arg{By("version__glob", "1.2*")},
		want: []string{"pilchard-1.2.3-1.i686", "pilchard-1.2.3-1.x86_64"},
	}, {
		name: "version lt uses version ordering",
		args: []Arg{By("version__lt", "1.10")},
		want: []string{"dog-1-1.x86_64", "fool-1-3.noarch", "gun-1.0-2.x86_64", "pilchard-1.2.3-1.i686", "pilchard-1.2.3-1.x86_64"},
	}, {
		name: "release",
		args: []Arg{By("release", "11")},
		want: []string{"baby-6:5.0-11.x86_64"},
	}, {
		name: "evr",
		args: []Arg{By("evr", "5.0-0")},
		want: []string{"jay-5.0-0.x86_64"},
	}, {
		name: "evr gt",
		args: []Arg{By("evr__gt", "6:5.0-10")},
		want: []string{"baby-6:5.0-11.x86_64"},
	}, {
		name: "nevra glob",
		args: []Arg{By("nevra__glob", "*lib*64")},
		want: []string{"penny-lib-4-1.x86_64"},
	}, {
		name: "nevra",
		args: []Arg{By("nevra", "baby-6:5.0-11.x86_64")},
		want: []string{"baby-6:5.0-11.x86_64"},
	}, {
		name: "arch glob",
		args: []Arg{By("arch__glob", "i?86")},
		want: []string{"pilchard-1.2.3-1.i686"},
	}, {
		name: "combined",
		args: []Arg{By("name__glob", "*enny*"), By("summary__substr", "eyes")},
		want: []string{"penny-4-1.noarch"},
	}, {
		name: "negated glob list",
		args: []Arg{By("name__glob__not", []string{"p*", "j*"})},
		want: []string{
			"baby-6:5.0-11.x86_64",
			"dog-1-1.x86_64",
			"flying-2-9.noarch",
			"fool-1-3.noarch",
			"gun-1.0-2.x86_64",
			"tour-6.1-0.noarch",
		},
	}, {
		name: "negated eq",
		args: []Arg{By("arch__not", []string{"noarch", "x86_64"})},
		want: []string{"pilchard-1.2.3-1.i686"},
	}, {
		name: "empty value list",
		args: []Arg{By("name", []string{})},
		want: []string{},
	}, {
		name: "file glob",
		args: []Arg{By("file__glob", "/usr/lib64/*")},
		want: []string{"penny-lib-4-1.x86_64"},
	}, {
		name: "reponame",
		args: []Arg{By("reponame", sack.SystemRepoName), By("name", "tour")},
		want: []string{"tour-6.1-0.noarch"},
	}, {
		name: "provides",
		args: []Arg{By("provides", "P-lib")},
		want: []string{"penny-lib-4-1.x86_64"},
	}, {
		name: "provides glob",
		args: []Arg{By("provides__glob", "P-*")},
		want: []string{"penny-lib-4-1.x86_64"},
	}, {
		name: "provides self",
		args: []Arg{By("provides", "penny > 3")},
		want: []string{"penny-4-1.noarch"},
	}, {
		name: "requires relation value",
		args: []Arg{By("requires", sack.MustParseRelation("P-lib = 4"))},
		want: []string{"flying-2-9.noarch"},
	}, {
		name: "empty",
		args: []Arg{By("empty", true)},
		want: []string{},
	}, {
		name: "inert latest",
		args: []Arg{By("name", "pilchard"), By("latest", false)},
		want: []string{"pilchard-1.2.3-1.i686", "pilchard-1.2.3-1.x86_64"},
	}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := New(s).Filter(tt.args...)
			require.NoError(t, err)
			require.Equal(t, tt.want, nevras(q.Packages()))
			require.Equal(t, len(tt.want), q.Count())
			require.Equal(t, len(tt.want) == 0, q.Empty())

			// constructing the same filter again gives the same answer
			again, err := New(s).Filter(tt.args...)
			require.NoError(t, err)
			require.Equal(t, nevras(q.Packages()), nevras(again.Packages()))
		})
	}
}

func TestFilterm(t *testing.T) {
	s := newSack(t, systemRepo)

	q := New(s)
	require.NoError(t, q.Filterm(By("name__eq", "flying")))
	require.Equal(t, 1, q.Count())

	q = New(s)
	require.NoError(t, q.Filterm(By("name", "pilchard")))
	require.Equal(t, 2, q.Count())
	require.True(t, q.Evaluated())

	require.NoError(t, q.Filterm(By("arch", "x86_64")))
	require.False(t, q.Evaluated())
	require.Nil(t, q.Result())
	require.Equal(t, []string{"pilchard-1.2.3-1.x86_64"}, nevras(q.Packages()))

	// a failed append leaves the query alone
	require.Error(t, q.Filterm(By("bogus", 1)))
	require.True(t, q.Evaluated())
	require.Len(t, q.Criteria(), 2)
}

func TestImmutability(t *testing.T) {
	s := newSack(t, systemRepo)

	q := mustFilter(t, New(s), By("name", "pilchard"))
	q2 := mustFilter(t, q, By("arch", "i686"))
	require.Nil(t, q.Result(), "pure filter does not evaluate the receiver")
	require.False(t, q.Evaluated())

	require.Equal(t, 1, q2.Count())
	require.False(t, q.Evaluated(), "evaluating the derived query leaves the receiver alone")
	require.Equal(t, 2, q.Count())
	require.Equal(t, 1, q2.Count())

	q3 := mustFilter(t, q, By("arch", "x86_64"))
	require.True(t, q.Evaluated(), "pure filter keeps the receiver's cache")
	require.False(t, q3.Evaluated())
	require.Len(t, q.Criteria(), 1)
	require.Len(t, q3.Criteria(), 2)
}

func TestObservation(t *testing.T) {
	s := newSack(t, systemRepo)

	q := mustFilter(t, New(s), By("name__substr", "penny"))
	require.Nil(t, q.Result())
	require.Equal(t, 2, q.Count())
	require.NotNil(t, q.Result())
	require.NotEqual(t, q.At(0), q.At(1))

	var seen []string
	for p := range q.All() {
		seen = append(seen, p.String())
	}
	require.Equal(t, []string{"penny-4-1.noarch", "penny-lib-4-1.x86_64"}, seen)

	run := q.Run(context.Background())
	run[0] = nil
	require.NotNil(t, q.At(0), "Run returns a copy")

	none := mustFilter(t, New(s), By("name", "naturalE"))
	require.True(t, none.Empty())
	require.NotNil(t, none.Result())
	require.Empty(t, none.Result())

	require.Equal(t, 11, New(s).Count())
}

func TestClone(t *testing.T) {
	s := newSack(t, systemRepo)

	q := New(s)
	require.NoError(t, q.Filterm(By("name__substr", []string{"penny"})))
	clone := q.Clone()
	require.False(t, clone.Evaluated(), "cloning never evaluates")
	require.False(t, q.Evaluated())
	q = nil
	require.Equal(t, 2, clone.Count())

	q = mustFilter(t, New(s), By("name__substr", "penny"))
	q.Run(context.Background())
	clone = q.Clone()
	require.True(t, clone.Evaluated())
	require.Len(t, clone.Result(), 2)

	// the clone's result is carried over, not recomputed
	require.NoError(t, s.Disable(sack.SystemRepoName))
	require.Equal(t, 2, clone.Count())
	require.Equal(t, 2, q.Count())
	require.Equal(t, 0, mustFilter(t, New(s), By("name__substr", "penny")).Count())

	// appending to the clone does not touch the original
	require.NoError(t, clone.Filterm(By("arch", "noarch")))
	require.Equal(t, 0, clone.Count())
	require.Equal(t, 2, q.Count())
}

func TestDisabledRepo(t *testing.T) {
	s := newSack(t, systemRepo)

	require.NoError(t, s.Disable(sack.SystemRepoName))
	require.Empty(t, mustFilter(t, New(s), By("name", "jay")).Packages())

	require.NoError(t, s.Enable(sack.SystemRepoName))
	require.Len(t, mustFilter(t, New(s), By("name", "jay")).Packages(), 1)
}

func TestPackageIn(t *testing.T) {
	s := newSack(t, systemRepo)

	pkgs := mustFilter(t, New(s), By("name", []string{"flying", "penny"})).Packages()
	q := mustFilter(t, New(s), By("pkg", pkgs))
	require.Equal(t, 2, q.Count())
	q2 := mustFilter(t, q, By("version__gt", "3"))
	require.Equal(t, []string{"penny-4-1.noarch"}, nevras(q2.Packages()))

	one := mustFilter(t, New(s), By("pkg", pkgs[0]))
	require.Equal(t, []*sack.Package{pkgs[0]}, one.Packages())

	viaQuery := mustFilter(t, New(s), By("pkg__not", mustFilter(t, New(s), By("name__glob", "p*"))))
	require.Equal(t, 7, viaQuery.Count())

	none := mustFilter(t, New(s), By("pkg", []*sack.Package{}))
	require.True(t, none.Empty())
}

func TestRelations(t *testing.T) {
	t.Run("all repositories", func(t *testing.T) {
		s := newSack(t, systemRepo, mainRepo, updatesRepo)

		for _, rel := range []string{"semolina = 2", "semolina > 1.0"} {
			q := mustFilter(t, New(s), By("requires", sack.MustParseRelation(rel)))
			assert.Equal(t, []string{"walrus-2-5.noarch", "walrus-2-6.noarch"}, nevras(q.Packages()), rel)
		}

		q := mustFilter(t, New(s), By("obsoletes", "penny < 4-0"))
		require.Equal(t, []string{"fool-1-5.noarch"}, nevras(q.Packages()))

		q = mustFilter(t, New(s), By("conflicts", mustFilter(t, New(s), By("name", "tour"))))
		require.Equal(t, []string{"gun-2.0-0.x86_64"}, nevras(q.Packages()))

		q = mustFilter(t, New(s), By("conflicts", "tour"))
		require.Equal(t, []string{"gun-2.0-0.x86_64"}, nevras(q.Packages()))
	})

	t.Run("relation from a package", func(t *testing.T) {
		s := newSack(t, systemRepo)
		flying := findPackage(t, s, "flying-2-9.noarch")
		q := mustFilter(t, New(s), By("provides", flying.Requires[0]))
		require.Equal(t, []string{"penny-lib-4-1.x86_64"}, nevras(q.Packages()))
	})

	t.Run("relation list", func(t *testing.T) {
		s := newSack(t, systemRepo, updatesRepo)
		fool := findPackage(t, s, "fool-1-5.noarch")
		q := mustFilter(t, New(s), By("provides", fool.Obsoletes))
		require.Equal(t, []string{"penny-4-1.noarch"}, nevras(q.Run(context.Background())))
	})

	t.Run("obsoletes subquery", func(t *testing.T) {
		s := newSack(t, systemRepo, updatesRepo)
		q := mustFilter(t, New(s), By("name", "penny"))
		o := mustFilter(t, New(s), By("obsoletes", q))
		require.Equal(t, 1, o.Count())
		require.Equal(t, "fool-1-5.noarch", o.At(0).String())
	})
}

func TestSubqueryEvaluated(t *testing.T) {
	s := newSack(t, systemRepo, updatesRepo)

	q := mustFilter(t, New(s), By("name", "penny"))
	require.False(t, q.Evaluated())
	require.Nil(t, q.Result())

	o := mustFilter(t, New(s), By("obsoletes", q))
	require.Equal(t, 1, o.Count())
	require.True(t, q.Evaluated())
	require.Len(t, q.Result(), 1)

	// forced even when the outer query selects nothing
	q = mustFilter(t, New(s), By("name", "penny"))
	o = mustFilter(t, New(s), By("empty", true), By("pkg", q))
	require.True(t, o.Empty())
	require.True(t, q.Evaluated())

	// nested subqueries are forced as well
	inner := mustFilter(t, New(s), By("name", "penny"))
	middle := mustFilter(t, New(s), By("pkg", inner))
	outer := mustFilter(t, New(s), By("obsoletes", middle))
	require.Equal(t, 1, outer.Count())
	require.True(t, middle.Evaluated())
	require.True(t, inner.Evaluated())
}

func TestSubqueryByReference(t *testing.T) {
	s := newSack(t, systemRepo)

	sub := mustFilter(t, New(s), By("name", []string{"flying", "penny"}))
	outer := mustFilter(t, New(s), By("pkg", sub))

	// a forced copy keeps the result it had when the filter was built
	fixed := sub.Clone()
	fixed.Run(context.Background())
	pinned := mustFilter(t, New(s), By("pkg", fixed))

	require.NoError(t, sub.Filterm(By("arch", "noarch"), By("summary__substr", "eyes")))
	require.Equal(t, []string{"penny-4-1.noarch"}, nevras(outer.Packages()))
	require.Equal(t, []string{"flying-2-9.noarch", "penny-4-1.noarch"}, nevras(pinned.Packages()))
}

func TestCyclicSubquery(t *testing.T) {
	s := newSack(t, systemRepo)

	q := New(s)
	err := q.Filterm(By("pkg", q))
	require.ErrorIs(t, err, ErrQuery)
	var qe *QueryError
	require.ErrorAs(t, err, &qe)
	require.Equal(t, "cyclic subquery", qe.Reason)

	a, b := New(s), New(s)
	require.NoError(t, b.Filterm(By("obsoletes", a)))
	require.ErrorIs(t, a.Filterm(By("pkg", b)), ErrQuery)

	// a new query built from a may still use a
	derived, err := a.Filter(By("pkg", a))
	require.NoError(t, err)
	require.Equal(t, 11, derived.Count())
}
