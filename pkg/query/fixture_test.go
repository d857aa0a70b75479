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

	"github.com/stretchr/testify/require"

	"chainguard.dev/pkgq/pkg/sack"
)

type pkgOpt func(*sack.Package)

func summary(s string) pkgOpt   { return func(p *sack.Package) { p.Summary = s } }
func files(fs ...string) pkgOpt { return func(p *sack.Package) { p.Files = fs } }

func provides(rels ...string) pkgOpt {
	return func(p *sack.Package) { p.Provides = sack.MustParseRelations(rels...) }
}

func requires(rels ...string) pkgOpt {
	return func(p *sack.Package) { p.Requires = sack.MustParseRelations(rels...) }
}

func obsoletes(rels ...string) pkgOpt {
	return func(p *sack.Package) { p.Obsoletes = sack.MustParseRelations(rels...) }
}

func conflicts(rels ...string) pkgOpt {
	return func(p *sack.Package) { p.Conflicts = sack.MustParseRelations(rels...) }
}

func pkg(nevra string, opts ...pkgOpt) *sack.Package {
	n, err := sack.SplitNEVRA(nevra)
	if err != nil {
		panic(err)
	}
	p := &sack.Package{Name: n.Name, Epoch: n.Epoch, Version: n.Version, Release: n.Release, Arch: n.Arch}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type repoFunc func(t *testing.T) *sack.Repository

func repo(name string, role sack.Role, pkgs ...*sack.Package) repoFunc {
	return func(t *testing.T) *sack.Repository {
		t.Helper()
		r, err := sack.NewRepository(name, pkgs, sack.WithRole(role))
		require.NoError(t, err)
		return r
	}
}

// Fixture repositories are rebuilt for every sack since a package belongs
// to one repository only.

func systemRepo(t *testing.T) *sack.Repository {
	return repo(sack.SystemRepoName, sack.RoleSystem,
		pkg("baby-6:5.0-11.x86_64"),
		pkg("dog-1-1.x86_64"),
		pkg("flying-2-9.noarch", requires("P-lib >= 3"), summary("Flying Circus")),
		pkg("fool-1-3.noarch", summary("A fool")),
		pkg("gun-1.0-2.x86_64"),
		pkg("jay-5.0-0.x86_64"),
		pkg("penny-4-1.noarch", summary("ears and eyes")),
		pkg("penny-lib-4-1.x86_64", provides("P-lib = 4"), summary("library for penny"), files("/usr/lib64/libpenny.so.4")),
		pkg("pilchard-1.2.3-1.i686"),
		pkg("pilchard-1.2.3-1.x86_64"),
		pkg("tour-6.1-0.noarch"),
	)(t)
}

func mainRepo(t *testing.T) *sack.Repository {
	return repo("main", sack.RoleAvailable,
		pkg("baby-6:4.9-3.x86_64"),
		pkg("gun-2.0-0.x86_64", conflicts("tour < 7")),
		pkg("jay-4.0-1.x86_64"),
		pkg("semolina-2-0.x86_64"),
		pkg("walrus-2-5.noarch", requires("semolina = 2")),
	)(t)
}

func updatesRepo(t *testing.T) *sack.Repository {
	return repo("updates", sack.RoleAvailable,
		pkg("dog-1-2.x86_64"),
		pkg("dog-1-3.ppc64"),
		pkg("flying-3-0.noarch"),
		pkg("flying-3.1-0.x86_64"),
		pkg("flying-3.2-0.i686"),
		pkg("fool-1-5.noarch", obsoletes("penny <= 4-1")),
		pkg("jay-6.0-0.x86_64"),
		pkg("pilchard-1.2.4-1.i686"),
		pkg("pilchard-1.2.4-1.x86_64"),
		pkg("walrus-2-6.noarch", requires("semolina > 1.0")),
	)(t)
}

func newSack(t *testing.T, repos ...repoFunc) *sack.Sack {
	t.Helper()
	s := sack.New()
	for _, r := range repos {
		require.NoError(t, s.Load(context.Background(), r(t)))
	}
	return s
}

func nevras(pkgs []*sack.Package) []string {
	out := make([]string, 0, len(pkgs))
	for _, p := range pkgs {
		out = append(out, p.String())
	}
	return out
}

func mustFilter(t *testing.T, q *Query, args ...Arg) *Query {
	t.Helper()
	out, err := q.Filter(args...)
	require.NoError(t, err)
	return out
}

func findPackage(t *testing.T, s *sack.Sack, nevra string) *sack.Package {
	t.Helper()
	for _, p := range s.Packages() {
		if p.String() == nevra {
			return p
		}
	}
	t.Fatalf("no package %s", nevra)
	return nil
}
