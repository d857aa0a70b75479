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

package index

import (
	"crypto/sha1" //nolint:gosec
	"strings"
	"testing"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainguard.dev/pkgq/pkg/sack"
)

func TestParsePackageInfo(t *testing.T) {
	info := heredoc.Doc(`
		# Generated by rpmbuild
		pkgname = fool
		pkgver = 1-5
		arch = noarch
		summary = A fool
		pkgdesc = Replaces penny
		url = https://fool.example.org
		license = MIT
		sourcerpm = fool-1-5.src.rpm
		builddate = 1600096848
		file = /usr/bin/fool
		file = /usr/share/man/man1/fool.1
		provides = fool-compat = 1
		obsoletes = penny <= 4-1
		depend = glibc
		depend = P-lib >= 3
	`)

	pkg, err := ParsePackageInfo(strings.NewReader(info))
	require.NoError(t, err)

	assert := assert.New(t)
	assert.Equal("fool-1-5.noarch", pkg.String())
	assert.Equal("A fool", pkg.Summary)
	assert.Equal("Replaces penny", pkg.Description)
	assert.Equal("https://fool.example.org", pkg.URL)
	assert.Equal("MIT", pkg.License)
	assert.Equal("fool-1-5.src.rpm", pkg.SourceRPM)
	assert.Equal([]string{"/usr/bin/fool", "/usr/share/man/man1/fool.1"}, pkg.Files)
	assert.Equal(sack.MustParseRelations("fool-compat = 1"), pkg.Provides)
	assert.Equal(sack.MustParseRelations("glibc", "P-lib >= 3"), pkg.Requires)
	assert.Equal(sack.MustParseRelations("penny <= 4-1"), pkg.Obsoletes)
	assert.Nil(pkg.Conflicts)
	assert.EqualValues(1600096848, pkg.BuildTime.Unix())

	sum := sha1.Sum([]byte(info)) //nolint:gosec
	assert.Equal(sum[:], pkg.Checksum)
}

func TestParsePackageInfoErrors(t *testing.T) {
	for _, tt := range []struct {
		name  string
		input string
		want  string
	}{
		{"no name", "pkgver = 1-1\n", "no pkgname"},
		{"bad version", "pkgname = dog\npkgver = x:1\n", "package info for dog"},
		{"bad relation", "pkgname = dog\npkgver = 1-1\ndepend = a >=\n", "depend"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePackageInfo(strings.NewReader(tt.input))
			require.ErrorContains(t, err, tt.want)
		})
	}
}
