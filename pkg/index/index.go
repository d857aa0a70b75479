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

// Package index reads and writes repository indexes.
//
// An index is a sequence of stanzas separated by blank lines. Each line of a
// stanza is a one-letter field tag, a colon and the value:
//
//	C:Q1<base64 sha1>   checksum
//	P:name
//	V:[epoch:]version-release
//	A:arch
//	T:summary
//	X:description
//	U:url
//	L:license
//	s:source package
//	l:location
//	F:files (space separated)
//	p:provides   D:requires   O:obsoletes   K:conflicts (", " separated)
//	t:build time (unix seconds)
//
// Indexes are stored either as plain text or as a gzip'd tarball holding a
// PKGINDEX member and an optional DESCRIPTION.
package index

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/chainguard-dev/clog"
	"github.com/klauspost/compress/gzip"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chainguard.dev/pkgq/pkg/evr"
	"chainguard.dev/pkgq/pkg/sack"
)

const (
	indexFilename       = "PKGINDEX"
	descriptionFilename = "DESCRIPTION"

	relationSeparator = ", "
)

var indexTemplate = template.Must(template.New(indexFilename).Funcs(
	template.FuncMap{
		"join": func(s []string) string {
			return strings.Join(s, " ")
		},
		"rels": joinRelations,
		"evr": func(p *sack.Package) string {
			return p.EVR().String()
		},
		"checksum": func(b []byte) string {
			return "Q1" + base64.StdEncoding.EncodeToString(b)
		},
	}).Parse(heredoc.Doc(`
		{{- if .Checksum}}C:{{checksum .Checksum}}
		{{end -}}
		P:{{.Name}}
		V:{{evr .}}
		A:{{.Arch}}
		{{- if .Summary}}
		T:{{.Summary}}
		{{- end}}
		{{- if .Description}}
		X:{{.Description}}
		{{- end}}
		{{- if .URL}}
		U:{{.URL}}
		{{- end}}
		{{- if .License}}
		L:{{.License}}
		{{- end}}
		{{- if .SourceRPM}}
		s:{{.SourceRPM}}
		{{- end}}
		{{- if .Location}}
		l:{{.Location}}
		{{- end}}
		{{- if .Files}}
		F:{{join .Files}}
		{{- end}}
		{{- if .Provides}}
		p:{{rels .Provides}}
		{{- end}}
		{{- if .Requires}}
		D:{{rels .Requires}}
		{{- end}}
		{{- if .Obsoletes}}
		O:{{rels .Obsoletes}}
		{{- end}}
		{{- if .Conflicts}}
		K:{{rels .Conflicts}}
		{{- end}}
		{{- if not .BuildTime.IsZero}}
		t:{{.BuildTime.Unix}}
		{{- end}}

	`)))

// Index is a parsed repository index.
type Index struct {
	Description string
	Packages    []*sack.Package
}

func joinRelations(rels []sack.Relation) string {
	parts := make([]string, 0, len(rels))
	for _, r := range rels {
		parts = append(parts, r.String())
	}
	return strings.Join(parts, relationSeparator)
}

// Splitting an empty string yields one empty element, which would parse as
// an empty name.
func splitRepeatedField(val, sep string) []string {
	if val == "" {
		return nil
	}
	return strings.Split(val, sep)
}

func parseRelationField(val string) ([]sack.Relation, error) {
	fields := splitRepeatedField(val, relationSeparator)
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return sack.ParseRelations(fields...)
}

// ParseIndex parses a plain (uncompressed) index.
func ParseIndex(r io.Reader) ([]*sack.Package, error) {
	if closer, ok := r.(io.Closer); ok {
		defer closer.Close()
	}

	scanner := bufio.NewScanner(r)
	// Provides and file lists can get long; allow lines up to 1MB.
	buf := make([]byte, 16*1024)
	scanner.Buffer(buf, 1024*1024)

	pkg := &sack.Package{}
	packages := []*sack.Package{}
	flush := func(linenr int) error {
		if pkg.Name == "" {
			if pkg.Version != "" || pkg.Arch != "" {
				return fmt.Errorf("stanza ending at line %d has no package name", linenr)
			}
			return nil
		}
		if pkg.Version == "" {
			return fmt.Errorf("package %s ending at line %d has no version", pkg.Name, linenr)
		}
		packages = append(packages, pkg)
		pkg = &sack.Package{}
		return nil
	}

	linenr := 0
	for scanner.Scan() {
		linenr++
		line := scanner.Text()
		if len(line) == 0 {
			if err := flush(linenr); err != nil {
				return nil, err
			}
			continue
		}

		if len(line) < 2 || line[1] != ':' {
			return nil, fmt.Errorf("cannot parse line %d: expected \":\" not found", linenr)
		}

		token := line[:1]
		val := line[2:]

		var err error
		switch token {
		case "P":
			pkg.Name = val
		case "V":
			var v evr.EVR
			if v, err = evr.Parse(val); err == nil {
				pkg.Epoch, pkg.Version, pkg.Release = v.Epoch, v.Version, v.Release
			}
		case "A":
			pkg.Arch = val
		case "T":
			pkg.Summary = val
		case "X":
			pkg.Description = val
		case "U":
			pkg.URL = val
		case "L":
			pkg.License = val
		case "s":
			pkg.SourceRPM = val
		case "l":
			pkg.Location = val
		case "F":
			pkg.Files = splitRepeatedField(val, " ")
		case "p":
			pkg.Provides, err = parseRelationField(val)
		case "D":
			pkg.Requires, err = parseRelationField(val)
		case "O":
			pkg.Obsoletes, err = parseRelationField(val)
		case "K":
			pkg.Conflicts, err = parseRelationField(val)
		case "t":
			var i int64
			if i, err = strconv.ParseInt(val, 10, 64); err == nil {
				pkg.BuildTime = time.Unix(i, 0).UTC()
			}
		case "C":
			// Only SHA1 checksums are understood.
			if strings.HasPrefix(val, "Q1") {
				pkg.Checksum, err = base64.StdEncoding.DecodeString(val[2:])
			}
		}
		if err != nil {
			return nil, fmt.Errorf("cannot parse line %d: %w", linenr, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if err := flush(linenr); err != nil {
		return nil, err
	}
	return packages, nil
}

// WriteIndex writes pkgs as a plain index.
func WriteIndex(w io.Writer, pkgs []*sack.Package) error {
	for _, pkg := range pkgs {
		if len(pkg.Name) == 0 {
			continue
		}
		if err := indexTemplate.Execute(w, pkg); err != nil {
			return fmt.Errorf("failed to execute template for package %s: %w", pkg.Name, err)
		}
	}
	return nil
}

// IndexFromArchive reads a gzip'd tarball index.
func IndexFromArchive(archive io.Reader) (*Index, error) {
	gzipReader, err := gzip.NewReader(archive)
	if err != nil {
		return nil, err
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)
	idx := &Index{}

	for {
		hdr, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch hdr.Name {
		case indexFilename:
			idx.Packages, err = ParseIndex(io.NopCloser(tarReader))
			if err != nil {
				return nil, err
			}
		case descriptionFilename:
			description, err := io.ReadAll(tarReader)
			if err != nil {
				return nil, err
			}
			idx.Description = string(description)
		default:
			return nil, fmt.Errorf("unexpected file found in index archive: %s", hdr.Name)
		}
	}

	return idx, nil
}

// ArchiveFromIndex is the inverse of IndexFromArchive.
func ArchiveFromIndex(idx *Index) (io.Reader, error) {
	var contents bytes.Buffer
	if err := WriteIndex(&contents, idx.Packages); err != nil {
		return nil, err
	}

	var tarball bytes.Buffer
	gw := gzip.NewWriter(&tarball)
	tw := tar.NewWriter(gw)

	for _, item := range []struct {
		filename string
		contents []byte
	}{
		{indexFilename, contents.Bytes()},
		{descriptionFilename, []byte(idx.Description)},
	} {
		header := &tar.Header{
			Name:     item.filename,
			Mode:     0o644,
			Size:     int64(len(item.contents)),
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(header); err != nil {
			return nil, fmt.Errorf("writing tar header for %s: %w", item.filename, err)
		}
		if _, err := tw.Write(item.contents); err != nil {
			return nil, fmt.Errorf("writing tar contents for %s: %w", item.filename, err)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("closing tar writer: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}
	return &tarball, nil
}

var gzipMagic = []byte{0x1f, 0x8b}

// Load reads an index file, plain or archived.
func Load(ctx context.Context, path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	defer f.Close()
	return load(ctx, f, path)
}

// LoadFS is Load reading name from fsys.
func LoadFS(ctx context.Context, fsys fs.FS, name string) (*Index, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	defer f.Close()
	return load(ctx, f, name)
}

func load(ctx context.Context, r io.Reader, path string) (*Index, error) {
	_, span := otel.Tracer("pkgq").Start(ctx, "LoadIndex", trace.WithAttributes(attribute.String("path", path)))
	defer span.End()

	br := bufio.NewReader(r)
	magic, err := br.Peek(len(gzipMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reading index %s: %w", path, err)
	}

	var idx *Index
	if bytes.Equal(magic, gzipMagic) {
		idx, err = IndexFromArchive(br)
	} else {
		var pkgs []*sack.Package
		pkgs, err = ParseIndex(br)
		idx = &Index{Packages: pkgs}
	}
	if err != nil {
		return nil, fmt.Errorf("parsing index %s: %w", path, err)
	}

	clog.FromContext(ctx).Debugf("read %d packages from %s", len(idx.Packages), path)
	return idx, nil
}

// Repository builds a repository from copies of the index's packages, so an
// Index can back any number of repositories.
func (idx *Index) Repository(name string, opts ...sack.RepositoryOption) (*sack.Repository, error) {
	pkgs := make([]*sack.Package, 0, len(idx.Packages))
	for _, p := range idx.Packages {
		pkgs = append(pkgs, p.Copy())
	}
	return sack.NewRepository(name, pkgs, opts...)
}
