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
	"crypto/sha1" //nolint:gosec // checksums in indexes are SHA1
	"fmt"
	"io"
	"time"

	"gopkg.in/ini.v1"

	"chainguard.dev/pkgq/pkg/evr"
	"chainguard.dev/pkgq/pkg/sack"
)

// packageInfo is the layout of a .PKGINFO file.
type packageInfo struct {
	Name        string   `ini:"pkgname"`
	Version     string   `ini:"pkgver"`
	Arch        string   `ini:"arch"`
	Summary     string   `ini:"summary"`
	Description string   `ini:"pkgdesc"`
	License     string   `ini:"license"`
	URL         string   `ini:"url"`
	SourceRPM   string   `ini:"sourcerpm"`
	Location    string   `ini:"location"`
	Files       []string `ini:"file,,allowshadow"`
	Provides    []string `ini:"provides,,allowshadow"`
	Requires    []string `ini:"depend,,allowshadow"`
	Obsoletes   []string `ini:"obsoletes,,allowshadow"`
	Conflicts   []string `ini:"conflicts,,allowshadow"`
	BuildDate   int64    `ini:"builddate"`
}

// ParsePackageInfo reads a single package descriptor in .PKGINFO form. The
// package checksum is the SHA1 of the descriptor.
func ParsePackageInfo(r io.Reader) (*sack.Package, error) {
	h := sha1.New() //nolint:gosec
	cfg, err := ini.ShadowLoad(io.TeeReader(r, h))
	if err != nil {
		return nil, fmt.Errorf("ini.ShadowLoad(): %w", err)
	}

	info := new(packageInfo)
	if err := cfg.MapTo(info); err != nil {
		return nil, fmt.Errorf("cfg.MapTo(): %w", err)
	}
	if info.Name == "" {
		return nil, fmt.Errorf("package info has no pkgname")
	}
	v, err := evr.Parse(info.Version)
	if err != nil {
		return nil, fmt.Errorf("package info for %s: %w", info.Name, err)
	}

	pkg := &sack.Package{
		Name:        info.Name,
		Epoch:       v.Epoch,
		Version:     v.Version,
		Release:     v.Release,
		Arch:        info.Arch,
		Summary:     info.Summary,
		Description: info.Description,
		License:     info.License,
		URL:         info.URL,
		SourceRPM:   info.SourceRPM,
		Location:    info.Location,
		Files:       info.Files,
		Checksum:    h.Sum(nil),
	}
	if info.BuildDate != 0 {
		pkg.BuildTime = time.Unix(info.BuildDate, 0).UTC()
	}
	for _, field := range []struct {
		name string
		in   []string
		out  *[]sack.Relation
	}{
		{"provides", info.Provides, &pkg.Provides},
		{"depend", info.Requires, &pkg.Requires},
		{"obsoletes", info.Obsoletes, &pkg.Obsoletes},
		{"conflicts", info.Conflicts, &pkg.Conflicts},
	} {
		rels, err := sack.ParseRelations(field.in...)
		if err != nil {
			return nil, fmt.Errorf("package info for %s, %s: %w", info.Name, field.name, err)
		}
		if len(rels) > 0 {
			*field.out = rels
		}
	}
	return pkg, nil
}
