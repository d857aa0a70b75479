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
	"strconv"
	"strings"
)

// NEVRA is a split name-[epoch:]version-release.arch string.
type NEVRA struct {
	Name    string
	Epoch   uint64
	Version string
	Release string
	Arch    string
}

// SplitNEVRA splits "name-[epoch:]version-release.arch". The epoch may also
// lead the whole string, as in "epoch:name-version-release.arch".
func SplitNEVRA(s string) (NEVRA, error) {
	var n NEVRA
	rest := strings.TrimSpace(s)

	dot := strings.LastIndexByte(rest, '.')
	if dot <= 0 || dot == len(rest)-1 {
		return n, fmt.Errorf("invalid nevra %q: missing arch", s)
	}
	n.Arch, rest = rest[dot+1:], rest[:dot]

	dash := strings.LastIndexByte(rest, '-')
	if dash <= 0 || dash == len(rest)-1 {
		return n, fmt.Errorf("invalid nevra %q: missing release", s)
	}
	n.Release, rest = rest[dash+1:], rest[:dash]

	dash = strings.LastIndexByte(rest, '-')
	if dash <= 0 || dash == len(rest)-1 {
		return n, fmt.Errorf("invalid nevra %q: missing version", s)
	}
	n.Name, n.Version = rest[:dash], rest[dash+1:]

	if e, v, ok := strings.Cut(n.Version, ":"); ok {
		epoch, err := strconv.ParseUint(e, 10, 64)
		if err != nil {
			return NEVRA{}, fmt.Errorf("invalid nevra %q: bad epoch %q: %w", s, e, err)
		}
		n.Epoch, n.Version = epoch, v
	} else if e, name, ok := strings.Cut(n.Name, ":"); ok {
		epoch, err := strconv.ParseUint(e, 10, 64)
		if err != nil {
			return NEVRA{}, fmt.Errorf("invalid nevra %q: bad epoch %q: %w", s, e, err)
		}
		n.Epoch, n.Name = epoch, name
	}
	if n.Name == "" || n.Version == "" {
		return NEVRA{}, fmt.Errorf("invalid nevra %q", s)
	}
	return n, nil
}

func (n NEVRA) String() string {
	p := Package{Name: n.Name, Epoch: n.Epoch, Version: n.Version, Release: n.Release, Arch: n.Arch}
	return p.String()
}
