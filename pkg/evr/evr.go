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

// Package evr parses and orders epoch:version-release triples.
//
// Ordering follows the rpmvercmp rules: the epoch is compared numerically,
// then version and release are compared segment by segment, where a segment
// is a maximal run of digits or of letters and everything else separates
// segments.
package evr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// evrRegex how to split an evr string. The version is matched lazily so
// the release is whatever follows the last "-".
var evrRegex = regexp.MustCompile(`^(?:([^:]*):)?([^:]+?)(?:-([^:-]+))?$`)

var parsedEVRs sync.Map // map[string]EVR

const (
	greater = 1
	equal   = 0
	less    = -1
)

// EVR is a parsed epoch:version-release.
type EVR struct {
	Epoch   uint64
	Version string
	Release string
}

// Parse parses a string of the form [epoch:]version[-release]. The epoch
// defaults to 0 when absent.
func Parse(s string) (EVR, error) {
	if cached, ok := parsedEVRs.Load(s); ok {
		return cached.(EVR), nil
	}

	e, err := parse(s)
	if err != nil {
		return EVR{}, err
	}

	parsedEVRs.Store(s, e)
	return e, nil
}

func parse(s string) (EVR, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return EVR{}, fmt.Errorf("invalid evr %q: empty", s)
	}
	parts := evrRegex.FindStringSubmatch(trimmed)
	if parts == nil {
		return EVR{}, fmt.Errorf("invalid evr %q, could not parse", s)
	}
	// layout: [full match, epoch, version, release]
	var epoch uint64
	if strings.Contains(trimmed, ":") {
		num, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return EVR{}, fmt.Errorf("invalid evr %q, epoch %q is not a number: %w", s, parts[1], err)
		}
		epoch = num
	}
	return EVR{
		Epoch:   epoch,
		Version: parts[2],
		Release: parts[3],
	}, nil
}

// MustParse is like Parse but panics on error. Intended for fixtures.
func MustParse(s string) EVR {
	e, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return e
}

// String renders the evr, omitting a zero epoch and an empty release.
func (e EVR) String() string {
	var sb strings.Builder
	if e.Epoch != 0 {
		sb.WriteString(strconv.FormatUint(e.Epoch, 10))
		sb.WriteByte(':')
	}
	sb.WriteString(e.Version)
	if e.Release != "" {
		sb.WriteByte('-')
		sb.WriteString(e.Release)
	}
	return sb.String()
}

// Compare returns -1, 0 or 1 depending on whether a sorts before, equal to,
// or after b.
func Compare(a, b EVR) int {
	if a.Epoch > b.Epoch {
		return greater
	}
	if a.Epoch < b.Epoch {
		return less
	}
	if c := CompareVersions(a.Version, b.Version); c != equal {
		return c
	}
	return CompareVersions(a.Release, b.Release)
}

// CompareNoRelease is Compare without looking at the release.
func CompareNoRelease(a, b EVR) int {
	a.Release, b.Release = "", ""
	return Compare(a, b)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isAlpha(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isAlnum(c byte) bool { return isDigit(c) || isAlpha(c) }

// CompareVersions compares two bare version (or release) strings.
//
// Numeric segments compare numerically, alphabetic segments lexically, and
// a numeric segment is newer than an alphabetic one. When one string runs out
// of segments first, the other one is newer. A "~" sorts before anything,
// even the end of the string, and a "^" sorts after the end of the string but
// before any other segment.
func CompareVersions(a, b string) int {
	if a == b {
		return equal
	}

	i, j := 0, 0
	for i < len(a) || j < len(b) {
		for i < len(a) && !isAlnum(a[i]) && a[i] != '~' && a[i] != '^' {
			i++
		}
		for j < len(b) && !isAlnum(b[j]) && b[j] != '~' && b[j] != '^' {
			j++
		}

		// tilde sorts before everything else
		if (i < len(a) && a[i] == '~') || (j < len(b) && b[j] == '~') {
			if i >= len(a) || a[i] != '~' {
				return greater
			}
			if j >= len(b) || b[j] != '~' {
				return less
			}
			i++
			j++
			continue
		}

		// caret is like the end of the string, but sorts after it
		if (i < len(a) && a[i] == '^') || (j < len(b) && b[j] == '^') {
			if i >= len(a) {
				return less
			}
			if j >= len(b) {
				return greater
			}
			if a[i] != '^' {
				return greater
			}
			if b[j] != '^' {
				return less
			}
			i++
			j++
			continue
		}

		if i >= len(a) || j >= len(b) {
			break
		}

		si, sj := i, j
		numeric := isDigit(a[i])
		if numeric {
			for i < len(a) && isDigit(a[i]) {
				i++
			}
			for j < len(b) && isDigit(b[j]) {
				j++
			}
		} else {
			for i < len(a) && isAlpha(a[i]) {
				i++
			}
			for j < len(b) && isAlpha(b[j]) {
				j++
			}
		}
		segA, segB := a[si:i], b[sj:j]

		// b had a segment of the other type
		if segB == "" {
			if numeric {
				return greater
			}
			return less
		}

		if numeric {
			segA = strings.TrimLeft(segA, "0")
			segB = strings.TrimLeft(segB, "0")
			if len(segA) > len(segB) {
				return greater
			}
			if len(segA) < len(segB) {
				return less
			}
		}
		if c := strings.Compare(segA, segB); c != equal {
			return c
		}
	}

	if i >= len(a) && j >= len(b) {
		return equal
	}
	if i >= len(a) {
		return less
	}
	return greater
}
