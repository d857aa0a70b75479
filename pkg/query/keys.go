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
	"strings"
)

// Key is a filterable attribute.
type Key int

const (
	KeyName Key = iota
	KeyEpoch
	KeyVersion
	KeyRelease
	KeyArch
	KeyEVR
	KeyNEVRA
	KeySummary
	KeyDescription
	KeyURL
	KeyLicense
	KeySourceRPM
	KeyLocation
	KeyRepoName
	KeyFile
	KeyProvides
	KeyRequires
	KeyObsoletes
	KeyConflicts
	KeyPkg
	KeyEmpty
	KeyLatest
	KeyLatestPerArch
	KeyUpgrades
	KeyUpgradable
	KeyDowngradable
	KeyDowngrade
)

var keyNames = map[string]Key{
	"name":            KeyName,
	"epoch":           KeyEpoch,
	"version":         KeyVersion,
	"release":         KeyRelease,
	"arch":            KeyArch,
	"evr":             KeyEVR,
	"nevra":           KeyNEVRA,
	"summary":         KeySummary,
	"description":     KeyDescription,
	"url":             KeyURL,
	"license":         KeyLicense,
	"sourcerpm":       KeySourceRPM,
	"location":        KeyLocation,
	"reponame":        KeyRepoName,
	"file":            KeyFile,
	"provides":        KeyProvides,
	"requires":        KeyRequires,
	"obsoletes":       KeyObsoletes,
	"conflicts":       KeyConflicts,
	"pkg":             KeyPkg,
	"empty":           KeyEmpty,
	"latest":          KeyLatest,
	"latest_per_arch": KeyLatestPerArch,
	"upgrades":        KeyUpgrades,
	"upgradable":      KeyUpgradable,
	"downgradable":    KeyDowngradable,
	"downgrade":       KeyDowngrade,
	"downgrades":      KeyDowngrade,
}

// Keys returns every recognized attribute name, aliases included.
func Keys() []string {
	out := make([]string, 0, len(keyNames))
	for name := range keyNames {
		out = append(out, name)
	}
	return out
}

func (k Key) String() string {
	for name, key := range keyNames {
		if key == k && name != "downgrades" {
			return name
		}
	}
	return fmt.Sprintf("Key(%d)", int(k))
}

type keyClass int

const (
	classText keyClass = iota
	classNumeric
	classVersion
	classRelation
	classPackages
	classFlag
)

func (k Key) class() keyClass {
	switch k {
	case KeyEpoch:
		return classNumeric
	case KeyVersion, KeyRelease, KeyEVR:
		return classVersion
	case KeyProvides, KeyRequires, KeyObsoletes, KeyConflicts:
		return classRelation
	case KeyPkg:
		return classPackages
	case KeyEmpty, KeyLatest, KeyLatestPerArch, KeyUpgrades, KeyUpgradable, KeyDowngradable, KeyDowngrade:
		return classFlag
	default:
		return classText
	}
}

// Comparator selects how a criterion compares an attribute to its values.
type Comparator int

const (
	CmpEQ Comparator = iota
	CmpGT
	CmpGTE
	CmpLT
	CmpLTE
	CmpGlob
	CmpSubstr
)

var comparatorNames = map[string]Comparator{
	"eq":     CmpEQ,
	"gt":     CmpGT,
	"gte":    CmpGTE,
	"lt":     CmpLT,
	"lte":    CmpLTE,
	"glob":   CmpGlob,
	"substr": CmpSubstr,
}

func (c Comparator) String() string {
	for name, cmp := range comparatorNames {
		if cmp == c {
			return name
		}
	}
	return fmt.Sprintf("Comparator(%d)", int(c))
}

func (c Comparator) ordering() bool {
	return c == CmpGT || c == CmpGTE || c == CmpLT || c == CmpLTE
}

// holds reports whether a three-way comparison result satisfies c.
func (c Comparator) holds(cmp int) bool {
	switch c {
	case CmpEQ:
		return cmp == 0
	case CmpGT:
		return cmp > 0
	case CmpGTE:
		return cmp >= 0
	case CmpLT:
		return cmp < 0
	case CmpLTE:
		return cmp <= 0
	default:
		return false
	}
}

// parseKey splits "<attribute>[__<comparator>][__not]".
func parseKey(s string) (Key, Comparator, bool, error) {
	parts := strings.Split(s, "__")
	key, ok := keyNames[parts[0]]
	if !ok {
		return 0, 0, false, valueErrorf(s, "unknown filter key %q", parts[0])
	}
	cmp, not := CmpEQ, false
	rest := parts[1:]
	if len(rest) > 0 && rest[len(rest)-1] == "not" {
		not = true
		rest = rest[:len(rest)-1]
	}
	switch len(rest) {
	case 0:
	case 1:
		c, ok := comparatorNames[rest[0]]
		if !ok {
			return 0, 0, false, valueErrorf(s, "unknown comparator %q", rest[0])
		}
		cmp = c
	default:
		return 0, 0, false, valueErrorf(s, "malformed filter key")
	}
	return key, cmp, not, nil
}
