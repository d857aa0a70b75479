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

// Package arch decides whether packages built for two architectures can
// stand in for one another.
package arch

const (
	// Noarch packages are installable on every binary architecture.
	Noarch = "noarch"

	src   = "src"
	nosrc = "nosrc"
)

// families groups architectures that are interchangeable for the purpose of
// upgrade and downgrade selection.
var families = map[string]string{
	"i386":     "x86",
	"i486":     "x86",
	"i586":     "x86",
	"i686":     "x86",
	"athlon":   "x86",
	"geode":    "x86",
	"pentium3": "x86",
	"pentium4": "x86",
	"x86_64":   "x86",
	"amd64":    "x86",
	"ia32e":    "x86",

	"armv5tel": "arm",
	"armv6l":   "arm",
	"armv6hl":  "arm",
	"armv7l":   "arm",
	"armv7hl":  "arm",
	"armv7hnl": "arm",
	"aarch64":  "arm",

	"ppc":   "ppc",
	"ppc64": "ppc",

	"ppc64le": "ppc64le",

	"s390":  "s390",
	"s390x": "s390",

	"sparc":   "sparc",
	"sparcv9": "sparc",
	"sparc64": "sparc",

	"riscv64": "riscv64",
}

// Family returns the family name of an architecture. Architectures that
// are not known form a family of their own.
func Family(a string) string {
	if f, ok := families[a]; ok {
		return f
	}
	return a
}

// Compatible reports whether a package of architecture a may replace one of
// architecture b. The relation is symmetric.
func Compatible(a, b string) bool {
	if a == b {
		return true
	}
	if a == src || a == nosrc || b == src || b == nosrc {
		return false
	}
	if a == Noarch || b == Noarch {
		return true
	}
	return Family(a) == Family(b)
}

// Normalize maps Go and OCI platform names to the names used in package
// metadata.
func Normalize(in string) string {
	switch in {
	case "amd64":
		return "x86_64"
	case "arm64", "arm64/v8":
		return "aarch64"
	case "386":
		return "i686"
	case "arm/v6":
		return "armv6hl"
	case "arm/v7", "arm":
		return "armv7hl"
	default:
		return in
	}
}
