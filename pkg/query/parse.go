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
	"strconv"
	"strings"
)

// ParseArg parses a textual filter of the form "<key>=<value>[,<value>...]".
// Values of numeric keys are read as integers and values of flag keys as
// booleans or integers. A bare flag key such as "latest" means true. Package
// sets cannot be written as text.
func ParseArg(expr string) (Arg, error) {
	name, raw, hasValue := strings.Cut(strings.TrimSpace(expr), "=")
	name = strings.TrimSpace(name)
	if name == "" {
		return Arg{}, valueErrorf("", "filter %q has no key", expr)
	}
	key, _, _, err := parseKey(name)
	if err != nil {
		return Arg{}, err
	}

	switch key.class() {
	case classFlag:
		if !hasValue {
			return By(name, true), nil
		}
		raw = strings.TrimSpace(raw)
		if b, err := strconv.ParseBool(raw); err == nil {
			return By(name, b), nil
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Arg{}, valueErrorf(name, "expected a boolean value, got %q", raw)
		}
		return By(name, n), nil
	case classPackages:
		return Arg{}, valueErrorf(name, "package sets cannot be given as text")
	}

	if !hasValue {
		return Arg{}, valueErrorf(name, "missing value")
	}
	fields := strings.Split(raw, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	if key.class() == classNumeric {
		nums := make([]int64, 0, len(fields))
		for _, f := range fields {
			n, err := strconv.ParseInt(f, 10, 64)
			if err != nil {
				return Arg{}, valueErrorf(name, "expected an integer value, got %q", f)
			}
			nums = append(nums, n)
		}
		return By(name, nums), nil
	}
	return By(name, fields), nil
}

// ParseArgs parses every expression with ParseArg.
func ParseArgs(exprs ...string) ([]Arg, error) {
	args := make([]Arg, 0, len(exprs))
	for _, expr := range exprs {
		arg, err := ParseArg(expr)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return args, nil
}
