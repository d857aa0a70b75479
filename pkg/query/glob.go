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
	"github.com/gobwas/glob"
	lru "github.com/hashicorp/golang-lru/v2"
)

// compiledGlobs caches compiled patterns across criteria.
var compiledGlobs = func() *lru.Cache[string, glob.Glob] {
	c, err := lru.New[string, glob.Glob](512)
	if err != nil {
		panic(err)
	}
	return c
}()

// compileGlob compiles a shell-style pattern. The pattern has no path
// separators, so "*" also matches "/".
func compileGlob(pattern string) (glob.Glob, error) {
	if g, ok := compiledGlobs.Get(pattern); ok {
		return g, nil
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, err
	}
	compiledGlobs.Add(pattern, g)
	return g, nil
}
