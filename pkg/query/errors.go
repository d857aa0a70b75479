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
	"errors"
	"fmt"
)

var (
	// ErrValue matches every *ValueError.
	ErrValue = errors.New("invalid filter value")
	// ErrQuery matches every *QueryError.
	ErrQuery = errors.New("invalid query")
)

// ValueError reports a filter key, value or comparator that is not valid on
// its own, or keyword filters that cannot be combined.
type ValueError struct {
	Key    string
	Reason string
}

func (e *ValueError) Error() string {
	if e.Key == "" {
		return e.Reason
	}
	return fmt.Sprintf("filter %s: %s", e.Key, e.Reason)
}

func (e *ValueError) Is(target error) bool { return target == ErrValue }

// QueryError reports a well-formed filter whose combination of comparator
// and value has no meaning, and queries that would reference themselves.
type QueryError struct {
	Key    string
	Reason string
}

func (e *QueryError) Error() string {
	if e.Key == "" {
		return e.Reason
	}
	return fmt.Sprintf("filter %s: %s", e.Key, e.Reason)
}

func (e *QueryError) Is(target error) bool { return target == ErrQuery }

func valueErrorf(key, format string, args ...any) error {
	return &ValueError{Key: key, Reason: fmt.Sprintf(format, args...)}
}

func queryErrorf(key, format string, args ...any) error {
	return &QueryError{Key: key, Reason: fmt.Sprintf(format, args...)}
}
