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

package log

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandlerFileTarget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "pkgq.log")
	h, err := Handler([]string{path, "builtin:discard"}, slog.LevelInfo)
	require.NoError(t, err)

	logger := slog.New(h)
	logger.Debug("hidden")
	logger.Info("loaded", "repo", "updates")
	logger.With("repo", "@System").Warn("disabled")
	logger.Error("plain")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, ""+
		"INF updates   | loaded\n"+
		"WRN @System   | disabled\n"+
		"ERR           | plain\n", string(b))
}

func TestHandlerWithAttrsKeepsLevel(t *testing.T) {
	h, err := Handler([]string{"builtin:discard"}, slog.LevelWarn)
	require.NoError(t, err)

	ctx := context.Background()
	child := h.WithAttrs([]slog.Attr{slog.String("repo", "main")})
	require.False(t, child.Enabled(ctx, slog.LevelInfo))
	require.True(t, child.Enabled(ctx, slog.LevelError))
}

func TestHandlerBadTarget(t *testing.T) {
	dir := t.TempDir()
	// a directory cannot be opened for writing
	_, err := Handler([]string{dir}, slog.LevelInfo)
	require.Error(t, err)
}
