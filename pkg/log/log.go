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

// Package log provides the slog handler behind the --log-policy flag.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/term"
)

// writerFromTarget returns a writer given a target specification.
func writerFromTarget(target string) (io.Writer, error) {
	switch target {
	case "builtin:stderr":
		return os.Stderr, nil
	case "builtin:stdout":
		return os.Stdout, nil
	case "builtin:discard":
		return io.Discard, nil
	default:
		if strings.Contains(target, "/") {
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return nil, err
			}
		}

		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log target %s: %w", target, err)
		}
		return out, nil
	}
}

// writer returns a writer which writes to every target.
func writer(targets []string) (io.Writer, error) {
	if len(targets) == 0 {
		return os.Stderr, nil
	}
	if len(targets) == 1 {
		return writerFromTarget(targets[0])
	}

	writers := make([]io.Writer, 0, len(targets))
	for _, target := range targets {
		w, err := writerFromTarget(target)
		if err != nil {
			return nil, err
		}
		writers = append(writers, w)
	}
	return io.MultiWriter(writers...), nil
}

const (
	reset   = 0
	yellow  = 33
	magenta = 35
	gray    = 37
)

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

func color(w io.Writer, c int) string {
	if !isTerminal(w) {
		return ""
	}
	return fmt.Sprintf("\x1b[%dm", c)
}

func levelToColor(l slog.Level) int {
	switch {
	case l >= slog.LevelError:
		return magenta
	case l >= slog.LevelWarn:
		return yellow
	default:
		return gray
	}
}

func levelTag(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERR"
	case l >= slog.LevelWarn:
		return "WRN"
	case l >= slog.LevelInfo:
		return "INF"
	default:
		return "DBG"
	}
}

// Handler returns a handler writing to the targets of logPolicy: any of
// builtin:stderr, builtin:stdout, builtin:discard or a file path.
func Handler(logPolicy []string, level slog.Level) (slog.Handler, error) {
	out, err := writer(logPolicy)
	if err != nil {
		return nil, err
	}
	return &handler{out: out, level: level, mu: &sync.Mutex{}}, nil
}

type handler struct {
	level slog.Level
	out   io.Writer
	attrs []slog.Attr

	mu *sync.Mutex
}

func (h *handler) Enabled(_ context.Context, l slog.Level) bool { return l >= h.level }

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &handler{
		level: h.level,
		out:   h.out,
		attrs: append(h.attrs[:len(h.attrs):len(h.attrs)], attrs...),
		mu:    h.mu,
	}
}

// Records carrying a "repo" attribute are prefixed with the repository name.
func (h *handler) Handle(ctx context.Context, r slog.Record) error {
	if !h.Enabled(ctx, r.Level) {
		return nil
	}

	var repo string
	for _, a := range h.attrs {
		if a.Key == "repo" {
			repo = a.Value.String()
			break
		}
	}
	if repo == "" {
		r.Attrs(func(a slog.Attr) bool {
			if a.Key == "repo" {
				repo = a.Value.String()
				return false
			}
			return true
		})
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	c := levelToColor(r.Level)
	_, err := fmt.Fprintf(h.out, "%s %s%-10s|%s %s%s%s\n",
		levelTag(r.Level), color(h.out, c), repo, color(h.out, reset), color(h.out, c), r.Message, color(h.out, reset))
	return err
}

// Groups are flattened.
func (h *handler) WithGroup(string) slog.Handler { return h }
