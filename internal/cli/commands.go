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

package cli

import (
	"log/slog"
	"os"

	"github.com/chainguard-dev/clog"
	"github.com/chainguard-dev/clog/slag"
	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"sigs.k8s.io/release-utils/version"

	"chainguard.dev/pkgq/pkg/log"
)

func New() *cobra.Command {
	level := slag.Level(slog.LevelInfo)
	var logPolicy []string

	cmd := &cobra.Command{
		Use:               "pkgq",
		Short:             "Query package metadata from a set of repository indexes",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var h slog.Handler
			if len(logPolicy) > 0 {
				var err error
				if h, err = log.Handler(logPolicy, slog.Level(level)); err != nil {
					return err
				}
			} else {
				h = charmlog.NewWithOptions(os.Stderr, charmlog.Options{
					ReportTimestamp: true,
					Level:           charmlog.Level(level),
				})
			}
			slog.SetDefault(slog.New(h))
			cmd.SetContext(clog.WithLogger(cmd.Context(), clog.New(h)))
			return nil
		},
	}

	cmd.AddCommand(queryCmd())
	cmd.AddCommand(dotCmd())
	cmd.AddCommand(showConfig())
	cmd.AddCommand(version.Version())

	cmd.PersistentFlags().Var(&level, "log-level", "log level (e.g. debug, info, warn, error)")
	cmd.PersistentFlags().StringSliceVar(&logPolicy, "log-policy", []string{}, "logging policy to use: builtin:stderr, builtin:stdout, builtin:discard or a file path")
	return cmd
}
