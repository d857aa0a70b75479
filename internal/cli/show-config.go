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
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"chainguard.dev/pkgq/pkg/config"
)

func showConfig() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show-config",
		Short: "Show the configuration derived from loading a YAML file",
		Long: `Show the configuration derived from loading a YAML file.

The configuration is validated and rendered in YAML, with index and package
paths resolved against the directory of the file.
`,
		Example: `  pkgq show-config <config.yaml>`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ShowConfigCmd(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}
	return cmd
}

func ShowConfigCmd(_ context.Context, w io.Writer, configFile string) error {
	var cfg config.Configuration
	if err := cfg.Load(configFile); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	for i, repo := range cfg.Repositories {
		cfg.Repositories[i].Index = cfg.IndexPath(repo)
		if len(repo.Packages) > 0 {
			cfg.Repositories[i].Packages = cfg.PackagePaths(repo)
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&cfg); err != nil {
		return fmt.Errorf("failed to encode YAML document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode YAML document: %w", err)
	}

	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write YAML document: %w", err)
	}
	return nil
}
