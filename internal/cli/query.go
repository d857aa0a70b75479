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
	"context"
	"fmt"
	"io"
	"strconv"
	"text/template"

	"github.com/chainguard-dev/clog"
	"github.com/google/shlex"
	"github.com/spf13/cobra"

	"chainguard.dev/pkgq/pkg/arch"
	"chainguard.dev/pkgq/pkg/config"
	"chainguard.dev/pkgq/pkg/query"
	"chainguard.dev/pkgq/pkg/sack"
)

const (
	formatNEVRA         = `{{ .NEVRA }}`
	formatNameEVR       = `{{ .Name }} {{ .EVR }}`
	formatNEVRAWithRepo = `{{ .NEVRA }} {{ .Repo }}`
	formatPURL          = `{{ .PURL }}`
	queryFormatDefault  = formatNEVRA
)

var queryFormats = map[string]string{
	"nevra":      formatNEVRA,
	"name-evr":   formatNameEVR,
	"nevra-repo": formatNEVRAWithRepo,
	"purl":       formatPURL,
}

type pkgInfo struct {
	Name    string
	Epoch   string
	Version string
	Release string
	Arch    string
	EVR     string
	NEVRA   string
	Repo    string
	PURL    string
}

func newPkgInfo(p *sack.Package, namespace string) pkgInfo {
	return pkgInfo{
		Name:    p.Name,
		Epoch:   strconv.FormatUint(p.Epoch, 10),
		Version: p.Version,
		Release: p.Release,
		Arch:    p.Arch,
		EVR:     p.EVR().String(),
		NEVRA:   p.String(),
		Repo:    p.RepoName(),
		PURL:    p.PackageURL(namespace),
	}
}

type queryOptions struct {
	filters   []string
	exprs     []string
	nevras    []string
	arches    []string
	disable   []string
	icase     bool
	format    string
	namespace string
}

// args collects the positional filters, the shell-split --expr filters and
// the --nevra and --arch values.
func (o queryOptions) args() ([]query.Arg, error) {
	filters := append([]string{}, o.filters...)
	for _, expr := range o.exprs {
		words, err := shlex.Split(expr)
		if err != nil {
			return nil, fmt.Errorf("splitting expression %q: %w", expr, err)
		}
		filters = append(filters, words...)
	}

	args, err := query.ParseArgs(filters...)
	if err != nil {
		return nil, err
	}
	if len(o.nevras) > 0 {
		normalized := make([]string, 0, len(o.nevras))
		for _, s := range o.nevras {
			n, err := sack.SplitNEVRA(s)
			if err != nil {
				return nil, err
			}
			normalized = append(normalized, n.String())
		}
		args = append(args, query.By("nevra", normalized))
	}
	if len(o.arches) > 0 {
		arches := make([]string, 0, len(o.arches))
		for _, a := range o.arches {
			arches = append(arches, arch.Normalize(a))
		}
		args = append(args, query.By("arch", arches))
	}
	if o.icase {
		args = append(args, query.ICase)
	}
	return args, nil
}

func queryCmd() *cobra.Command {
	var o queryOptions

	cmd := &cobra.Command{
		Use:   "query",
		Short: "List the packages of a corpus that match a set of filters",
		Long: `List the packages of a corpus that match a set of filters.

Every filter is written <key>[__<comparator>][__not]=<value>[,<value>...].
Comparators are eq (the default), gt, gte, lt, lte, glob and substr. Flag
filters such as latest, latest_per_arch, upgrades, upgradable, downgrade and
downgradable may be given without a value.

The output is one of several pre-defined formats, or can be customized to any go template, using
the provided vars. See https://pkg.go.dev/text/template for more information. Available vars are
.Name, .Epoch, .Version, .Release, .Arch, .EVR, .NEVRA, .Repo, .PURL

The pre-defined formats are:
  nevra:      {{ .NEVRA }}
  name-evr:   {{ .Name }} {{ .EVR }}
  nevra-repo: {{ .NEVRA }} {{ .Repo }}
  purl:       {{ .PURL }}

The default format is nevra.
`,
		Example: `  pkgq query pkgq.yaml name=flying latest
  pkgq query pkgq.yaml --expr 'requires="P-lib >= 3"'
  pkgq query pkgq.yaml --nevra penny-4-1.noarch --format purl
  pkgq query pkgq.yaml --arch amd64 name__glob='p*'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o.filters = args[1:]
			if t, ok := queryFormats[o.format]; ok {
				o.format = t
			}
			return QueryCmd(cmd.Context(), cmd.OutOrStdout(), args[0], o)
		},
	}

	cmd.Flags().StringArrayVar(&o.exprs, "expr", nil, "filters given as a single shell-quoted expression")
	cmd.Flags().StringSliceVar(&o.nevras, "nevra", nil, "match packages by name-[epoch:]version-release.arch")
	cmd.Flags().StringSliceVar(&o.arches, "arch", nil, "match packages built for these architectures; Go names such as amd64 are accepted")
	cmd.Flags().StringSliceVar(&o.disable, "disable", nil, "repositories to disable before querying")
	cmd.Flags().BoolVar(&o.icase, "icase", false, "compare names and other text case-insensitively")
	cmd.Flags().StringVar(&o.format, "format", queryFormatDefault, "format for showing packages; if pre-defined from list, will use that, else go template. See https://pkg.go.dev/text/template for more information. Available vars are `.Name`, `.Epoch`, `.Version`, `.Release`, `.Arch`, `.EVR`, `.NEVRA`, `.Repo`, `.PURL`")
	cmd.Flags().StringVar(&o.namespace, "purl-namespace", "", "namespace used for package URLs")

	return cmd
}

// loadSack loads a configuration and its sack, then disables the named
// repositories.
func loadSack(ctx context.Context, path string, disable []string) (*sack.Sack, error) {
	var cfg config.Configuration
	if err := cfg.Load(path); err != nil {
		return nil, err
	}
	s, err := cfg.Sack(ctx)
	if err != nil {
		return nil, err
	}
	for _, name := range disable {
		if err := s.Disable(name); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func QueryCmd(ctx context.Context, w io.Writer, configFile string, o queryOptions) error {
	log := clog.FromContext(ctx)

	if o.format == "" {
		o.format = queryFormatDefault
	}
	tmpl, err := template.New("format").Parse(o.format)
	if err != nil {
		return fmt.Errorf("failed to parse format: %w", err)
	}

	args, err := o.args()
	if err != nil {
		return err
	}

	s, err := loadSack(ctx, configFile, o.disable)
	if err != nil {
		return err
	}

	q, err := query.New(s).Filter(args...)
	if err != nil {
		return err
	}
	pkgs := q.Run(ctx)
	log.Debugf("%s matched %d packages", q, len(pkgs))

	for _, p := range pkgs {
		if err := tmpl.Execute(w, newPkgInfo(p, o.namespace)); err != nil {
			return fmt.Errorf("failed to execute template: %w", err)
		}
		fmt.Fprintln(w)
	}
	return nil
}
