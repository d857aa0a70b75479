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
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/skratchdot/open-golang/open"
	"github.com/spf13/cobra"
	"github.com/tmc/dot"
	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/util/sets"

	"chainguard.dev/pkgq/pkg/query"
	"chainguard.dev/pkgq/pkg/sack"
)

func dotCmd() *cobra.Command {
	var o queryOptions
	var web, span bool

	cmd := &cobra.Command{
		Use:   "dot",
		Short: "Output a digraph of the packages matching a set of filters and the providers of their requirements.",
		Long: `Output a digraph of the packages matching a set of filters and the providers of their requirements.

# Render an svg of the latest packages
pkgq dot pkgq.yaml latest | dot -Tsvg > graph.svg

# Open browser to explore the corpus
pkgq dot --web pkgq.yaml

# Only draw the first edge into each provider
pkgq dot -S pkgq.yaml name__glob='p*'
`,
		Example: `  pkgq dot <config.yaml> [filters...]`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o.filters = args[1:]
			return DotCmd(cmd.Context(), cmd.OutOrStdout(), args[0], o, web, span)
		},
	}

	cmd.Flags().StringArrayVar(&o.exprs, "expr", nil, "filters given as a single shell-quoted expression")
	cmd.Flags().StringSliceVar(&o.nevras, "nevra", nil, "match packages by name-[epoch:]version-release.arch")
	cmd.Flags().StringSliceVar(&o.arches, "arch", nil, "match packages built for these architectures; Go names such as amd64 are accepted")
	cmd.Flags().StringSliceVar(&o.disable, "disable", nil, "repositories to disable before querying")
	cmd.Flags().BoolVar(&o.icase, "icase", false, "compare names and other text case-insensitively")
	cmd.Flags().BoolVarP(&span, "spanning-tree", "S", false, "only draw the first edge into each provider")
	cmd.Flags().BoolVar(&web, "web", false, "launch a browser")

	return cmd
}

func DotCmd(ctx context.Context, w io.Writer, configFile string, o queryOptions, web, span bool) error {
	log := clog.FromContext(ctx)

	s, err := loadSack(ctx, configFile, o.disable)
	if err != nil {
		return err
	}

	// render draws the packages matched by o plus those named by nodes.
	render := func(o queryOptions, nodes []string) *dot.Graph {
		pkgs, err := dotPackages(ctx, s, o, nodes)
		if err != nil {
			log.Errorf("failed to filter packages: %v", err)
		}
		return renderGraph(s, configFile, pkgs, err, web, span)
	}

	if web {
		http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/" {
				return
			}
			nodes := r.URL.Query()["node"]
			out := render(o, nodes)

			log.Infof("%s: rendering %v", r.URL, nodes)
			cmd := exec.Command("dot", "-Tsvg")
			cmd.Stdin = strings.NewReader(out.String())
			cmd.Stdout = w

			if err := cmd.Run(); err != nil {
				fmt.Fprintf(w, "error rendering %v: %v", nodes, err)
			}
		})

		l, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return err
		}

		server := &http.Server{
			Addr:              l.Addr().String(),
			ReadHeaderTimeout: 3 * time.Second,
		}

		log.Infof("%s", l.Addr().String())

		var g errgroup.Group
		g.Go(func() error {
			return server.Serve(l)
		})

		g.Go(func() error {
			return open.Run(fmt.Sprintf("http://localhost:%d", l.Addr().(*net.TCPAddr).Port))
		})

		return g.Wait()
	}

	out := render(o, nil)
	fmt.Fprintln(w, out.String())
	return nil
}

// dotPackages returns the packages matched by o together with the packages
// named by nodes, in sack order. Nodes are still resolved when o fails to
// filter.
func dotPackages(ctx context.Context, s *sack.Sack, o queryOptions, nodes []string) ([]*sack.Package, error) {
	var pkgs []*sack.Package
	args, err := o.args()
	if err == nil {
		var q *query.Query
		if q, err = query.New(s).Filter(args...); err == nil {
			pkgs = q.Run(ctx)
		}
	}
	if len(nodes) == 0 {
		return pkgs, err
	}

	q, nerr := query.New(s).Filter(query.By("nevra", nodes))
	if nerr != nil {
		return pkgs, errors.Join(err, nerr)
	}
	seen := sets.New(pkgs...)
	for _, p := range q.Run(ctx) {
		if !seen.Has(p) {
			seen.Insert(p)
			pkgs = append(pkgs, p)
		}
	}
	s.SortPackages(pkgs)
	return pkgs, err
}

// renderGraph draws an edge from the root to every package of pkgs and from
// each of those to the providers of its requirements. Requirements nothing
// provides are drawn as boxes.
func renderGraph(s *sack.Sack, root string, pkgs []*sack.Package, filterErr error, web, span bool) *dot.Graph {
	out := dot.NewGraph("pkgq")
	if err := out.Set("rankdir", "LR"); err != nil {
		panic(err)
	}
	out.SetType(dot.DIGRAPH)

	file := dot.NewNode(root)
	out.AddNode(file)

	node := func(p *sack.Package) *dot.Node {
		n := dot.NewNode(p.String())
		if web {
			if err := n.Set("URL", "/?node="+p.String()); err != nil {
				panic(err)
			}
		}
		out.AddNode(n)
		return n
	}

	ri := s.Relations()
	edges := map[string]struct{}{}
	for _, p := range pkgs {
		n := node(p)
		out.AddEdge(dot.NewEdge(file, n))

		for _, req := range p.Requires {
			providers := ri.WhatProvides(req)
			if len(providers) == 0 {
				r := dot.NewNode(req.String())
				if err := r.Set("shape", "rect"); err != nil {
					panic(err)
				}
				out.AddNode(r)
				out.AddEdge(dot.NewEdge(n, r))
				continue
			}
			for _, prov := range providers {
				if prov == p {
					continue
				}
				target := prov.String()
				if _, ok := edges[target]; ok && span {
					continue
				}
				e := dot.NewEdge(n, node(prov))
				if err := e.Set("label", req.String()); err != nil {
					panic(err)
				}
				out.AddEdge(e)
				edges[target] = struct{}{}
			}
		}
	}

	if filterErr != nil {
		errorNode := dot.NewNode("❌ error")
		out.AddNode(errorNode)
		walkErrors(out, filterErr, errorNode)
	}
	return out
}

type unwrappers interface {
	Unwrap() []error
}

func walkErrors(out *dot.Graph, err error, parent *dot.Node) {
	node := makeNode(out, err, parent)

	if wrapped := errors.Unwrap(err); wrapped != nil {
		walkErrors(out, wrapped, node)
	} else if mw, ok := err.(unwrappers); ok { //nolint:errorlint
		for _, wrapped := range mw.Unwrap() {
			walkErrors(out, wrapped, node)
		}
	}
}

func makeNode(out *dot.Graph, err error, parent *dot.Node) *dot.Node {
	nodeName, label := "❌ "+err.Error(), ""
	switch v := err.(type) { //nolint:errorlint
	case *query.ValueError:
		nodeName, label = v.Reason, "invalid value for "+v.Key
	case *query.QueryError:
		nodeName, label = v.Reason, "invalid query on "+v.Key
	}

	node := dot.NewNode(nodeName)
	out.AddNode(node)
	edge := dot.NewEdge(parent, node)
	if label != "" {
		if err := edge.Set("label", label); err != nil {
			panic(err)
		}
	}
	out.AddEdge(edge)
	return node
}
