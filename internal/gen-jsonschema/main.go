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

package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/invopop/jsonschema"

	"chainguard.dev/pkgq/pkg/config"
)

var (
	outputFlag   = flag.String("o", "", "output path")
	commentsFlag = flag.String("comments", "../../pkg/config", "path to the config package, for field descriptions")
)

func generate(comments string) ([]byte, error) {
	r := new(jsonschema.Reflector)
	if comments != "" {
		if err := r.AddGoComments("chainguard.dev/pkgq/pkg/config", comments); err != nil {
			return nil, err
		}
	}
	schema := r.Reflect(config.Configuration{})
	b := new(bytes.Buffer)
	enc := json.NewEncoder(b)
	enc.SetIndent("", "  ")
	if err := enc.Encode(schema); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func main() {
	flag.Parse()

	if *outputFlag == "" {
		log.Fatal("output path is required")
	}

	b, err := generate(*commentsFlag)
	if err != nil {
		log.Fatal(err)
	}
	//nolint:gosec  // gosec wants us to use 0600, but making this globally readable is preferred.
	if err := os.WriteFile(*outputFlag, b, 0644); err != nil {
		log.Fatal(err)
	}
}
