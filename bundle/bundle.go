/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package bundle serializes a graph into one self-contained JavaScript
// artifact: a table of module factories keyed by asset ID and a small
// loader that wires them together at load time.
//
// The loader does not cache by default. Every require(id) runs the module's
// factory again and returns a fresh exports object. Options.Memoize makes
// it cache exports per ID the way most module systems do.
package bundle

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"text/template"

	"bennypowers.dev/bundla/asset"
	"bennypowers.dev/bundla/graph"
)

//go:embed runtime.js.tmpl
var runtimeSource string

var runtimeTemplate = template.Must(template.New("runtime").Parse(runtimeSource))

// ErrEmptyGraph is returned when there is nothing to emit.
var ErrEmptyGraph = errors.New("graph has no assets")

// Options configures an Emitter.
type Options struct {
	// Memoize caches each module's exports by ID after its first load.
	Memoize bool
}

// Emitter renders graphs into bundle artifacts.
type Emitter struct {
	opts Options
}

// New creates an Emitter.
func New(opts Options) *Emitter {
	return &Emitter{opts: opts}
}

type moduleData struct {
	ID      int
	Code    string
	Mapping string
}

type runtimeData struct {
	Memoize bool
	Entry   int
	Modules []moduleData
}

// Emit renders g. Factory bodies are inserted verbatim; a malformed body
// yields an artifact that fails when executed, not an error here.
func (e *Emitter) Emit(g *graph.Graph) ([]byte, error) {
	if g.Len() == 0 {
		return nil, ErrEmptyGraph
	}

	data := runtimeData{
		Memoize: e.opts.Memoize,
		Entry:   g.Entry().ID,
		Modules: make([]moduleData, 0, g.Len()),
	}

	for _, a := range g.Assets {
		mapping, err := MappingLiteral(a)
		if err != nil {
			return nil, fmt.Errorf("encoding mapping of asset %d (%s): %w", a.ID, a.Filename, err)
		}
		data.Modules = append(data.Modules, moduleData{
			ID:      a.ID,
			Code:    a.Code,
			Mapping: mapping,
		})
	}

	var buf bytes.Buffer
	if err := runtimeTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering bundle: %w", err)
	}
	return buf.Bytes(), nil
}

// MappingLiteral renders an asset's specifier-to-ID mapping as an object
// literal. Keys appear in first-declaration order and are JSON-quoted, so
// any specifier text survives intact.
func MappingLiteral(a *asset.Asset) (string, error) {
	var b strings.Builder
	b.WriteByte('{')

	// Specifiers missing from Dependencies still get emitted, sorted.
	order := slices.Clone(a.Dependencies)
	for _, spec := range slices.Sorted(maps.Keys(a.Mapping)) {
		if !slices.Contains(a.Dependencies, spec) {
			order = append(order, spec)
		}
	}

	written := make(map[string]bool, len(a.Mapping))
	for _, spec := range order {
		id, ok := a.Mapping[spec]
		if !ok || written[spec] {
			continue
		}
		key, err := json.Marshal(spec)
		if err != nil {
			return "", err
		}
		if len(written) > 0 {
			b.WriteByte(',')
		}
		written[spec] = true
		fmt.Fprintf(&b, "%s:%d", key, id)
	}

	b.WriteByte('}')
	return b.String(), nil
}
