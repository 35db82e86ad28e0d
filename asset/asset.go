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

// Package asset turns one source file into an Asset: a numbered record of
// the file's transformed code and the specifiers of its static imports.
package asset

import (
	"bennypowers.dev/bundla/fs"
)

// Asset is one parsed and transformed file.
type Asset struct {
	// ID addresses the asset inside the emitted module table.
	ID int `json:"id"`

	// Filename is the absolute path of the source file. It is the base for
	// resolving the file's own relative imports and nothing else.
	Filename string `json:"filename"`

	// Code is the transformed source, the body of the module factory.
	Code string `json:"-"`

	// Dependencies are the raw specifiers of the file's static import
	// declarations, in declaration order.
	Dependencies []string `json:"dependencies"`

	// Mapping maps each raw specifier to the ID of the asset it resolved to.
	// It is nil until the graph builder resolves the asset's dependencies.
	Mapping map[string]int `json:"mapping"`
}

// Counter hands out asset IDs for one build. IDs start at 0 and are never
// reused; a fresh Counter per build keeps concurrent builds independent.
type Counter struct {
	next int
}

// Next returns the next ID and advances the counter.
func (c *Counter) Next() int {
	id := c.next
	c.next++
	return id
}

// Peek returns the ID the next call to Next will return.
func (c *Counter) Peek() int {
	return c.next
}

// Extractor produces Assets from files using a Toolchain.
type Extractor struct {
	fs        fs.FileSystem
	toolchain Toolchain
}

// NewExtractor creates an Extractor reading from fsys. A nil toolchain
// selects the default tree-sitter and esbuild toolchain.
func NewExtractor(fsys fs.FileSystem, toolchain Toolchain) *Extractor {
	if toolchain == nil {
		toolchain = NewToolchain()
	}
	return &Extractor{fs: fsys, toolchain: toolchain}
}

// Extract reads, parses, scans and transforms the file at path, then takes
// the next ID from ids. No ID is consumed when extraction fails.
func (e *Extractor) Extract(ids *Counter, path string) (*Asset, error) {
	content, err := e.fs.ReadFile(path)
	if err != nil {
		return nil, &IOError{Path: path, Err: err}
	}

	tree, err := e.toolchain.Parse(path, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	deps, err := e.toolchain.StaticImports(tree)
	if err != nil {
		return nil, err
	}

	code, err := e.toolchain.Transform(tree)
	if err != nil {
		return nil, err
	}

	return &Asset{
		ID:           ids.Next(),
		Filename:     path,
		Code:         code,
		Dependencies: deps,
	}, nil
}
