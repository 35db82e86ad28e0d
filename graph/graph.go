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

// Package graph discovers an entry file's static import graph and numbers
// every discovered asset in breadth-first order.
//
// By default the graph is not deduplicated: a file imported from two sites
// becomes two assets with two IDs, and an import cycle makes the build run
// until its context is cancelled. Options.Dedupe and Options.MaxAssets are
// the explicit opt-outs.
package graph

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"bennypowers.dev/bundla/asset"
	"bennypowers.dev/bundla/fs"
)

// ErrGraphNonTermination is returned when a build exceeds Options.MaxAssets.
var ErrGraphNonTermination = errors.New("import graph does not terminate")

// ErrNotAFile is wrapped in an *asset.IOError when a specifier resolves to
// something other than a regular file, such as a directory.
var ErrNotAFile = errors.New("not a regular file")

// Logger receives debug events during a build.
type Logger interface {
	Debug(msg any, keyvals ...any)
}

// Options configures a Builder.
type Options struct {
	// Dedupe keys assets by cleaned absolute path, so each file becomes
	// exactly one asset and import cycles terminate.
	Dedupe bool

	// MaxAssets fails the build with ErrGraphNonTermination once the graph
	// would hold more assets than this. Zero means no limit.
	MaxAssets int

	// Logger receives debug events. Nil is silent.
	Logger Logger
}

// Graph is the ordered asset collection of one build. Assets[i].ID == i.
type Graph struct {
	Assets []*asset.Asset
}

// Builder builds Graphs with an Extractor.
type Builder struct {
	extractor *asset.Extractor
	fs        fs.FileSystem
	opts      Options
}

// NewBuilder creates a Builder reading files from fsys. A nil toolchain
// selects the default one.
func NewBuilder(fsys fs.FileSystem, toolchain asset.Toolchain, opts Options) *Builder {
	return &Builder{
		extractor: asset.NewExtractor(fsys, toolchain),
		fs:        fsys,
		opts:      opts,
	}
}

// Build extracts the entry file and every file reachable through static
// imports. The entry is always asset 0. Any extraction or resolution error
// aborts the whole build.
func (b *Builder) Build(ctx context.Context, entry string) (*Graph, error) {
	entry, err := filepath.Abs(entry)
	if err != nil {
		return nil, fmt.Errorf("invalid entry path: %w", err)
	}
	if err := b.checkFile(entry); err != nil {
		return nil, err
	}

	var ids asset.Counter
	root, err := b.extract(&ids, entry)
	if err != nil {
		return nil, err
	}

	g := &Graph{Assets: []*asset.Asset{root}}
	visited := map[string]*asset.Asset{entry: root}
	seen := map[string]int{entry: 1}

	// Assets whose dependencies are still unresolved, oldest first.
	worklist := []*asset.Asset{root}

	for len(worklist) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		current := worklist[0]
		worklist = worklist[1:]

		dir := filepath.Dir(current.Filename)
		current.Mapping = make(map[string]int, len(current.Dependencies))

		for _, spec := range current.Dependencies {
			depPath := filepath.Join(dir, spec)

			if b.opts.Dedupe {
				if existing, ok := visited[depPath]; ok {
					current.Mapping[spec] = existing.ID
					continue
				}
			}

			if b.opts.MaxAssets > 0 && len(g.Assets) >= b.opts.MaxAssets {
				return nil, fmt.Errorf("%w: more than %d assets while resolving %q from %s",
					ErrGraphNonTermination, b.opts.MaxAssets, spec, current.Filename)
			}

			if err := b.checkFile(depPath); err != nil {
				return nil, fmt.Errorf("resolving %q from %s: %w", spec, current.Filename, err)
			}

			child, err := b.extract(&ids, depPath)
			if err != nil {
				return nil, fmt.Errorf("resolving %q from %s: %w", spec, current.Filename, err)
			}

			if n := seen[depPath]; n > 0 {
				b.debug("file materialized again", "file", depPath, "id", child.ID, "copies", n+1)
			}
			seen[depPath]++

			current.Mapping[spec] = child.ID
			visited[depPath] = child
			g.Assets = append(g.Assets, child)
			worklist = append(worklist, child)
		}
	}

	return g, nil
}

// checkFile requires path to name an existing regular file. Resolution is
// exact: no extensions are tried and directories have no index fallback.
func (b *Builder) checkFile(path string) error {
	info, err := b.fs.Stat(path)
	if err != nil {
		return &asset.IOError{Path: path, Err: err}
	}
	if !info.Mode().IsRegular() {
		return &asset.IOError{Path: path, Err: ErrNotAFile}
	}
	return nil
}

func (b *Builder) extract(ids *asset.Counter, path string) (*asset.Asset, error) {
	a, err := b.extractor.Extract(ids, path)
	if err != nil {
		return nil, err
	}
	b.debug("extracted asset", "id", a.ID, "file", a.Filename, "dependencies", len(a.Dependencies))
	return a, nil
}

func (b *Builder) debug(msg string, keyvals ...any) {
	if b.opts.Logger != nil {
		b.opts.Logger.Debug(msg, keyvals...)
	}
}
