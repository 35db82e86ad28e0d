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
// Package pack runs whole builds: it discovers an entry's graph, emits the
// bundle artifact, and writes it (and optionally an HTML page) to disk.
package pack

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"bennypowers.dev/bundla/asset"
	"bennypowers.dev/bundla/bundle"
	"bennypowers.dev/bundla/fs"
	"bennypowers.dev/bundla/graph"
	"bennypowers.dev/bundla/packagejson"
	"bennypowers.dev/bundla/page"
)

// DefaultOutDir is the fixed build location, relative to the working
// directory.
const DefaultOutDir = "build"

// DefaultOutput is the artifact name of a single-entry build.
const DefaultOutput = "bundle.js"

// Logger receives build events.
type Logger interface {
	Debug(msg any, keyvals ...any)
	Info(msg any, keyvals ...any)
}

// Options configures Build and BuildBatch.
type Options struct {
	// Dedupe and MaxAssets are passed to the graph builder.
	Dedupe    bool
	MaxAssets int

	// Memoize makes the emitted loader cache exports per module.
	Memoize bool

	// Parallel is the number of workers for BuildBatch. Zero means NumCPU.
	Parallel int

	// OutDir receives artifacts. Defaults to DefaultOutDir.
	OutDir string

	// Output overrides the artifact path of a single-entry build.
	Output string

	// HTML writes a page next to each artifact that loads it.
	HTML bool

	// HTMLTemplate is an HTML file the script tag is injected into. When
	// empty, a minimal page is generated.
	HTMLTemplate string

	// Toolchain replaces the default parser and transformer.
	Toolchain asset.Toolchain

	Logger Logger
}

// Result describes one finished (or failed) build.
type Result struct {
	Entry  string `json:"entry"`
	Output string `json:"output,omitempty"`
	Page   string `json:"page,omitempty"`
	Assets int    `json:"assets"`
	Files  int    `json:"files"`
	Bytes  int    `json:"bytes"`
	Error  string `json:"error,omitempty"`
}

// EntryFromPackage returns the entry module named by dir/package.json.
func EntryFromPackage(osfs fs.FileSystem, dir string) (string, error) {
	return packagejson.EntryFile(osfs, dir, nil)
}

// Build bundles entry into Options.Output, or <OutDir>/bundle.js.
func Build(ctx context.Context, osfs fs.FileSystem, entry string, opts Options) (*Result, error) {
	out := opts.Output
	if out == "" {
		out = filepath.Join(outDir(opts), DefaultOutput)
	}
	pagePath := ""
	if opts.HTML {
		pagePath = filepath.Join(filepath.Dir(out), "index.html")
	}
	return build(ctx, osfs, entry, out, pagePath, opts)
}

// BuildBatch bundles each entry in parallel into <OutDir>/<name>.bundle.js,
// where name is the entry's base name without its extension. Results
// arrive in completion order.
func BuildBatch(ctx context.Context, osfs fs.FileSystem, entries []string, opts Options) <-chan Result {
	results := make(chan Result, len(entries))

	go func() {
		defer close(results)

		parallel := opts.Parallel
		if parallel <= 0 {
			parallel = runtime.NumCPU()
		}

		type job struct {
			entry, out, page string
		}

		// Claim output names up front so colliding entries fail instead
		// of overwriting each other.
		claimed := make(map[string]string, len(entries))
		jobs := make(chan job, len(entries))
		for _, entry := range entries {
			name := batchName(entry)
			out := filepath.Join(outDir(opts), name+".bundle.js")
			if other, taken := claimed[out]; taken {
				results <- Result{Entry: entry, Error: fmt.Sprintf("output %s is already written by %s", out, other)}
				continue
			}
			claimed[out] = entry

			j := job{entry: entry, out: out}
			if opts.HTML {
				j.page = filepath.Join(outDir(opts), name+".html")
			}
			jobs <- j
		}
		close(jobs)

		var wg sync.WaitGroup
		for range parallel {
			wg.Go(func() {
				for j := range jobs {
					result, err := build(ctx, osfs, j.entry, j.out, j.page, opts)
					if err != nil {
						results <- Result{Entry: j.entry, Error: err.Error()}
						continue
					}
					results <- *result
				}
			})
		}
		wg.Wait()
	}()

	return results
}

func build(ctx context.Context, osfs fs.FileSystem, entry, out, pagePath string, opts Options) (*Result, error) {
	builder := graph.NewBuilder(osfs, opts.Toolchain, graph.Options{
		Dedupe:    opts.Dedupe,
		MaxAssets: opts.MaxAssets,
		Logger:    opts.Logger,
	})

	g, err := builder.Build(ctx, entry)
	if err != nil {
		return nil, err
	}

	artifact, err := bundle.New(bundle.Options{Memoize: opts.Memoize}).Emit(g)
	if err != nil {
		return nil, err
	}

	if err := osfs.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	if err := osfs.WriteFile(out, artifact, 0644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", out, err)
	}

	result := &Result{
		Entry:  g.Entry().Filename,
		Output: out,
		Assets: g.Len(),
		Files:  len(g.Files()),
		Bytes:  len(artifact),
	}

	if pagePath != "" {
		if err := writePage(osfs, pagePath, out, g.Entry().Filename, opts.HTMLTemplate); err != nil {
			return nil, err
		}
		result.Page = pagePath
	}

	if opts.Logger != nil {
		opts.Logger.Info("wrote bundle", "output", out, "assets", result.Assets, "bytes", result.Bytes)
	}
	return result, nil
}

func writePage(osfs fs.FileSystem, pagePath, artifact, entry, template string) error {
	src, err := filepath.Rel(filepath.Dir(pagePath), artifact)
	if err != nil {
		src = filepath.Base(artifact)
	}
	src = filepath.ToSlash(src)

	var doc []byte
	if template == "" {
		doc, err = page.Default(batchName(entry), src)
	} else {
		var base []byte
		base, err = osfs.ReadFile(template)
		if err != nil {
			return fmt.Errorf("reading HTML template: %w", err)
		}
		doc, _, err = page.Inject(base, src)
	}
	if err != nil {
		return err
	}

	if err := osfs.WriteFile(pagePath, doc, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", pagePath, err)
	}
	return nil
}

func outDir(opts Options) string {
	if opts.OutDir == "" {
		return DefaultOutDir
	}
	return opts.OutDir
}

func batchName(entry string) string {
	base := filepath.Base(entry)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
