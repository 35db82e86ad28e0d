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
// Package packagejson reads the fields of package.json that name a
// package's entry module.
package packagejson

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"bennypowers.dev/bundla/fs"
)

// ErrNoEntry is returned when package.json names no entry module.
var ErrNoEntry = errors.New("package.json names no entry module")

// errNotExported is returned when the "." export is absent or unresolvable.
var errNotExported = errors.New("not exported by package.json")

// DefaultConditions is the export condition priority used when resolving
// the "." export. Bundles are loaded in a browser-like host.
var DefaultConditions = []string{"source", "browser", "import", "default"}

// ResolveOptions configures how conditional exports are resolved.
type ResolveOptions struct {
	// Conditions is the ordered list of conditions to try. If nil,
	// defaults to DefaultConditions.
	Conditions []string
}

// PackageJSON is the subset of package.json bundla reads.
type PackageJSON struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Source  string `json:"source,omitempty"`
	Module  string `json:"module,omitempty"`
	Main    string `json:"main,omitempty"`
	Exports any    `json:"exports,omitempty"`
}

// Parse parses package.json data.
func Parse(data []byte) (*PackageJSON, error) {
	var pkg PackageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, err
	}
	return &pkg, nil
}

// ParseFile parses a package.json file.
func ParseFile(fs fs.FileSystem, path string) (*PackageJSON, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pkg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return pkg, nil
}

// Entry returns the package's entry module, relative to the package
// directory and without a leading "./". Fields are tried in order:
// source, module, the "." export, main.
// Pass nil for opts to use DefaultConditions.
func (pkg *PackageJSON) Entry(opts *ResolveOptions) (string, error) {
	switch {
	case pkg.Source != "":
		return trimDotSlash(pkg.Source), nil
	case pkg.Module != "":
		return trimDotSlash(pkg.Module), nil
	}
	if resolved, err := pkg.ResolveExport(opts); err == nil {
		return resolved, nil
	}
	if pkg.Main != "" {
		return trimDotSlash(pkg.Main), nil
	}
	return "", ErrNoEntry
}

// EntryFile parses dir/package.json and returns the absolute path of its
// entry module.
func EntryFile(fs fs.FileSystem, dir string, opts *ResolveOptions) (string, error) {
	pkg, err := ParseFile(fs, filepath.Join(dir, "package.json"))
	if err != nil {
		return "", err
	}
	entry, err := pkg.Entry(opts)
	if err != nil {
		return "", fmt.Errorf("%s: %w", filepath.Join(dir, "package.json"), err)
	}
	return filepath.Join(dir, filepath.FromSlash(entry)), nil
}

// ResolveExport resolves the package's "." export to a path without a
// leading "./".
func (pkg *PackageJSON) ResolveExport(opts *ResolveOptions) (string, error) {
	switch v := pkg.Exports.(type) {
	case nil:
		return "", errNotExported
	case string:
		return trimDotSlash(v), nil
	case map[string]any:
		// Condition-only exports describe "." directly.
		hasSubpaths := false
		for key := range v {
			if strings.HasPrefix(key, ".") {
				hasSubpaths = true
				break
			}
		}
		if !hasSubpaths {
			return resolveConditions(v, opts)
		}
		value, ok := v["."]
		if !ok {
			return "", errNotExported
		}
		return resolveExportValue(value, opts)
	}
	return "", errNotExported
}

func resolveExportValue(value any, opts *ResolveOptions) (string, error) {
	switch v := value.(type) {
	case string:
		return trimDotSlash(v), nil
	case map[string]any:
		return resolveConditions(v, opts)
	case []any:
		// Fallback array: first resolvable target wins.
		for _, item := range v {
			if result, err := resolveExportValue(item, opts); err == nil {
				return result, nil
			}
		}
	}
	return "", errNotExported
}

// resolveConditions tries each condition in priority order, recursing into
// nested maps.
func resolveConditions(conditions map[string]any, opts *ResolveOptions) (string, error) {
	conditionList := DefaultConditions
	if opts != nil && len(opts.Conditions) > 0 {
		conditionList = opts.Conditions
	}

	for _, cond := range conditionList {
		value, ok := conditions[cond]
		if !ok {
			continue
		}
		if result, err := resolveExportValue(value, opts); err == nil {
			return result, nil
		}
	}

	return "", errNotExported
}

func trimDotSlash(path string) string {
	return strings.TrimPrefix(path, "./")
}
