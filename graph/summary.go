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
package graph

import (
	"path/filepath"

	"bennypowers.dev/bundla/asset"
)

// Entry returns the entry asset, or nil for an empty graph.
func (g *Graph) Entry() *asset.Asset {
	if g == nil || len(g.Assets) == 0 {
		return nil
	}
	return g.Assets[0]
}

// Len returns the number of assets in the graph.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.Assets)
}

// Asset returns the asset with the given ID.
func (g *Graph) Asset(id int) (*asset.Asset, bool) {
	if g == nil || id < 0 || id >= len(g.Assets) {
		return nil, false
	}
	return g.Assets[id], true
}

// Files returns the distinct filenames in the graph in first-seen order.
// Without dedupe this can be shorter than the asset list.
func (g *Graph) Files() []string {
	if g == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(g.Assets))
	var files []string
	for _, a := range g.Assets {
		if _, ok := seen[a.Filename]; ok {
			continue
		}
		seen[a.Filename] = struct{}{}
		files = append(files, a.Filename)
	}
	return files
}

// Summary is a portable view of a graph for JSON output.
type Summary struct {
	Entry  string         `json:"entry"`
	Files  int            `json:"files"`
	Assets []AssetSummary `json:"assets"`
}

// AssetSummary describes one asset with its path relative to the root.
type AssetSummary struct {
	ID           int            `json:"id"`
	File         string         `json:"file"`
	Dependencies []string       `json:"dependencies"`
	Mapping      map[string]int `json:"mapping"`
}

// Summary returns the graph with paths made relative to root where possible.
func (g *Graph) Summary(root string) *Summary {
	relativize := func(absPath string) string {
		if rel, err := filepath.Rel(root, absPath); err == nil {
			return filepath.ToSlash(rel)
		}
		return absPath
	}

	s := &Summary{
		Files:  len(g.Files()),
		Assets: make([]AssetSummary, 0, g.Len()),
	}
	if entry := g.Entry(); entry != nil {
		s.Entry = relativize(entry.Filename)
	}
	for _, a := range g.Assets {
		s.Assets = append(s.Assets, AssetSummary{
			ID:           a.ID,
			File:         relativize(a.Filename),
			Dependencies: a.Dependencies,
			Mapping:      a.Mapping,
		})
	}
	return s
}
