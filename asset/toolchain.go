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
package asset

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	ts "github.com/tree-sitter/go-tree-sitter"
)

// Tree is a parsed source file.
type Tree interface {
	Filename() string
	Source() []byte
	// Close releases any resources held by the tree.
	Close()
}

// Toolchain is the parse, scan and transform capability the Extractor
// drives. Any implementation honoring the contract can replace the default
// without touching graph building or emitting.
type Toolchain interface {
	// Parse returns a syntax tree, or a *ParseError if the grammar rejects src.
	Parse(filename string, src []byte) (Tree, error)
	// StaticImports returns the raw specifiers of the tree's static import
	// declarations in declaration order.
	StaticImports(tree Tree) ([]string, error)
	// Transform returns host-executable code for the tree, or a *TransformError.
	Transform(tree Tree) (string, error)
}

// DefaultToolchain parses with tree-sitter's TypeScript grammars and lowers
// code to CommonJS with esbuild. JSX compiles to React.createElement calls.
type DefaultToolchain struct {
	// Target is the language level of generated code.
	Target api.Target
}

// NewToolchain creates the default toolchain targeting ES2015.
func NewToolchain() *DefaultToolchain {
	return &DefaultToolchain{Target: api.ES2015}
}

// syntaxTree is the Tree produced by DefaultToolchain.
type syntaxTree struct {
	filename string
	source   []byte
	grammar  grammar
	tree     *ts.Tree
}

func (t *syntaxTree) Filename() string { return t.filename }
func (t *syntaxTree) Source() []byte   { return t.source }

func (t *syntaxTree) Close() {
	if t.tree != nil {
		t.tree.Close()
		t.tree = nil
	}
}

// Parse implements Toolchain.
func (tc *DefaultToolchain) Parse(filename string, src []byte) (Tree, error) {
	g := grammarFor(filename)

	parser := getParser(g)
	defer putParser(g, parser)

	tree := parser.Parse(src, nil)
	if tree == nil {
		return nil, &ParseError{Path: filename, Line: 1, Column: 1}
	}

	root := tree.RootNode()
	if root.HasError() {
		bad := firstError(root)
		if bad == nil {
			bad = root
		}
		pos := bad.StartPosition()
		tree.Close()
		return nil, &ParseError{
			Path:   filename,
			Line:   int(pos.Row) + 1,
			Column: int(pos.Column) + 1,
		}
	}

	return &syntaxTree{filename: filename, source: src, grammar: g, tree: tree}, nil
}

// firstError finds the first ERROR or MISSING node in document order.
func firstError(n *ts.Node) *ts.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		if child.HasError() || child.IsMissing() {
			if bad := firstError(child); bad != nil {
				return bad
			}
		}
	}
	return nil
}

// StaticImports implements Toolchain.
func (tc *DefaultToolchain) StaticImports(tree Tree) ([]string, error) {
	st, ok := tree.(*syntaxTree)
	if !ok {
		return nil, fmt.Errorf("unsupported tree type %T", tree)
	}

	qm, err := GetQueryManager()
	if err != nil {
		return nil, err
	}

	query, err := qm.Query(st.grammar, "imports")
	if err != nil {
		return nil, err
	}

	cursor := ts.NewQueryCursor()
	defer cursor.Close()

	specifiers := []string{}
	matches := cursor.Matches(query, st.tree.RootNode(), st.source)
	captureNames := query.CaptureNames()

	for {
		match := matches.Next()
		if match == nil {
			break
		}

		for _, capture := range match.Captures {
			if captureNames[capture.Index] != "import.source" {
				continue
			}
			specifiers = append(specifiers, stringValue(&capture.Node, st.source))
		}
	}

	return specifiers, nil
}

// stringValue returns the value of a string literal node, decoding escapes.
func stringValue(n *ts.Node, src []byte) string {
	var b strings.Builder
	for i := uint(0); i < n.NamedChildCount(); i++ {
		child := n.NamedChild(i)
		if child == nil {
			continue
		}
		text := child.Utf8Text(src)
		switch child.Kind() {
		case "string_fragment":
			b.WriteString(text)
		case "escape_sequence":
			b.WriteString(unescape(text))
		}
	}
	return b.String()
}

func unescape(seq string) string {
	switch seq {
	case `\'`:
		return "'"
	case `\"`:
		return "\""
	}
	if s, err := strconv.Unquote(`"` + seq + `"`); err == nil {
		return s
	}
	return strings.TrimPrefix(seq, `\`)
}

// Transform implements Toolchain.
func (tc *DefaultToolchain) Transform(tree Tree) (string, error) {
	result := api.Transform(string(tree.Source()), api.TransformOptions{
		Sourcefile: tree.Filename(),
		Loader:     loaderFor(tree.Filename()),
		Format:     api.FormatCommonJS,
		Target:     tc.Target,
		JSX:        api.JSXTransform,
		LogLevel:   api.LogLevelSilent,
	})

	if len(result.Errors) > 0 {
		msg := result.Errors[0]
		terr := &TransformError{Path: tree.Filename(), Message: msg.Text}
		if msg.Location != nil {
			terr.Line = msg.Location.Line
			terr.Column = msg.Location.Column + 1
		}
		return "", terr
	}

	return string(result.Code), nil
}

// loaderFor picks the esbuild loader for a file by extension. Plain
// JavaScript goes through the JSX loader so .js files may contain JSX.
func loaderFor(filename string) api.Loader {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".ts", ".mts", ".cts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	default:
		return api.LoaderJSX
	}
}
