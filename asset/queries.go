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
	"embed"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"

	ts "github.com/tree-sitter/go-tree-sitter"
	tsTypescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

//go:embed queries/*.scm
var queryFiles embed.FS

// grammar names a tree-sitter grammar the toolchain can parse with.
type grammar string

const (
	// grammarTypeScript parses .ts files, where <T>expr is a type assertion.
	grammarTypeScript grammar = "typescript"
	// grammarTSX parses everything else: module syntax, JSX and type annotations.
	grammarTSX grammar = "tsx"
)

// Languages holds pre-initialized tree-sitter language grammars.
var languages = map[grammar]*ts.Language{
	grammarTypeScript: ts.NewLanguage(tsTypescript.LanguageTypescript()),
	grammarTSX:        ts.NewLanguage(tsTypescript.LanguageTSX()),
}

// grammarFor picks the grammar for a file by extension.
func grammarFor(filename string) grammar {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".ts", ".mts", ".cts":
		return grammarTypeScript
	default:
		return grammarTSX
	}
}

// Parser pools for reuse, one per grammar.
var parserPools = map[grammar]*sync.Pool{
	grammarTypeScript: newParserPool(grammarTypeScript),
	grammarTSX:        newParserPool(grammarTSX),
}

func newParserPool(g grammar) *sync.Pool {
	return &sync.Pool{
		New: func() any {
			parser := ts.NewParser()
			if err := parser.SetLanguage(languages[g]); err != nil {
				panic("failed to set " + string(g) + " language: " + err.Error())
			}
			return parser
		},
	}
}

// getParser retrieves a parser for g from the pool.
func getParser(g grammar) *ts.Parser {
	return parserPools[g].Get().(*ts.Parser)
}

// putParser returns a parser to the pool for g.
func putParser(g grammar, p *ts.Parser) {
	p.Reset()
	parserPools[g].Put(p)
}

// QueryManager holds compiled tree-sitter queries per grammar.
type QueryManager struct {
	mu      sync.Mutex
	closed  bool
	queries map[grammar]map[string]*ts.Query
}

// NewQueryManager compiles the named queries for every grammar.
func NewQueryManager(names []string) (*QueryManager, error) {
	qm := &QueryManager{
		queries: make(map[grammar]map[string]*ts.Query),
	}

	for g := range languages {
		qm.queries[g] = make(map[string]*ts.Query)
		for _, name := range names {
			if err := qm.loadQuery(g, name); err != nil {
				qm.Close()
				return nil, err
			}
		}
	}

	return qm, nil
}

func (qm *QueryManager) loadQuery(g grammar, name string) error {
	queryPath := path.Join("queries", name+".scm")
	data, err := queryFiles.ReadFile(queryPath)
	if err != nil {
		return fmt.Errorf("failed to read query %s: %w", queryPath, err)
	}

	query, qerr := ts.NewQuery(languages[g], string(data))
	if qerr != nil {
		return fmt.Errorf("failed to parse query %s for %s: %w", name, g, qerr)
	}

	qm.queries[g][name] = query
	return nil
}

// Close releases all query resources. Safe to call multiple times.
func (qm *QueryManager) Close() {
	qm.mu.Lock()
	if qm.closed {
		qm.mu.Unlock()
		return
	}
	qm.closed = true
	queries := qm.queries
	qm.queries = nil
	qm.mu.Unlock()

	for _, byName := range queries {
		for _, q := range byName {
			q.Close()
		}
	}
}

// Query returns a compiled query by grammar and name.
func (qm *QueryManager) Query(g grammar, name string) (*ts.Query, error) {
	q, ok := qm.queries[g][name]
	if !ok {
		return nil, fmt.Errorf("query not found: %s/%s", g, name)
	}
	return q, nil
}

// Global query manager singleton
var (
	globalQM     *QueryManager
	globalQMOnce sync.Once
	globalQMErr  error
)

// GetQueryManager returns the global query manager instance.
func GetQueryManager() (*QueryManager, error) {
	globalQMOnce.Do(func() {
		globalQM, globalQMErr = NewQueryManager([]string{"imports"})
	})
	return globalQM, globalQMErr
}
