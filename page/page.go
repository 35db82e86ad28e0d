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
// Package page writes the HTML page that loads a bundle artifact.
package page

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Location is the byte offset where a script tag would be inserted.
type Location struct {
	Offset int
	// Indent is the whitespace preceding the closing body tag.
	Indent string
	// Found is false when the document has no closing body tag and the
	// tag is appended to the end instead.
	Found bool
}

// scan walks the document's tokens once. It reports whether a script
// element with the given src already exists, and where to insert one.
func scan(doc []byte, src string) (exists bool, loc Location, err error) {
	z := html.NewTokenizer(bytes.NewReader(doc))
	offset := 0
	loc = Location{Offset: len(doc)}

	for {
		tt := z.Next()
		raw := len(z.Raw())

		switch tt {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return exists, loc, nil
			}
			return false, loc, z.Err()

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.DataAtom == atom.Script && attr(tok, "src") == src {
				exists = true
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			if atom.Lookup(name) == atom.Body {
				loc = Location{
					Offset: offset,
					Indent: indentBefore(doc, offset),
					Found:  true,
				}
			}
		}

		offset += raw
	}
}

func attr(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// indentBefore returns the run of spaces and tabs between the last newline
// and offset.
func indentBefore(doc []byte, offset int) string {
	start := offset
	for start > 0 && (doc[start-1] == ' ' || doc[start-1] == '\t') {
		start--
	}
	if start > 0 && doc[start-1] != '\n' {
		return ""
	}
	return string(doc[start:offset])
}

// Inject adds <script src="src"></script> before the closing body tag of
// doc, or at the end of doc when there is none. It reports false and
// returns doc unchanged when a script with the same src is present.
func Inject(doc []byte, src string) ([]byte, bool, error) {
	exists, loc, err := scan(doc, src)
	if err != nil {
		return nil, false, fmt.Errorf("scanning document: %w", err)
	}
	if exists {
		return doc, false, nil
	}

	var tag strings.Builder
	switch {
	case loc.Found:
		tag.WriteString("  ")
	case len(doc) > 0 && doc[len(doc)-1] != '\n':
		tag.WriteString("\n")
	}
	tag.WriteString(`<script src="`)
	tag.WriteString(html.EscapeString(src))
	tag.WriteString(`"></script>`)
	tag.WriteString("\n")
	tag.WriteString(loc.Indent)

	out := make([]byte, 0, len(doc)+tag.Len())
	out = append(out, doc[:loc.Offset]...)
	out = append(out, tag.String()...)
	out = append(out, doc[loc.Offset:]...)
	return out, true, nil
}

// Default renders a minimal page with a #root mount point that loads src.
func Default(title, src string) ([]byte, error) {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
	doc.AppendChild(text("\n"))

	root := element(atom.Html)
	doc.AppendChild(root)

	head := element(atom.Head)
	root.AppendChild(text("\n  "))
	root.AppendChild(head)
	head.AppendChild(text("\n    "))
	head.AppendChild(element(atom.Meta, html.Attribute{Key: "charset", Val: "utf-8"}))
	head.AppendChild(text("\n    "))
	titleNode := element(atom.Title)
	titleNode.AppendChild(text(title))
	head.AppendChild(titleNode)
	head.AppendChild(text("\n  "))

	body := element(atom.Body)
	root.AppendChild(text("\n  "))
	root.AppendChild(body)
	root.AppendChild(text("\n"))
	body.AppendChild(text("\n    "))
	body.AppendChild(element(atom.Div, html.Attribute{Key: "id", Val: "root"}))
	body.AppendChild(text("\n    "))
	body.AppendChild(element(atom.Script, html.Attribute{Key: "src", Val: src}))
	body.AppendChild(text("\n  "))

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, fmt.Errorf("rendering page: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: a,
		Data:     a.String(),
		Attr:     attrs,
	}
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}
