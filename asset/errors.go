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

import "fmt"

// IOError reports a source file that could not be read.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("reading %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ParseError reports source the grammar rejected. Line and Column are
// 1-indexed and point at the first syntax error in the file.
type ParseError struct {
	Path   string
	Line   int
	Column int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: syntax error", e.Path, e.Line, e.Column)
}

// TransformError reports a failure to generate host code from a parsed file.
type TransformError struct {
	Path    string
	Line    int
	Column  int
	Message string
}

func (e *TransformError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: transform failed: %s", e.Path, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: transform failed: %s", e.Path, e.Message)
}
