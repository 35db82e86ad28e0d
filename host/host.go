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

// Package host executes bundle artifacts in an embedded JavaScript engine.
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dop251/goja"
)

// Options configures a Host.
type Options struct {
	// Stdout receives console.log and console.info output.
	Stdout io.Writer
	// Stderr receives console.warn and console.error output.
	Stderr io.Writer
}

// Host is a single JavaScript runtime. It is not safe for concurrent use.
type Host struct {
	vm *goja.Runtime
}

// New creates a Host with a console object wired to opts.
func New(opts Options) *Host {
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}

	vm := goja.New()
	console := vm.NewObject()
	_ = console.Set("log", printer(opts.Stdout))
	_ = console.Set("info", printer(opts.Stdout))
	_ = console.Set("warn", printer(opts.Stderr))
	_ = console.Set("error", printer(opts.Stderr))
	_ = vm.Set("console", console)

	return &Host{vm: vm}
}

// Runtime returns the underlying goja runtime.
func (h *Host) Runtime() *goja.Runtime {
	return h.vm
}

// Run executes src as a script named name and returns its completion value.
// For a bundle artifact that is the entry module's exports. Cancelling ctx
// interrupts the script.
func (h *Host) Run(ctx context.Context, name, src string) (goja.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	program, err := goja.Compile(name, src, false)
	if err != nil {
		return nil, fmt.Errorf("compiling %s: %w", name, err)
	}

	stop := context.AfterFunc(ctx, func() {
		h.vm.Interrupt(ctx.Err())
	})
	defer stop()

	value, err := h.vm.RunProgram(program)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			h.vm.ClearInterrupt()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
		}
		return nil, err
	}
	return value, nil
}

func printer(w io.Writer) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		fmt.Fprintln(w, strings.Join(parts, " "))
		return goja.Undefined()
	}
}
