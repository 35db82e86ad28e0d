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
// Package run provides the run command for bundla.
package run

import (
	"fmt"

	"github.com/spf13/cobra"

	"bennypowers.dev/bundla/fs"
	"bennypowers.dev/bundla/host"
)

// Cmd is the run command. It executes a bundle artifact in the embedded
// JavaScript host.
var Cmd = &cobra.Command{
	Use:   "run <artifact.js>",
	Short: "Execute a bundle artifact",
	Long: `Execute a bundle artifact in an embedded JavaScript engine.

console.log and console.info print to stdout; console.warn and
console.error print to stderr. Ctrl-C interrupts the script.`,
	Example: `  bundla build src/index.js && bundla run build/bundle.js`,
	Args:    cobra.ExactArgs(1),
	RunE:    run,
}

func run(cmd *cobra.Command, args []string) error {
	osfs := fs.NewOSFileSystem()

	src, err := osfs.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading artifact: %w", err)
	}

	h := host.New(host.Options{
		Stdout: cmd.OutOrStdout(),
		Stderr: cmd.ErrOrStderr(),
	})
	if _, err := h.Run(cmd.Context(), args[0], string(src)); err != nil {
		return fmt.Errorf("running %s: %w", args[0], err)
	}
	return nil
}
