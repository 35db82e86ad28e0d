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
// Package graph provides the graph command for bundla.
package graph

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bennypowers.dev/bundla/fs"
	"bennypowers.dev/bundla/graph"
	"bennypowers.dev/bundla/internal/logging"
	"bennypowers.dev/bundla/internal/output"
)

// Cmd is the graph command. It prints an entry's asset graph without
// emitting a bundle.
var Cmd = &cobra.Command{
	Use:   "graph <entry>",
	Short: "Print the asset graph of an entry module",
	Long: `Discover an entry module's static import graph and print it as JSON.

Each asset lists its ID, file (relative to --package), dependency
specifiers, and the specifier-to-ID mapping the bundle would use.`,
	Example: `  # Show every asset, one per import site
  bundla graph src/index.js

  # Show one asset per file
  bundla graph src/index.js --dedupe`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return viper.BindPFlags(cmd.Flags())
	},
	RunE: run,
}

func init() {
	Cmd.Flags().Bool("dedupe", false, "Bundle each file once and let import cycles terminate")
	Cmd.Flags().Int("max-assets", 0, "Fail once the graph holds more than N assets (0: no limit)")
}

func run(cmd *cobra.Command, args []string) error {
	osfs := fs.NewOSFileSystem()

	absRoot, err := filepath.Abs(viper.GetString("package"))
	if err != nil {
		return fmt.Errorf("invalid package directory: %w", err)
	}

	builder := graph.NewBuilder(osfs, nil, graph.Options{
		Dedupe:    viper.GetBool("dedupe"),
		MaxAssets: viper.GetInt("max-assets"),
		Logger:    logging.New(cmd.ErrOrStderr(), viper.GetBool("verbose")),
	})

	g, err := builder.Build(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to build graph: %w", err)
	}

	return output.JSON(osfs, cmd.OutOrStdout(), g.Summary(absRoot))
}
