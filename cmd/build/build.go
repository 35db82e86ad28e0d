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
// Package build provides the build command for bundla.
package build

import (
	"fmt"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bennypowers.dev/bundla/fs"
	"bennypowers.dev/bundla/internal/logging"
	"bennypowers.dev/bundla/internal/output"
	"bennypowers.dev/bundla/pack"
)

// Cmd is the build cobra command that bundles entry modules into
// self-contained artifacts.
var Cmd = &cobra.Command{
	Use:   "build [entry...]",
	Short: "Bundle entry modules into single-file artifacts",
	Long: `Bundle an entry module and everything it statically imports into one
JavaScript artifact.

With no arguments, the entry is read from package.json (source, module,
exports ".", then main). A single entry is written to <out-dir>/bundle.js.
Multiple entries (via arguments or --glob) are built in parallel, each to
<out-dir>/<name>.bundle.js, and results are printed as NDJSON.

Files imported from several places are bundled once per import site, and
import cycles never finish, unless --dedupe or --max-assets is given.`,
	Example: `  # Bundle the package.json entry into build/bundle.js
  bundla build

  # Bundle one entry to a chosen file
  bundla build src/index.js -o dist/app.js

  # Bundle every page entry (NDJSON output)
  bundla build --glob "src/pages/*.js" -j 4

  # Share one module per file and cache exports at load time
  bundla build src/index.js --dedupe --memoize

  # Write an HTML page that loads the bundle
  bundla build src/index.js --html --html-template public/index.html`,
	PreRunE: bindFlags,
	RunE:    run,
}

func init() {
	Cmd.Flags().String("glob", "", "Glob pattern to match entry files (e.g., \"src/**/*.entry.js\")")
	Cmd.Flags().Bool("dedupe", false, "Bundle each file once and let import cycles terminate")
	Cmd.Flags().Bool("memoize", false, "Cache each module's exports after its first load")
	Cmd.Flags().Int("max-assets", 0, "Fail once a graph holds more than N assets (0: no limit)")
	Cmd.Flags().IntP("jobs", "j", 0, "Number of parallel workers (default: number of CPUs)")
	Cmd.Flags().Bool("html", false, "Write an HTML page that loads each artifact")
	Cmd.Flags().String("html-template", "", "HTML file to inject the script tag into")
}

// bindFlags binds this command's flags to viper, so config files and
// BUNDLA_* variables fill in whatever the command line leaves unset.
func bindFlags(cmd *cobra.Command, args []string) error {
	return viper.BindPFlags(cmd.Flags())
}

func run(cmd *cobra.Command, args []string) error {
	osfs := fs.NewOSFileSystem()
	logger := logging.New(cmd.ErrOrStderr(), viper.GetBool("verbose"))

	absRoot, err := filepath.Abs(viper.GetString("package"))
	if err != nil {
		return fmt.Errorf("invalid package directory: %w", err)
	}

	entries, err := collectEntries(args, viper.GetString("glob"))
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		entry, err := pack.EntryFromPackage(osfs, absRoot)
		if err != nil {
			return fmt.Errorf("no entry given and none found in package.json: %w", err)
		}
		entries = []string{entry}
	}

	outDir, err := filepath.Abs(viper.GetString("out-dir"))
	if err != nil {
		return fmt.Errorf("invalid output directory: %w", err)
	}

	opts := pack.Options{
		Dedupe:       viper.GetBool("dedupe"),
		MaxAssets:    viper.GetInt("max-assets"),
		Memoize:      viper.GetBool("memoize"),
		Parallel:     viper.GetInt("jobs"),
		OutDir:       outDir,
		Output:       viper.GetString("output"),
		HTML:         viper.GetBool("html"),
		HTMLTemplate: viper.GetString("html-template"),
		Logger:       logger,
	}
	if opts.HTMLTemplate != "" {
		opts.HTML = true
	}

	if len(entries) == 1 {
		return runSingle(cmd, osfs, entries[0], opts)
	}
	return runBatch(cmd, osfs, entries, opts)
}

// collectEntries resolves args and glob matches to absolute paths,
// deduplicating while keeping first-seen order.
func collectEntries(args []string, pattern string) ([]string, error) {
	seen := make(map[string]struct{})
	var entries []string

	add := func(p string) error {
		absPath, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("invalid file path %q: %w", p, err)
		}
		if _, exists := seen[absPath]; !exists {
			seen[absPath] = struct{}{}
			entries = append(entries, absPath)
		}
		return nil
	}

	for _, arg := range args {
		if err := add(arg); err != nil {
			return nil, err
		}
	}

	if pattern != "" {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern: %w", err)
		}
		if len(matches) == 0 && len(args) == 0 {
			return nil, fmt.Errorf("glob %q matched no files", pattern)
		}
		for _, match := range matches {
			if err := add(match); err != nil {
				return nil, err
			}
		}
	}

	return entries, nil
}

func runSingle(cmd *cobra.Command, osfs fs.FileSystem, entry string, opts pack.Options) error {
	result, err := pack.Build(cmd.Context(), osfs, entry, opts)
	if err != nil {
		return fmt.Errorf("failed to build %s: %w", entry, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), result.Output)
	return nil
}

func runBatch(cmd *cobra.Command, osfs fs.FileSystem, entries []string, opts pack.Options) error {
	if opts.Output != "" {
		return fmt.Errorf("--output is not supported for batch mode (multiple entries); use --out-dir")
	}

	results := pack.BuildBatch(cmd.Context(), osfs, entries, opts)

	encoder := output.NDJSON(cmd.OutOrStdout())
	var failed []pack.Result
	var total int

	for result := range results {
		total++
		if result.Error != "" {
			failed = append(failed, result)
		}
		if err := encoder.Encode(result); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error encoding result for %s: %v\n", result.Entry, err)
		}
	}

	for _, r := range failed {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n  %s\n", r.Entry, r.Error)
	}

	if len(failed) == total {
		return fmt.Errorf("all %d entries failed to build", total)
	}
	return nil
}
