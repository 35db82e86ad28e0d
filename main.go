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
// Command bundla bundles JavaScript modules into single-file artifacts.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bennypowers.dev/bundla/cmd/build"
	"bennypowers.dev/bundla/cmd/graph"
	"bennypowers.dev/bundla/cmd/run"
	"bennypowers.dev/bundla/cmd/version"
)

var (
	cpuprofile     string
	cfgFile        string
	cpuprofileFile *os.File
	rootCmd        = &cobra.Command{
		Use:   "bundla",
		Short: "Bundle JavaScript modules into single-file artifacts",
		Long: `bundla follows an entry module's static imports, transforms every
module to CommonJS, and writes one self-contained JavaScript file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(); err != nil {
				return err
			}
			if cpuprofile != "" {
				f, err := os.Create(cpuprofile)
				if err != nil {
					return fmt.Errorf("could not create CPU profile: %w", err)
				}
				cpuprofileFile = f
				if err := pprof.StartCPUProfile(f); err != nil {
					closeErr := f.Close()
					return errors.Join(
						fmt.Errorf("could not start CPU profile: %w", err),
						closeErr,
					)
				}
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if cpuprofileFile != nil {
				pprof.StopCPUProfile()
				if err := cpuprofileFile.Close(); err != nil {
					return fmt.Errorf("closing CPU profile: %w", err)
				}
			}
			return nil
		},
	}
)

func init() {
	// Root flags (persistent across all commands)
	rootCmd.PersistentFlags().StringP("package", "p", ".", "Package directory")
	rootCmd.PersistentFlags().String("out-dir", "build", "Output directory for artifacts")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output file (default: <out-dir>/bundle.js, or stdout for graph)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log every extracted asset")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: bundla.{yaml,json,toml} in the package directory)")
	rootCmd.PersistentFlags().StringVar(&cpuprofile, "cpuprofile", "", "Write CPU profile to file")

	_ = viper.BindPFlag("package", rootCmd.PersistentFlags().Lookup("package"))
	_ = viper.BindPFlag("out-dir", rootCmd.PersistentFlags().Lookup("out-dir"))
	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Add commands
	rootCmd.AddCommand(build.Cmd)
	rootCmd.AddCommand(graph.Cmd)
	rootCmd.AddCommand(run.Cmd)
	rootCmd.AddCommand(version.Cmd)
}

// loadConfig reads BUNDLA_* environment variables and an optional config
// file. A missing default config file is not an error; a missing --config
// file is.
func loadConfig() error {
	viper.SetEnvPrefix("bundla")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("bundla")
		viper.AddConfigPath(filepath.Clean(viper.GetString("package")))
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
