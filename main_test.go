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
package main

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestMain(m *testing.M) {
	// Build the binary before running tests
	wd := mustGetwd()
	cmd := exec.Command("go", "build", "-o", "bundla_test", ".")
	cmd.Dir = wd
	if out, err := cmd.CombinedOutput(); err != nil {
		panic("failed to build test binary: " + err.Error() + "\n" + string(out))
	}
	code := m.Run()
	_ = os.Remove(filepath.Join(wd, "bundla_test"))
	os.Exit(code)
}

func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		panic(err)
	}
	return wd
}

func runCLI(t *testing.T, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()
	return runCLIEnv(t, nil, args...)
}

func runCLIEnv(t *testing.T, env []string, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()
	binary := filepath.Join(mustGetwd(), "bundla_test")
	cmd := exec.Command(binary, args...)
	cmd.Env = append(os.Environ(), env...)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			t.Fatalf("Failed to run CLI: %v", err)
		}
	}

	return stdout, stderr, exitCode
}

type summary struct {
	Entry  string `json:"entry"`
	Files  int    `json:"files"`
	Assets []struct {
		ID      int            `json:"id"`
		File    string         `json:"file"`
		Mapping map[string]int `json:"mapping"`
	} `json:"assets"`
}

func parseSummary(t *testing.T, data string) summary {
	t.Helper()
	var s summary
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		t.Fatalf("Failed to parse graph JSON: %v\n%s", err, data)
	}
	return s
}

func TestBuildAndRunPackageEntry(t *testing.T) {
	outDir := t.TempDir()

	stdout, stderr, code := runCLI(t, "build", "--package", filepath.Join("testdata", "cli", "app"), "--out-dir", outDir)
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d\nstderr: %s", code, stderr)
	}

	artifact := filepath.Join(outDir, "bundle.js")
	if strings.TrimSpace(stdout) != artifact {
		t.Errorf("Expected stdout to name %s, got %q", artifact, stdout)
	}
	if !strings.Contains(stderr, "wrote bundle") {
		t.Errorf("Expected a 'wrote bundle' log line, got: %s", stderr)
	}

	stdout, stderr, code = runCLI(t, "run", artifact)
	if code != 0 {
		t.Fatalf("Expected exit code 0 from run, got %d\nstderr: %s", code, stderr)
	}
	if strings.TrimSpace(stdout) != "<p>Hello, bundla!</p>" {
		t.Errorf("Expected rendered JSX on stdout, got %q", stdout)
	}
}

func TestBuildOutputAndHTML(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "js", "app.js")

	_, stderr, code := runCLI(t, "build", filepath.Join("testdata", "graph", "diamond", "entry.js"), "-o", out, "--html")
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d\nstderr: %s", code, stderr)
	}

	if _, err := os.Stat(out); err != nil {
		t.Fatalf("Expected artifact at %s: %v", out, err)
	}
	page, err := os.ReadFile(filepath.Join(dir, "js", "index.html"))
	if err != nil {
		t.Fatalf("Expected index.html next to the artifact: %v", err)
	}
	if !strings.Contains(string(page), `<script src="app.js"></script>`) {
		t.Errorf("Expected page to load app.js, got:\n%s", page)
	}
}

func TestBuildVerbose(t *testing.T) {
	_, stderr, code := runCLI(t, "build", filepath.Join("testdata", "graph", "diamond", "entry.js"), "--out-dir", t.TempDir(), "-v")
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d\nstderr: %s", code, stderr)
	}
	if !strings.Contains(stderr, "extracted asset") {
		t.Errorf("Expected per-asset debug logs, got: %s", stderr)
	}
	if !strings.Contains(stderr, "file materialized again") {
		t.Errorf("Expected a repeated-file debug log, got: %s", stderr)
	}
}

func TestBuildBatch(t *testing.T) {
	outDir := t.TempDir()

	stdout, stderr, code := runCLI(t, "build", "--glob", "testdata/cli/pages/*.js", "--out-dir", outDir, "-j", "2")
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d\nstderr: %s", code, stderr)
	}

	var outputs []string
	for line := range strings.SplitSeq(strings.TrimSpace(stdout), "\n") {
		var result struct {
			Entry  string `json:"entry"`
			Output string `json:"output"`
			Assets int    `json:"assets"`
			Error  string `json:"error"`
		}
		if err := json.Unmarshal([]byte(line), &result); err != nil {
			t.Fatalf("Failed to parse NDJSON line %q: %v", line, err)
		}
		if result.Error != "" {
			t.Errorf("%s: unexpected error %s", result.Entry, result.Error)
		}
		if result.Assets != 2 {
			t.Errorf("%s: expected 2 assets, got %d", result.Entry, result.Assets)
		}
		outputs = append(outputs, filepath.Base(result.Output))
	}
	slices.Sort(outputs)

	if !slices.Equal(outputs, []string{"about.bundle.js", "home.bundle.js"}) {
		t.Fatalf("Expected about and home bundles, got %v", outputs)
	}

	stdout, stderr, code = runCLI(t, "run", filepath.Join(outDir, "home.bundle.js"))
	if code != 0 {
		t.Fatalf("Expected exit code 0 from run, got %d\nstderr: %s", code, stderr)
	}
	if strings.TrimSpace(stdout) != "page: home" {
		t.Errorf("Expected 'page: home', got %q", stdout)
	}
}

func TestBuildBatchRejectsOutput(t *testing.T) {
	_, stderr, code := runCLI(t, "build", "--glob", "testdata/cli/pages/*.js", "-o", filepath.Join(t.TempDir(), "x.js"))
	if code == 0 {
		t.Fatal("Expected non-zero exit code")
	}
	if !strings.Contains(stderr, "not supported for batch mode") {
		t.Errorf("Expected batch mode error, got: %s", stderr)
	}
}

func TestBuildMissingEntry(t *testing.T) {
	_, stderr, code := runCLI(t, "build", filepath.Join("testdata", "cli", "nope.js"), "--out-dir", t.TempDir())
	if code == 0 {
		t.Fatal("Expected non-zero exit code")
	}
	if !strings.Contains(stderr, "nope.js") {
		t.Errorf("Expected the missing path in the error, got: %s", stderr)
	}
}

func TestGraph(t *testing.T) {
	fixture := filepath.Join("testdata", "graph", "diamond")

	stdout, stderr, code := runCLI(t, "graph", filepath.Join(fixture, "entry.js"), "--package", fixture)
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d\nstderr: %s", code, stderr)
	}

	s := parseSummary(t, stdout)
	if s.Entry != "entry.js" {
		t.Errorf("Expected entry.js, got %s", s.Entry)
	}
	if len(s.Assets) != 5 {
		t.Fatalf("Expected 5 assets, got %d", len(s.Assets))
	}
	if s.Files != 4 {
		t.Errorf("Expected 4 distinct files, got %d", s.Files)
	}
	if s.Assets[4].File != "c.js" || s.Assets[2].Mapping["./c.js"] != 4 {
		t.Errorf("Expected b.js to get its own copy of c.js, got %+v", s.Assets)
	}
}

func TestGraphDedupeSources(t *testing.T) {
	fixture := filepath.Join("testdata", "graph", "diamond")
	entry := filepath.Join(fixture, "entry.js")

	tests := []struct {
		name string
		env  []string
		args []string
	}{
		{"flag", nil, []string{"--dedupe"}},
		{"environment", []string{"BUNDLA_DEDUPE=true"}, nil},
		{"config file", nil, []string{"--config", filepath.Join("testdata", "cli", "dedupe.yaml")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"graph", entry, "--package", fixture}, tt.args...)
			stdout, stderr, code := runCLIEnv(t, tt.env, args...)
			if code != 0 {
				t.Fatalf("Expected exit code 0, got %d\nstderr: %s", code, stderr)
			}
			if s := parseSummary(t, stdout); len(s.Assets) != 4 {
				t.Errorf("Expected 4 deduplicated assets, got %d", len(s.Assets))
			}
		})
	}
}

func TestGraphMissingConfig(t *testing.T) {
	_, stderr, code := runCLI(t, "graph", filepath.Join("testdata", "graph", "diamond", "entry.js"), "--config", "testdata/cli/missing.yaml")
	if code == 0 {
		t.Fatal("Expected non-zero exit code")
	}
	if !strings.Contains(stderr, "reading config") {
		t.Errorf("Expected a config error, got: %s", stderr)
	}
}

func TestGraphCycle(t *testing.T) {
	entry := filepath.Join("testdata", "cli", "cycle", "a.js")

	t.Run("max assets", func(t *testing.T) {
		_, stderr, code := runCLI(t, "graph", entry, "--max-assets", "25")
		if code == 0 {
			t.Fatal("Expected non-zero exit code")
		}
		if !strings.Contains(stderr, "does not terminate") {
			t.Errorf("Expected non-termination error, got: %s", stderr)
		}
	})

	t.Run("dedupe", func(t *testing.T) {
		stdout, stderr, code := runCLI(t, "graph", entry, "--dedupe", "--package", filepath.Join("testdata", "cli", "cycle"))
		if code != 0 {
			t.Fatalf("Expected exit code 0, got %d\nstderr: %s", code, stderr)
		}
		s := parseSummary(t, stdout)
		if len(s.Assets) != 2 || s.Assets[1].Mapping["./a.js"] != 0 {
			t.Errorf("Expected b.js to map back to asset 0, got %+v", s.Assets)
		}
	})
}

func TestRunMissingArtifact(t *testing.T) {
	_, stderr, code := runCLI(t, "run", filepath.Join("testdata", "cli", "missing.bundle.js"))
	if code == 0 {
		t.Fatal("Expected non-zero exit code")
	}
	if !strings.Contains(stderr, "reading artifact") {
		t.Errorf("Expected a read error, got: %s", stderr)
	}
}

func TestVersion(t *testing.T) {
	stdout, stderr, code := runCLI(t, "version")
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d\nstderr: %s", code, stderr)
	}
	if !strings.HasPrefix(stdout, "bundla ") {
		t.Errorf("Expected 'bundla <version>', got %q", stdout)
	}

	stdout, stderr, code = runCLI(t, "version", "-f", "json")
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d\nstderr: %s", code, stderr)
	}
	var info map[string]any
	if err := json.Unmarshal([]byte(stdout), &info); err != nil {
		t.Fatalf("Failed to parse version JSON: %v\n%s", err, stdout)
	}
	if _, ok := info["version"]; !ok {
		t.Errorf("Expected a version key, got %v", info)
	}
}
