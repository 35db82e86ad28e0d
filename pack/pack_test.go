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
package pack_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"bennypowers.dev/bundla/graph"
	"bennypowers.dev/bundla/host"
	"bennypowers.dev/bundla/internal/mapfs"
	"bennypowers.dev/bundla/pack"
	"bennypowers.dev/bundla/testutil"
)

type recordingLogger struct {
	mu   sync.Mutex
	info []string
}

func (l *recordingLogger) Debug(msg any, keyvals ...any) {}

func (l *recordingLogger) Info(msg any, keyvals ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.info = append(l.info, msg.(string))
}

func runArtifact(t *testing.T, mfs *mapfs.MapFileSystem, path string) int64 {
	t.Helper()
	artifact, err := mfs.ReadFile(path)
	if err != nil {
		t.Fatalf("Reading artifact failed: %v", err)
	}
	h := host.New(host.Options{})
	v, err := h.Run(context.Background(), path, string(artifact))
	if err != nil {
		t.Fatalf("Running artifact failed: %v", err)
	}
	return v.ToObject(h.Runtime()).Get("total").ToInteger()
}

func TestBuild(t *testing.T) {
	mfs := testutil.NewFixtureFS(t, "graph/diamond", "/test")
	logger := &recordingLogger{}

	result, err := pack.Build(context.Background(), mfs, "/test/entry.js", pack.Options{
		OutDir: "/test/build",
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	expected := &pack.Result{
		Entry:  "/test/entry.js",
		Output: "/test/build/bundle.js",
		Assets: 5,
		Files:  4,
		Bytes:  result.Bytes,
	}
	if diff := cmp.Diff(expected, result); diff != "" {
		t.Errorf("Result mismatch (-want +got):\n%s", diff)
	}
	if result.Bytes == 0 {
		t.Error("Expected a non-empty artifact")
	}

	if got := runArtifact(t, mfs, "/test/build/bundle.js"); got != 23 {
		t.Errorf("Expected total 23, got %d", got)
	}
	if !slices.Contains(logger.info, "wrote bundle") {
		t.Errorf("Expected a 'wrote bundle' event, got %v", logger.info)
	}
}

func TestBuild_Options(t *testing.T) {
	t.Run("output overrides out dir", func(t *testing.T) {
		mfs := testutil.NewFixtureFS(t, "graph/diamond", "/test")

		result, err := pack.Build(context.Background(), mfs, "/test/entry.js", pack.Options{
			OutDir: "/test/build",
			Output: "/dist/app.js",
		})
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		if result.Output != "/dist/app.js" {
			t.Errorf("Expected /dist/app.js, got %s", result.Output)
		}
		if _, err := mfs.Stat("/test/build/bundle.js"); err == nil {
			t.Error("Expected nothing written to the out dir")
		}
	})

	t.Run("dedupe", func(t *testing.T) {
		mfs := testutil.NewFixtureFS(t, "graph/diamond", "/test")

		result, err := pack.Build(context.Background(), mfs, "/test/entry.js", pack.Options{
			OutDir: "/test/build",
			Dedupe: true,
		})
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		if result.Assets != 4 || result.Files != 4 {
			t.Errorf("Expected 4 assets from 4 files, got %d from %d", result.Assets, result.Files)
		}
	})

	t.Run("max assets on a cycle", func(t *testing.T) {
		mfs := testutil.NewSourceFS(t, map[string]string{
			"/src/a.js": "import './b.js';",
			"/src/b.js": "import './a.js';",
		})

		_, err := pack.Build(context.Background(), mfs, "/src/a.js", pack.Options{
			OutDir:    "/out",
			MaxAssets: 10,
		})
		if !errors.Is(err, graph.ErrGraphNonTermination) {
			t.Fatalf("Expected ErrGraphNonTermination, got %v", err)
		}
		if _, err := mfs.Stat("/out/bundle.js"); err == nil {
			t.Error("Expected no artifact after a failed build")
		}
	})
}

func TestBuild_HTML(t *testing.T) {
	t.Run("default page", func(t *testing.T) {
		mfs := testutil.NewFixtureFS(t, "graph/diamond", "/test")

		result, err := pack.Build(context.Background(), mfs, "/test/entry.js", pack.Options{
			OutDir: "/test/build",
			HTML:   true,
		})
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		if result.Page != "/test/build/index.html" {
			t.Fatalf("Expected page /test/build/index.html, got %q", result.Page)
		}

		doc, err := mfs.ReadFile(result.Page)
		if err != nil {
			t.Fatalf("Reading page failed: %v", err)
		}
		for _, want := range []string{`<div id="root"></div>`, `<script src="bundle.js"></script>`, "<title>entry</title>"} {
			if !strings.Contains(string(doc), want) {
				t.Errorf("Expected page to contain %q, got:\n%s", want, doc)
			}
		}
	})

	t.Run("template", func(t *testing.T) {
		mfs := testutil.NewFixtureFS(t, "graph/diamond", "/test")
		mfs.AddFile("/test/index.html", "<html>\n  <body>\n    <main></main>\n  </body>\n</html>\n", 0644)

		result, err := pack.Build(context.Background(), mfs, "/test/entry.js", pack.Options{
			Output:       "/test/dist/js/app.js",
			HTML:         true,
			HTMLTemplate: "/test/index.html",
		})
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}

		doc, err := mfs.ReadFile(result.Page)
		if err != nil {
			t.Fatalf("Reading page failed: %v", err)
		}
		expected := "<html>\n  <body>\n    <main></main>\n    <script src=\"app.js\"></script>\n  </body>\n</html>\n"
		if diff := cmp.Diff(expected, string(doc)); diff != "" {
			t.Errorf("Page mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("missing template", func(t *testing.T) {
		mfs := testutil.NewFixtureFS(t, "graph/diamond", "/test")

		_, err := pack.Build(context.Background(), mfs, "/test/entry.js", pack.Options{
			OutDir:       "/test/build",
			HTML:         true,
			HTMLTemplate: "/test/missing.html",
		})
		if err == nil {
			t.Fatal("Expected an error for a missing template")
		}
	})
}

func TestBuildBatch(t *testing.T) {
	mfs := testutil.NewSourceFS(t, map[string]string{
		"/src/app.js":      "import { n } from './shared.js';\nexport const total = n + 1;",
		"/src/admin.js":    "import { n } from './shared.js';\nexport const total = n + 2;",
		"/src/shared.js":   "export const n = 20;",
		"/src/broken.js":   "import './missing.js';",
		"/other/app.js":    "export const total = 0;",
		"/src/nested/x.ts": "export const total: number = 5;",
	})

	entries := []string{"/src/app.js", "/src/admin.js", "/src/broken.js", "/other/app.js", "/src/nested/x.ts"}
	results := pack.BuildBatch(context.Background(), mfs, entries, pack.Options{
		OutDir:   "/out",
		Parallel: 2,
	})

	byEntry := make(map[string]pack.Result)
	for result := range results {
		byEntry[result.Entry] = result
	}
	if len(byEntry) != len(entries) {
		t.Fatalf("Expected %d results, got %d: %v", len(entries), len(byEntry), byEntry)
	}

	for entry, want := range map[string]struct {
		output string
		total  int64
	}{
		"/src/app.js":      {"/out/app.bundle.js", 21},
		"/src/admin.js":    {"/out/admin.bundle.js", 22},
		"/src/nested/x.ts": {"/out/x.bundle.js", 5},
	} {
		result := byEntry[entry]
		if result.Error != "" {
			t.Errorf("%s: unexpected error %s", entry, result.Error)
			continue
		}
		if result.Output != want.output {
			t.Errorf("%s: expected output %s, got %s", entry, want.output, result.Output)
		}
		if got := runArtifact(t, mfs, result.Output); got != want.total {
			t.Errorf("%s: expected total %d, got %d", entry, want.total, got)
		}
	}

	if !strings.Contains(byEntry["/src/broken.js"].Error, "missing.js") {
		t.Errorf("Expected broken.js to fail resolving missing.js, got %q", byEntry["/src/broken.js"].Error)
	}
	if !strings.Contains(byEntry["/other/app.js"].Error, "already written") {
		t.Errorf("Expected /other/app.js to collide with /src/app.js, got %q", byEntry["/other/app.js"].Error)
	}
}

func TestBuildBatch_Cancelled(t *testing.T) {
	mfs := testutil.NewSourceFS(t, map[string]string{
		"/src/a.js": "export const total = 1;",
		"/src/b.js": "export const total = 2;",
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for result := range pack.BuildBatch(ctx, mfs, []string{"/src/a.js", "/src/b.js"}, pack.Options{OutDir: "/out"}) {
		if !strings.Contains(result.Error, context.Canceled.Error()) {
			t.Errorf("%s: expected cancellation, got %+v", result.Entry, result)
		}
	}
}

func TestEntryFromPackage(t *testing.T) {
	mfs := testutil.NewSourceFS(t, map[string]string{
		"/project/package.json": `{"name": "demo", "main": "lib/index.js"}`,
	})

	entry, err := pack.EntryFromPackage(mfs, "/project")
	if err != nil {
		t.Fatalf("EntryFromPackage failed: %v", err)
	}
	if entry != "/project/lib/index.js" {
		t.Errorf("Expected /project/lib/index.js, got %s", entry)
	}
}
