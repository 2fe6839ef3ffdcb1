package main

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/mjl-/inclicenses/internal/licenses"
)

// Output of "go list -m -json all" in a workspace, shortened.
const goListOutput = `{
	"Path": "example.com/app",
	"Main": true,
	"Dir": "/src/app",
	"GoMod": "/src/app/go.mod",
	"GoVersion": "1.23"
}
{
	"Path": "example.com/app/tools",
	"Main": true,
	"Dir": "/src/app/tools",
	"GoMod": "/src/app/tools/go.mod",
	"GoVersion": "1.23"
}
{
	"Path": "github.com/BurntSushi/toml",
	"Version": "v1.3.2",
	"Time": "2023-06-08T06:11:11Z",
	"Indirect": true,
	"Dir": "/home/user/go/pkg/mod/github.com/!burnt!sushi/toml@v1.3.2",
	"GoMod": "/home/user/go/pkg/mod/cache/download/github.com/!burnt!sushi/toml/@v/v1.3.2.mod",
	"GoVersion": "1.16"
}
{
	"Path": "github.com/mjl-/sconf",
	"Version": "v0.0.8",
	"Replace": {
		"Path": "../sconf",
		"Dir": "/src/sconf",
		"GoMod": "/src/sconf/go.mod"
	},
	"Dir": "/src/sconf",
	"GoMod": "/src/sconf/go.mod"
}
{
	"Path": "golang.org/x/mod",
	"Version": "v0.24.0",
	"Dir": "/home/user/go/pkg/mod/golang.org/x/mod@v0.24.0"
}
{
	"Path": "golang.org/x/sys",
	"Version": "v0.33.0",
	"Dir": "/home/user/go/pkg/mod/golang.org/x/sys@v0.33.0"
}
{
	"Path": "rsc.io/quote/v3",
	"Version": "v3.1.0",
	"Error": {
		"Err": "module rsc.io/quote/v3: not downloaded"
	}
}
`

func TestParseModules(t *testing.T) {
	mods, err := parseModules(strings.NewReader(goListOutput))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(mods) != 7 {
		t.Fatalf("got %d modules, expected 7", len(mods))
	}
	if !mods[0].Main || mods[2].Main {
		t.Fatalf("main flags wrong: %#v", mods)
	}
	if mods[3].moduleDir() != "/src/sconf" || mods[6].moduleDir() != "" || mods[6].Error == nil {
		t.Fatalf("bad sconf or quote module: %#v %#v", mods[3], mods[6])
	}

	if _, err := parseModules(strings.NewReader(`{"Path": "x"} {`)); err == nil {
		t.Fatalf("parsing truncated output: expected error")
	}
}

func TestDependencies(t *testing.T) {
	mods, err := parseModules(strings.NewReader(goListOutput))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	deps, workspace, err := dependencies(slog.Default(), mods, []string{"golang.org/x/s*"}, map[string]string{"github.com/mjl-/sconf": "LICENSE"})
	if err != nil {
		t.Fatalf("dependencies: %v", err)
	}
	expWorkspace := []string{"example.com/app", "example.com/app/tools"}
	if !reflect.DeepEqual(workspace, expWorkspace) {
		t.Fatalf("got workspace %v, expected %v", workspace, expWorkspace)
	}

	exp := []licenses.Dependency{
		{Name: "github.com/!burnt!sushi/toml@v1.3.2", Dir: "/home/user/go/pkg/mod/github.com/!burnt!sushi/toml@v1.3.2"},
		{Name: "github.com/mjl-/sconf@v0.0.8", Dir: "/src/sconf", LicenseFile: "LICENSE"},
		{Name: "golang.org/x/mod@v0.24.0", Dir: "/home/user/go/pkg/mod/golang.org/x/mod@v0.24.0"},
		{Name: "rsc.io/quote/v3@v3.1.0"},
	}
	if got := licenses.External(deps, workspace); !reflect.DeepEqual(got, exp) {
		t.Fatalf("got dependencies\n%#v\nexpected\n%#v", got, exp)
	}
}

func TestNamespace(t *testing.T) {
	check := func(path, version, exp string) {
		t.Helper()
		name, err := namespace(path, version)
		if err != nil {
			t.Fatalf("namespace %s %s: %v", path, version, err)
		}
		if name != exp {
			t.Fatalf("namespace %s %s: got %q, expected %q", path, version, name, exp)
		}
	}

	check("example.com/a", "v1.0.0", "example.com/a@v1.0.0")
	check("example.com/a/v2", "v2.0.0", "example.com/a/v2@v2.0.0")
	check("github.com/Azure/azure-sdk-for-go", "v68.0.0+incompatible", "github.com/!azure/azure-sdk-for-go@v68.0.0+incompatible")
	check("example.com/local", "", "example.com/local")

	// Namespaces of nested modules do not contain each other.
	a, _ := namespace("example.com/a", "v1.0.0")
	b, _ := namespace("example.com/a/v2", "v2.0.0")
	if strings.HasPrefix(b, a+"/") || strings.HasPrefix(a, b+"/") {
		t.Fatalf("namespaces %q and %q overlap", a, b)
	}

	if _, err := namespace("bad path", "v1.0.0"); err == nil {
		t.Fatalf("expected error for bad path")
	}
}

func TestExcluded(t *testing.T) {
	check := func(modpath string, exp bool) {
		t.Helper()
		if got := excluded(modpath, []string{"golang.org/x/**", "example.com/*/internal"}); got != exp {
			t.Fatalf("excluded %q: got %v, expected %v", modpath, got, exp)
		}
	}
	check("golang.org/x/mod", true)
	check("golang.org/x/tools/gopls", true)
	check("example.com/a/internal", true)
	check("example.com/a/b/internal", false)
	check("github.com/mjl-/sconf", false)
}

// Run the go command on a module with a dependency replaced by a local
// directory. Does not need network access.
func TestListModules(t *testing.T) {
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go command not available")
	}
	t.Setenv("GOWORK", "off")
	t.Setenv("GOFLAGS", "-mod=mod")
	t.Setenv("GOPROXY", "off")
	t.Setenv("GOTOOLCHAIN", "local")

	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("eval symlinks: %v", err)
	}
	files := map[string]string{
		"app/go.mod":  "module example.com/app\n\ngo 1.21\n\nrequire example.com/dep v0.0.0\n\nreplace example.com/dep => ../dep\n",
		"app/main.go": "package main\n\nimport _ \"example.com/dep\"\n\nfunc main() {}\n",
		"dep/go.mod":  "module example.com/dep\n\ngo 1.21\n",
		"dep/dep.go":  "package dep\n",
		"dep/LICENSE": "dep license\n",
	}
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	test := func(mods []Module) {
		t.Helper()
		deps, workspace, err := dependencies(slog.Default(), mods, nil, nil)
		if err != nil {
			t.Fatalf("dependencies: %v", err)
		}
		exp := []licenses.Dependency{{Name: "example.com/dep@v0.0.0", Dir: filepath.Join(dir, "dep")}}
		if got := licenses.External(deps, workspace); !reflect.DeepEqual(got, exp) {
			t.Fatalf("got %#v, expected %#v", got, exp)
		}
	}

	mods, err := listModules(ctx, filepath.Join(dir, "app"))
	if err != nil {
		t.Fatalf("list modules: %v", err)
	}
	test(mods)

	mods, err = loadModules(ctx, slog.Default(), filepath.Join(dir, "app"), []string{"./..."}, nil)
	if err != nil {
		t.Fatalf("load modules: %v", err)
	}
	test(mods)
}

// Package patterns with source modules are an error, not silently ignored.
func TestExternalDependenciesPatterns(t *testing.T) {
	saved := config
	t.Cleanup(func() { config = saved })

	config = Config{Source: SourceModules}
	_, err := externalDependencies(t.TempDir(), []string{"./cmd/..."})
	if err == nil || !strings.Contains(err.Error(), "only apply with source") {
		t.Fatalf("got err %v, expected error for patterns with source modules", err)
	}

	config = Config{}
	_, err = externalDependencies(t.TempDir(), []string{"./..."})
	if err == nil || !strings.Contains(err.Error(), "only apply with source") {
		t.Fatalf("got err %v, expected error for patterns with default source", err)
	}
}
