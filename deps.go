package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/mod/module"

	"github.com/mjl-/inclicenses/internal/licenses"
)

// Module is a module in the build list, as printed by "go list -m -json". Only
// the fields we need.
type Module struct {
	Path    string
	Version string
	Replace *Module
	Main    bool
	Dir     string
	Error   *ModuleError
}

type ModuleError struct {
	Err string
}

// moduleDir returns the directory with the source of the module, which is that
// of the replacement if replaced.
func (m Module) moduleDir() string {
	if m.Replace != nil {
		return m.Replace.Dir
	}
	return m.Dir
}

// namespace returns the name of the directory for the module in the
// destination. Like in the module cache, the path and version are escaped so
// modules differing only in case don't clash on case-insensitive file systems.
// The version suffix keeps nested module paths, like example.com/a and
// example.com/a/v2, in separate directories.
func namespace(path, version string) (string, error) {
	ep, err := module.EscapePath(path)
	if err != nil {
		return "", fmt.Errorf("escape module path: %v", err)
	}
	if version == "" {
		return ep, nil
	}
	ev, err := module.EscapeVersion(version)
	if err != nil {
		return "", fmt.Errorf("escape version: %v", err)
	}
	return ep + "@" + ev, nil
}

// listModules runs "go list -m -json all" in dir.
func listModules(ctx context.Context, dir string) ([]Module, error) {
	cmd := exec.CommandContext(ctx, "go", "list", "-m", "-json", "all")
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("go list: %v (%s)", err, strings.TrimSpace(stderr.String()))
	}
	return parseModules(bytes.NewReader(out))
}

// parseModules reads the concatenated JSON objects printed by "go list -m -json".
func parseModules(r io.Reader) ([]Module, error) {
	var l []Module
	dec := json.NewDecoder(r)
	for {
		var m Module
		if err := dec.Decode(&m); errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("parsing go list output: %v", err)
		}
		l = append(l, m)
	}
	return l, nil
}

// dependencies turns modules into dependencies for license lookup, and returns
// the names of the main modules, which are the workspace members.
//
// Modules matching one of the exclude patterns are left out. Modules without
// directory, e.g. not downloaded or with an error, are passed on without Dir,
// and will be skipped during lookup.
func dependencies(log *slog.Logger, mods []Module, exclude []string, licenseFiles map[string]string) (deps []licenses.Dependency, workspace []string, rerr error) {
	seen := map[string]bool{}
	for _, m := range mods {
		if seen[m.Path] {
			continue
		}
		seen[m.Path] = true

		version := m.Version
		if m.Main {
			version = ""
		}
		name, err := namespace(m.Path, version)
		if err != nil {
			return nil, nil, fmt.Errorf("module %s: %v", m.Path, err)
		}
		if m.Main {
			workspace = append(workspace, name)
			deps = append(deps, licenses.Dependency{Name: name, Dir: m.moduleDir()})
			continue
		}

		if excluded(m.Path, exclude) {
			log.Debug("excluding module", "module", m.Path)
			continue
		}
		if m.Error != nil {
			log.Warn("module has error, cannot look for licenses", "module", m.Path, "err", m.Error.Err)
		}

		dir := m.moduleDir()
		if dir != "" && !filepath.IsAbs(dir) {
			log.Warn("module directory not absolute", "module", m.Path, "dir", dir)
		}
		deps = append(deps, licenses.Dependency{
			Name:        name,
			Dir:         dir,
			LicenseFile: licenseFiles[m.Path],
		})
	}
	return deps, workspace, nil
}

func excluded(modpath string, patterns []string) bool {
	for _, pat := range patterns {
		if ok, err := doublestar.Match(pat, modpath); err == nil && ok {
			return true
		}
	}
	return false
}
