package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/tools/go/packages"
)

// loadModules loads the packages matching patterns in dir with all their
// dependencies, and returns the modules that provide them, main modules first.
// Unlike "go list -m all", only modules with packages that are part of the build
// are returned.
func loadModules(ctx context.Context, log *slog.Logger, dir string, patterns, tags []string) ([]Module, error) {
	cfg := &packages.Config{
		Context: ctx,
		Mode:    packages.NeedName | packages.NeedModule | packages.NeedImports | packages.NeedDeps,
		Dir:     dir,
	}
	if len(tags) > 0 {
		cfg.BuildFlags = []string{"-tags=" + strings.Join(tags, ",")}
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("loading packages: %v", err)
	}

	var mains, deps []Module
	seen := map[string]bool{}
	var nerrors int
	packages.Visit(pkgs, nil, func(p *packages.Package) {
		for _, err := range p.Errors {
			nerrors++
			log.Debug("package error", "pkg", p.PkgPath, "err", err)
		}
		pm := p.Module
		if pm == nil || seen[pm.Path] {
			// Packages from the standard library have no module.
			return
		}
		seen[pm.Path] = true
		m := convertModule(pm)
		if m.Main {
			mains = append(mains, m)
		} else {
			deps = append(deps, m)
		}
	})
	if nerrors > 0 {
		log.Warn("errors while loading packages, dependencies may be incomplete", "errors", nerrors)
	}
	return append(mains, deps...), nil
}

func convertModule(pm *packages.Module) Module {
	m := Module{
		Path:    pm.Path,
		Version: pm.Version,
		Main:    pm.Main,
		Dir:     pm.Dir,
	}
	if pm.Replace != nil {
		r := convertModule(pm.Replace)
		m.Replace = &r
	}
	if pm.Error != nil {
		m.Error = &ModuleError{pm.Error.Err}
	}
	return m
}
