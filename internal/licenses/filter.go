package licenses

// Dependency is a resolved package of the build graph.
type Dependency struct {
	// Name identifies the dependency and is the name of its subdirectory in the
	// destination. E.g. "github.com/mjl-/sconf@v0.0.8". Must be a clean relative
	// path without ".." elements.
	Name string

	// Root directory with the source of the dependency. Empty if not available on
	// local disk, in which case the dependency is skipped.
	Dir string

	// Explicitly declared license file or directory, absolute or relative to Dir.
	// If set, no other files are looked for.
	LicenseFile string
}

// External returns the dependencies that are not in workspace, in their
// original order. Workspace holds names of workspace members.
func External(deps []Dependency, workspace []string) []Dependency {
	local := map[string]struct{}{}
	for _, name := range workspace {
		local[name] = struct{}{}
	}
	var r []Dependency
	for _, d := range deps {
		if _, ok := local[d.Name]; !ok {
			r = append(r, d)
		}
	}
	return r
}
