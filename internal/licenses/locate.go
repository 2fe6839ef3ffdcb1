package licenses

import (
	"fmt"
	"io/fs"
	"iter"
	"path/filepath"
)

// Found holds the candidate license files of a single dependency.
type Found struct {
	Name string
	Root string // Canonical root directory of the dependency.

	// Absolute paths of the candidates. Evaluated lazily: ranging over Paths
	// walks the root directory again.
	Paths iter.Seq[string]
}

// canonical returns an absolute path with symlinks resolved. The path must exist.
func canonical(p string) (string, error) {
	p, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(p)
}

// Locate returns the canonical root directory of dep and its candidate license
// files.
//
// If the root directory cannot be resolved, ok is false and dep should be
// skipped. If dep declares a license file, it is the only candidate and no
// directory scan is done. A declared license file that does not exist is an
// error, unlike a scan that finds nothing.
func (m *Matcher) Locate(dep Dependency) (root string, paths iter.Seq[string], ok bool, rerr error) {
	if dep.Dir == "" {
		return "", nil, false, nil
	}
	root, err := canonical(dep.Dir)
	if err != nil {
		return "", nil, false, nil
	}

	if dep.LicenseFile != "" {
		p := dep.LicenseFile
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		lp, err := canonical(p)
		if err != nil {
			return "", nil, false, fmt.Errorf("declared license file %q for %s: %w", dep.LicenseFile, dep.Name, err)
		}
		return root, func(yield func(string) bool) {
			yield(lp)
		}, true, nil
	}

	return root, m.scan(root), true, nil
}

// scan walks root, yielding regular files and symlinks that Match. Directories
// that cannot be read are skipped, symlinks are not followed.
func (m *Matcher) scan(root string) iter.Seq[string] {
	return func(yield func(string) bool) {
		filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			t := d.Type()
			if !t.IsRegular() && t&fs.ModeSymlink == 0 {
				return nil
			}
			if m.Match(path) && !yield(path) {
				return fs.SkipAll
			}
			return nil
		})
	}
}

// Search locates the license files of each dependency. Dependencies whose root
// cannot be resolved are left out. An invalid declared license file is yielded
// as error, after which the sequence continues if the consumer does.
func (m *Matcher) Search(deps []Dependency) iter.Seq2[Found, error] {
	return func(yield func(Found, error) bool) {
		for _, dep := range deps {
			root, paths, ok, err := m.Locate(dep)
			if err != nil {
				if !yield(Found{Name: dep.Name}, err) {
					return
				}
				continue
			}
			if !ok {
				continue
			}
			if !yield(Found{dep.Name, root, paths}, nil) {
				return
			}
		}
	}
}
