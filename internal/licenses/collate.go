package licenses

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Outcome is the result of copying a single candidate.
type Outcome struct {
	Dependency  string
	Source      string // Empty if the dependency was abandoned before a candidate, see Err.
	Destination string
	Err         error
}

// OK returns whether the copy succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Collator copies located license files to Destination, each in
// Destination/<dependency name>/<path relative to dependency root>.
type Collator struct {
	Destination string

	// Maximum number of dependencies processed concurrently. Values <= 1 mean
	// sequential processing.
	Parallel int
}

// Copy copies the license files of found with a sequential Collator.
func Copy(destination string, found iter.Seq2[Found, error]) ([]Outcome, error) {
	c := Collator{Destination: destination}
	return c.Copy(found)
}

// Copy creates the destination directory and copies all candidates in found.
//
// A failure to copy a candidate is recorded in its Outcome and does not stop
// processing. If a candidate is not beneath its dependency root, the remaining
// candidates of that dependency are skipped and a failed Outcome without
// Source is recorded. Errors yielded by found, and failing to create the
// destination, stop processing and are returned together with the outcomes so
// far. Outcomes are ordered by dependency, in the order of found.
func (c *Collator) Copy(found iter.Seq2[Found, error]) ([]Outcome, error) {
	if err := os.MkdirAll(c.Destination, 0755); err != nil {
		return nil, fmt.Errorf("creating destination directory: %w", err)
	}

	if c.Parallel <= 1 {
		var outcomes []Outcome
		for f, err := range found {
			if err != nil {
				return outcomes, err
			}
			outcomes = append(outcomes, c.copyFound(f)...)
		}
		return outcomes, nil
	}

	// Each dependency gets its own slot, filled by one goroutine.
	var slots []*[]Outcome
	var g errgroup.Group
	g.SetLimit(c.Parallel)
	var rerr error
	for f, err := range found {
		if err != nil {
			rerr = err
			break
		}
		slot := &[]Outcome{}
		slots = append(slots, slot)
		g.Go(func() error {
			*slot = c.copyFound(f)
			return nil
		})
	}
	g.Wait()

	var outcomes []Outcome
	for _, slot := range slots {
		outcomes = append(outcomes, *slot...)
	}
	return outcomes, rerr
}

// copyFound copies the candidates of a single dependency.
func (c *Collator) copyFound(f Found) []Outcome {
	var outcomes []Outcome

	if err := checkName(f.Name); err != nil {
		return []Outcome{{Dependency: f.Name, Err: err}}
	}
	base := filepath.Join(c.Destination, filepath.FromSlash(f.Name))

	for src := range f.Paths {
		rel, err := Relative(f.Root, src)
		if err != nil {
			outcomes = append(outcomes, Outcome{Dependency: f.Name, Err: fmt.Errorf("abandoning remaining files: %w", err)})
			break
		}
		dst := filepath.Join(base, rel)
		o := Outcome{Dependency: f.Name, Source: src, Destination: dst}
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			o.Err = fmt.Errorf("creating parent directory: %w", err)
		} else {
			o.Err = copyTree(src, dst)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes
}

// checkName verifies a dependency name can be used as relative destination
// path without escaping the destination.
func checkName(name string) error {
	if name == "" {
		return fmt.Errorf("empty dependency name")
	}
	p := filepath.FromSlash(name)
	if filepath.IsAbs(p) || filepath.Clean(p) != p || p == ".." || strings.HasPrefix(p, ".."+string(filepath.Separator)) {
		return fmt.Errorf("bad dependency name %q, must be clean relative path", name)
	}
	return nil
}

// errSymlinkCycle is returned for a symlinked directory that is already being
// copied.
var errSymlinkCycle = errors.New("symlink cycle")

// copyTree copies file or directory src to dst, following symlinks. Existing
// files are overwritten. For directories, all entries are attempted, and all
// errors are returned joined. Symlinks back into a directory being copied are
// not followed.
func copyTree(src, dst string) error {
	return copyTreeFrom(src, dst, nil)
}

// copyTreeFrom copies src to dst. Outer holds the canonical directories of
// the enclosing copies through symlinks.
func copyTreeFrom(src, dst string, outer []string) error {
	fi, err := os.Stat(src)
	if err != nil {
		return err
	}
	if fi.Mode().IsRegular() {
		return copyFile(src, dst)
	} else if !fi.IsDir() {
		return fmt.Errorf("%s: unsupported file type %v", src, fi.Mode().Type())
	}
	// WalkDir does not descend into a symlinked root.
	if src, err = filepath.EvalSymlinks(src); err != nil {
		return err
	}
	outer = append(outer[:len(outer):len(outer)], src)

	var errs []error
	err = filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		target := filepath.Join(dst, rel)

		t := d.Type()
		if t&fs.ModeSymlink != 0 {
			fi, err := os.Stat(p)
			if err != nil {
				errs = append(errs, err)
				return nil
			}
			if fi.IsDir() {
				// Not walked by WalkDir.
				dir, err := filepath.EvalSymlinks(p)
				if err != nil {
					errs = append(errs, err)
				} else if cycle(dir, filepath.Dir(p), outer) {
					errs = append(errs, fmt.Errorf("%s: %w", p, errSymlinkCycle))
				} else if err := copyTreeFrom(dir, target, outer); err != nil {
					errs = append(errs, err)
				}
				return nil
			}
			t = fi.Mode().Type()
		}
		switch {
		case t.IsDir():
			if err := os.MkdirAll(target, 0755); err != nil {
				errs = append(errs, err)
				return fs.SkipDir
			}
		case t.IsRegular():
			if err := copyFile(p, target); err != nil {
				errs = append(errs, err)
			}
		default:
			errs = append(errs, fmt.Errorf("%s: unsupported file type %v", p, t))
		}
		return nil
	})
	if err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// cycle returns whether dir contains parent or one of the outer directories,
// all canonical paths.
func cycle(dir, parent string, outer []string) bool {
	prefix := dir
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	for _, p := range append(outer, parent) {
		if p == dir || strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func copyFile(src, dst string) (rerr error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sf.Close()

	df, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer func() {
		if err := df.Close(); err != nil && rerr == nil {
			rerr = err
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}
	return nil
}
