package main

import (
	"fmt"
	"io"
	"io/fs"
)

// licensesWrite writes all files in fsys, as collected by the copy command, to
// dst, each preceded by a header with its path. E.g. for a single
// THIRD_PARTY_LICENSES file to ship with a binary.
func licensesWrite(dst io.Writer, fsys fs.FS) error {
	copyFile := func(p string) error {
		f, err := fsys.Open(p)
		if err != nil {
			return fmt.Errorf("open license file: %v", err)
		}
		defer f.Close()
		if _, err := io.Copy(dst, f); err != nil {
			return fmt.Errorf("copy license file: %v", err)
		}
		return nil
	}

	first := true
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		sep := "\n\n"
		if first {
			sep = ""
			first = false
		}
		if _, err := fmt.Fprintf(dst, "%s# %s\n\n", sep, path); err != nil {
			return err
		}
		return copyFile(path)
	})
	if err != nil {
		return fmt.Errorf("walk licenses: %v", err)
	}
	return nil
}
