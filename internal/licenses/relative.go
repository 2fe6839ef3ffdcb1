package licenses

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrNotBeneath is returned by Relative for a path outside the root directory.
var ErrNotBeneath = errors.New("path not beneath root")

// Relative returns the path of source relative to the canonical root directory.
//
// Only the parent directory of source is canonicalized, so a symlink is placed
// at its own location, not at that of its target. Source must be strictly
// beneath root.
func Relative(root, source string) (string, error) {
	dir, err := canonical(filepath.Dir(source))
	if err != nil {
		return "", fmt.Errorf("resolving directory of %s: %w", source, err)
	}
	p := filepath.Join(dir, filepath.Base(source))
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return "", fmt.Errorf("%w: %s in %s: %v", ErrNotBeneath, source, root, err)
	}
	if rel == "." || filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s in %s", ErrNotBeneath, source, root)
	}
	return rel, nil
}
