// Package licenses finds the license-related files of dependencies and
// copies them into a destination directory, one subdirectory per dependency.
package licenses

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"unicode/utf8"
)

// Matcher classifies paths and file contents as license-related. A Matcher is
// immutable after NewMatcher and safe for concurrent use.
type Matcher struct {
	name     *regexp.Regexp // Matched against the full path.
	eligible *regexp.Regexp // Paths for which content is inspected.
	line     *regexp.Regexp // Matched against each line of eligible files.
}

// NewMatcher returns a Matcher with the license name and content patterns.
func NewMatcher() *Matcher {
	return &Matcher{
		name:     regexp.MustCompile(`(?i)LICENSE|COPYRIGHT|NOTICE|AUTHORS|CONTRIBUTORS|COPYING|PATENT`),
		eligible: regexp.MustCompile(`(?i)\.html|\.txt|\.md|README`),
		// Narrower than name: NOTICE, AUTHORS and CONTRIBUTORS show up in too much
		// ordinary prose.
		line: regexp.MustCompile(`(?i)LICENSE|COPYRIGHT|COPYING|PATENT`),
	}
}

// MatchName returns whether the path text contains a license keyword anywhere,
// in any directory element or the file name.
func (m *Matcher) MatchName(path string) bool {
	return m.name.MatchString(path)
}

// ContentEligible returns whether the path looks like prose documentation,
// whose content should be inspected.
func (m *Matcher) ContentEligible(path string) bool {
	return m.eligible.MatchString(path)
}

// MatchLine returns whether a single line of text mentions a license.
func (m *Matcher) MatchLine(line string) bool {
	return m.line.MatchString(line)
}

// MatchContent returns whether any line in the file matches MatchLine. Files
// that cannot be opened don't match, and neither do paths that are not (links
// to) regular files, opening a fifo would block. Lines that are not valid
// UTF-8 are skipped, and a read error ends the scan with the result so far.
func (m *Matcher) MatchContent(path string) bool {
	if fi, err := os.Stat(path); err != nil || !fi.Mode().IsRegular() {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	return m.matchReader(f)
}

func (m *Matcher) matchReader(r io.Reader) bool {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" && utf8.ValidString(line) && m.MatchLine(line) {
			return true
		}
		if err != nil {
			return false
		}
	}
}

// Match returns whether the file at path is license-related: either its path
// matches MatchName, or it is ContentEligible and its content matches.
func (m *Matcher) Match(path string) bool {
	return m.MatchName(path) || (m.ContentEligible(path) && m.MatchContent(path))
}
