package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/mjl-/sconf"
	"golang.org/x/mod/module"
)

type Source string

const (
	SourceModules  Source = "modules"
	SourcePackages Source = "packages"
)

type Config struct {
	LogLevel    string          `sconf:"optional" sconf-doc:"NOTE: Indenting in this config file can be done with tabs only, not spaces.\n\nValues 'debug', 'info', 'warn', 'error'. Default info."`
	Source      Source          `sconf:"optional" sconf-doc:"Where to get the dependencies from. Value 'modules' uses all modules in the build list, as reported by 'go list -m all'. Value 'packages' uses only modules that provide packages imported (directly or indirectly) by Patterns. Default modules."`
	Patterns    []string        `sconf:"optional" sconf-doc:"Package patterns to load for source 'packages'. If empty, './...' is used."`
	Tags        []string        `sconf:"optional" sconf-doc:"Build tags for source 'packages'."`
	Exclude     []string        `sconf:"optional" sconf-doc:"Glob patterns for module paths to leave out, e.g. 'golang.org/x/**'. Double star matches across slashes."`
	Licenses    []ConfigLicense `sconf:"optional" sconf-doc:"Explicitly declared license files for modules. For these modules, no other files are looked for."`
	Parallel    int             `sconf:"optional" sconf-doc:"Number of modules to copy license files for concurrently. Default 1."`
	GoTimeout   time.Duration   `sconf:"optional" sconf-doc:"Maximum time for the go command to list dependencies. Default 5m."`
	MetricsFile string          `sconf:"optional" sconf-doc:"If non-empty, file to write prometheus metrics about the run to, in text format, e.g. for the node_exporter textfile collector."`
}

type ConfigLicense struct {
	Module string `sconf-doc:"Module path, e.g. github.com/mjl-/sconf. Matches all versions."`
	File   string `sconf-doc:"License file or directory. Relative to the module root directory, or absolute."`
}

var config Config
var defaults = Config{
	LogLevel:  "info",
	Source:    SourceModules,
	Patterns:  []string{"./..."},
	Parallel:  1,
	GoTimeout: 5 * time.Minute,
}

func fallback[T comparable](v, fallback T) T {
	var zero T
	if v == zero {
		return fallback
	}
	return v
}

func fallbackList[T any](v, fallback []T) []T {
	if len(v) == 0 {
		return fallback
	}
	return v
}

func parseConfig(p string, c *Config) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()
	return parseConfigReader(f, c)
}

func parseConfigReader(r io.Reader, c *Config) error {
	if err := sconf.Parse(r, c); err != nil {
		return err
	}
	return c.check()
}

// check validates the config. Also used for configs composed from flags.
func (c *Config) check() error {
	if c.LogLevel != "" {
		var level slog.LevelVar
		if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
			return fmt.Errorf("parsing log level %q: %v", c.LogLevel, err)
		}
	}

	switch c.Source {
	case "", SourceModules, SourcePackages:
	default:
		return fmt.Errorf("invalid source %q", c.Source)
	}

	for _, pat := range c.Exclude {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("invalid exclude pattern %q", pat)
		}
	}

	seen := map[string]bool{}
	for _, l := range c.Licenses {
		if err := module.CheckImportPath(l.Module); err != nil {
			return fmt.Errorf("license for module %q: %v", l.Module, err)
		}
		if l.File == "" {
			return fmt.Errorf("license for module %q: empty file", l.Module)
		}
		if seen[l.Module] {
			return fmt.Errorf("duplicate license for module %q", l.Module)
		}
		seen[l.Module] = true
	}

	if c.Parallel < 0 {
		return fmt.Errorf("parallel must be >= 0")
	}
	if c.GoTimeout < 0 {
		return fmt.Errorf("go timeout must be >= 0")
	}
	return nil
}

// licenseFiles returns the declared license files by module path.
func (c *Config) licenseFiles() map[string]string {
	m := map[string]string{}
	for _, l := range c.Licenses {
		m[l.Module] = l.File
	}
	return m
}
