package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/mjl-/inclicenses/internal/licenses"
)

var logLevel slog.LevelVar

// Flags shared by the copy and list commands.
type commonFlags struct {
	configPath string
	dir        string
	source     string
	tags       string
	logLevel   string
}

func (cf *commonFlags) register(flg *flag.FlagSet) {
	flg.StringVar(&cf.configPath, "config", "", "config file, see 'inclicenses config'")
	flg.StringVar(&cf.dir, "C", ".", "directory of the main module or workspace")
	flg.StringVar(&cf.source, "source", "", "where to find dependencies: 'modules' for all modules in the build list, 'packages' for only modules providing packages imported by the package patterns given as arguments")
	flg.StringVar(&cf.tags, "tags", "", "comma-separated build tags, for -source packages")
	flg.StringVar(&cf.logLevel, "loglevel", "", "log level: debug, info, warn, error")
}

// init reads the config file if any, applies the flags and sets up logging.
func (cf *commonFlags) init() {
	if cf.configPath != "" {
		err := parseConfig(cf.configPath, &config)
		xcheckf(err, "parsing config")
	}
	if cf.source != "" {
		config.Source = Source(cf.source)
	}
	if cf.tags != "" {
		config.Tags = strings.Split(cf.tags, ",")
	}
	if cf.logLevel != "" {
		config.LogLevel = cf.logLevel
	}
	err := config.check()
	xcheckf(err, "checking config and flags")

	err = logLevel.UnmarshalText([]byte(fallback(config.LogLevel, defaults.LogLevel)))
	xcheckf(err, "unmarshalling log level")
	slogOpts := slog.HandlerOptions{
		Level: &logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "time" {
				return slog.Attr{}
			}
			return a
		},
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slogOpts)))
}

// externalDependencies lists the dependencies of the main module or workspace
// in dir, and returns those that are not workspace members. Patterns are only
// allowed for source packages.
func externalDependencies(dir string, patterns []string) ([]licenses.Dependency, error) {
	ctx, cancel := context.WithTimeout(context.Background(), fallback(config.GoTimeout, defaults.GoTimeout))
	defer cancel()

	source := fallback(config.Source, defaults.Source)
	metricSource.WithLabelValues(string(source)).Set(1)

	var mods []Module
	var err error
	switch source {
	case SourceModules:
		if len(patterns) > 0 {
			return nil, fmt.Errorf("package patterns %v only apply with source %q", patterns, SourcePackages)
		}
		mods, err = listModules(ctx, dir)
	case SourcePackages:
		patterns = fallbackList(patterns, fallbackList(config.Patterns, defaults.Patterns))
		mods, err = loadModules(ctx, slog.Default(), dir, patterns, config.Tags)
	default:
		err = fmt.Errorf("unknown source %q", source)
	}
	if err != nil {
		return nil, err
	}

	deps, workspace, err := dependencies(slog.Default(), mods, config.Exclude, config.licenseFiles())
	if err != nil {
		return nil, err
	}
	slog.Debug("dependencies", "source", source, "modules", len(mods), "workspace", workspace)
	return licenses.External(deps, workspace), nil
}

func cmdCopy(args []string) {
	flg := flag.NewFlagSet("inclicenses copy", flag.ExitOnError)

	var cf commonFlags
	var parallel int
	var metricsFile string
	cf.register(flg)
	flg.IntVar(&parallel, "parallel", 0, "number of modules to process concurrently, overrides config")
	flg.StringVar(&metricsFile, "metricsfile", "", "file to write prometheus metrics to, overrides config")

	flg.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: inclicenses copy [flags] [dir [pattern ...]]")
		fmt.Fprintln(os.Stderr, "patterns are only allowed with -source packages")
		flg.PrintDefaults()
		os.Exit(2)
	}
	flg.Parse(args)
	args = flg.Args()

	dst := "licenses"
	if len(args) > 0 {
		dst, args = args[0], args[1:]
	}
	if fi, err := os.Stat(dst); err == nil && !fi.IsDir() {
		log.Fatalf("destination %s is not a directory", dst)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("checking destination: %v", err)
	}

	cf.init()
	if parallel > 0 {
		config.Parallel = parallel
	}
	if metricsFile != "" {
		config.MetricsFile = metricsFile
	}

	deps, err := externalDependencies(cf.dir, args)
	xcheckf(err, "listing dependencies")
	metricDependencies.Add(float64(len(deps)))

	// Dependencies not located were skipped for lack of source directory.
	m := licenses.NewMatcher()
	located := map[string]bool{}
	found := func(yield func(licenses.Found, error) bool) {
		for f, err := range m.Search(deps) {
			if err == nil {
				located[f.Name] = true
				slog.Debug("looking for licenses", "dependency", f.Name, "root", f.Root)
			}
			if !yield(f, err) {
				return
			}
		}
	}

	c := licenses.Collator{
		Destination: dst,
		Parallel:    fallback(config.Parallel, defaults.Parallel),
	}
	outcomes, err := c.Copy(found)
	xcheckf(err, "copying licenses")

	perDep := map[string]int{}
	var nfailed int
	for _, o := range outcomes {
		if o.Source != "" {
			metricCandidates.Inc()
		}
		perDep[o.Dependency]++
		if o.OK() {
			slog.Debug("copied", "dependency", o.Dependency, "src", o.Source, "dst", o.Destination)
			continue
		}
		nfailed++
		metricCopyErrors.Inc()
		slog.Error("copying license file", "dependency", o.Dependency, "src", o.Source, "dst", o.Destination, "err", o.Err)
	}
	var nskipped, nempty int
	for _, d := range deps {
		if !located[d.Name] {
			nskipped++
			metricDependenciesSkipped.Inc()
			slog.Warn("dependency source not available, skipped", "dependency", d.Name)
		} else if perDep[d.Name] == 0 {
			nempty++
			metricDependenciesEmpty.Inc()
			slog.Warn("no license files found", "dependency", d.Name)
		}
	}
	slog.Info("copied license files", "dst", dst, "dependencies", len(deps), "skipped", nskipped, "nolicenses", nempty, "files", len(outcomes)-nfailed, "failed", nfailed)

	if config.MetricsFile != "" {
		err := writeMetrics(config.MetricsFile)
		xcheckf(err, "writing metrics")
	}
	if nfailed > 0 {
		os.Exit(1)
	}
}

func cmdList(args []string) {
	flg := flag.NewFlagSet("inclicenses list", flag.ExitOnError)

	var cf commonFlags
	cf.register(flg)
	flg.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: inclicenses list [flags] [pattern ...]")
		fmt.Fprintln(os.Stderr, "patterns are only allowed with -source packages")
		flg.PrintDefaults()
		os.Exit(2)
	}
	flg.Parse(args)
	args = flg.Args()
	cf.init()

	deps, err := externalDependencies(cf.dir, args)
	xcheckf(err, "listing dependencies")

	var failed bool
	m := licenses.NewMatcher()
	for f, err := range m.Search(deps) {
		xcheckf(err, "looking for licenses")
		for p := range f.Paths {
			rel, err := licenses.Relative(f.Root, p)
			if err != nil {
				slog.Error("abandoning dependency", "dependency", f.Name, "err", err)
				failed = true
				break
			}
			fmt.Println(path.Join(f.Name, filepath.ToSlash(rel)))
		}
	}
	if failed {
		os.Exit(1)
	}
}
