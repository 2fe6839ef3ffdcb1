package main

/*
Command inclicenses copies the license files of the dependencies of a Go module
or workspace into a directory, e.g. for shipping them with a binary or
embedding them with go:embed.

Each dependency gets its own directory, named after the module path and
version as in the module cache, mirroring the layout of the module:

	licenses/
		github.com/mjl-/sconf@v0.0.8/LICENSE
		golang.org/x/mod@v0.24.0/LICENSE
		golang.org/x/mod@v0.24.0/PATENTS

Files are selected when their path contains LICENSE, COPYRIGHT, NOTICE, AUTHORS,
CONTRIBUTORS, COPYING or PATENT (in any case), or when they look like
documentation (README, .txt, .md, .html) and have a line mentioning LICENSE,
COPYRIGHT, COPYING or PATENT. A license file declared in the config file for a
module replaces the search.

- todo: option to leave out files from vendored third party code inside modules, e.g. third_party/ directories.
*/

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"runtime"

	"github.com/mjl-/sconf"
)

func xcheckf(err error, format string, args ...any) {
	if err != nil {
		slog.Error(fmt.Sprintf(format, args...), "err", err)
		os.Exit(1)
	}
}

func main() {
	log.SetFlags(0)

	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: inclicenses copy [flags] [dir [pattern ...]]")
		fmt.Fprintln(os.Stderr, "       inclicenses list [flags] [pattern ...]")
		fmt.Fprintln(os.Stderr, "       inclicenses cat dir")
		fmt.Fprintln(os.Stderr, "       inclicenses config >example.conf")
		fmt.Fprintln(os.Stderr, "       inclicenses configdefaults >defaults.conf")
		fmt.Fprintln(os.Stderr, "       inclicenses testconfig < inclicenses.conf")
		fmt.Fprintln(os.Stderr, "       inclicenses version")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "package patterns are only allowed with -source packages.")
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
	}

	cmd, args := args[0], args[1:]
	switch cmd {
	case "copy":
		cmdCopy(args)

	case "list":
		cmdList(args)

	case "cat":
		if len(args) != 1 {
			flag.Usage()
		}
		err := licensesWrite(os.Stdout, os.DirFS(args[0]))
		xcheckf(err, "writing licenses")

	case "config":
		err := sconf.Describe(os.Stdout, config)
		xcheckf(err, "writing config")

	case "configdefaults":
		err := sconf.Describe(os.Stdout, defaults)
		xcheckf(err, "writing defaults")

	case "testconfig":
		var cfg Config
		err := parseConfigReader(os.Stdin, &cfg)
		xcheckf(err, "parsing config")

	case "version":
		fmt.Printf("inclicenses %s %s %s/%s\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)

	default:
		flag.Usage()
	}
}
