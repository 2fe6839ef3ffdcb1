package main

import (
	"runtime/debug"
)

// Module version of this binary, or the vcs revision for development builds.
var version = "(devel)"

func init() {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if buildInfo.Main.Version != "" {
		version = buildInfo.Main.Version
	}
	if version != "(devel)" {
		return
	}
	var revision, modified string
	for _, setting := range buildInfo.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			if setting.Value == "true" {
				modified = "+dirty"
			}
		}
	}
	if revision != "" {
		version = revision + modified
	}
}
