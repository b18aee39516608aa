package version

import (
	"runtime"
	"runtime/debug"
)

// Version is set at build time, for example:
// go build -ldflags "-X github.com/vsariola/stepseq/version.Version=$(git describe --dirty)"
var Version string

// Hash is the short VCS revision of the build, with -dirty if the tree was
// modified.
var Hash = func() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	return revision(info.Settings)
}()

var VersionOrHash = func() string {
	if Version != "" {
		return Version
	}
	if Hash != "" {
		return Hash
	}
	return "devel"
}()

// Long is VersionOrHash followed by the Go version and the platform.
func Long() string {
	return VersionOrHash + " (" + runtime.Version() + " " + runtime.GOOS + "/" + runtime.GOARCH + ")"
}

func revision(settings []debug.BuildSetting) string {
	var rev string
	modified := false
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			modified = s.Value == "true"
		}
	}
	if len(rev) > 7 {
		rev = rev[:7]
	}
	if rev != "" && modified {
		rev += "-dirty"
	}
	return rev
}
