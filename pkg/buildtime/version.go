// Package buildtime holds values stamped at build time.
//
//	go build -ldflags "-X github.com/opst/gdsremote/pkg/buildtime.version=v1.2.3 -X github.com/opst/gdsremote/pkg/buildtime.revision=$(git rev-parse HEAD)"
package buildtime

var version = "dev"
var revision = "unknown"

// version string when this gdsremote has been built.
func VERSION() string {
	return version
}

func GIT_REVISION() string {
	return revision
}

func VersionString() string {
	return version + " (commit: " + revision + ")"
}
