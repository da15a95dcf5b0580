// Package version holds build version information, stamped via ldflags:
//
//	go build -ldflags "-X github.com/dynconf/dynconf/pkg/version.Version=v1.0.0 \
//	                   -X github.com/dynconf/dynconf/pkg/version.GitCommit=$(git rev-parse --short HEAD)"
package version

var (
	// Version is the release version, "dev" for unstamped builds.
	Version = "dev"
	// GitCommit is the short commit hash.
	GitCommit = "unknown"
)
