// Package version provides build version information for planrelay.
// These variables are set at build time via ldflags.
package version

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"
	common "github.com/prometheus/common/version"
)

// Program is the binary name reported in version output and the build_info metric.
const Program = "planrelay"

// Build information variables - set via ldflags.
// Example: go build -ldflags "-X planrelay/pkg/version.Version=v1.2.3".
//
//nolint:gochecknoglobals // These must be package-level vars for ldflags injection.
var (
	// Version is the semantic version (e.g., "v1.2.3" or "dev" for development builds).
	Version = "dev"

	// Commit is the git commit SHA of the build.
	Commit = "none"

	// Date is the build date in ISO format.
	Date = "unknown"

	syncOnce sync.Once
)

// syncCommon copies the ldflags values into prometheus/common/version, which backs the
// formatted output and the build_info collector.
func syncCommon() {
	syncOnce.Do(func() {
		common.Version = Version
		common.Revision = Commit
		common.BuildDate = Date
	})
}

// Short returns the version string, e.g. "v1.2.3".
func Short() string {
	syncCommon()
	return common.Version
}

// Info returns a one-line summary: version, revision and branch.
func Info() string {
	syncCommon()
	return common.Info()
}

// Print returns the multi-line version report printed by `planrelay version`.
func Print() string {
	syncCommon()
	return common.Print(Program)
}

// NewCollector returns the planrelay_build_info gauge.
func NewCollector() prometheus.Collector {
	syncCommon()
	return versioncollector.NewCollector(Program)
}
