package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var version = "dev"

// String returns the build version for the current binary.
func String() string {
	return version
}

// ForTesting overrides the version string and returns a cleanup function
// that restores the original value. Must not be called concurrently.
func ForTesting(v string) func() {
	original := version
	version = v
	return func() { version = original }
}

// PanelInfo is the payload served by the panel API at /api/version.
type PanelInfo struct {
	Version string `json:"version"`
}

// FormatVersion adds a "v" prefix to release versions. "dev" and empty
// strings are returned unchanged.
func FormatVersion(v string) string {
	if v == "" || v == "dev" || strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

var releasePattern = regexp.MustCompile(`^v?(\d+)\.(\d+)(?:\.\d+)?(?:[-+].*)?$`)

// release extracts major and minor from a release version. Development
// builds and anything that is not major.minor[.patch] report ok=false.
func release(v string) (major, minor int, ok bool) {
	m := releasePattern.FindStringSubmatch(strings.TrimSpace(v))
	if m == nil {
		return 0, 0, false
	}
	major, _ = strconv.Atoi(m[1])
	minor, _ = strconv.Atoi(m[2])
	return major, minor, true
}

// CheckPanel compares the panel's reported version with this build. The
// address endpoints change only across major versions; a panel on an older
// minor release may lack newer address features. It returns an empty string
// when either side is not a release build.
func CheckPanel(info PanelInfo) string {
	localMajor, localMinor, ok := release(version)
	if !ok {
		return ""
	}
	panelMajor, panelMinor, ok := release(info.Version)
	if !ok {
		return ""
	}

	switch {
	case panelMajor != localMajor:
		return fmt.Sprintf(
			"WARNING: panel %s serves a different address API than panelctl %s; stored addresses may not match",
			FormatVersion(info.Version), FormatVersion(version),
		)
	case panelMinor < localMinor:
		return fmt.Sprintf(
			"NOTE: panel %s is older than panelctl %s; newer address features may be unavailable",
			FormatVersion(info.Version), FormatVersion(version),
		)
	default:
		return ""
	}
}
