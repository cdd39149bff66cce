package version

import (
	"fmt"
	"runtime"
	"strings"

	semver "github.com/Masterminds/semver/v3"
)

// CurrentVersion is set with -ldflags "-X webchat-cli/cmd/version.CurrentVersion=v1.2.3".
var CurrentVersion = "dev"

// Info describes the running build.
type Info struct {
	Version    string `json:"version"`
	Normalized string `json:"normalized"`
	Release    bool   `json:"release"`
	Prerelease string `json:"prerelease,omitempty"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
}

// Current returns the Info for this binary.
func Current() Info {
	return Describe(CurrentVersion)
}

// Describe builds an Info for raw. Non-semver strings such as "dev" are
// reported as non-release builds.
func Describe(raw string) Info {
	normalized, parsed := normalizeForSemver(raw)
	info := Info{
		Version:    FormatVersionForDisplay(raw),
		Normalized: normalized,
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
	}
	if parsed != nil {
		info.Release = parsed.Prerelease() == ""
		info.Prerelease = parsed.Prerelease()
	}
	if parsed == nil {
		info.Version = strings.TrimSpace(raw)
		if info.Version == "" {
			info.Version = "unknown"
		}
	}
	return info
}

// String renders Info on one line.
func (i Info) String() string {
	return fmt.Sprintf("webchat %s (%s, %s)", i.Version, i.GoVersion, i.Platform)
}

func normalizeForSemver(raw string) (string, *semver.Version) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return trimmed, nil
	}
	normalized := strings.TrimPrefix(strings.TrimPrefix(trimmed, "v"), "V")
	parsed, err := semver.NewVersion(normalized)
	if err != nil {
		return normalized, nil
	}
	return normalized, parsed
}

// FormatVersionForDisplay prefixes a single "v".
func FormatVersionForDisplay(version string) string {
	if version == "" {
		return "unknown"
	}
	normalized := strings.TrimPrefix(strings.TrimPrefix(version, "v"), "V")
	return "v" + normalized
}
