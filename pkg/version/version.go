// Package version exposes build metadata used in User-Agent headers and the
// MCP client handshake.
//
// Priority: -ldflags override > VCS info from debug.BuildInfo > "dev" fallback.
package version

import "runtime/debug"

// AppName is the application name used in version strings and protocol handshakes.
const AppName = "storeassist"

// commitOverride is set via -ldflags for builds where .git is unavailable.
var commitOverride string

// GitCommit is the short commit hash, "dev" when unknown. A "-dirty" suffix
// marks builds from a modified working tree.
var GitCommit = resolveCommit(commitOverride, readSettings())

func readSettings() map[string]string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	settings := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}
	return settings
}

func resolveCommit(override string, settings map[string]string) string {
	if override != "" {
		return shorten(override)
	}
	rev := settings["vcs.revision"]
	if rev == "" {
		return "dev"
	}
	rev = shorten(rev)
	if settings["vcs.modified"] == "true" {
		rev += "-dirty"
	}
	return rev
}

func shorten(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}

// Full returns "storeassist/<commit>" for User-Agent strings and logging.
func Full() string {
	return AppName + "/" + GitCommit
}
