// Package version holds build information shared by the CLI and the API
// client's User-Agent.
package version

// Version is the build version string, set by the main package.
var Version = "v0.3.0-dev"

// BuildTime is the build timestamp, set by the main package.
var BuildTime = "unknown"

// UserAgent identifies the client to the filer.
func UserAgent() string {
	return "spacefiler/" + Version
}
