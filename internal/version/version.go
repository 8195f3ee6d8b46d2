// Package version exposes build-time version information for the decipher binary.
package version

// Version is the semantic version of the decipher binary.
// Overridden at build time via -ldflags "-X .../internal/version.Version=v1.2.3".
var Version = "0.3.0-dev"

// Commit is the git commit hash the binary was built from.
// Overridden at build time via -ldflags.
var Commit = "unknown"
