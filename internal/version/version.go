// Package version carries the build-time version string for donorgen.
package version

// Version is overridden at build time via -ldflags "-X ... .Version=...".
var Version = "dev"
