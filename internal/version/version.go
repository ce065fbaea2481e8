// Package version exposes the build version, overridable at link time.
package version

// Version is set via -ldflags at build time.
var Version = "dev"
