// Package version contains the version of ouinet.
package version

// Version is the software version.
const Version = "0.1.0-dev"
