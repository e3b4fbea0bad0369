// Package version provides build and version information for Assembly Engine.
package version

// Version is the current release version of Assembly Engine.
// This can be overridden at build time using:
//
//	go build -ldflags "-X github.com/AaronLay10/AssemblyEngine/internal/version.Version=x.y.z"
var Version = "0.1.0"
