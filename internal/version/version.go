// Package version provides application version information.
// The version can be set at build time using ldflags:
//
//	go build -ldflags "-X github.com/ramonehamilton/commander-vault/internal/version.Version=v1.2.3"
package version

// Version is the application version. It defaults to "dev" and can be
// overridden at build time using ldflags.
var Version = "dev"

// ArchiveMarker returns the app version marker written into every deck
// manifest, e.g. "commander-vault/dev".
func ArchiveMarker() string {
	return "commander-vault/" + Version
}
