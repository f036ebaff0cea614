// Package version holds the build-time version variables for the inv binary.
// Local builds keep the zero values; release builds set them with -ldflags.
package version

import "fmt"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info returns the string printed by inv version.
func Info() string {
	return fmt.Sprintf("inv version %s\ncommit: %s\nbuilt: %s\n", Version, Commit, Date)
}
