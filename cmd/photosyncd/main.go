// Command photosyncd is the PhotoSync backup server: the classic per-device
// object store, the StealthCloud zero-knowledge chunked store, and the
// background maintenance workers behind a single admission HTTP surface.
package main

import (
	"fmt"
	"os"

	"github.com/photosync/backend/cmd/photosyncd/commands"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
