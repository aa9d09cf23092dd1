// The loanlens binary carries the full command tree: serve, worker,
// migrate, and the offline analyze/highlight commands.
package main

import "github.com/loanlens/loanlens/internal/interfaces/cli"

// Injected at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Execute(cli.BuildInfo{Version: version, Commit: commit, Date: date})
}
