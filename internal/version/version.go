package version

import (
	"fmt"
	"runtime"
)

// Set through -ldflags at release time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func Full() string {
	return fmt.Sprintf("watson %s (%s, %s) %s/%s", Version, short(Commit), Date, runtime.GOOS, runtime.GOARCH)
}

// UserAgent identifies the client to the backend.
func UserAgent() string {
	return "watson/" + Version
}

func short(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}
