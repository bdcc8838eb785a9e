package version

import "fmt"

// Build variables set via ldflags:
// -X 'github.com/watchdeck/watchdeck/pkg/version.Version=v1.0.0'
// -X 'github.com/watchdeck/watchdeck/pkg/version.CommitHash=abc123'
// -X 'github.com/watchdeck/watchdeck/pkg/version.BuildDate=2026-01-01T00:00:00Z'
var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildDate  = "unknown"
)

// Info is the build information reported by the CLI and the reference server.
type Info struct {
	Version    string `json:"version"`
	CommitHash string `json:"commit_hash"`
	BuildDate  string `json:"build_date"`
}

func Get() Info {
	return Info{
		Version:    Version,
		CommitHash: CommitHash,
		BuildDate:  BuildDate,
	}
}

func (i Info) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", i.Version, i.CommitHash, i.BuildDate)
}
