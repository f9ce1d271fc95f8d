package version

// Set at build time with -ldflags "-X github.com/swoga/mt5-worker/version.Version=...".
var (
	Version  = "0.1.0"
	Revision = "unknown"
)
