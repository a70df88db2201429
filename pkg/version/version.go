package version

// Version is set at build time via -ldflags "-X github.com/maxvaer/gmapscan/pkg/version.Version=...".
var Version = "dev"
