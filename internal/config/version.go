package config

// Version is the changelog binary version.
// Set at build time via: -ldflags "-X github.com/persistorai/changelog/internal/config.Version=<tag>"
// Defaults to "dev" when built without ldflags.
var Version = "dev"
