package config

// Version is the version of the client, it's overridden at build time with
// -ldflags "-X github.com/abicall/abicall/pkg/config.Version=...".
var Version = "dev"
