package app

// Build information set with -ldflags "-X"; the defaults are for local builds.
var (
	BuildVersion = "0.0.0-dev"
	BuildCommit  = "unknown"
	BuildDate    = "unknown"
)
