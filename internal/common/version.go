package common

// Version is set at build time via -ldflags "-X .../internal/common.version=..."
var version = "0.1.0-dev"

// GetVersion returns the application version
func GetVersion() string {
	return version
}
