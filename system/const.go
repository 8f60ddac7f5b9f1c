package system

var (
	// The current version of this software.
	Version = "0.1.0"
)
