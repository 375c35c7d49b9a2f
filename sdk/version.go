package sdk

// Version is the SDK version, overridden with -ldflags at release time.
var Version = "0.3.0-dev"

// ShortVersion returns the version without build metadata.
func ShortVersion() string {
	for i, r := range Version {
		if r == '-' || r == '+' {
			return Version[:i]
		}
	}
	return Version
}
