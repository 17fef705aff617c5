package version

// Version is stamped at build time via -ldflags "-X ...=x.y.z".
var Version string

// GetVersion returns the stamped release number, or "dev" for an
// unstamped build.
func GetVersion() string {
	if Version != "" {
		return Version
	}
	return "dev"
}
