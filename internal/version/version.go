package version

import "runtime"

// Version is overridden at release time with
//
//	-ldflags="-X 'github.com/abdulmanan69/p2pchat/internal/version.Version=v1.2.3'"
var Version = "dev"

// UserAgent is sent on every request to the relay and credential endpoint.
func UserAgent() string {
	return "p2pchat/" + Version + " (" + runtime.GOOS + "/" + runtime.GOARCH + ")"
}
