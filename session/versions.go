package session

import "github.com/sishi44/locator-ros-bridge/protocol"

// CheckCompatibility gates the bridge on the locator's protocol
// surface. Every required module must be present with a matching major
// version and a minor version equal or bigger than required; binary
// frame layouts are version-coupled, so any mismatch fails hard
// instead of degrading silently.
func CheckCompatibility(required, actual map[string]protocol.ModuleVersion) error {
	for name, want := range required {
		got, ok := actual[name]
		if !ok {
			return &IncompatiblePeerError{Module: name, Required: want, Missing: true}
		}

		if got.Major != want.Major || got.Minor < want.Minor {
			return &IncompatiblePeerError{Module: name, Required: want, Actual: got}
		}
	}

	return nil
}
