package queue

// version is the engine version reported by [Version].
const version = "0.4.0"

// Version returns the engine version string.
func Version() string {
	return version
}
