package featureflags

import (
	"os"
	"strings"
)

func envName(name string) string {
	return "FLAG_" + strings.ToUpper(name)
}

// Enabled returns true if a flag is enabled via environment variable.
// Flags are read from env as FLAG_<NAME>=true/1/yes (case-insensitive)
func Enabled(name string) bool {
	v := os.Getenv(envName(name))
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Set reports whether the flag has been given any value at all
func Set(name string) bool {
	_, ok := os.LookupEnv(envName(name))
	return ok
}
