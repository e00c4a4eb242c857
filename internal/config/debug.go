package config

import (
	"os"
	"strconv"
)

const DebugEnv = "VERVE_DEBUG"

// IsDebug reports whether VERVE_DEBUG holds a true value ("1", "true", "T"...).
// Anything unparsable counts as off.
func IsDebug() bool {
	on, err := strconv.ParseBool(os.Getenv(DebugEnv))
	return err == nil && on
}
