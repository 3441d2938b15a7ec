package executor

import (
	"os"
	"slices"
	"strings"
)

// DangerousEnvPrefixes are stripped from the environment of every command.
// LD_* and DYLD_* can inject shared libraries into the spawned shell.
var DangerousEnvPrefixes = []string{
	"LD_",
	"DYLD_",
}

// DangerousEnvVars are stripped by exact name. CDPATH redirects relative
// cd targets; BASH_ENV and ENV name scripts non-interactive shells source.
var DangerousEnvVars = []string{
	"CDPATH",
	"BASH_ENV",
	"ENV",
}

// HardenedEnv returns the current environment without dangerous variables.
func HardenedEnv() []string {
	return FilterDangerousEnv(os.Environ())
}

// FilterDangerousEnv filters dangerous variables out of env.
func FilterDangerousEnv(env []string) []string {
	filtered := make([]string, 0, len(env))
	for _, e := range env {
		if !isDangerousEnvVar(e) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// StrippedEnvVars returns the names of the variables FilterDangerousEnv
// would remove.
func StrippedEnvVars(env []string) []string {
	var stripped []string
	for _, e := range env {
		if isDangerousEnvVar(e) {
			key, _, _ := strings.Cut(e, "=")
			stripped = append(stripped, key)
		}
	}
	return stripped
}

func isDangerousEnvVar(entry string) bool {
	key, _, _ := strings.Cut(entry, "=")
	key = strings.ToUpper(key)
	for _, prefix := range DangerousEnvPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return slices.Contains(DangerousEnvVars, key)
}
