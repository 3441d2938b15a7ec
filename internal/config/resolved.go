package config

import "time"

// ResolvedShellConfig is the merged, immutable configuration for one enabled
// shell. It is plain data and serializes as-is.
type ResolvedShellConfig struct {
	ID             string               `json:"id"`
	Kind           Kind                 `json:"kind"`
	DisplayName    string               `json:"displayName"`
	Executable     ExecutableConfig     `json:"executable"`
	Security       ResolvedSecurity     `json:"security"`
	Restrictions   ResolvedRestrictions `json:"restrictions"`
	Paths          ResolvedPaths        `json:"paths"`
	WSL            *ResolvedWSL         `json:"wslConfig,omitempty"`
	MaxOutputLines int                  `json:"maxOutputLines"`
}

type ResolvedSecurity struct {
	MaxCommandLength          int  `json:"maxCommandLength"`
	CommandTimeout            int  `json:"commandTimeout"`
	EnableInjectionProtection bool `json:"enableInjectionProtection"`
	RestrictWorkingDirectory  bool `json:"restrictWorkingDirectory"`
	AllowCommandChaining      bool `json:"allowCommandChaining"`
}

// Timeout returns CommandTimeout as a duration.
func (s ResolvedSecurity) Timeout() time.Duration {
	return time.Duration(s.CommandTimeout) * time.Second
}

type ResolvedRestrictions struct {
	BlockedCommands  []string `json:"blockedCommands"`
	BlockedArguments []string `json:"blockedArguments"`
	BlockedOperators []string `json:"blockedOperators"`
}

type ResolvedPaths struct {
	AllowedPaths []string `json:"allowedPaths"`
	InitialDir   string   `json:"initialDir,omitempty"`
}

type ResolvedWSL struct {
	MountPoint         string `json:"mountPoint"`
	InheritGlobalPaths bool   `json:"inheritGlobalPaths"`
}
