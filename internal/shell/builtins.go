package shell

import (
	"slices"

	"github.com/Use-Tusk/shellgate/internal/config"
)

// PosixDeniedCommands are system-level commands blocked for every
// POSIX-flavoured shell unless overridden.
var PosixDeniedCommands = []string{
	// System control - can crash/reboot the machine
	"halt",
	"poweroff",
	"init 0",
	"init 6",
	"systemctl poweroff",
	"systemctl reboot",
	"systemctl halt",

	// Kernel/module manipulation
	"insmod",
	"rmmod",
	"modprobe",
	"kexec",

	// Disk/partition manipulation
	"fdisk",
	"parted",
	"dd",

	// Privilege escalation and namespace escape
	"sudo",
	"su",
	"chroot",
	"unshare",
	"nsenter",
}

// CmdDeniedCommands are blocked for cmd.exe.
var CmdDeniedCommands = []string{
	"del",
	"erase",
	"rd",
	"rmdir",
	"bcdedit",
	"sc",
	"schtasks",
	"wmic",
}

// PowerShellDeniedCommands are blocked for PowerShell.
var PowerShellDeniedCommands = []string{
	"remove-item",
	"ri",
	"invoke-expression",
	"iex",
	"invoke-webrequest",
	"iwr",
	"invoke-restmethod",
	"irm",
	"start-process",
	"set-executionpolicy",
	"stop-computer",
	"restart-computer",
}

// Builtins returns the built-in personalities in registration order.
func Builtins() []Personality {
	return []Personality{
		&windowsShell{
			base: base{
				id:          config.ShellCmd,
				displayName: "Command Prompt",
				executable:  config.ExecutableConfig{Command: "cmd.exe", Args: []string{"/c"}},
				blocked:     CmdDeniedCommands,
			},
			syntax: SyntaxCmd,
		},
		&windowsShell{
			base: base{
				id:          config.ShellPowerShell,
				displayName: "PowerShell",
				executable: config.ExecutableConfig{
					Command: "powershell.exe",
					Args:    []string{"-NoLogo", "-NoProfile", "-NonInteractive", "-Command"},
				},
				blocked: PowerShellDeniedCommands,
			},
			syntax: SyntaxPowerShell,
		},
		&mixedShell{base{
			id:          config.ShellGitBash,
			displayName: "Git Bash",
			executable:  config.ExecutableConfig{Command: `C:\Program Files\Git\bin\bash.exe`, Args: []string{"-c"}},
			blocked:     PosixDeniedCommands,
		}},
		&posixShell{base{
			id:          config.ShellBash,
			displayName: "Bash",
			executable:  config.ExecutableConfig{Command: "bash", Args: []string{"-c"}},
			blocked:     PosixDeniedCommands,
		}},
		&wslShell{
			base: base{
				id:          config.ShellWSL,
				displayName: "WSL",
				executable:  config.ExecutableConfig{Command: "wsl.exe", Args: []string{"-e"}},
				blocked:     PosixDeniedCommands,
			},
			mount: config.ResolvedWSL{MountPoint: config.DefaultMountPoint, InheritGlobalPaths: true},
		},
	}
}

// Filter keeps the personalities whose identifiers are listed. It is used
// when a build or the command line limits the available shells.
func Filter(personalities []Personality, ids ...string) []Personality {
	if len(ids) == 0 {
		return personalities
	}
	var out []Personality
	for _, p := range personalities {
		if slices.Contains(ids, p.ID()) {
			out = append(out, p)
		}
	}
	return out
}
