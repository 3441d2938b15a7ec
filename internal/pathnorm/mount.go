package pathnorm

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Use-Tusk/shellgate/internal/config"
)

// ErrUNCPath is returned when a UNC path is asked to be mounted.
var ErrUNCPath = errors.New("UNC paths cannot be converted to a mounted path")

var drivePrefix = regexp.MustCompile(`^([A-Za-z]):[\\/]?(.*)$`)

// WindowsToMounted converts a drive-letter path to its form under a WSL
// mount point: "C:\temp" becomes "/mnt/c/temp". The result is lower-cased.
// Paths without a drive prefix are returned unchanged; UNC paths fail.
func WindowsToMounted(p, mountPoint string) (string, error) {
	if IsUNC(p) {
		return "", fmt.Errorf("%w: %q", ErrUNCPath, p)
	}
	m := drivePrefix.FindStringSubmatch(p)
	if m == nil {
		return p, nil
	}

	mount := mountRoot(mountPoint)
	drive := strings.ToLower(m[1])
	rest := strings.Join(splitNonEmpty(strings.ReplaceAll(m[2], `\`, "/"), '/'), "/")
	if rest == "" {
		return mount + "/" + drive, nil
	}
	return mount + "/" + drive + "/" + strings.ToLower(rest), nil
}

// MountedToWindows reverses WindowsToMounted for paths under mountPoint.
// The second result is false when p is not below a mounted drive.
func MountedToWindows(p, mountPoint string) (string, bool) {
	mount := mountRoot(mountPoint)
	rest, ok := strings.CutPrefix(p, mount+"/")
	if !ok || len(rest) == 0 || !isLetter(rest[0]) {
		return "", false
	}
	if len(rest) > 1 && rest[1] != '/' {
		return "", false
	}
	drive := strings.ToUpper(rest[:1])
	tail := ""
	if len(rest) > 2 {
		tail = rest[2:]
	}
	return canonicalWindows(drive + `:\` + tail), true
}

func mountRoot(mountPoint string) string {
	if mountPoint == "" {
		mountPoint = config.DefaultMountPoint
	}
	return strings.TrimRight(mountPoint, "/")
}
