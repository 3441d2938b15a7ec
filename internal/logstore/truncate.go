package logstore

import (
	"fmt"
	"strings"
)

// Truncate keeps the last maxLines lines of output. It reports whether
// anything was dropped and, if so, a notice describing how much.
// maxLines < 1 disables truncation.
func Truncate(output string, maxLines int) (string, bool, string) {
	if maxLines < 1 || output == "" {
		return output, false, ""
	}

	body := strings.TrimSuffix(output, "\n")
	lines := strings.Split(body, "\n")
	if len(lines) <= maxLines {
		return output, false, ""
	}

	kept := strings.Join(lines[len(lines)-maxLines:], "\n")
	if strings.HasSuffix(output, "\n") {
		kept += "\n"
	}
	msg := fmt.Sprintf("output truncated: showing the last %d of %d lines", maxLines, len(lines))
	return kept, true, msg
}
