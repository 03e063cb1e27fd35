package shared

import (
	"fmt"
	"os/exec"
	"runtime"
)

// Swapped out in tests to exercise every platform branch.
var currentOS = func() string { return runtime.GOOS }

// OpenBrowser launches the default browser at the given URL. Used by the
// authorization flow to send the user to the consent page; callers fall
// back to printing the URL when this fails.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd
	switch os := currentOS(); os {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", os)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}

	return nil
}
