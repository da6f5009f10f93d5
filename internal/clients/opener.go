// ABOUTME: Opens a new app window through the desktop's URL handler
// ABOUTME: Uses xdg-open, open or rundll32 depending on the platform

package clients

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"slices"
)

// BrowserOpener opens URLs with the platform URL handler.
type BrowserOpener struct {
	// Command overrides the handler; args are appended before the URL.
	Command []string
}

func (b BrowserOpener) command() []string {
	if len(b.Command) > 0 {
		return b.Command
	}
	switch runtime.GOOS {
	case "darwin":
		return []string{"open"}
	case "windows":
		return []string{"rundll32", "url.dll,FileProtocolHandler"}
	default:
		return []string{"xdg-open"}
	}
}

// Open starts the handler and does not wait for the browser to exit.
func (b BrowserOpener) Open(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	argv := slices.Concat(b.command(), []string{url})
	// Not tied to ctx: the handler may outlive the request that asked for it
	cmd := exec.Command(argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", argv[0], err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
