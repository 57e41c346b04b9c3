package screen

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// browser bundle names whose active-tab URL AppleScript can read.
var scriptableBrowsers = map[string]string{
	"Google Chrome":  `tell application "Google Chrome" to get URL of active tab of front window`,
	"Safari":         `tell application "Safari" to get URL of front document`,
	"Brave Browser":  `tell application "Brave Browser" to get URL of active tab of front window`,
	"Microsoft Edge": `tell application "Microsoft Edge" to get URL of active tab of front window`,
}

// OSProvider samples the foreground window through AppleScript. On other
// platforms Current returns an error and the actor skips the cycle.
type OSProvider struct {
	timeout time.Duration
}

// NewOSProvider creates the macOS foreground provider.
func NewOSProvider() *OSProvider {
	return &OSProvider{timeout: 2 * time.Second}
}

// Current implements ForegroundProvider.
func (p *OSProvider) Current(ctx context.Context) (Sample, error) {
	if runtime.GOOS != "darwin" {
		return Sample{}, fmt.Errorf("foreground sampling not supported on %s", runtime.GOOS)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	app, err := runOsascript(ctx, `tell application "System Events" to get name of first process whose frontmost is true`)
	if err != nil {
		return Sample{}, fmt.Errorf("frontmost app lookup: %w", err)
	}

	sample := Sample{App: app}

	// Window title is best effort; some processes expose none.
	title, err := runOsascript(ctx, fmt.Sprintf(
		`tell application "System Events" to tell process %q to get name of front window`, app))
	if err == nil {
		sample.Title = title
	}

	if script, ok := scriptableBrowsers[app]; ok {
		if url, err := runOsascript(ctx, script); err == nil {
			sample.URL = url
		}
	}

	return sample, nil
}

// runOsascript executes an AppleScript and returns its trimmed output.
func runOsascript(ctx context.Context, script string) (string, error) {
	cmd := exec.CommandContext(ctx, "osascript", "-e", script)
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("osascript: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}
