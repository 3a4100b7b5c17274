package browser

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// channelEnvKeys lets deployments pin an executable per release channel
var channelEnvKeys = map[string][]string{
	"chrome":        {"BROWSER_EXECUTABLE", "CHROME_PATH", "GOOGLE_CHROME_SHIM"},
	"chrome-beta":   {"BROWSER_EXECUTABLE", "CHROME_BETA_PATH"},
	"chrome-canary": {"BROWSER_EXECUTABLE", "CHROME_CANARY_PATH"},
	"msedge":        {"BROWSER_EXECUTABLE", "EDGE_PATH", "MSEDGE_PATH"},
	"msedge-beta":   {"BROWSER_EXECUTABLE", "MSEDGE_BETA_PATH"},
}

// DetectChannel returns the first chromium release channel with a working
// system executable, or "" when only the bundled browser is available
func DetectChannel() string {
	for _, ch := range []string{"chrome", "msedge"} {
		if ChannelAvailable(ch) {
			return ch
		}
	}
	return ""
}

var channelProbes sync.Map // channel -> bool

// ChannelAvailable reports whether a system browser for the channel exists
// and answers a --version probe. Results are cached per process.
func ChannelAvailable(channel string) bool {
	channel = strings.ToLower(strings.TrimSpace(channel))
	if channel == "" {
		return false
	}
	if cached, ok := channelProbes.Load(channel); ok {
		return cached.(bool)
	}

	exe := findExecutable(channel)
	ok := exe != "" && verifyLaunch(exe)
	channelProbes.Store(channel, ok)
	return ok
}

func findExecutable(channel string) string {
	keys, ok := channelEnvKeys[channel]
	if !ok {
		keys = []string{"BROWSER_EXECUTABLE"}
	}
	for _, key := range keys {
		if value := os.Getenv(key); value != "" && isExecutable(value) {
			return value
		}
	}
	for _, candidate := range channelCandidates(channel) {
		if isExecutable(candidate) {
			return candidate
		}
	}
	return ""
}

func channelCandidates(channel string) []string {
	switch runtime.GOOS {
	case "darwin":
		return macCandidates(channel)
	case "windows":
		return windowsCandidates(channel)
	default:
		return linuxCandidates(channel)
	}
}

func macCandidates(channel string) []string {
	bundles := map[string][]string{
		"chrome":        {"Google Chrome"},
		"chrome-beta":   {"Google Chrome Beta"},
		"chrome-canary": {"Google Chrome Canary"},
		"msedge":        {"Microsoft Edge"},
		"msedge-beta":   {"Microsoft Edge Beta"},
	}
	home, _ := os.UserHomeDir()
	var out []string
	for _, bundle := range bundles[channel] {
		rel := filepath.Join(bundle+".app", "Contents", "MacOS", bundle)
		out = append(out, filepath.Join("/Applications", rel))
		if home != "" {
			out = append(out, filepath.Join(home, "Applications", rel))
		}
	}
	return out
}

func windowsCandidates(channel string) []string {
	suffixes := map[string][]string{
		"chrome":        {`Google\Chrome\Application\chrome.exe`},
		"chrome-beta":   {`Google\Chrome Beta\Application\chrome.exe`},
		"chrome-canary": {`Google\Chrome SxS\Application\chrome.exe`},
		"msedge":        {`Microsoft\Edge\Application\msedge.exe`},
		"msedge-beta":   {`Microsoft\Edge Beta\Application\msedge.exe`},
	}
	var out []string
	for _, key := range []string{"PROGRAMFILES", "PROGRAMFILES(X86)", "LOCALAPPDATA"} {
		root := os.Getenv(key)
		if root == "" {
			continue
		}
		for _, suffix := range suffixes[channel] {
			out = append(out, filepath.Join(root, suffix))
		}
	}
	return out
}

func linuxCandidates(channel string) []string {
	binaries := map[string][]string{
		"chrome":        {"google-chrome", "google-chrome-stable", "chromium-browser", "chromium"},
		"chrome-beta":   {"google-chrome-beta"},
		"chrome-canary": {"google-chrome-unstable", "google-chrome-dev"},
		"msedge":        {"microsoft-edge", "microsoft-edge-stable"},
		"msedge-beta":   {"microsoft-edge-beta"},
	}
	var out []string
	for _, binary := range binaries[channel] {
		if resolved, err := exec.LookPath(binary); err == nil {
			out = append(out, resolved)
		}
	}
	return out
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if info.Mode()&0o111 != 0 {
		return true
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".exe", ".bat", ".cmd":
		return true
	}
	return false
}

func verifyLaunch(exe string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return exec.CommandContext(ctx, exe, "--version").Run() == nil
}
