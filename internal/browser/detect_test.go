package browser

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFakeBrowser(t *testing.T, exitCode string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes are unix only")
	}
	path := filepath.Join(t.TempDir(), "fake-chrome")
	script := "#!/bin/sh\nexit " + exitCode + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestIsExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permission semantics")
	}
	dir := t.TempDir()

	plain := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(plain, []byte("data"), 0o644))
	assert.False(t, isExecutable(plain))

	script := filepath.Join(dir, "script")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\n"), 0o755))
	assert.True(t, isExecutable(script))

	assert.False(t, isExecutable(dir))
	assert.False(t, isExecutable(filepath.Join(dir, "missing")))
}

func TestFindExecutableEnvOverride(t *testing.T) {
	fake := writeFakeBrowser(t, "0")
	t.Setenv("CHROME_PATH", fake)
	t.Setenv("BROWSER_EXECUTABLE", "")

	assert.Equal(t, fake, findExecutable("chrome"))
}

func TestFindExecutableIgnoresBrokenOverride(t *testing.T) {
	t.Setenv("CHROME_BETA_PATH", filepath.Join(t.TempDir(), "nope"))
	t.Setenv("BROWSER_EXECUTABLE", "")

	// falls through to system candidates, which may or may not exist;
	// the broken override itself must never be returned
	got := findExecutable("chrome-beta")
	assert.NotContains(t, got, "nope")
}

func TestChannelAvailableRunsProbe(t *testing.T) {
	fake := writeFakeBrowser(t, "0")
	t.Setenv("BROWSER_EXECUTABLE", fake)

	channelProbes.Delete("chrome")
	t.Cleanup(func() { channelProbes.Delete("chrome") })

	assert.True(t, ChannelAvailable("chrome"))
}

func TestChannelAvailableProbeFailure(t *testing.T) {
	// the override is found first but fails its --version probe
	fake := writeFakeBrowser(t, "7")
	t.Setenv("BROWSER_EXECUTABLE", fake)

	channelProbes.Delete("msedge")
	t.Cleanup(func() { channelProbes.Delete("msedge") })

	assert.False(t, ChannelAvailable("msedge"))
}

func TestChannelAvailableEmpty(t *testing.T) {
	assert.False(t, ChannelAvailable(""))
	assert.False(t, ChannelAvailable("   "))
}
