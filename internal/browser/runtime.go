// Package browser owns the playwright driver and hands out isolated
// browser sessions, either launched locally, connected to a remote CDP
// endpoint, or run in throwaway docker containers.
package browser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/ssokeeper/ssokeeper/internal/login"
)

// Engines playwright can drive
const (
	EngineChromium = "chromium"
	EngineFirefox  = "firefox"
	EngineWebkit   = "webkit"
)

// Config selects the engine and where it runs. RemoteURL wins over Image;
// both empty means local launches.
type Config struct {
	Engine    string
	Channel   string
	RemoteURL string
	Image     string
}

// Runtime is the process-wide browser backend. It satisfies login.Launcher
// and is safe for concurrent use; every Launch yields an isolated session.
type Runtime struct {
	pw   *playwright.Playwright
	cfg  Config
	pool *Pool
}

// Start installs and boots the playwright driver. With a remote or docker
// backend only the driver itself is installed, no bundled browsers.
func Start(cfg Config) (*Runtime, error) {
	switch cfg.Engine {
	case "":
		cfg.Engine = EngineChromium
	case EngineChromium, EngineFirefox, EngineWebkit:
	default:
		return nil, fmt.Errorf("browser: unknown engine %q", cfg.Engine)
	}

	remote := cfg.RemoteURL != "" || cfg.Image != ""
	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if remote {
		opts.SkipInstallBrowsers = true
	} else {
		opts.Browsers = []string{cfg.Engine}
	}

	if err := playwright.Install(opts); err != nil {
		return nil, fmt.Errorf("browser: install driver: %w", err)
	}
	pw, err := playwright.Run(opts)
	if err != nil {
		return nil, fmt.Errorf("browser: start driver: %w", err)
	}

	rt := &Runtime{pw: pw, cfg: cfg}

	if !remote && cfg.Engine == EngineChromium && cfg.Channel == "" {
		if ch := DetectChannel(); ch != "" {
			slog.Info("using system browser channel", "channel", ch)
			rt.cfg.Channel = ch
		}
	}

	if cfg.Image != "" && cfg.RemoteURL == "" {
		pool, err := NewPool(cfg.Image)
		if err != nil {
			_ = pw.Stop()
			return nil, err
		}
		rt.pool = pool
	}
	return rt, nil
}

// Stop shuts the driver down. Live sessions must be closed first.
func (rt *Runtime) Stop() error {
	if rt.pool != nil {
		_ = rt.pool.Close()
	}
	return rt.pw.Stop()
}

// EnsureImage pre-pulls the container image when the docker backend is
// configured, so the first login does not pay for the pull
func (rt *Runtime) EnsureImage(ctx context.Context) error {
	if rt.pool == nil {
		return nil
	}
	return rt.pool.EnsureImage(ctx)
}

// Launch opens an isolated browser context, optionally seeded from a
// storage state file
func (rt *Runtime) Launch(ctx context.Context, spec login.LaunchSpec) (login.Session, error) {
	b, containerID, err := rt.openBrowser(ctx, spec.Headed)
	if err != nil {
		return nil, err
	}

	fail := func(err error) (login.Session, error) {
		_ = b.Close()
		rt.stopContainer(containerID)
		return nil, err
	}

	ctxOpts := playwright.BrowserNewContextOptions{}
	if spec.StorageStatePath != "" {
		ctxOpts.StorageStatePath = playwright.String(spec.StorageStatePath)
	}
	bctx, err := b.NewContext(ctxOpts)
	if err != nil {
		return fail(fmt.Errorf("browser: new context: %w", err))
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return fail(fmt.Errorf("browser: new page: %w", err))
	}

	return &session{
		rt:          rt,
		browser:     b,
		context:     bctx,
		page:        page,
		containerID: containerID,
	}, nil
}

func (rt *Runtime) openBrowser(ctx context.Context, headed bool) (playwright.Browser, string, error) {
	switch {
	case rt.cfg.RemoteURL != "":
		if headed {
			slog.Debug("headed mode ignored for remote browser")
		}
		b, err := rt.browserType().ConnectOverCDP(rt.cfg.RemoteURL)
		if err != nil {
			return nil, "", fmt.Errorf("browser: connect %s: %w", rt.cfg.RemoteURL, err)
		}
		return b, "", nil

	case rt.pool != nil:
		if headed {
			slog.Debug("headed mode ignored for containerized browser")
		}
		cont, err := rt.pool.Launch(ctx)
		if err != nil {
			return nil, "", err
		}
		b, err := rt.pw.Chromium.ConnectOverCDP(cont.CDPURL)
		if err != nil {
			rt.stopContainer(cont.ID)
			return nil, "", fmt.Errorf("browser: connect container: %w", err)
		}
		return b, cont.ID, nil

	default:
		b, err := rt.launchLocal(headed)
		return b, "", err
	}
}

// launchLocal starts a browser process, preferring the configured release
// channel and falling back to the bundled browser when that fails
func (rt *Runtime) launchLocal(headed bool) (playwright.Browser, error) {
	bt := rt.browserType()
	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(!headed),
	}

	if rt.cfg.Engine == EngineChromium && rt.cfg.Channel != "" {
		opts.Channel = playwright.String(rt.cfg.Channel)
		b, err := bt.Launch(opts)
		if err == nil {
			return b, nil
		}
		slog.Warn("channel launch failed, retrying with bundled browser",
			"channel", rt.cfg.Channel, "error", err)
		opts.Channel = nil
	}

	b, err := bt.Launch(opts)
	if err != nil {
		return nil, fmt.Errorf("browser: launch %s: %w", rt.cfg.Engine, err)
	}
	return b, nil
}

func (rt *Runtime) browserType() playwright.BrowserType {
	switch rt.cfg.Engine {
	case EngineFirefox:
		return rt.pw.Firefox
	case EngineWebkit:
		return rt.pw.WebKit
	default:
		return rt.pw.Chromium
	}
}

func (rt *Runtime) stopContainer(containerID string) {
	if rt.pool == nil || containerID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := rt.pool.Stop(ctx, containerID); err != nil {
		slog.Warn("stopping browser container", "container", containerID[:12], "error", err)
	}
}
