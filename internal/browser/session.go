package browser

import (
	"encoding/json"

	"github.com/playwright-community/playwright-go"

	"github.com/ssokeeper/ssokeeper/pkg/models"
)

// session adapts one playwright page to the login.Session surface.
// Selector probes report false on driver errors instead of failing.
type session struct {
	rt          *Runtime
	browser     playwright.Browser
	context     playwright.BrowserContext
	page        playwright.Page
	containerID string
}

func (s *session) URL() string {
	return s.page.URL()
}

func (s *session) Goto(url string, timeoutMs float64) (int, error) {
	resp, err := s.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(timeoutMs),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return 0, err
	}
	if resp == nil {
		return 0, nil
	}
	return resp.Status(), nil
}

func (s *session) WaitLoaded(timeoutMs float64) {
	_ = s.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(timeoutMs),
	})
}

func (s *session) IsVisible(selector string) bool {
	visible, err := s.page.Locator(selector).First().IsVisible()
	return err == nil && visible
}

func (s *session) WaitVisible(selector string, timeoutMs float64) error {
	return s.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(timeoutMs),
	})
}

func (s *session) Fill(selector, value string, timeoutMs float64) error {
	return s.page.Locator(selector).First().Fill(value, playwright.LocatorFillOptions{
		Timeout: playwright.Float(timeoutMs),
	})
}

func (s *session) Click(selector string, timeoutMs float64) error {
	return s.page.Locator(selector).First().Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(timeoutMs),
	})
}

func (s *session) Count(selector string) (int, error) {
	return s.page.Locator(selector).Count()
}

func (s *session) FillNth(selector string, n int, value string) error {
	return s.page.Locator(selector).Nth(n).Fill(value)
}

// Extract snapshots the context's storage state. The raw snapshot and the
// typed cookie list come from the same call, so they cannot disagree.
func (s *session) Extract() ([]byte, []models.Cookie, error) {
	st, err := s.context.StorageState()
	if err != nil {
		return nil, nil, err
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return nil, nil, err
	}

	cookies := make([]models.Cookie, 0, len(st.Cookies))
	for _, c := range st.Cookies {
		cookie := models.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HttpOnly: c.HttpOnly,
			Secure:   c.Secure,
		}
		if c.SameSite != nil {
			cookie.SameSite = string(*c.SameSite)
		}
		cookies = append(cookies, cookie)
	}
	return raw, cookies, nil
}

// Close tears down the page, context and browser, then stops the backing
// container when one exists
func (s *session) Close() error {
	_ = s.context.Close()
	err := s.browser.Close()
	s.rt.stopContainer(s.containerID)
	return err
}
