package login

import "time"

// Selector banks tried in order, most specific first. Okta's hosted and
// embedded widgets come first, then generic fallbacks that survive custom
// sign-in pages.

var usernameSelectors = []string{
	`#okta-signin-username`,
	`input[name="identifier"]`,
	`input[name="username"]`,
	`input[autocomplete="username"]`,
	`input[type="email"]`,
	`input[data-se="o-form-input-username"]`,
	`input[data-se*="username"]`,
	`input[id="idp-discovery-username"]`,
	`input[placeholder*="user" i]`,
	`input[placeholder*="email" i]`,
	`input[id*="username" i]`,
	`input[id*="user" i]`,
	`input[name*="user"]`,
	`input[name*="login"]`,
	`input[name*="email"]`,
	`input[type="text"]:visible`,
	`input:not([type]):visible`,
}

var passwordSelectors = []string{
	`#okta-signin-password`,
	`input[name="password"]`,
	`input[autocomplete="current-password"]`,
	`input[type="password"]`,
	`input[data-se="o-form-input-password"]`,
	`input[data-se*="password"]`,
	`input[placeholder*="pass" i]`,
	`input[id*="password" i]`,
	`input[name*="pass"]`,
	`input[name*="pwd"]`,
}

var submitSelectors = []string{
	`button[type="submit"]`,
	`input[type="submit"]`,
	`button:has-text("Sign in")`,
	`button:has-text("Log in")`,
	`#okta-signin-submit`,
}

var nextSelectors = []string{
	`button[type="submit"]`,
	`input[type="submit"]`,
	`button:has-text("Next")`,
	`button:has-text("Continue")`,
}

var otpSelectors = []string{
	`input[name="credentials.passcode"]`,
	`input[name="credentials.otp"]`,
	`input[name="otp"]`,
	`input[name="code"]`,
	`input[name="passcode"]`,
	`input[autocomplete="one-time-code"]`,
	`input[inputmode="numeric"]`,
	`input[type="tel"]`,
	`input[type="text"][autocomplete="off"]`,
	`input[id*="code" i]`,
	`input[placeholder*="code" i]`,
	`input[placeholder*="OTP" i]`,
	`input[type="text"]:visible`,
}

var mfaSubmitSelectors = []string{
	`button[type="submit"]`,
	`input[type="submit"]`,
	`button:has-text("Verify")`,
	`button:has-text("Submit")`,
}

// codeFactorSelectors switch MFA flows from push or other factors to an
// enterable verification code
var codeFactorSelectors = []string{
	`text=/enter code/i`,
	`text=/use code/i`,
	`text=/use a code/i`,
	`text=/Use verification code/i`,
	`text=/Enter a verification code/i`,
	`text=/verification code/i`,
	`text=/Verify with something else/i`,
	`text=/Enter a code/i`,
	`text=/Google Authenticator|Authenticator app/i`,
	`text=/Okta Verify/i`,
}

// loginSurfaceSelector matches any visible credential field. A page showing
// one is still an authentication surface, wherever it is hosted.
const loginSurfaceSelector = `#okta-signin-username, input[name="username"], input[type="password"], #okta-signin-password`

// mfaSurfaceSelector matches challenge inputs and factor pickers
const mfaSurfaceSelector = `input[name="credentials.passcode"], input[name="credentials.otp"], input[autocomplete="one-time-code"], [data-se="factor-beacon"], input[aria-label*="digit" i]`

// rejectedSurfaceSelector matches the provider's credential error banners
const rejectedSurfaceSelector = `[data-se="o-form-error-container"] p, .okta-form-infobox-error, .o-form-has-errors [role="alert"], .infobox-error`

// digitBoxSelector matches one-digit-per-box code inputs
const digitBoxSelector = `input[aria-label*="digit" i], input[maxlength="1"]`

// bankWait bounds how long a whole selector bank is retried before giving
// up. Package-level so tests can shrink it.
var bankWait = 3 * time.Second

const fillTimeoutMs = 3000

// fillFirstMatch types value into the first visible element matching any
// selector in the bank, retrying the bank until bankWait expires
func fillFirstMatch(s Session, selectors []string, value string) bool {
	deadline := time.Now().Add(bankWait)
	for {
		for _, sel := range selectors {
			if !s.IsVisible(sel) {
				continue
			}
			if err := s.Fill(sel, value, fillTimeoutMs); err != nil {
				continue
			}
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(bankRetryPause())
	}
}

// clickFirstMatch clicks the first visible element matching any selector
// in the bank, retrying the bank until bankWait expires
func clickFirstMatch(s Session, selectors []string) bool {
	deadline := time.Now().Add(bankWait)
	for {
		for _, sel := range selectors {
			if !s.IsVisible(sel) {
				continue
			}
			if err := s.Click(sel, fillTimeoutMs); err != nil {
				continue
			}
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(bankRetryPause())
	}
}

func bankRetryPause() time.Duration {
	pause := 250 * time.Millisecond
	if bankWait < pause {
		pause = bankWait
	}
	return pause
}
