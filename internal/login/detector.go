package login

import (
	"strings"

	"github.com/ssokeeper/ssokeeper/pkg/models"
)

// Outcome is a detector's reading of where an attempt stands
type Outcome int

const (
	// OutcomePending means authentication has not completed yet
	OutcomePending Outcome = iota
	// OutcomeAuthenticated means the success predicate holds
	OutcomeAuthenticated
	// OutcomeMFAPending means a second-factor challenge is on screen
	OutcomeMFAPending
	// OutcomeRejected means the provider reported bad credentials
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAuthenticated:
		return "authenticated"
	case OutcomeMFAPending:
		return "mfa_pending"
	case OutcomeRejected:
		return "rejected"
	default:
		return "pending"
	}
}

// Target identifies what a login attempt is trying to reach
type Target struct {
	URL    string
	Domain string
}

// Detector decides whether a page reflects a completed login. The same
// predicate drives live attempts and validation probes.
type Detector interface {
	Evaluate(s Session, t Target) Outcome
}

// defaultIdPHosts are host fragments treated as identity provider surfaces
var defaultIdPHosts = []string{
	"okta",
	"auth0",
	"onelogin",
	"pingone",
	"duosecurity",
	"microsoftonline",
}

// HostDetector is the default success predicate: authentication is complete
// once the page has left the identity provider's host and shows no
// credential fields. Works unchanged when the target itself is the IdP.
type HostDetector struct {
	// IdPHosts overrides the default host fragments when non-empty
	IdPHosts []string
}

func (d *HostDetector) Evaluate(s Session, t Target) Outcome {
	host, err := models.CanonicalDomain(s.URL())
	if err != nil {
		return OutcomePending
	}

	onAuthHost := d.isIdPHost(host) && !strings.EqualFold(host, t.Domain)
	if !onAuthHost && !s.IsVisible(loginSurfaceSelector) {
		return OutcomeAuthenticated
	}
	if s.IsVisible(rejectedSurfaceSelector) {
		return OutcomeRejected
	}
	if s.IsVisible(mfaSurfaceSelector) {
		return OutcomeMFAPending
	}
	return OutcomePending
}

func (d *HostDetector) isIdPHost(host string) bool {
	fragments := d.IdPHosts
	if len(fragments) == 0 {
		fragments = defaultIdPHosts
	}
	for _, f := range fragments {
		if f != "" && strings.Contains(host, strings.ToLower(f)) {
			return true
		}
	}
	return false
}
