package login

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func detect(t *testing.T, sess *fakeSession, domain string) Outcome {
	t.Helper()
	d := &HostDetector{}
	return d.Evaluate(sess, Target{URL: "https://" + domain, Domain: domain})
}

func TestHostDetectorOffIdPNoFields(t *testing.T) {
	sess := newFakeSession("https://portal.example.com/dashboard")
	assert.Equal(t, OutcomeAuthenticated, detect(t, sess, "portal.example.com"))
}

func TestHostDetectorStillOnIdP(t *testing.T) {
	sess := newFakeSession("https://corp.okta.com/signin")
	assert.Equal(t, OutcomePending, detect(t, sess, "portal.example.com"))
}

func TestHostDetectorIdPVariants(t *testing.T) {
	for _, u := range []string{
		"https://corp.oktapreview.com/signin",
		"https://login.microsoftonline.com/common/oauth2",
		"https://corp.auth0.com/login",
		"https://corp.onelogin.com/portal",
	} {
		sess := newFakeSession(u)
		assert.Equal(t, OutcomePending, detect(t, sess, "portal.example.com"), "url %s", u)
	}
}

func TestHostDetectorLoginSurfaceOffIdP(t *testing.T) {
	// the target's own login page counts as an auth surface
	sess := newFakeSession("https://portal.example.com/login")
	sess.visible[loginSurfaceSelector] = true
	assert.Equal(t, OutcomePending, detect(t, sess, "portal.example.com"))
}

func TestHostDetectorMFASurface(t *testing.T) {
	sess := newFakeSession("https://corp.okta.com/signin/verify")
	sess.visible[mfaSurfaceSelector] = true
	assert.Equal(t, OutcomeMFAPending, detect(t, sess, "portal.example.com"))
}

func TestHostDetectorRejectionBeatsMFA(t *testing.T) {
	sess := newFakeSession("https://corp.okta.com/signin")
	sess.visible[mfaSurfaceSelector] = true
	sess.visible[rejectedSurfaceSelector] = true
	assert.Equal(t, OutcomeRejected, detect(t, sess, "portal.example.com"))
}

func TestHostDetectorTargetIsTheIdP(t *testing.T) {
	// logging into the IdP's own dashboard: never "leaves" the IdP host,
	// so success is the absence of credential fields
	sess := newFakeSession("https://corp.okta.com/app/dashboard")
	assert.Equal(t, OutcomeAuthenticated, detect(t, sess, "corp.okta.com"))

	sess.visible[loginSurfaceSelector] = true
	assert.Equal(t, OutcomePending, detect(t, sess, "corp.okta.com"))
}

func TestHostDetectorUnparseableURL(t *testing.T) {
	sess := newFakeSession("")
	assert.Equal(t, OutcomePending, detect(t, sess, "portal.example.com"))
}

func TestHostDetectorCustomIdPHosts(t *testing.T) {
	d := &HostDetector{IdPHosts: []string{"sso.internal"}}
	target := Target{URL: "https://portal.example.com", Domain: "portal.example.com"}

	sess := newFakeSession("https://sso.internal.example.com/login")
	assert.Equal(t, OutcomePending, d.Evaluate(sess, target))

	// default fragments no longer apply
	okta := newFakeSession("https://corp.okta.com/signin")
	assert.Equal(t, OutcomeAuthenticated, d.Evaluate(okta, target))
}
