package login

import (
	"fmt"
	"os"
	"strings"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

// Profile customizes success detection for targets matching its domain
// globs. SuccessURL and SuccessSelector are positive markers; Strict makes
// them the only accepted proof of authentication.
type Profile struct {
	Name            string   `yaml:"name"`
	Domains         []string `yaml:"domains"`
	IdPHosts        []string `yaml:"idpHosts"`
	SuccessURL      string   `yaml:"successUrl"`
	SuccessSelector string   `yaml:"successSelector"`
	Strict          bool     `yaml:"strict"`
}

type profilesFile struct {
	Providers []Profile `yaml:"providers"`
}

type compiledProfile struct {
	profile    Profile
	domains    []glob.Glob
	successURL glob.Glob
}

// Profiles resolves which detector to use for each login target
type Profiles struct {
	compiled []compiledProfile
}

// DefaultProfiles returns a resolver with only the built-in host heuristic
func DefaultProfiles() *Profiles {
	return &Profiles{}
}

// LoadProfiles reads provider profiles from a YAML file
func LoadProfiles(path string) (*Profiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("login: read profiles %s: %w", path, err)
	}
	return ParseProfiles(data)
}

// ParseProfiles builds a resolver from YAML bytes
func ParseProfiles(data []byte) (*Profiles, error) {
	var f profilesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("login: parse profiles: %w", err)
	}

	p := &Profiles{}
	for _, prof := range f.Providers {
		cp := compiledProfile{profile: prof}
		for _, pattern := range prof.Domains {
			g, err := glob.Compile(strings.ToLower(pattern))
			if err != nil {
				return nil, fmt.Errorf("login: profile %q: domain pattern %q: %w", prof.Name, pattern, err)
			}
			cp.domains = append(cp.domains, g)
		}
		if prof.SuccessURL != "" {
			g, err := glob.Compile(prof.SuccessURL)
			if err != nil {
				return nil, fmt.Errorf("login: profile %q: success url %q: %w", prof.Name, prof.SuccessURL, err)
			}
			cp.successURL = g
		}
		if prof.Strict && cp.successURL == nil && prof.SuccessSelector == "" {
			return nil, fmt.Errorf("login: profile %q: strict requires successUrl or successSelector", prof.Name)
		}
		p.compiled = append(p.compiled, cp)
	}
	return p, nil
}

// DetectorFor picks the first profile matching the target's domain,
// falling back to the built-in host detector
func (p *Profiles) DetectorFor(t Target) Detector {
	if p != nil {
		for i := range p.compiled {
			if p.compiled[i].matchesDomain(t.Domain) {
				return &profileDetector{cp: &p.compiled[i]}
			}
		}
	}
	return &HostDetector{}
}

func (cp *compiledProfile) matchesDomain(domain string) bool {
	d := strings.ToLower(domain)
	for _, g := range cp.domains {
		if g.Match(d) {
			return true
		}
	}
	return false
}

// profileDetector layers a profile's markers over the host heuristic
type profileDetector struct {
	cp *compiledProfile
}

func (d *profileDetector) Evaluate(s Session, t Target) Outcome {
	if d.cp.successURL != nil && d.cp.successURL.Match(s.URL()) {
		return OutcomeAuthenticated
	}
	if sel := d.cp.profile.SuccessSelector; sel != "" && s.IsVisible(sel) {
		return OutcomeAuthenticated
	}

	host := HostDetector{IdPHosts: d.cp.profile.IdPHosts}
	out := host.Evaluate(s, t)
	if out == OutcomeAuthenticated && d.cp.profile.Strict {
		return OutcomePending
	}
	return out
}
