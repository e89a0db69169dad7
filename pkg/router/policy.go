package router

import (
	"fmt"
	"time"

	"github.com/grovetools/statesync/errors"
)

// PolicyType is the concurrency discipline applied to commands of one kind.
type PolicyType string

const (
	// PolicySerializeLatest runs every command; completions apply in the
	// order they arrive and each new command supersedes the previous one.
	PolicySerializeLatest PolicyType = "serialize_latest"
	// PolicyRunEvery runs every command independently.
	PolicyRunEvery PolicyType = "run_every"
	// PolicyRateLimited rejects commands arriving within Window of the last
	// accepted one.
	PolicyRateLimited PolicyType = "rate_limited"
)

// Policy is fixed per command kind when the router is built.
type Policy struct {
	Type   PolicyType
	Window time.Duration
}

// Latest returns a SerializeLatest policy.
func Latest() Policy { return Policy{Type: PolicySerializeLatest} }

// Every returns a RunEvery policy.
func Every() Policy { return Policy{Type: PolicyRunEvery} }

// Throttle returns a RateLimited policy with the given window.
func Throttle(window time.Duration) Policy {
	return Policy{Type: PolicyRateLimited, Window: window}
}

// ParsePolicy builds a policy from its configuration form.
func ParsePolicy(name string, window time.Duration) (Policy, error) {
	p := Policy{Type: PolicyType(name), Window: window}
	if p.Type != PolicyRateLimited {
		p.Window = 0
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate checks that the policy is usable.
func (p Policy) Validate() error {
	switch p.Type {
	case PolicySerializeLatest, PolicyRunEvery:
		return nil
	case PolicyRateLimited:
		if p.Window <= 0 {
			return errors.ConfigInvalid("rate_limited policy requires a positive window")
		}
		return nil
	case "":
		return errors.ConfigInvalid("policy type is required")
	}
	return errors.ConfigInvalid(fmt.Sprintf("unknown policy %q", p.Type))
}

func (p Policy) String() string {
	if p.Type == PolicyRateLimited {
		return fmt.Sprintf("%s(%s)", p.Type, p.Window)
	}
	return string(p.Type)
}
