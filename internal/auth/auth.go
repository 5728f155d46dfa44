// Package auth implements the operator authentication provider chain:
// a first-Success-wins sequence of providers, each returning a typed
// outcome rather than a bare bool (spec.md §4.10, and the operator
// authentication design in original_source/core/src/auth.rs).
package auth

import (
	"context"
	"time"
)

// Outcome is the result of one provider's authentication attempt.
type Outcome int

const (
	// Failure means this provider actively rejected the credential.
	Failure Outcome = iota
	// Success means this provider accepted the credential.
	Success
	// Challenge means the provider needs another round-trip (e.g. SASL
	// continuation) before it can decide.
	Challenge
	// InProgress means the provider is still working (e.g. an OIDC
	// redirect is pending) and the chain should not fall through to the
	// next provider yet.
	InProgress
)

// Request carries what a provider needs to authenticate an operator login.
type Request struct {
	Username   string
	Credential string
	ClientIP   string
	Secure     bool // true if the connection is TLS
}

// Info describes a successfully authenticated identity.
type Info struct {
	Username        string
	Provider        string
	AuthenticatedAt time.Time
	Metadata        map[string]string
}

// Result is what a Provider.Authenticate returns.
type Result struct {
	Outcome Outcome
	Info    Info
	Detail  string // failure reason or challenge payload
}

// Provider is one authentication backend in the chain.
type Provider interface {
	Name() string
	Authenticate(ctx context.Context, req Request) (Result, error)
}

// Chain runs providers in registration order, stopping at the first
// Success or Challenge/InProgress outcome; a Failure falls through to the
// next provider, mirroring rustircd's AuthManager primary/fallback list.
type Chain struct {
	providers []Provider
}

// NewChain builds a provider chain. Order matters: earlier providers are
// tried first.
func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

// Authenticate tries each provider in order. It returns the first
// non-Failure result, or a Failure result if every provider rejected the
// credential (the Detail of the last provider tried is reported).
func (c *Chain) Authenticate(ctx context.Context, req Request) (Result, error) {
	var last Result
	for _, p := range c.providers {
		res, err := p.Authenticate(ctx, req)
		if err != nil {
			return Result{}, err
		}
		if res.Outcome != Failure {
			if res.Info.Provider == "" {
				res.Info.Provider = p.Name()
			}
			return res, nil
		}
		last = res
	}
	if last.Detail == "" {
		last.Detail = "no provider accepted these credentials"
	}
	return last, nil
}
