package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
)

// OIDCProvider authenticates operators by verifying an externally-issued
// OIDC ID token, so an operator can log in via the web portal's SSO flow
// instead of a locally stored password. This is pure enrichment: the
// teacher has no SSO integration at all, only the magic-link mechanism in
// irc/server/operator.go, which OIDCProvider supersedes for operators who
// configure an issuer.
type OIDCProvider struct {
	verifier *oidc.IDTokenVerifier
	issuer   string
}

// NewOIDCProvider discovers the issuer's configuration and builds a
// verifier scoped to clientID. ctx governs the discovery HTTP request.
func NewOIDCProvider(ctx context.Context, issuer, clientID string) (*OIDCProvider, error) {
	p, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("auth: oidc discovery failed for %s: %w", issuer, err)
	}
	return &OIDCProvider{
		verifier: p.Verifier(&oidc.Config{ClientID: clientID}),
		issuer:   issuer,
	}, nil
}

// Name implements Provider.
func (p *OIDCProvider) Name() string { return "oidc" }

// Authenticate treats req.Credential as a raw OIDC ID token (obtained by
// the web portal's authorization-code exchange) and verifies its
// signature, issuer, audience, and expiry.
func (p *OIDCProvider) Authenticate(ctx context.Context, req Request) (Result, error) {
	idToken, err := p.verifier.Verify(ctx, req.Credential)
	if err != nil {
		return Result{Outcome: Failure, Detail: "invalid or expired token"}, nil
	}

	var claims struct {
		Subject           string `json:"sub"`
		PreferredUsername string `json:"preferred_username"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return Result{Outcome: Failure, Detail: "malformed token claims"}, nil
	}

	username := claims.PreferredUsername
	if username == "" {
		username = claims.Subject
	}
	if username != req.Username {
		return Result{Outcome: Failure, Detail: "token subject does not match requested operator"}, nil
	}

	return Result{
		Outcome: Success,
		Info: Info{
			Username:        username,
			Provider:        p.Name(),
			AuthenticatedAt: time.Now(),
			Metadata:        map[string]string{"issuer": p.issuer, "sub": claims.Subject},
		},
	}, nil
}
