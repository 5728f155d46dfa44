package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Operator is a configured local operator account, authenticated against
// a bcrypt hash rather than the teacher's plaintext comparison
// (irc/server/operator.go CheckPassword).
type Operator struct {
	Username     string
	PasswordHash []byte // bcrypt hash
	Mask         string // hostmask from config; LocalProvider does not check it
}

// LocalProvider authenticates operators against a configured, bcrypt-
// hashed password list loaded from config.
type LocalProvider struct {
	mu        sync.RWMutex
	operators map[string]Operator
}

// NewLocalProvider builds a LocalProvider from a set of operator accounts.
func NewLocalProvider(operators []Operator) *LocalProvider {
	p := &LocalProvider{operators: make(map[string]Operator, len(operators))}
	for _, o := range operators {
		p.operators[o.Username] = o
	}
	return p
}

// Name implements Provider.
func (p *LocalProvider) Name() string { return "local" }

// Authenticate implements Provider. An unknown username or a wrong
// password is a Failure, not an error, so the chain can fall through to
// another provider (e.g. OIDC) without surfacing an internal error to the
// client. The operator's Mask is not consulted.
func (p *LocalProvider) Authenticate(_ context.Context, req Request) (Result, error) {
	p.mu.RLock()
	op, ok := p.operators[req.Username]
	p.mu.RUnlock()

	if !ok {
		return Result{Outcome: Failure, Detail: "no such operator"}, nil
	}

	if err := bcrypt.CompareHashAndPassword(op.PasswordHash, []byte(req.Credential)); err != nil {
		return Result{Outcome: Failure, Detail: "password incorrect"}, nil
	}

	return Result{
		Outcome: Success,
		Info: Info{
			Username:        op.Username,
			Provider:        p.Name(),
			AuthenticatedAt: time.Now(),
		},
	}, nil
}

// HashPassword bcrypt-hashes a plaintext operator password for storage in
// configuration, used by admin tooling that provisions new operators.
func HashPassword(plaintext string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
}
