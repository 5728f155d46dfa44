package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name   string
	result Result
	err    error
}

func (s *stubProvider) Name() string { return s.name }
func (s *stubProvider) Authenticate(context.Context, Request) (Result, error) {
	return s.result, s.err
}

func TestChainFirstSuccessWins(t *testing.T) {
	c := NewChain(
		&stubProvider{name: "a", result: Result{Outcome: Failure, Detail: "nope"}},
		&stubProvider{name: "b", result: Result{Outcome: Success}},
		&stubProvider{name: "c", result: Result{Outcome: Success}},
	)

	res, err := c.Authenticate(context.Background(), Request{Username: "op"})
	require.NoError(t, err)
	assert.Equal(t, Success, res.Outcome)
	assert.Equal(t, "b", res.Info.Provider)
}

func TestChainAllFailures(t *testing.T) {
	c := NewChain(
		&stubProvider{name: "a", result: Result{Outcome: Failure, Detail: "bad password"}},
	)

	res, err := c.Authenticate(context.Background(), Request{Username: "op"})
	require.NoError(t, err)
	assert.Equal(t, Failure, res.Outcome)
	assert.Equal(t, "bad password", res.Detail)
}

func TestLocalProviderBcrypt(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)

	p := NewLocalProvider([]Operator{{Username: "alice", PasswordHash: hash}})

	res, err := p.Authenticate(context.Background(), Request{Username: "alice", Credential: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, Success, res.Outcome)

	res, err = p.Authenticate(context.Background(), Request{Username: "alice", Credential: "wrong"})
	require.NoError(t, err)
	assert.Equal(t, Failure, res.Outcome)
}

func TestLocalProviderUnknownUsername(t *testing.T) {
	p := NewLocalProvider(nil)
	res, err := p.Authenticate(context.Background(), Request{Username: "ghost", Credential: "x"})
	require.NoError(t, err)
	assert.Equal(t, Failure, res.Outcome)
}
