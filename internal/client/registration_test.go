package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateProgression(t *testing.T) {
	r := NewRegistration()
	assert.Equal(t, Unregistered, r.State())

	r.SetPassword("secret")
	assert.Equal(t, PasswordProvided, r.State())

	r.SetNick("alice")
	assert.Equal(t, NickSet, r.State())

	r.SetUser("alice", "Alice Example")
	assert.Equal(t, UserSet, r.State())
}

func TestReadyToCompleteRequiresBoth(t *testing.T) {
	r := NewRegistration()
	assert.False(t, r.ReadyToComplete(""))

	r.SetNick("bob")
	assert.False(t, r.ReadyToComplete(""))

	r.SetUser("bob", "Bob")
	assert.True(t, r.ReadyToComplete(""))
}

func TestReadyToCompleteBlockedByCapNegotiation(t *testing.T) {
	r := NewRegistration()
	r.SetNick("carol")
	r.SetUser("carol", "Carol")
	r.BeginCapNegotiation()

	assert.False(t, r.ReadyToComplete(""))

	r.EndCapNegotiation()
	assert.True(t, r.ReadyToComplete(""))
}

func TestReadyToCompletePasswordMismatch(t *testing.T) {
	r := NewRegistration()
	r.SetNick("dave")
	r.SetUser("dave", "Dave")
	r.SetPassword("wrong")

	assert.False(t, r.ReadyToComplete("correct"))

	r.SetPassword("correct")
	assert.True(t, r.ReadyToComplete("correct"))
}

func TestMarkQuitIsTerminal(t *testing.T) {
	r := NewRegistration()
	r.SetNick("erin")
	r.SetUser("erin", "Erin")
	r.MarkQuit()

	assert.Equal(t, Quit, r.State())
	assert.False(t, r.ReadyToComplete(""))
}
