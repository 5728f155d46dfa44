package reply

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatSubstitutesPlaceholders(t *testing.T) {
	s := NewStore()
	out := s.Format(RPL_WELCOME, "alice", map[string]string{
		"nick":        "alice",
		"server_name": "irc.example.net",
	})
	assert.Equal(t, "alice :Welcome to the irc.example.net Network, alice", out)
}

func TestFormatUnknownCode(t *testing.T) {
	s := NewStore()
	out := s.Format(999999, "bob", nil)
	assert.Equal(t, "999999 bob", out)
}

func TestOverrideAndRestore(t *testing.T) {
	s := NewStore()
	s.Override(RPL_WELCOME, "{client} :custom welcome {nick}")
	out := s.Format(RPL_WELCOME, "bob", map[string]string{"nick": "bob"})
	assert.Equal(t, "bob :custom welcome bob", out)

	s.Override(RPL_WELCOME, "")
	out = s.Format(RPL_WELCOME, "bob", map[string]string{"nick": "bob", "server_name": "x"})
	assert.Contains(t, out, "Welcome to the x Network")
}

func TestOverrideUnknownCodeThenClear(t *testing.T) {
	s := NewStore()
	s.Override(900, "{client} :extension reply")
	assert.Equal(t, "alice :extension reply", s.Format(900, "alice", nil))

	s.Override(900, "")
	assert.Equal(t, "900 alice", s.Format(900, "alice", nil))
}
