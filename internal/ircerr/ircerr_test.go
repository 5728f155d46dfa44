package ircerr

import (
	"errors"
	"testing"

	"github.com/presbrey/ircd/internal/reply"
	"github.com/stretchr/testify/assert"
)

func TestKindStringIsLowercaseSnakeCase(t *testing.T) {
	cases := map[Kind]string{
		Parse:            "parse",
		Protocol:         "protocol",
		PermissionDenied: "permission_denied",
		NotFound:         "not_found",
		Conflict:         "conflict",
		RateLimited:      "rate_limited",
		Transport:        "transport",
		LinkAuth:         "link_auth",
		Internal:         "internal",
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.String())
	}
}

func TestNewBuildsErrorWithVars(t *testing.T) {
	e := New(NotFound, "WHOIS", map[string]string{"nick": "bob"})
	assert.Equal(t, NotFound, e.Kind)
	assert.Equal(t, "WHOIS", e.Command)
	assert.Equal(t, "bob", e.Vars["nick"])
	assert.Nil(t, e.Cause)
}

func TestWrapCarriesCause(t *testing.T) {
	cause := errors.New("connection reset")
	e := Wrap(Transport, "PRIVMSG", cause)
	assert.Equal(t, Transport, e.Kind)
	assert.ErrorIs(t, e, cause)
}

func TestErrorMessageIncludesKindAndCommand(t *testing.T) {
	e := New(Conflict, "NICK", nil)
	assert.Contains(t, e.Error(), "conflict")
	assert.Contains(t, e.Error(), "NICK")
}

func TestNumericMapsClientFacingKinds(t *testing.T) {
	cases := map[Kind]int{
		Parse:            reply.ERR_NEEDMOREPARAMS,
		Protocol:         reply.ERR_ALREADYREGISTRED,
		PermissionDenied: reply.ERR_NOPRIVILEGES,
		NotFound:         reply.ERR_NOSUCHNICK,
		Conflict:         reply.ERR_NICKNAMEINUSE,
	}
	for kind, want := range cases {
		code, ok := New(kind, "X", nil).Numeric()
		assert.True(t, ok)
		assert.Equal(t, want, code)
	}
}

func TestNumericReportsNotOkForServerOnlyKinds(t *testing.T) {
	for _, kind := range []Kind{Transport, LinkAuth, Internal, RateLimited} {
		_, ok := New(kind, "X", nil).Numeric()
		assert.False(t, ok, "kind %s should have no client-facing numeric", kind)
	}
}
