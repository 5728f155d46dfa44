package ban

import (
	"testing"
	"time"

	"github.com/presbrey/ircd/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchesHostmaskGlob(t *testing.T) {
	s := store.New()
	e := New(s)
	e.Add(LocalKill, "*!*@bad.example.net", "spam", "oper", 0)

	_, ok := e.Matches(LocalKill, Subject{Nick: "x", User: "y", Host: "bad.example.net"})
	assert.True(t, ok)

	_, ok = e.Matches(LocalKill, Subject{Nick: "x", User: "y", Host: "good.example.net"})
	assert.False(t, ok)
}

func TestMatchesDNSSubstring(t *testing.T) {
	s := store.New()
	e := New(s)
	e.Add(DNS, "tor-exit", "known exit node", "oper", 0)

	_, ok := e.Matches(DNS, Subject{Host: "tor-exit-42.example.net"})
	assert.True(t, ok)
}

func TestMatchesExtendedRealname(t *testing.T) {
	s := store.New()
	e := New(s)
	e.Add(Extended, "*bot*", "advertising bots", "oper", 0)

	_, ok := e.Matches(Extended, Subject{RealName: "Mega Bot 9000"})
	assert.True(t, ok)
}

func TestExpiredBanDoesNotMatch(t *testing.T) {
	s := store.New()
	e := New(s)
	b := e.Add(LocalKill, "*@old.example", "temp", "oper", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, ok := e.Matches(LocalKill, Subject{Host: "old.example"})
	assert.False(t, ok)
	assert.False(t, b.ExpiresAt.IsZero())
}

func TestMatchAnyOrderAndPropagation(t *testing.T) {
	s := store.New()
	e := New(s)
	e.Add(Global, "*!*@evil.example", "network ban", "oper", 0)

	b, ok := e.MatchAny(Subject{Nick: "z", User: "z", Host: "evil.example"})
	require.True(t, ok)
	assert.True(t, Propagates(b.Kind))
}

func TestRetroDisconnectOnlyLocal(t *testing.T) {
	s := store.New()
	e := New(s)

	local := &store.User{ID: store.NewUserID(), Nick: "a", Host: "bad.example", Local: true}
	remote := &store.User{ID: store.NewUserID(), Nick: "b", Host: "bad.example", Local: false}
	require.NoError(t, s.AddUser(local))
	require.NoError(t, s.AddUser(remote))

	hits := e.RetroDisconnect(DNS, "bad.example")
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].Nick)
}

func TestSweep(t *testing.T) {
	s := store.New()
	e := New(s)
	e.Add(LocalKill, "*@x", "r", "oper", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	expired := e.Sweep()
	assert.Len(t, expired, 1)
}
