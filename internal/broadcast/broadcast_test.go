package broadcast

import (
	"testing"

	"github.com/presbrey/ircd/internal/store"
	"github.com/presbrey/ircd/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupUser(t *testing.T, s *store.Store, nick string) *store.User {
	t.Helper()
	u := &store.User{ID: store.NewUserID(), Nick: nick, Local: true}
	require.NoError(t, s.AddUser(u))
	return u
}

func TestResolveChannel(t *testing.T) {
	s := store.New()
	alice := setupUser(t, s, "alice")
	bob := setupUser(t, s, "bob")
	s.AddMember(alice.ID, "#test", nil)
	s.AddMember(bob.ID, "#test", nil)

	e := New(s, func(store.UserID, string) {})
	ids := e.Resolve(Target{Kind: TargetChannel, Channel: "#test"})
	assert.ElementsMatch(t, []store.UserID{alice.ID, bob.ID}, ids)
}

func TestDeliverExcludesSender(t *testing.T) {
	s := store.New()
	alice := setupUser(t, s, "alice")
	bob := setupUser(t, s, "bob")
	s.AddMember(alice.ID, "#test", nil)
	s.AddMember(bob.ID, "#test", nil)

	var got []store.UserID
	e := New(s, func(id store.UserID, line string) { got = append(got, id) })

	e.Enqueue(Item{
		Message:  &wire.Message{Command: "PRIVMSG", Params: []string{"#test", "hi"}},
		Target:   Target{Kind: TargetChannel, Channel: "#test", Exclude: alice.ID},
		Sender:   alice.ID,
		Priority: Normal,
	})
	n := e.Drain()
	assert.Equal(t, 1, n)
	assert.Equal(t, []store.UserID{bob.ID}, got)
}

func TestDrainOrdersByPriority(t *testing.T) {
	s := store.New()
	setupUser(t, s, "alice")

	var order []string
	e := New(s, func(store.UserID, string) {})

	enqueue := func(label string, pri Priority) {
		e.Enqueue(Item{
			Message:  &wire.Message{Command: "NOTICE", Params: []string{label}},
			Target:   Target{Kind: TargetAllClients},
			Priority: pri,
		})
	}
	enqueue("low", Low)
	enqueue("critical", Critical)
	enqueue("normal", Normal)

	origSink := e.sink
	e.sink = func(id store.UserID, line string) {
		order = append(order, line)
		origSink(id, line)
	}

	n := e.Drain()
	assert.Equal(t, 3, n)
	require.Equal(t, []string{"NOTICE critical", "NOTICE normal", "NOTICE low"}, order)
}

func TestStatsSnapshot(t *testing.T) {
	s := store.New()
	setupUser(t, s, "alice")

	e := New(s, func(store.UserID, string) {})
	e.SendNow(Item{
		Message: &wire.Message{Command: "NOTICE", Params: []string{"hi"}},
		Target:  Target{Kind: TargetAllClients},
	})

	stats := e.StatsSnapshot()
	assert.Equal(t, uint64(1), stats.MessagesSent)
	assert.Equal(t, uint64(1), stats.UsersReached)
}
