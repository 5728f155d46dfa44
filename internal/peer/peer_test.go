package peer

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presbrey/ircd/internal/broadcast"
	"github.com/presbrey/ircd/internal/connio"
	"github.com/presbrey/ircd/internal/store"
	"github.com/presbrey/ircd/internal/wire"
)

// newTestPeer wires a Peer to one end of an in-memory net.Pipe and returns
// a line scanner on the other end, so burst/propagation output can be
// asserted without a real socket.
func newTestPeer(t *testing.T) (*Peer, *bufio.Scanner) {
	t.Helper()
	serverSide, testSide := net.Pipe()
	conn := connio.New(serverSide)

	ctx, cancel := context.WithCancel(context.Background())
	go conn.WriteLoop(ctx)
	t.Cleanup(func() {
		cancel()
		conn.Close()
		testSide.Close()
	})

	return &Peer{conn: conn, state: Registered}, bufio.NewScanner(testSide)
}

func newTestManager(t *testing.T, s *store.Store) *Manager {
	t.Helper()
	b := broadcast.New(s, func(store.UserID, string) {})
	return New("hub.example", s, b, nil)
}

func TestSendBurstOrderAndContent(t *testing.T) {
	s := store.New()
	alice := &store.User{ID: store.NewUserID(), Nick: "alice", User: "alice", Host: "h", Local: true}
	bob := &store.User{ID: store.NewUserID(), Nick: "bob", User: "bob", Host: "h", Local: true}
	require.NoError(t, s.AddUser(alice))
	require.NoError(t, s.AddUser(bob))
	s.AddMember(alice.ID, "#r", map[byte]bool{'o': true})
	s.AddMember(bob.ID, "#r", nil)
	ch, ok := s.GetChannel("#r")
	require.True(t, ok)

	m := newTestManager(t, s)
	p, scanner := newTestPeer(t)

	m.sendBurst(p)

	var uids, sjoins []*wire.Message
	for i := 0; i < 3 && scanner.Scan(); i++ {
		line := scanner.Text()
		msg, err := wire.ParseLine(line)
		require.NoError(t, err)
		switch msg.Command {
		case "UID":
			uids = append(uids, msg)
		case "SJOIN":
			sjoins = append(sjoins, msg)
		}
	}

	require.Len(t, uids, 2, "expected UID introductions for both alice and bob")
	var nicks []string
	for _, u := range uids {
		nicks = append(nicks, u.Params[0])
	}
	assert.ElementsMatch(t, []string{"alice", "bob"}, nicks)

	require.Len(t, sjoins, 1, "expected a single SJOIN for #r")
	sj := sjoins[0]
	assert.Equal(t, "#r", sj.Params[1])
	assert.Equal(t, strconv.FormatInt(ch.CreatedAt.Unix(), 10), sj.Params[0])

	members := strings.Fields(sj.Params[len(sj.Params)-1])
	assert.ElementsMatch(t, []string{"@alice", "bob"}, members)
}

func TestAbsorbUIDCollisionKillsBothSides(t *testing.T) {
	s := store.New()
	existing := &store.User{ID: store.NewUserID(), Nick: "alice", User: "a", Host: "h", Local: true, ChannelNames: map[string]bool{"#r": true}}
	require.NoError(t, s.AddUser(existing))
	s.AddMember(existing.ID, "#r", nil)

	b := broadcast.New(s, func(store.UserID, string) {})
	m := New("hub.example", s, b, nil)
	p, scanner := newTestPeer(t)

	m.absorbUID(p, &wire.Message{Command: "UID", Params: []string{"alice", "remote", "host", "1700000000", "+", "Remote Alice"}})

	_, stillThere := s.GetUserByNick("alice")
	assert.False(t, stillThere, "colliding local user should be removed")

	require.True(t, scanner.Scan())
	msg, err := wire.ParseLine(scanner.Text())
	require.NoError(t, err)
	assert.Equal(t, "KILL", msg.Command)
	assert.Equal(t, "alice", msg.Params[0])
}

func TestAbsorbSJOINMergesMembership(t *testing.T) {
	s := store.New()
	carol := &store.User{ID: store.NewUserID(), Nick: "carol", User: "c", Host: "h", Server: "leaf.example"}
	require.NoError(t, s.AddUser(carol))

	b := broadcast.New(s, func(store.UserID, string) {})
	m := New("hub.example", s, b, nil)

	m.absorbSJOIN(&wire.Message{Command: "SJOIN", Params: []string{"1600000000", "#r", "+nt", "@carol"}})

	ch, ok := s.GetChannel("#r")
	require.True(t, ok)
	member, ok := ch.Members[carol.ID]
	require.True(t, ok)
	assert.True(t, member.Modes['o'])
}

func TestCascadeSquitRemovesRemoteUsersAndKeepsChannel(t *testing.T) {
	s := store.New()
	local := &store.User{ID: store.NewUserID(), Nick: "eve", User: "e", Host: "h", Local: true}
	carol := &store.User{ID: store.NewUserID(), Nick: "carol", User: "c", Host: "h", Server: "leaf"}
	dave := &store.User{ID: store.NewUserID(), Nick: "dave", User: "d", Host: "h", Server: "leaf"}
	require.NoError(t, s.AddUser(local))
	require.NoError(t, s.AddUser(carol))
	require.NoError(t, s.AddUser(dave))
	s.AddMember(local.ID, "#r", nil)
	s.AddMember(carol.ID, "#r", nil)
	s.AddMember(dave.ID, "#r", nil)
	s.AddServer(&store.PeerServer{Name: "leaf"})

	var quitLines []string
	b := broadcast.New(s, func(id store.UserID, line string) {
		if id == local.ID {
			quitLines = append(quitLines, line)
		}
	})
	m := New("hub.example", s, b, nil)

	m.cleanupByName("leaf", "Netsplit")

	_, ok := s.GetUserByNick("carol")
	assert.False(t, ok)
	_, ok = s.GetUserByNick("dave")
	assert.False(t, ok)

	ch, ok := s.GetChannel("#r")
	require.True(t, ok, "#r should persist because a local member remains")
	assert.Len(t, ch.Members, 1)

	require.Len(t, quitLines, 2)
	for _, line := range quitLines {
		assert.Contains(t, line, "leaf")
	}

	_, ok = s.GetServer("leaf")
	assert.False(t, ok)
}
