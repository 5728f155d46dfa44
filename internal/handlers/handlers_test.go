package handlers

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presbrey/ircd/internal/ban"
	"github.com/presbrey/ircd/internal/broadcast"
	"github.com/presbrey/ircd/internal/channel"
	"github.com/presbrey/ircd/internal/dispatch"
	"github.com/presbrey/ircd/internal/reply"
	"github.com/presbrey/ircd/internal/store"
	"github.com/presbrey/ircd/internal/wire"
)

// testHarness wires a real Deps against a fresh store, the way
// internal/server.New does, but with no network connections: handlers are
// called directly with a Context whose Reply appends to a slice instead
// of a connio.Conn. Broadcast lines handed to any recipient are collected
// in delivered; the queue is drained after every dispatch.
type testHarness struct {
	t         *testing.T
	deps      *Deps
	disp      *dispatch.Dispatcher
	delivered []string
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	h := &testHarness{t: t}
	s := store.New()
	deps := NewDeps()
	deps.Store = s
	deps.Bans = ban.New(s)
	deps.Channels = channel.New(s, deps.Bans)
	deps.Broadcast = broadcast.New(s, func(_ store.UserID, line string) { h.delivered = append(h.delivered, line) })
	deps.Replies = reply.NewStore()
	deps.ServerName = "hub.test"
	deps.NetworkName = "TestNet"
	deps.Version = "test-ircd"

	d := dispatch.New()
	Register(d, deps)
	h.deps, h.disp = deps, d
	return h
}

func (h *testHarness) addUser(nick string, oper bool) *store.User {
	h.t.Helper()
	u := &store.User{ID: store.NewUserID(), Nick: nick, User: "u", Host: "localhost", Local: true, Modes: map[byte]bool{}}
	if oper {
		u.Modes['o'] = true
	}
	require.NoError(h.t, h.deps.Store.AddUser(u))
	return u
}

func (h *testHarness) dispatch(uid store.UserID, command string, params ...string) (*dispatch.Context, []string) {
	h.t.Helper()
	var lines []string
	ctx := &dispatch.Context{
		Ctx:     context.Background(),
		Message: &wire.Message{Command: command, Params: params},
		UserID:  uid,
		Store:   h.deps.Store,
		Reply:   func(line string) { lines = append(lines, line) },
	}
	res := h.disp.Dispatch(ctx)
	h.deps.Broadcast.Drain()
	return res, lines
}

func TestNeedMoreParamsSendsNumericThroughPostHook(t *testing.T) {
	h := newHarness(t)
	u := h.addUser("alice", false)

	_, lines := h.dispatch(u.ID, "JOIN")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], " 461 ")
	assert.Contains(t, lines[0], "alice")
}

func TestJoinCreatesChannelAndAcksWithNames(t *testing.T) {
	h := newHarness(t)
	u := h.addUser("alice", false)

	_, lines := h.dispatch(u.ID, "JOIN", "#test")
	joined := false
	for _, l := range h.delivered {
		if strings.Contains(l, "JOIN") && strings.Contains(l, "#test") {
			joined = true
		}
	}
	assert.True(t, joined, "expected a JOIN echo among: %v", h.delivered)

	names := false
	for _, l := range lines {
		if strings.Contains(l, " 353 ") && strings.Contains(l, "#test") {
			names = true
		}
	}
	assert.True(t, names, "expected a NAMES reply among: %v", lines)

	ch, ok := h.deps.Store.GetChannel("#test")
	require.True(t, ok)
	assert.Contains(t, ch.Members, u.ID)
}

func TestPrivmsgToUnknownNickRepliesNoSuchNick(t *testing.T) {
	h := newHarness(t)
	u := h.addUser("alice", false)

	_, lines := h.dispatch(u.ID, "PRIVMSG", "bob", "hello")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], " 401 ")
}

func TestKillWithoutOperIsDeniedByIrcerrPostHook(t *testing.T) {
	h := newHarness(t)
	alice := h.addUser("alice", false)
	h.addUser("bob", false)

	ctx, lines := h.dispatch(alice.ID, "KILL", "bob", "because")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], " 481 ")
	require.Error(t, ctx.Err)

	_, stillThere := h.deps.Store.GetUserByNick("bob")
	assert.True(t, stillThere)
}

func TestOperKillDisconnectsTarget(t *testing.T) {
	h := newHarness(t)
	oper := h.addUser("root", true)
	h.addUser("bob", false)

	h.dispatch(oper.ID, "KILL", "bob", "bye")
	found := false
	for _, l := range h.delivered {
		if strings.Contains(l, "KILL") {
			found = true
		}
	}
	assert.True(t, found, "expected a KILL notification among: %v", h.delivered)

	_, stillThere := h.deps.Store.GetUserByNick("bob")
	assert.False(t, stillThere)
}

func TestKlineRequiresOper(t *testing.T) {
	h := newHarness(t)
	u := h.addUser("alice", false)

	ctx, lines := h.dispatch(u.ID, "KLINE", "*@bad.example")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], " 481 ")
	require.Error(t, ctx.Err)
}

func TestOperKlineAddsBan(t *testing.T) {
	h := newHarness(t)
	oper := h.addUser("root", true)

	_, _ = h.dispatch(oper.ID, "KLINE", "*@bad.example", "0", "spamming")
	_, banned := h.deps.Bans.MatchAny(ban.Subject{Host: "bad.example", IP: "bad.example"})
	assert.True(t, banned)
}

func TestCapReqAcksKnownCapability(t *testing.T) {
	h := newHarness(t)
	uid := store.NewUserID()

	_, lines := h.dispatch(uid, "CAP", "REQ", "cap-notify")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "CAP * ACK :cap-notify")
	assert.ElementsMatch(t, []string{"cap-notify"}, h.deps.registration(uid).EnabledCaps())
}

func TestCapReqNaksUnknownCapability(t *testing.T) {
	h := newHarness(t)
	uid := store.NewUserID()

	_, lines := h.dispatch(uid, "CAP", "REQ", "cap-notify sasl")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "CAP * NAK :cap-notify sasl")
	assert.Empty(t, h.deps.registration(uid).EnabledCaps())
}

func TestCapListReflectsAckedCaps(t *testing.T) {
	h := newHarness(t)
	uid := store.NewUserID()

	h.dispatch(uid, "CAP", "REQ", "cap-notify")
	_, lines := h.dispatch(uid, "CAP", "LIST")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "CAP * LIST :cap-notify")
}
