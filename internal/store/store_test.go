package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUser(nick string) *User {
	return &User{ID: NewUserID(), Nick: nick, User: "u", Host: "h", RealName: "r"}
}

func TestAddUserAndNickLookup(t *testing.T) {
	s := New()
	u := newTestUser("Alice")
	require.NoError(t, s.AddUser(u))

	got, ok := s.GetUserByNick("alice")
	require.True(t, ok)
	assert.Equal(t, u.ID, got.ID)
}

func TestAddUserNickCollision(t *testing.T) {
	s := New()
	require.NoError(t, s.AddUser(newTestUser("bob")))
	err := s.AddUser(newTestUser("Bob"))
	assert.ErrorIs(t, err, ErrNickInUse)
}

func TestRenameUser(t *testing.T) {
	s := New()
	u := newTestUser("carol")
	require.NoError(t, s.AddUser(u))

	require.NoError(t, s.RenameUser(u.ID, "carolyn"))
	_, ok := s.GetUserByNick("carol")
	assert.False(t, ok)
	got, ok := s.GetUserByNick("carolyn")
	require.True(t, ok)
	assert.Equal(t, u.ID, got.ID)
}

func TestAddMemberAndRemoveMemberDeletesEmptyChannel(t *testing.T) {
	s := New()
	u := newTestUser("dave")
	require.NoError(t, s.AddUser(u))

	ch := s.AddMember(u.ID, "#test", map[byte]bool{'o': true})
	assert.Equal(t, "#test", ch.Name)

	got, ok := s.GetUser(u.ID)
	require.True(t, ok)
	assert.True(t, got.ChannelNames["#test"])

	s.RemoveMember(u.ID, "#test")
	_, ok = s.GetChannel("#test")
	assert.False(t, ok, "channel should be deleted once empty")

	got, _ = s.GetUser(u.ID)
	assert.False(t, got.ChannelNames["#test"])
}

func TestRemoveUserLeavesAllChannels(t *testing.T) {
	s := New()
	u := newTestUser("erin")
	require.NoError(t, s.AddUser(u))
	s.AddMember(u.ID, "#a", nil)
	s.AddMember(u.ID, "#b", nil)

	left := s.RemoveUser(u.ID)
	assert.ElementsMatch(t, []string{"#a", "#b"}, left)

	_, ok := s.GetUserByNick("erin")
	assert.False(t, ok)
}

func TestRemoveUsersFromServerCascades(t *testing.T) {
	s := New()
	u := newTestUser("frank")
	u.Server = "leaf.example.net"
	require.NoError(t, s.AddUser(u))
	s.AddMember(u.ID, "#c", nil)

	removed := s.RemoveUsersFromServer("leaf.example.net")
	require.Len(t, removed, 1)
	assert.Equal(t, u.ID, removed[0].ID)

	_, ok := s.GetChannel("#c")
	assert.False(t, ok)
}

func TestBanSweepRemovesExpired(t *testing.T) {
	s := New()
	s.AddBan(&Ban{Kind: BanLocalKill, Mask: "*@bad.example", ExpiresAt: time.Now().Add(-time.Minute)})
	s.AddBan(&Ban{Kind: BanLocalKill, Mask: "*@good.example"})

	expired := s.SweepExpiredBans(time.Now())
	require.Len(t, expired, 1)
	assert.Equal(t, "*@bad.example", expired[0].Mask)

	remaining := s.Bans(BanLocalKill)
	require.Len(t, remaining, 1)
	assert.Equal(t, "*@good.example", remaining[0].Mask)
}

func TestHistoryRingBounded(t *testing.T) {
	s := New()
	for i := 0; i < historyRingSize+10; i++ {
		s.RecordHistory(HistoryEntry{Target: "#chat", Text: "msg"})
	}
	hist := s.GetHistory("#chat")
	assert.Len(t, hist, historyRingSize)
}
