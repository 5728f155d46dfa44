package channel

import (
	"testing"

	"github.com/presbrey/ircd/internal/ban"
	"github.com/presbrey/ircd/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChannel(t *testing.T) *store.Channel {
	t.Helper()
	s := store.New()
	ch, created := s.GetOrCreateChannel("#test")
	require.True(t, created)
	return ch
}

func TestAdmitJoinInviteOnly(t *testing.T) {
	ch := newChannel(t)
	ch.Modes[ModeInviteOnly] = true
	p := New(store.New(), ban.New(store.New()))

	subj := ban.Subject{Nick: "a", User: "a", Host: "h"}
	assert.Equal(t, DenyInviteOnly, p.AdmitJoin(ch, subj, "", false))
	assert.Equal(t, DenyNone, p.AdmitJoin(ch, subj, "", true))
}

func TestAdmitJoinKey(t *testing.T) {
	ch := newChannel(t)
	ch.Modes[ModeKey] = true
	ch.Key = "secret"
	p := New(store.New(), ban.New(store.New()))

	subj := ban.Subject{Nick: "a", User: "a", Host: "h"}
	assert.Equal(t, DenyBadKey, p.AdmitJoin(ch, subj, "wrong", false))
	assert.Equal(t, DenyNone, p.AdmitJoin(ch, subj, "secret", false))
}

func TestAdmitJoinLimit(t *testing.T) {
	ch := newChannel(t)
	ch.Modes[ModeLimit] = true
	ch.Limit = 1
	ch.Members["existing"] = &store.Member{UserID: "existing", Modes: map[byte]bool{}}
	p := New(store.New(), ban.New(store.New()))

	subj := ban.Subject{Nick: "a", User: "a", Host: "h"}
	assert.Equal(t, DenyFull, p.AdmitJoin(ch, subj, "", false))
}

func TestAdmitJoinBanAndException(t *testing.T) {
	ch := newChannel(t)
	ch.Bans = append(ch.Bans, "*!*@bad.example")
	p := New(store.New(), ban.New(store.New()))

	banned := ban.Subject{Nick: "x", User: "x", Host: "bad.example"}
	assert.Equal(t, DenyBanned, p.AdmitJoin(ch, banned, "", false))

	ch.Excepts = append(ch.Excepts, "*!*@bad.example")
	assert.Equal(t, DenyNone, p.AdmitJoin(ch, banned, "", false))
}

func TestCanSpeakModerated(t *testing.T) {
	ch := newChannel(t)
	ch.Modes[ModeModerated] = true

	voiced := &store.Member{Modes: map[byte]bool{MemberVoice: true}}
	assert.True(t, CanSpeak(ch, voiced, true))

	plain := &store.Member{Modes: map[byte]bool{}}
	assert.False(t, CanSpeak(ch, plain, true))
}

func TestFormatModeString(t *testing.T) {
	ch := newChannel(t)
	for k, v := range DefaultModes() {
		ch.Modes[k] = v
	}
	assert.Equal(t, "+nt", FormatModeString(ch))
}
