// Package channel implements channel-subsystem policy on top of the
// store's Channel records: mode semantics, join admission checks (key,
// limit, ban, invite-only), and the default mode set new channels get
// (spec.md §4.6).
package channel

import (
	"fmt"

	"github.com/presbrey/ircd/internal/ban"
	"github.com/presbrey/ircd/internal/store"
)

// Mode letters, grounded on the UnrealIRCd-style set in the teacher's
// irc/server/channel.go ChannelModes struct.
const (
	ModeInviteOnly  = 'i'
	ModeKey         = 'k'
	ModeLimit       = 'l'
	ModeModerated   = 'm'
	ModeNoExternal  = 'n'
	ModeSecret      = 's'
	ModeTopicOpOnly = 't'
	ModePrivate     = 'p'

	MemberOp    = 'o'
	MemberVoice = 'v'
)

// DefaultModes mirrors the teacher's DefaultChannelModes (+n +t), the
// conventional safe default for a freshly created channel.
func DefaultModes() map[byte]bool {
	return map[byte]bool{ModeNoExternal: true, ModeTopicOpOnly: true}
}

// JoinDenyReason enumerates why AdmitJoin refused a join, so the caller
// can map it to the matching numeric reply.
type JoinDenyReason int

const (
	DenyNone JoinDenyReason = iota
	DenyBanned
	DenyInviteOnly
	DenyBadKey
	DenyFull
)

// Policy evaluates join admission and mode-change authorization against a
// Store and an Enforcer, independent of any particular connection.
type Policy struct {
	store *store.Store
	bans  *ban.Enforcer
}

// New creates a channel Policy.
func New(s *store.Store, b *ban.Enforcer) *Policy {
	return &Policy{store: s, bans: b}
}

// AdmitJoin decides whether a user may join a channel, checking ban,
// invite-only, key, and limit in that order — the order a real server
// checks them in, since a banned user shouldn't learn the key is wrong.
func (p *Policy) AdmitJoin(ch *store.Channel, subject ban.Subject, key string, invited bool) JoinDenyReason {
	for _, mask := range ch.Bans {
		if hostmaskMatch(mask, subject) && !exceptionMatches(ch.Excepts, subject) {
			return DenyBanned
		}
	}

	if ch.Modes[ModeInviteOnly] && !invited {
		return DenyInviteOnly
	}

	if ch.Modes[ModeKey] && ch.Key != "" && ch.Key != key {
		return DenyBadKey
	}

	if ch.Modes[ModeLimit] && ch.Limit > 0 && len(ch.Members) >= ch.Limit {
		return DenyFull
	}

	return DenyNone
}

func hostmaskMatch(mask string, subject ban.Subject) bool {
	full := fmt.Sprintf("%s!%s@%s", subject.Nick, subject.User, subject.Host)
	return globMatch(mask, full)
}

func exceptionMatches(excepts []string, subject ban.Subject) bool {
	full := fmt.Sprintf("%s!%s@%s", subject.Nick, subject.User, subject.Host)
	for _, mask := range excepts {
		if globMatch(mask, full) {
			return true
		}
	}
	return false
}

// globMatch is IRC's two-wildcard glob, duplicated from internal/ban's
// unexported matcher since channel ban-list checks operate on raw
// []string masks on the Channel record rather than store.Ban entries.
func globMatch(pattern, text string) bool {
	if pattern == "" {
		return text == ""
	}
	if pattern[0] == '*' {
		if globMatch(pattern[1:], text) {
			return true
		}
		for i := 0; i < len(text); i++ {
			if globMatch(pattern[1:], text[i+1:]) {
				return true
			}
		}
		return pattern[1:] == ""
	}
	if text == "" {
		return false
	}
	if pattern[0] == '?' || pattern[0] == text[0] {
		return globMatch(pattern[1:], text[1:])
	}
	return false
}

// CanSetMode reports whether a member may change a given channel mode:
// ordinary members may never set modes; channel operators may set any.
func CanSetMode(member *store.Member) bool {
	return member != nil && member.Modes[MemberOp]
}

// CanSpeak reports whether a member may send PRIVMSG/NOTICE to the
// channel under +m (moderated): only ops and voiced members may.
func CanSpeak(ch *store.Channel, member *store.Member, isMember bool) bool {
	if ch.Modes[ModeModerated] {
		return member != nil && (member.Modes[MemberOp] || member.Modes[MemberVoice])
	}
	if ch.Modes[ModeNoExternal] && !isMember {
		return false
	}
	return true
}

// FormatModeString renders a channel's set modes as a +xyz string, e.g.
// "+nt". The k and l letters are appended when set, without their
// key/limit arguments.
func FormatModeString(ch *store.Channel) string {
	out := "+"
	for _, m := range []byte{ModeInviteOnly, ModeModerated, ModeNoExternal, ModeSecret, ModeTopicOpOnly, ModePrivate} {
		if ch.Modes[m] {
			out += string(m)
		}
	}
	if ch.Modes[ModeKey] {
		out += string(ModeKey)
	}
	if ch.Modes[ModeLimit] {
		out += string(ModeLimit)
	}
	return out
}
