// Package store holds the authoritative in-memory state of the daemon:
// connected users, channels, linked servers, bans, and recent message
// history (spec.md §3, §4.4). It owns no network I/O; callers (connio,
// dispatch, peer) mutate state exclusively through its exported methods so
// that lock ordering and invariants live in one place.
package store

import (
	"time"

	"github.com/google/uuid"
)

// UserID identifies a connected or remote user for the lifetime of their
// session. Using a uuid rather than a pointer lets history entries and
// cross-server references outlive a disconnect without dangling.
type UserID string

// NewUserID mints a fresh identifier, grounded on the teacher's use of
// google/uuid for connection/client IDs (irc/server/client.go).
func NewUserID() UserID { return UserID(uuid.NewString()) }

// User is a connected client, local or remote-on-a-peer-server.
type User struct {
	ID       UserID
	Nick     string
	User     string // ident/username
	Host     string
	RealName string
	Modes    map[byte]bool

	Server string // name of the server this user is attached to
	Local  bool   // true if directly connected to this process

	Away       bool
	AwayReason string

	RegisteredAt time.Time
	LastActivity time.Time

	// ChannelNames is maintained redundantly to the Channel.Members map so
	// per-user channel listing (WHOIS, part-on-quit) doesn't require a
	// full channel-table scan.
	ChannelNames map[string]bool
}

// Member is a user's membership record within one channel: its prefix
// modes are channel-scoped, not user-global.
type Member struct {
	UserID UserID
	Modes  map[byte]bool // e.g. 'o' (op), 'v' (voice)
}

// Channel is a named, moderated multi-user conversation (spec.md §4.6).
type Channel struct {
	Name    string
	Topic   string
	TopicBy string
	TopicAt time.Time

	Modes   map[byte]bool
	Limit   int    // +l
	Key     string // +k
	Bans    []string
	Excepts []string
	Invites []string

	Members map[UserID]*Member

	CreatedAt time.Time
}

// PeerServer is a linked server, directly connected or reachable via a hop.
type PeerServer struct {
	Name        string
	Description string
	Hops        int
	Via         string // directly-connected peer name this was learned through
	LinkedAt    time.Time
}

// BanKind distinguishes the four enforcement planes (spec.md §4.9).
type BanKind int

const (
	BanGlobal    BanKind = iota // G-line: network-wide, propagated
	BanLocalKill                // K-line: this server only
	BanDNS                      // D-line: host/IP substring match, this server only
	BanExtended                 // X-line: realname/gecos pattern, this server only
)

// Ban is a single enforcement-plane entry. Mask semantics depend on Kind:
// Global/LocalKill match against nick!user@host, DNS matches host/IP
// substrings, Extended matches realname/gecos.
type Ban struct {
	Kind      BanKind
	Mask      string
	Reason    string
	SetBy     string
	SetAt     time.Time
	ExpiresAt time.Time // zero value means permanent
}

// Expired reports whether the ban has passed its expiry, relative to now.
func (b *Ban) Expired(now time.Time) bool {
	return !b.ExpiresAt.IsZero() && now.After(b.ExpiresAt)
}

// HistoryEntry records a delivered message for replay (spec.md §4.4,
// bounded ring per target).
type HistoryEntry struct {
	Target    string // channel name or nick
	From      string
	Text      string
	Timestamp time.Time
}
