// Package ban implements the four enforcement planes (G/K/D/X-line) over
// the store's unified ban table: mask matching, propagation policy, and
// retroactive disconnection of already-connected users (spec.md §4.9).
package ban

import (
	"fmt"
	"strings"
	"time"

	"github.com/presbrey/ircd/internal/store"
)

// Subject is the set of fields a ban mask can be matched against. Not
// every kind inspects every field: DNS bans look at Host/IP, Extended
// bans look at RealName, Global/LocalKill look at the full hostmask.
type Subject struct {
	Nick     string
	User     string
	Host     string
	IP       string
	RealName string
}

// Enforcer owns the mask-matching and sweep logic for a Store's ban table.
type Enforcer struct {
	store *store.Store
}

// New creates a ban Enforcer bound to a Store.
func New(s *store.Store) *Enforcer {
	return &Enforcer{store: s}
}

// Kind re-exports store.BanKind under the ban package's own name so
// callers outside store don't need to import both packages just to name
// a kind.
type Kind = store.BanKind

const (
	Global    = store.BanGlobal
	LocalKill = store.BanLocalKill
	DNS       = store.BanDNS
	Extended  = store.BanExtended
)

// Propagates reports whether a ban of this kind is relayed to peer
// servers on creation. Only the network-wide plane propagates; K/D/X
// lines are this server's local policy (spec.md §4.9, §4.8). A plain
// function, not a method, since Kind is an alias of store.BanKind and
// methods can only be declared in the package that defines a type.
func Propagates(k Kind) bool { return k == Global }

// Add records a new ban and returns it. duration of zero means permanent.
func (e *Enforcer) Add(kind Kind, mask, reason, setBy string, duration time.Duration) *store.Ban {
	b := &store.Ban{
		Kind:   kind,
		Mask:   mask,
		Reason: reason,
		SetBy:  setBy,
		SetAt:  time.Now(),
	}
	if duration > 0 {
		b.ExpiresAt = b.SetAt.Add(duration)
	}
	e.store.AddBan(b)
	return b
}

// Remove deletes a ban of the given kind and exact mask.
func (e *Enforcer) Remove(kind Kind, mask string) bool {
	return e.store.RemoveBan(kind, mask)
}

// Matches reports whether any active ban of the given kind applies to
// subject, returning the first match.
func (e *Enforcer) Matches(kind Kind, subject Subject) (*store.Ban, bool) {
	now := time.Now()
	for _, b := range e.store.Bans(kind) {
		if b.Expired(now) {
			continue
		}
		if matchKind(kind, b.Mask, subject) {
			return b, true
		}
	}
	return nil, false
}

// MatchAny checks every kind in the conventional connect-time order:
// Global, LocalKill, DNS, Extended. The first match wins, mirroring how a
// real daemon rejects at the earliest, cheapest check.
func (e *Enforcer) MatchAny(subject Subject) (*store.Ban, bool) {
	for _, k := range []Kind{Global, LocalKill, DNS, Extended} {
		if b, ok := e.Matches(k, subject); ok {
			return b, true
		}
	}
	return nil, false
}

func matchKind(kind Kind, mask string, subject Subject) bool {
	switch kind {
	case DNS:
		return strings.Contains(strings.ToLower(subject.Host), strings.ToLower(mask)) ||
			strings.Contains(subject.IP, mask)
	case Extended:
		return wildcardMatch(strings.ToLower(mask), strings.ToLower(subject.RealName))
	default: // Global, LocalKill: nick!user@host hostmask glob
		full := fmt.Sprintf("%s!%s@%s", subject.Nick, subject.User, subject.Host)
		return wildcardMatch(strings.ToLower(mask), strings.ToLower(full))
	}
}

// wildcardMatch implements IRC's simple glob ('*' any run, '?' one char),
// grounded on the teacher's wildcardMatch in irc/client.go.
func wildcardMatch(pattern, text string) bool {
	return wildcardMatchRec(pattern, text)
}

func wildcardMatchRec(pattern, text string) bool {
	if pattern == "" {
		return text == ""
	}
	if pattern[0] == '*' {
		if wildcardMatchRec(pattern[1:], text) {
			return true
		}
		for i := 0; i < len(text); i++ {
			if wildcardMatchRec(pattern[1:], text[i+1:]) {
				return true
			}
		}
		return pattern[1:] == ""
	}
	if text == "" {
		return false
	}
	if pattern[0] == '?' || pattern[0] == text[0] {
		return wildcardMatchRec(pattern[1:], text[1:])
	}
	return false
}

// Sweep removes every ban of every kind whose expiry has passed, for
// periodic invocation by the server's maintenance ticker.
func (e *Enforcer) Sweep() []*store.Ban {
	return e.store.SweepExpiredBans(time.Now())
}

// RetroDisconnect returns the currently-connected local users that
// now match a newly-added ban, so the caller can KILL each one. Only
// local users are considered: enforcement of a new K/D/X-line is this
// server's own responsibility, while a new G-line additionally propagates
// for every other server to do the same.
func (e *Enforcer) RetroDisconnect(kind Kind, mask string) []*store.User {
	var hits []*store.User
	for _, u := range e.store.AllUsers() {
		if !u.Local {
			continue
		}
		subj := Subject{Nick: u.Nick, User: u.User, Host: u.Host, RealName: u.RealName}
		if matchKind(kind, mask, subj) {
			hits = append(hits, u)
		}
	}
	return hits
}
