// Package handlers implements the full command set: registration
// (NICK/USER/PASS/CAP), channel membership (JOIN/PART/KICK/INVITE/TOPIC),
// messaging (PRIVMSG/NOTICE), session (PING/PONG/QUIT/AWAY), discovery
// (WHO/WHOIS/LIST/NAMES), operator/administration (OPER/KILL/KLINE/
// GLINE/DLINE/XLINE/WALLOPS/REHASH), IRCv3 MONITOR, and services
// integration (SVSNICK/SVSMODE/SVSJOIN/SVSPART/SETHOST/SVS2MODE),
// grounded throughout on the handleX functions in
// _examples/presbrey-pkg/irc/server/handlers.go and irc/client.go.
package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/presbrey/ircd/internal/auth"
	"github.com/presbrey/ircd/internal/ban"
	"github.com/presbrey/ircd/internal/broadcast"
	"github.com/presbrey/ircd/internal/channel"
	"github.com/presbrey/ircd/internal/client"
	"github.com/presbrey/ircd/internal/dispatch"
	"github.com/presbrey/ircd/internal/ircerr"
	"github.com/presbrey/ircd/internal/peer"
	"github.com/presbrey/ircd/internal/reply"
	"github.com/presbrey/ircd/internal/store"
	"github.com/presbrey/ircd/internal/wire"
)

// Deps bundles every collaborator a handler needs. Handlers are plain
// functions closing over a *Deps rather than methods on a god-object
// Server, so each command's dependencies are visible at a glance.
type Deps struct {
	Store     *store.Store
	Bans      *ban.Enforcer
	Channels  *channel.Policy
	Broadcast *broadcast.Engine
	Replies   *reply.Store
	Auth      *auth.Chain

	ServerName  string
	NetworkName string
	Version     string

	// Registrations tracks the in-progress registration state machine
	// for each not-yet-fully-registered connection, keyed by UserID.
	Registrations map[store.UserID]*client.Registration
	ConnPassword  string

	// Reload re-reads the on-disk configuration and hot-swaps connection
	// classes, wired in by cmd/ircd; nil in tests that don't exercise
	// REHASH.
	Reload func() error

	// Monitors backs the IRCv3 MONITOR command (spec.md §4.13 supplemented
	// feature). Created by NewDeps; handlers use it without a nil check,
	// so a Deps built by hand must set it.
	Monitors *MonitorRegistry

	// Peers backs the operator SQUIT command (spec.md §4.8); nil in tests
	// that don't exercise server linking.
	Peers *peer.Manager

	// MOTD holds the lines internal/config loaded from the configured MOTD
	// file; nil falls back to a one-line "Welcome to <network>" banner.
	MOTD []string
}

// NewDeps builds a Deps with its internal registries initialized.
func NewDeps() *Deps {
	return &Deps{
		Registrations: make(map[store.UserID]*client.Registration),
		Monitors:      NewMonitorRegistry(),
	}
}

// Register wires every handler into the dispatcher.
func Register(d *dispatch.Dispatcher, deps *Deps) {
	d.Register("PASS", deps.handlePass)
	d.Register("NICK", deps.handleNick)
	d.Register("USER", deps.handleUser)
	d.Register("CAP", deps.handleCap)
	d.Register("PING", deps.handlePing)
	d.Register("PONG", deps.handlePong)
	d.Register("QUIT", deps.handleQuit)

	d.Register("JOIN", deps.handleJoin)
	d.Register("PART", deps.handlePart)
	d.Register("TOPIC", deps.handleTopic)
	d.Register("KICK", deps.handleKick)
	d.Register("INVITE", deps.handleInvite)
	d.Register("MODE", deps.handleMode)

	d.Register("PRIVMSG", deps.handlePrivmsg)
	d.Register("NOTICE", deps.handleNotice)
	d.Register("AWAY", deps.handleAway)

	d.Register("WHO", deps.handleWho)
	d.Register("WHOIS", deps.handleWhois)
	d.Register("LIST", deps.handleList)
	d.Register("NAMES", deps.handleNames)
	d.Register("LUSERS", deps.handleLusers)
	d.Register("MOTD", deps.handleMotd)
	d.Register("VERSION", deps.handleVersion)
	d.Register("TIME", deps.handleTime)

	d.Register("OPER", deps.handleOper)
	d.Register("KILL", deps.handleKill)
	d.Register("WALLOPS", deps.handleWallops)
	d.Register("REHASH", deps.handleRehash)
	d.Register("SQUIT", deps.handleSquit)

	d.Register("KLINE", deps.handleKline)
	d.Register("UNKLINE", deps.handleUnkline)
	d.Register("GLINE", deps.handleGline)
	d.Register("UNGLINE", deps.handleUngline)
	d.Register("DLINE", deps.handleDline)
	d.Register("UNDLINE", deps.handleUndline)
	d.Register("XLINE", deps.handleXline)
	d.Register("UNXLINE", deps.handleUnxline)

	d.Register("MONITOR", deps.handleMonitor)

	d.Register("SVSNICK", deps.handleSvsnick)
	d.Register("SVSMODE", deps.handleSvsmode)
	d.Register("SVS2MODE", deps.handleSvs2mode)
	d.Register("SVSJOIN", deps.handleSvsjoin)
	d.Register("SVSPART", deps.handleSvspart)
	d.Register("SETHOST", deps.handleSethost)

	// A handler that returns an *ircerr.Error instead of replying itself
	// (needMoreParams and the few privilege/not-found checks converted to
	// it) gets its numeric sent here, once, instead of at every call site.
	d.RegisterPostHook(func(c *dispatch.Context) error {
		ie, ok := c.Err.(*ircerr.Error)
		if !ok {
			return nil
		}
		if code, ok := ie.Numeric(); ok {
			deps.numeric(c, code, ie.Vars)
		}
		return nil
	})
}

// numeric is a small helper so handlers don't repeat the
// Replies.Format/ctx.Reply pair.
func (d *Deps) numeric(ctx *dispatch.Context, code int, vars map[string]string) {
	u, _ := d.Store.GetUser(ctx.UserID)
	nick := "*"
	if u != nil {
		nick = u.Nick
	}
	ctx.Reply(fmt.Sprintf(":%s %03d %s", d.ServerName, code, d.Replies.Format(code, nick, vars)))
}

// needMoreParams builds the ERR_NEEDMOREPARAMS error for command. A handler
// returns it (rather than replying directly) so the dispatcher's post-hook
// sends the numeric exactly once. The post-hook only sees returned errors:
// NOTICE stays silent without calling this, and requireServicesLink sends
// its own numerics.
func needMoreParams(d *Deps, ctx *dispatch.Context, command string) *ircerr.Error {
	return ircerr.New(ircerr.Parse, command, map[string]string{"command": command})
}

func (d *Deps) currentUser(ctx *dispatch.Context) (*store.User, bool) {
	return d.Store.GetUser(ctx.UserID)
}

func (d *Deps) userPrefix(u *store.User) string {
	return wire.JoinPrefix(u.Nick, u.User, u.Host)
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	unit := s[len(s)-1]
	numPart := s
	mult := time.Minute
	switch unit {
	case 's':
		mult, numPart = time.Second, s[:len(s)-1]
	case 'm':
		mult, numPart = time.Minute, s[:len(s)-1]
	case 'h':
		mult, numPart = time.Hour, s[:len(s)-1]
	case 'd':
		mult, numPart = 24*time.Hour, s[:len(s)-1]
	case 'w':
		mult, numPart = 7*24*time.Hour, s[:len(s)-1]
	}
	var n int
	if _, err := fmt.Sscanf(numPart, "%d", &n); err != nil {
		return 0, fmt.Errorf("handlers: invalid duration %q: %w", s, err)
	}
	return time.Duration(n) * mult, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
