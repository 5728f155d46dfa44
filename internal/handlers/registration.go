package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/presbrey/ircd/internal/client"
	"github.com/presbrey/ircd/internal/dispatch"
	"github.com/presbrey/ircd/internal/reply"
	"github.com/presbrey/ircd/internal/store"
	"github.com/presbrey/ircd/internal/wire"
)

func (d *Deps) registration(uid store.UserID) *client.Registration {
	r, ok := d.Registrations[uid]
	if !ok {
		r = client.NewRegistration()
		d.Registrations[uid] = r
	}
	return r
}

// SetHost records the accept loop's resolved hostname for uid before any
// command arrives, so the eventual store.User carries it instead of the
// registration-completion fallback. Exported for cmd/ircd's/internal/
// server's accept loop, which creates the UserID before the client has
// sent anything the dispatcher would otherwise hang a registration off.
func (d *Deps) SetHost(uid store.UserID, host string) {
	d.registration(uid).SetHost(host)
}

// handlePass implements PASS, grounded on handlePass in
// irc/server/handlers.go: a wrong password doesn't disconnect
// immediately (ERR_PASSWDMISMATCH fires, but registration simply won't
// be able to complete later), since the client may still be negotiating
// capabilities.
func (d *Deps) handlePass(ctx *dispatch.Context) error {
	if len(ctx.Message.Params) < 1 {
		return needMoreParams(d, ctx, "PASS")
	}
	d.registration(ctx.UserID).SetPassword(ctx.Message.Params[0])
	if d.ConnPassword != "" && ctx.Message.Params[0] != d.ConnPassword {
		d.numeric(ctx, reply.ERR_PASSWDMISMATCH, nil)
	}
	return nil
}

// handleNick implements NICK both for the pre-registration case (claims
// the initial nick) and the post-registration case (renames and
// broadcasts to every channel the user shares), mirroring handleNick in
// irc/server/handlers.go.
func (d *Deps) handleNick(ctx *dispatch.Context) error {
	if len(ctx.Message.Params) < 1 {
		d.numeric(ctx, reply.ERR_NONICKNAMEGIVEN, nil)
		return nil
	}
	newNick := ctx.Message.Params[0]

	if u, ok := d.currentUser(ctx); ok {
		oldPrefix := d.userPrefix(u)
		if err := d.Store.RenameUser(ctx.UserID, newNick); err != nil {
			d.numeric(ctx, reply.ERR_NICKNAMEINUSE, map[string]string{"nick": newNick})
			return nil
		}
		u.Nick = newNick
		for name := range u.ChannelNames {
			d.Broadcast.Enqueue(broadcastNickChange(oldPrefix, newNick, name))
		}
		d.Broadcast.Enqueue(peerRelay(&wire.Message{Prefix: oldPrefix, Command: "NICK", Params: []string{newNick}}))
		return nil
	}

	reg := d.registration(ctx.UserID)
	reg.SetNick(newNick)
	d.tryCompleteRegistration(ctx, reg)
	return nil
}

// handleUser implements USER: records username/realname, then attempts
// registration completion, mirroring handleUser in
// irc/server/handlers.go including the ERR_ALREADYREGISTRED guard.
func (d *Deps) handleUser(ctx *dispatch.Context) error {
	if _, ok := d.currentUser(ctx); ok {
		d.numeric(ctx, reply.ERR_ALREADYREGISTRED, nil)
		return nil
	}
	if len(ctx.Message.Params) < 4 {
		return needMoreParams(d, ctx, "USER")
	}

	reg := d.registration(ctx.UserID)
	reg.SetUser(ctx.Message.Params[0], ctx.Message.Params[3])
	d.tryCompleteRegistration(ctx, reg)
	return nil
}

// supportedCaps is the set of IRCv3 capability tags this daemon will ACK
// in a CAP REQ. cap-notify is the only one advertised today: since this
// daemon's capability set never changes once a connection is open, there
// is nothing extra to implement to honor it (the CAP NEW/DEL notices it
// promises simply never fire). Advertising a capability this daemon
// doesn't actually act on (multi-prefix, server-time, message-tags, ...)
// would be a false promise to the client, so none of those are listed
// here until the matching wire behavior exists.
var supportedCaps = map[string]bool{
	"cap-notify": true,
}

// handleCap implements the IRCv3 CAP subcommands needed to gate
// registration: LS, REQ, LIST, END, per spec.md §4.3's "core maintains a
// set of enabled capability tags per connection" and "unknown
// capabilities produce NAK" rules. REQ is all-or-nothing per the IRCv3
// capability-negotiation spec: a request naming even one unsupported tag
// NAKs the whole line rather than ACKing the subset this daemon knows.
func (d *Deps) handleCap(ctx *dispatch.Context) error {
	if len(ctx.Message.Params) < 1 {
		return nil
	}
	reg := d.registration(ctx.UserID)
	sub := ctx.Message.Params[0]

	switch sub {
	case "LS":
		reg.BeginCapNegotiation()
		ctx.Reply(fmt.Sprintf(":%s CAP * LS :%s", d.ServerName, joinSupportedCaps()))
	case "LIST":
		ctx.Reply(fmt.Sprintf(":%s CAP * LIST :%s", d.ServerName, strings.Join(reg.EnabledCaps(), " ")))
	case "REQ":
		reg.BeginCapNegotiation()
		if len(ctx.Message.Params) < 2 || strings.TrimSpace(ctx.Message.Params[1]) == "" {
			return needMoreParams(d, ctx, "CAP")
		}
		requested := strings.Fields(ctx.Message.Params[1])
		for _, tag := range requested {
			if !supportedCaps[strings.ToLower(tag)] {
				ctx.Reply(fmt.Sprintf(":%s CAP * NAK :%s", d.ServerName, ctx.Message.Params[1]))
				return nil
			}
		}
		reg.EnableCaps(requested)
		ctx.Reply(fmt.Sprintf(":%s CAP * ACK :%s", d.ServerName, ctx.Message.Params[1]))
	case "END":
		reg.EndCapNegotiation()
		d.tryCompleteRegistration(ctx, reg)
	}
	return nil
}

func joinSupportedCaps() string {
	caps := make([]string, 0, len(supportedCaps))
	for c := range supportedCaps {
		caps = append(caps, c)
	}
	return strings.Join(caps, " ")
}

func (d *Deps) tryCompleteRegistration(ctx *dispatch.Context, reg *client.Registration) {
	if !reg.ReadyToComplete(d.ConnPassword) {
		return
	}

	snap := reg.Snapshot()
	host := snap.Host
	if host == "" {
		host = "localhost"
	}
	u := &store.User{
		ID:           ctx.UserID,
		Nick:         snap.Nick,
		User:         snap.User,
		RealName:     snap.RealName,
		Host:         host,
		Server:       d.ServerName,
		Local:        true,
		RegisteredAt: time.Now(),
		LastActivity: time.Now(),
	}
	if err := d.Store.AddUser(u); err != nil {
		d.numeric(ctx, reply.ERR_NICKNAMEINUSE, map[string]string{"nick": snap.Nick})
		return
	}

	reg.Complete()
	delete(d.Registrations, ctx.UserID)

	d.sendWelcome(ctx, u)
	d.NotifyMonitors(u.Nick, d.userPrefix(u), true)
}

// sendWelcome sends the RPL_WELCOME/YOURHOST/CREATED/MYINFO/MOTD burst,
// grounded on completeRegistration in irc/client.go.
func (d *Deps) sendWelcome(ctx *dispatch.Context, u *store.User) {
	vars := map[string]string{
		"nick":        u.Nick,
		"server_name": d.ServerName,
		"version":     d.Version,
		"time":        time.Now().Format(time.RFC1123),
	}
	for _, code := range []int{reply.RPL_WELCOME, reply.RPL_YOURHOST, reply.RPL_CREATED, reply.RPL_MYINFO} {
		d.numeric(ctx, code, vars)
	}
	d.sendLusers(ctx)
	d.numeric(ctx, reply.RPL_MOTDSTART, vars)
	lines := d.MOTD
	if len(lines) == 0 {
		lines = []string{"Welcome to " + d.NetworkName}
	}
	for _, line := range lines {
		d.numeric(ctx, reply.RPL_MOTD, map[string]string{"reason": line})
	}
	d.numeric(ctx, reply.RPL_ENDOFMOTD, nil)
}
