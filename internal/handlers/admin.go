package handlers

import (
	"context"

	"github.com/presbrey/ircd/internal/auth"
	"github.com/presbrey/ircd/internal/broadcast"
	"github.com/presbrey/ircd/internal/dispatch"
	"github.com/presbrey/ircd/internal/ircerr"
	"github.com/presbrey/ircd/internal/reply"
	"github.com/presbrey/ircd/internal/wire"
)

// handleOper implements OPER, grounded on handleOper in
// irc/server/handlers.go, but runs the credential through the provider
// chain (spec.md §4.10) instead of a single plaintext comparison.
func (d *Deps) handleOper(ctx *dispatch.Context) error {
	if len(ctx.Message.Params) < 2 {
		return needMoreParams(d, ctx, "OPER")
	}
	u, ok := d.currentUser(ctx)
	if !ok {
		d.numeric(ctx, reply.ERR_NOTREGISTERED, nil)
		return nil
	}

	req := auth.Request{Username: ctx.Message.Params[0], Credential: ctx.Message.Params[1]}
	res, err := d.Auth.Authenticate(context.Background(), req)
	if err != nil || res.Outcome != auth.Success {
		d.numeric(ctx, reply.ERR_PASSWDMISMATCH, nil)
		return nil
	}

	u.Modes['o'] = true
	d.numeric(ctx, reply.RPL_YOUREOPER, nil)
	return nil
}

// handleKill implements KILL: requires operator status, grounded on
// handleKill in irc/server/handlers.go's notify-then-disconnect order.
func (d *Deps) handleKill(ctx *dispatch.Context) error {
	if len(ctx.Message.Params) < 2 {
		return needMoreParams(d, ctx, "KILL")
	}
	killer, ok := d.currentUser(ctx)
	if !ok || !killer.Modes['o'] {
		return ircerr.New(ircerr.PermissionDenied, "KILL", nil)
	}

	targetNick, reason := ctx.Message.Params[0], ctx.Message.Params[1]
	target, ok := d.Store.GetUserByNick(targetNick)
	if !ok {
		return ircerr.New(ircerr.NotFound, "KILL", map[string]string{"nick": targetNick})
	}

	killMsg := "Killed by " + killer.Nick + ": " + reason
	d.Broadcast.SendNow(broadcast.Item{
		Message:  &wire.Message{Prefix: d.ServerName, Command: "KILL", Params: []string{target.Nick, killMsg}},
		Target:   broadcast.Target{Kind: broadcast.TargetExplicitNicks, Nicks: []string{target.Nick}},
		Priority: broadcast.Critical,
	})

	channels := d.Store.RemoveUser(target.ID)
	prefix := d.userPrefix(target)
	for _, name := range channels {
		d.Broadcast.Enqueue(broadcast.Item{
			Message:  &wire.Message{Prefix: prefix, Command: "QUIT", Params: []string{killMsg}},
			Target:   broadcast.Target{Kind: broadcast.TargetChannel, Channel: name},
			Priority: broadcast.High,
		})
	}
	d.Monitors.Clear(target.ID)
	d.NotifyMonitors(target.Nick, prefix, false)
	return nil
}

// handleWallops implements WALLOPS: an operator-only broadcast to every
// local operator (user mode +o, via TargetOperators), the spec.md §4.13
// supplemented feature grounded on SendGlobopsNotice/SendLocopsNotice in
// irc/client.go.
func (d *Deps) handleWallops(ctx *dispatch.Context) error {
	if len(ctx.Message.Params) < 1 {
		return needMoreParams(d, ctx, "WALLOPS")
	}
	sender, ok := d.currentUser(ctx)
	if !ok || !sender.Modes['o'] {
		d.numeric(ctx, reply.ERR_NOPRIVILEGES, nil)
		return nil
	}

	d.Broadcast.Enqueue(broadcast.Item{
		Message:  &wire.Message{Prefix: d.userPrefix(sender), Command: "WALLOPS", Params: []string{ctx.Message.Params[0]}},
		Target:   broadcast.Target{Kind: broadcast.TargetOperators},
		Priority: broadcast.Normal,
	})
	return nil
}

// handleSquit implements SQUIT: operator-only peer-link teardown (spec.md
// §4.8). The actual store cleanup and cascade QUIT broadcast happen inside
// internal/peer once it observes the link close; this handler only
// authorizes the request and tells the Manager which link to drop.
func (d *Deps) handleSquit(ctx *dispatch.Context) error {
	if len(ctx.Message.Params) < 1 {
		return needMoreParams(d, ctx, "SQUIT")
	}
	u, ok := d.currentUser(ctx)
	if !ok || !u.Modes['o'] {
		d.numeric(ctx, reply.ERR_NOPRIVILEGES, nil)
		return nil
	}
	if d.Peers == nil {
		return nil
	}

	serverName := ctx.Message.Params[0]
	reason := "Requested by " + u.Nick
	if len(ctx.Message.Params) > 1 {
		reason = ctx.Message.Params[1]
	}

	if !d.Peers.Squit(serverName, reason) {
		d.numeric(ctx, reply.ERR_NOSUCHSERVER, map[string]string{"server_name": serverName})
	}
	return nil
}

// handleRehash implements REHASH: operator-only config reload, grounded
// on handleRehash in irc/server/handlers.go and rustircd's admin reload
// command. The actual config swap is deferred to the Deps.Reload callback
// wired in by cmd/ircd; handlers.Deps doesn't own config loading itself.
func (d *Deps) handleRehash(ctx *dispatch.Context) error {
	u, ok := d.currentUser(ctx)
	if !ok || !u.Modes['o'] {
		d.numeric(ctx, reply.ERR_NOPRIVILEGES, nil)
		return nil
	}

	d.numeric(ctx, reply.RPL_REHASHING, nil)
	if d.Reload != nil {
		if err := d.Reload(); err != nil {
			ctx.Reply(":" + d.ServerName + " NOTICE " + u.Nick + " :REHASH failed: " + err.Error())
		}
	}
	return nil
}
