// Package handlers' services.go implements the services command subset
// (spec.md §4.10): SVSNICK, SVSMODE, SVS2MODE, SVSJOIN, SVSPART, SETHOST.
// These bypass operator-privilege checks but are only honored when they
// arrive over a peer link registered and marked "services" — the teacher
// has no services integration at all, so this is grounded on the shape of
// rustircd's services/src/atheme.rs bridge rather than on any presbrey-pkg
// code.
package handlers

import (
	"github.com/presbrey/ircd/internal/broadcast"
	"github.com/presbrey/ircd/internal/dispatch"
	"github.com/presbrey/ircd/internal/reply"
	"github.com/presbrey/ircd/internal/wire"
)

func (d *Deps) requireServicesLink(ctx *dispatch.Context, command string) bool {
	if !ctx.FromServicesLink {
		d.numeric(ctx, reply.ERR_NOPRIVILEGES, nil)
		return false
	}
	if len(ctx.Message.Params) < 1 {
		d.numeric(ctx, reply.ERR_NEEDMOREPARAMS, map[string]string{"command": command})
		return false
	}
	return true
}

// handleSvsnick forces a nick change, grounded on the teacher's handleNick
// rename path minus the self-initiated checks services commands bypass.
func (d *Deps) handleSvsnick(ctx *dispatch.Context) error {
	if len(ctx.Message.Params) < 2 {
		return needMoreParams(d, ctx, "SVSNICK")
	}
	if !ctx.FromServicesLink {
		d.numeric(ctx, reply.ERR_NOPRIVILEGES, nil)
		return nil
	}

	oldNick, newNick := ctx.Message.Params[0], ctx.Message.Params[1]
	u, ok := d.Store.GetUserByNick(oldNick)
	if !ok {
		d.numeric(ctx, reply.ERR_NOSUCHNICK, map[string]string{"nick": oldNick})
		return nil
	}
	oldPrefix := d.userPrefix(u)
	if err := d.Store.RenameUser(u.ID, newNick); err != nil {
		return nil
	}
	u.Nick = newNick
	for name := range u.ChannelNames {
		d.Broadcast.Enqueue(broadcastNickChange(oldPrefix, newNick, name))
	}
	return nil
}

// handleSvsmode and handleSvs2mode both force a user-mode change; SVS2MODE
// additionally carries an optional services-stamp argument that this
// daemon accepts and ignores.
func (d *Deps) handleSvsmode(ctx *dispatch.Context) error {
	return d.forceUserMode(ctx, "SVSMODE")
}

func (d *Deps) handleSvs2mode(ctx *dispatch.Context) error {
	return d.forceUserMode(ctx, "SVS2MODE")
}

func (d *Deps) forceUserMode(ctx *dispatch.Context, command string) error {
	if !d.requireServicesLink(ctx, command) {
		return nil
	}
	if len(ctx.Message.Params) < 2 {
		return needMoreParams(d, ctx, command)
	}
	target, ok := d.Store.GetUserByNick(ctx.Message.Params[0])
	if !ok {
		d.numeric(ctx, reply.ERR_NOSUCHNICK, map[string]string{"nick": ctx.Message.Params[0]})
		return nil
	}

	adding := true
	for _, r := range ctx.Message.Params[1] {
		switch r {
		case '+':
			adding = true
		case '-':
			adding = false
		default:
			if adding {
				target.Modes[byte(r)] = true
			} else {
				delete(target.Modes, byte(r))
			}
		}
	}

	d.Broadcast.Enqueue(broadcast.Item{
		Message:  &wire.Message{Prefix: d.ServerName, Command: "MODE", Params: []string{target.Nick, ctx.Message.Params[1]}},
		Target:   broadcast.Target{Kind: broadcast.TargetExplicitNicks, Nicks: []string{target.Nick}},
		Priority: broadcast.Normal,
	})
	return nil
}

// handleSvsjoin and handleSvspart force channel membership changes on
// behalf of services (e.g. a ChanServ enforcing a channel's access list).
func (d *Deps) handleSvsjoin(ctx *dispatch.Context) error {
	if !d.requireServicesLink(ctx, "SVSJOIN") {
		return nil
	}
	if len(ctx.Message.Params) < 2 {
		return needMoreParams(d, ctx, "SVSJOIN")
	}
	target, ok := d.Store.GetUserByNick(ctx.Message.Params[0])
	if !ok {
		d.numeric(ctx, reply.ERR_NOSUCHNICK, map[string]string{"nick": ctx.Message.Params[0]})
		return nil
	}
	channelName := ctx.Message.Params[1]

	d.Store.AddMember(target.ID, channelName, nil)
	d.Broadcast.Enqueue(broadcast.Item{
		Message:  &wire.Message{Prefix: d.userPrefix(target), Command: "JOIN", Params: []string{channelName}},
		Target:   broadcast.Target{Kind: broadcast.TargetChannel, Channel: channelName},
		Priority: broadcast.Normal,
	})
	return nil
}

func (d *Deps) handleSvspart(ctx *dispatch.Context) error {
	if !d.requireServicesLink(ctx, "SVSPART") {
		return nil
	}
	if len(ctx.Message.Params) < 2 {
		return needMoreParams(d, ctx, "SVSPART")
	}
	target, ok := d.Store.GetUserByNick(ctx.Message.Params[0])
	if !ok {
		d.numeric(ctx, reply.ERR_NOSUCHNICK, map[string]string{"nick": ctx.Message.Params[0]})
		return nil
	}
	channelName := ctx.Message.Params[1]

	d.Broadcast.Enqueue(broadcast.Item{
		Message:  &wire.Message{Prefix: d.userPrefix(target), Command: "PART", Params: []string{channelName, "requested by services"}},
		Target:   broadcast.Target{Kind: broadcast.TargetChannel, Channel: channelName},
		Priority: broadcast.Normal,
	})
	d.Store.RemoveMember(target.ID, channelName)
	return nil
}

// handleSethost rewrites a user's displayed host, grounded on spec.md
// §4.10's "rewrite host" services primitive.
func (d *Deps) handleSethost(ctx *dispatch.Context) error {
	if !d.requireServicesLink(ctx, "SETHOST") {
		return nil
	}
	if len(ctx.Message.Params) < 2 {
		return needMoreParams(d, ctx, "SETHOST")
	}
	target, ok := d.Store.GetUserByNick(ctx.Message.Params[0])
	if !ok {
		d.numeric(ctx, reply.ERR_NOSUCHNICK, map[string]string{"nick": ctx.Message.Params[0]})
		return nil
	}
	target.Host = ctx.Message.Params[1]
	return nil
}
