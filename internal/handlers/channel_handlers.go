package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/presbrey/ircd/internal/ban"
	"github.com/presbrey/ircd/internal/broadcast"
	"github.com/presbrey/ircd/internal/channel"
	"github.com/presbrey/ircd/internal/dispatch"
	"github.com/presbrey/ircd/internal/reply"
	"github.com/presbrey/ircd/internal/store"
	"github.com/presbrey/ircd/internal/wire"
)

// handleJoin implements JOIN, grounded on handleJoin in
// irc/server/handlers.go: comma-separated channel/key lists, first
// joiner becomes op, then ban/invite/key/limit admission checks in that
// order via internal/channel.Policy.
func (d *Deps) handleJoin(ctx *dispatch.Context) error {
	if len(ctx.Message.Params) < 1 {
		return needMoreParams(d, ctx, "JOIN")
	}
	u, ok := d.currentUser(ctx)
	if !ok {
		d.numeric(ctx, reply.ERR_NOTREGISTERED, nil)
		return nil
	}

	names := splitCSV(ctx.Message.Params[0])
	var keys []string
	if len(ctx.Message.Params) > 1 {
		keys = splitCSV(ctx.Message.Params[1])
	}

	subj := ban.Subject{Nick: u.Nick, User: u.User, Host: u.Host, RealName: u.RealName}

	for i, name := range names {
		if !strings.HasPrefix(name, "#") {
			d.numeric(ctx, reply.ERR_NOSUCHCHANNEL, map[string]string{"channel": name})
			continue
		}

		var key string
		if i < len(keys) {
			key = keys[i]
		}

		ch, created := d.Store.GetOrCreateChannel(name)
		if created {
			ch.Modes = channel.DefaultModes()
		}

		invited := inviteListContains(ch.Invites, u.Nick)
		if reason := d.Channels.AdmitJoin(ch, subj, key, invited); reason != channel.DenyNone && !created {
			d.sendJoinDenial(ctx, name, reason)
			continue
		}

		initialModes := map[byte]bool{}
		if created {
			initialModes[channel.MemberOp] = true
		}
		d.Store.AddMember(u.ID, name, initialModes)

		prefix := d.userPrefix(u)
		joinMsg := &wire.Message{Prefix: prefix, Command: "JOIN", Params: []string{name}}
		d.Broadcast.Enqueue(broadcast.Item{
			Message:  joinMsg,
			Target:   broadcast.Target{Kind: broadcast.TargetChannel, Channel: name},
			Priority: broadcast.Normal,
		})
		d.Broadcast.Enqueue(peerRelay(joinMsg))
		d.sendNames(ctx, ch)
	}
	return nil
}

func (d *Deps) sendJoinDenial(ctx *dispatch.Context, channelName string, reason channel.JoinDenyReason) {
	switch reason {
	case channel.DenyBanned:
		d.numeric(ctx, reply.ERR_BANNEDFROMCHAN, map[string]string{"channel": channelName})
	case channel.DenyInviteOnly:
		d.numeric(ctx, reply.ERR_INVITEONLYCHAN, map[string]string{"channel": channelName})
	case channel.DenyBadKey:
		d.numeric(ctx, reply.ERR_BADCHANNELKEY, map[string]string{"channel": channelName})
	case channel.DenyFull:
		d.numeric(ctx, reply.ERR_CHANNELISFULL, map[string]string{"channel": channelName})
	}
}

func inviteListContains(invites []string, nick string) bool {
	for _, n := range invites {
		if strings.EqualFold(n, nick) {
			return true
		}
	}
	return false
}

func (d *Deps) sendNames(ctx *dispatch.Context, ch *store.Channel) {
	var nicks []string
	for uid, m := range ch.Members {
		u, ok := d.Store.GetUser(uid)
		if !ok {
			continue
		}
		prefix := ""
		if m.Modes[channel.MemberOp] {
			prefix = "@"
		} else if m.Modes[channel.MemberVoice] {
			prefix = "+"
		}
		nicks = append(nicks, prefix+u.Nick)
	}
	d.numeric(ctx, reply.RPL_NAMREPLY, map[string]string{"channel": ch.Name, "reason": strings.Join(nicks, " ")})
	d.numeric(ctx, reply.RPL_ENDOFNAMES, map[string]string{"channel": ch.Name})
}

// handlePart implements PART, grounded on handlePart in
// irc/server/handlers.go.
func (d *Deps) handlePart(ctx *dispatch.Context) error {
	if len(ctx.Message.Params) < 1 {
		return needMoreParams(d, ctx, "PART")
	}
	u, ok := d.currentUser(ctx)
	if !ok {
		d.numeric(ctx, reply.ERR_NOTREGISTERED, nil)
		return nil
	}

	reason := "Leaving"
	if len(ctx.Message.Params) > 1 {
		reason = ctx.Message.Params[1]
	}

	for _, name := range splitCSV(ctx.Message.Params[0]) {
		ch, ok := d.Store.GetChannel(name)
		if !ok {
			d.numeric(ctx, reply.ERR_NOSUCHCHANNEL, map[string]string{"channel": name})
			continue
		}
		if _, isMember := ch.Members[u.ID]; !isMember {
			d.numeric(ctx, reply.ERR_NOTONCHANNEL, map[string]string{"channel": name})
			continue
		}

		prefix := d.userPrefix(u)
		partMsg := &wire.Message{Prefix: prefix, Command: "PART", Params: []string{name, reason}}
		d.Broadcast.Enqueue(broadcast.Item{
			Message:  partMsg,
			Target:   broadcast.Target{Kind: broadcast.TargetChannel, Channel: name},
			Priority: broadcast.Normal,
		})
		d.Broadcast.Enqueue(peerRelay(partMsg))
		d.Store.RemoveMember(u.ID, name)
	}
	return nil
}

// handleTopic implements TOPIC: with no second parameter, reports the
// current topic (or RPL_NOTOPIC); with one, sets it if permitted.
func (d *Deps) handleTopic(ctx *dispatch.Context) error {
	if len(ctx.Message.Params) < 1 {
		return needMoreParams(d, ctx, "TOPIC")
	}
	name := ctx.Message.Params[0]
	ch, ok := d.Store.GetChannel(name)
	if !ok {
		d.numeric(ctx, reply.ERR_NOSUCHCHANNEL, map[string]string{"channel": name})
		return nil
	}

	if len(ctx.Message.Params) == 1 {
		if ch.Topic == "" {
			d.numeric(ctx, reply.RPL_NOTOPIC, map[string]string{"channel": name})
		} else {
			d.numeric(ctx, reply.RPL_TOPIC, map[string]string{"channel": name, "topic": ch.Topic})
		}
		return nil
	}

	u, ok := d.currentUser(ctx)
	if !ok {
		d.numeric(ctx, reply.ERR_NOTREGISTERED, nil)
		return nil
	}
	member, isMember := ch.Members[u.ID]
	if !isMember {
		d.numeric(ctx, reply.ERR_NOTONCHANNEL, map[string]string{"channel": name})
		return nil
	}
	if ch.Modes[channel.ModeTopicOpOnly] && !channel.CanSetMode(member) {
		d.numeric(ctx, reply.ERR_CHANOPRIVSNEEDED, map[string]string{"channel": name})
		return nil
	}

	ch.Topic = ctx.Message.Params[1]
	ch.TopicBy = u.Nick
	ch.TopicAt = time.Now()

	prefix := d.userPrefix(u)
	d.Broadcast.Enqueue(broadcast.Item{
		Message:  &wire.Message{Prefix: prefix, Command: "TOPIC", Params: []string{name, ch.Topic}},
		Target:   broadcast.Target{Kind: broadcast.TargetChannel, Channel: name},
		Priority: broadcast.Normal,
	})
	return nil
}

// handleKick implements KICK: requires op status on the kicker, grounded
// on handleKick in irc/server/handlers.go.
func (d *Deps) handleKick(ctx *dispatch.Context) error {
	if len(ctx.Message.Params) < 2 {
		return needMoreParams(d, ctx, "KICK")
	}
	channelName, targetNick := ctx.Message.Params[0], ctx.Message.Params[1]
	reason := targetNick
	if len(ctx.Message.Params) > 2 {
		reason = ctx.Message.Params[2]
	}

	kicker, ok := d.currentUser(ctx)
	if !ok {
		d.numeric(ctx, reply.ERR_NOTREGISTERED, nil)
		return nil
	}
	ch, ok := d.Store.GetChannel(channelName)
	if !ok {
		d.numeric(ctx, reply.ERR_NOSUCHCHANNEL, map[string]string{"channel": channelName})
		return nil
	}
	kickerMember, isMember := ch.Members[kicker.ID]
	if !isMember || !channel.CanSetMode(kickerMember) {
		d.numeric(ctx, reply.ERR_CHANOPRIVSNEEDED, map[string]string{"channel": channelName})
		return nil
	}
	target, ok := d.Store.GetUserByNick(targetNick)
	if !ok {
		d.numeric(ctx, reply.ERR_NOSUCHNICK, map[string]string{"nick": targetNick})
		return nil
	}
	if _, onChannel := ch.Members[target.ID]; !onChannel {
		d.numeric(ctx, reply.ERR_USERNOTINCHANNEL, map[string]string{"nick": targetNick, "channel": channelName})
		return nil
	}

	prefix := d.userPrefix(kicker)
	d.Broadcast.Enqueue(broadcast.Item{
		Message:  &wire.Message{Prefix: prefix, Command: "KICK", Params: []string{channelName, targetNick, reason}},
		Target:   broadcast.Target{Kind: broadcast.TargetChannel, Channel: channelName},
		Priority: broadcast.Normal,
	})
	d.Store.RemoveMember(target.ID, channelName)
	return nil
}

// handleInvite implements INVITE: adds the target to the channel's
// invite list (so a subsequent JOIN passes AdmitJoin's invite-only
// check) and notifies them.
func (d *Deps) handleInvite(ctx *dispatch.Context) error {
	if len(ctx.Message.Params) < 2 {
		return needMoreParams(d, ctx, "INVITE")
	}
	targetNick, channelName := ctx.Message.Params[0], ctx.Message.Params[1]

	inviter, ok := d.currentUser(ctx)
	if !ok {
		d.numeric(ctx, reply.ERR_NOTREGISTERED, nil)
		return nil
	}
	target, ok := d.Store.GetUserByNick(targetNick)
	if !ok {
		d.numeric(ctx, reply.ERR_NOSUCHNICK, map[string]string{"nick": targetNick})
		return nil
	}

	ch, exists := d.Store.GetChannel(channelName)
	if exists {
		if _, already := ch.Members[target.ID]; already {
			d.numeric(ctx, reply.ERR_USERONCHANNEL, map[string]string{"nick": targetNick, "channel": channelName})
			return nil
		}
		ch.Invites = append(ch.Invites, target.Nick)
	}

	d.numeric(ctx, reply.RPL_INVITING, map[string]string{"nick": targetNick, "channel": channelName})
	prefix := d.userPrefix(inviter)
	d.Broadcast.Enqueue(broadcast.Item{
		Message:  &wire.Message{Prefix: prefix, Command: "INVITE", Params: []string{targetNick, channelName}},
		Target:   broadcast.Target{Kind: broadcast.TargetExplicitNicks, Nicks: []string{targetNick}},
		Priority: broadcast.High,
	})
	return nil
}

// handleMode dispatches to channel-mode or user-mode handling based on
// the first parameter's shape, mirroring handleMode in
// irc/server/handlers.go.
func (d *Deps) handleMode(ctx *dispatch.Context) error {
	if len(ctx.Message.Params) < 1 {
		return needMoreParams(d, ctx, "MODE")
	}
	target := ctx.Message.Params[0]
	if strings.HasPrefix(target, "#") {
		return d.handleChannelMode(ctx, target)
	}
	return d.handleUserMode(ctx, target)
}

func (d *Deps) handleChannelMode(ctx *dispatch.Context, channelName string) error {
	ch, ok := d.Store.GetChannel(channelName)
	if !ok {
		d.numeric(ctx, reply.ERR_NOSUCHCHANNEL, map[string]string{"channel": channelName})
		return nil
	}

	if len(ctx.Message.Params) == 1 {
		d.numeric(ctx, reply.RPL_CHANNELMODEIS, map[string]string{"channel": channelName, "mode": channel.FormatModeString(ch)})
		return nil
	}

	u, ok := d.currentUser(ctx)
	if !ok {
		d.numeric(ctx, reply.ERR_NOTREGISTERED, nil)
		return nil
	}
	member := ch.Members[u.ID]
	if !channel.CanSetMode(member) {
		d.numeric(ctx, reply.ERR_CHANOPRIVSNEEDED, map[string]string{"channel": channelName})
		return nil
	}

	modeStr := ctx.Message.Params[1]
	args := ctx.Message.Params[2:]
	argIdx := 0
	adding := true

	for _, r := range modeStr {
		switch r {
		case '+':
			adding = true
		case '-':
			adding = false
		case channel.ModeInviteOnly, channel.ModeModerated, channel.ModeNoExternal,
			channel.ModeSecret, channel.ModeTopicOpOnly, channel.ModePrivate:
			d.Store.SetChannelMode(channelName, byte(r), adding)
		case channel.ModeKey:
			if adding && argIdx < len(args) {
				ch.Key = args[argIdx]
				argIdx++
			}
			d.Store.SetChannelMode(channelName, byte(r), adding)
		case channel.ModeLimit:
			if adding && argIdx < len(args) {
				if n, err := strconv.Atoi(args[argIdx]); err == nil {
					ch.Limit = n
				}
				argIdx++
			}
			d.Store.SetChannelMode(channelName, byte(r), adding)
		case channel.MemberOp, channel.MemberVoice:
			if argIdx < len(args) {
				if targetUser, ok := d.Store.GetUserByNick(args[argIdx]); ok {
					d.Store.SetMemberMode(channelName, targetUser.ID, byte(r), adding)
				}
				argIdx++
			}
		}
	}

	prefix := d.userPrefix(u)
	modeMsg := &wire.Message{Prefix: prefix, Command: "MODE", Params: append([]string{channelName, modeStr}, args...)}
	d.Broadcast.Enqueue(broadcast.Item{
		Message:  modeMsg,
		Target:   broadcast.Target{Kind: broadcast.TargetChannel, Channel: channelName},
		Priority: broadcast.Normal,
	})
	d.Broadcast.Enqueue(peerRelay(modeMsg))
	return nil
}

func (d *Deps) handleUserMode(ctx *dispatch.Context, targetNick string) error {
	u, ok := d.currentUser(ctx)
	if !ok {
		d.numeric(ctx, reply.ERR_NOTREGISTERED, nil)
		return nil
	}
	if !strings.EqualFold(u.Nick, targetNick) {
		d.numeric(ctx, reply.ERR_USERSDONTMATCH, nil)
		return nil
	}

	if len(ctx.Message.Params) == 1 {
		d.numeric(ctx, reply.RPL_UMODEIS, map[string]string{"mode": formatUserModes(u)})
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
				u.Modes[byte(r)] = true
			} else {
				delete(u.Modes, byte(r))
			}
		}
	}

	d.Broadcast.Enqueue(peerRelay(&wire.Message{
		Prefix:  d.userPrefix(u),
		Command: "MODE",
		Params:  []string{targetNick, ctx.Message.Params[1]},
	}))
	return nil
}

func formatUserModes(u *store.User) string {
	out := "+"
	for m := range u.Modes {
		out += string(m)
	}
	return out
}
